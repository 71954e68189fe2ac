// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
)

// BundleSelectionRequest is the selection form for retained-archive
// operations: each entry names an archive in the bundle root.
type BundleSelectionRequest struct {
	Bundles []bundle.Selection `json:"bundles" binding:"required"`
}

// ListBundles returns the archives currently retained in the bundle
// root, sorted by name.
func ListBundles(store *bundle.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := store.List()
		if names == nil {
			names = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"bundles": names})
	}
}

// DeleteBundles removes the selected archives from the bundle root.
// Selections that don't match an existing archive are ignored.
func DeleteBundles(store *bundle.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BundleSelectionRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection form"})
			return
		}

		names := store.FilterExisting(req.Bundles)
		store.Delete(names)

		slog.Info("Deleted retained bundles", "count", len(names))
		c.JSON(http.StatusOK, gin.H{"deleted": names})
	}
}

// DownloadBundles streams the selected retained archives.
//
// A single selection is streamed as-is. Multiple selections are packed
// into one aggregate archive, each input appearing as a top-level
// entry, and the aggregate is deleted once the response is written.
func DownloadBundles(store *bundle.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BundleSelectionRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection form"})
			return
		}

		names := store.FilterExisting(req.Bundles)
		switch len(names) {
		case 0:
			c.JSON(http.StatusBadRequest, gin.H{"error": bundle.ErrNoBundles.Error()})
		case 1:
			c.FileAttachment(store.Path(names[0]), names[0])
			recordDownload("single")
		default:
			tmpPath, err := bundle.Aggregate(store.Root(), names)
			if err != nil {
				slog.Error("Failed to aggregate bundles", "count", len(names), "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate bundles"})
				return
			}
			defer func() {
				if err := os.Remove(tmpPath); err != nil {
					slog.Warn("Failed to remove aggregate archive", "path", tmpPath, "error", err)
				}
			}()

			c.FileAttachment(tmpPath, bundle.FileName(time.Now()))
			recordDownload("multi")
		}
	}
}
