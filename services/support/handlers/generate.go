// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the support service.
//
// Handlers are constructed as closures over their dependencies (registry,
// sweeper, bundle store, component catalog) and return gin.HandlerFunc,
// so the routes package can wire them without package-level state.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/middleware"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/observability"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/task"
)

// GenerateRequest is the selection form posted by generateAll and
// deleteBundles/downloadBundles. Every component the caller saw is
// listed with its checkbox state.
type GenerateRequest struct {
	Components []bundle.Selection `json:"components" binding:"required"`
}

// componentView is one catalog entry as shown to the caller.
type componentView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"selected"`
	Enabled  bool   `json:"enabled"`
}

// HealthCheck reports service liveness.
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// ListComponents returns the component catalog grouped by category, in
// catalog order, with the default checkbox state for each entry.
func ListComponents(catalog []bundle.Component) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, grouped := bundle.Categorize(catalog)

		out := make([]gin.H, 0, len(order))
		for _, cat := range order {
			views := make([]componentView, 0, len(grouped[cat]))
			for _, comp := range grouped[cat] {
				views = append(views, componentView{
					ID:   comp.ID(),
					Name: comp.DisplayName(),
					Selected: comp.Enabled() && comp.SelectedByDefault() &&
						!bundle.IsExcluded(comp.ID()),
					Enabled: comp.Enabled() && !bundle.IsExcluded(comp.ID()),
				})
			}
			out = append(out, gin.H{
				"category":   cat,
				"components": views,
			})
		}
		c.JSON(http.StatusOK, gin.H{"categories": out})
	}
}

// GenerateAll launches bundle generation from a posted selection form.
//
// The form is exclusion based: every component the caller unchecked is
// excluded, everything else in the catalog is collected. The response
// is a 303 pointing at the progress endpoint for the new task.
func GenerateAll(registry *task.Registry, catalog []bundle.Component) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GenerateRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid selection form"})
			return
		}

		excluded := make(map[string]struct{})
		for _, sel := range req.Components {
			if !sel.Selected {
				excluded[sel.Name] = struct{}{}
			}
		}

		components := bundle.ResolveExclusive(excluded, catalog)
		launchTask(c, registry, components)
	}
}

// GenerateBundle launches bundle generation for an explicit component
// list given as a comma-delimited "components" query parameter.
func GenerateBundle(registry *task.Registry, catalog []bundle.Component) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("components")
		if raw == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "components parameter is required"})
			return
		}

		requested := make(map[string]struct{})
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				requested[name] = struct{}{}
			}
		}

		components, err := bundle.ResolveInclusive(requested, catalog)
		if err != nil {
			if errors.Is(err, bundle.ErrEmptySelection) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "no known components selected"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		launchTask(c, registry, components)
	}
}

// launchTask registers and starts a generation task, then points the
// caller at the polling endpoint.
func launchTask(c *gin.Context, registry *task.Registry, components []bundle.Component) {
	t := registry.Create(components)
	registry.Launch(t, middleware.GetAuthInfo(c))

	location := "progress?taskId=" + t.ID().String()
	c.Header("Location", location)
	c.JSON(http.StatusSeeOther, gin.H{"taskId": t.ID().String()})
}

// Progress reports the state of a generation task.
//
// The payload keeps the shape long-lived polling clients expect:
// isCompleted flips once at the end, pathToBundle appears with it,
// and status is a constant 1 acknowledging the poll.
func Progress(registry *task.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Query("taskId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid taskId"})
			return
		}

		status, err := registry.Status(id)
		if err != nil {
			if errors.Is(err, task.ErrUnknownTask) {
				c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"isCompleted":  status.IsCompleted,
			"pathToBundle": status.PathToBundle,
			"status":       1,
			"taskId":       status.TaskID.String(),
		})
	}
}

// DownloadTaskBundle streams a finished task's archive and schedules
// its spool directory for cleanup once the retention delay elapses.
func DownloadTaskBundle(registry *task.Registry, sweeper *task.Sweeper) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Query("taskId"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid taskId"})
			return
		}

		status, err := registry.Status(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
			return
		}
		if !status.IsCompleted || status.PathToBundle == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "bundle not ready"})
			return
		}
		if _, err := os.Stat(status.PathToBundle); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "bundle no longer available"})
			return
		}

		slog.Info("Serving task bundle", "task_id", id, "path", status.PathToBundle)
		c.FileAttachment(status.PathToBundle, task.BundleFileName)
		recordDownload("task")

		// The spool stays available for re-download until the delay
		// expires, then both the directory and the task entry go away.
		sweeper.Arm(id)
	}
}

// recordDownload bumps the download counter when metrics are initialized.
func recordDownload(kind string) {
	if m := observability.DefaultMetrics; m != nil {
		m.DownloadsTotal.WithLabelValues(kind).Inc()
	}
}
