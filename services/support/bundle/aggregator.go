// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bundle

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zip"
)

// Aggregate combines several already-generated archive files into one
// combined archive for multi-select download.
//
// Each input file becomes a top-level entry named by its original file
// name. The inputs are added in sorted name order so the combined
// archive layout is deterministic regardless of how the caller
// assembled the set.
//
// The combined archive is written to a fresh temporary file; the
// returned path is the caller's responsibility to delete after
// streaming it. Callers must only invoke Aggregate with two or more
// names - a single bundle is streamed directly without aggregation.
func Aggregate(rootDir string, names []string) (string, error) {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	tmp, err := os.CreateTemp("", fmt.Sprintf("multiBundle(%d)-*.zip", len(sorted)))
	if err != nil {
		return "", fmt.Errorf("create combined archive: %w", err)
	}

	zw := zip.NewWriter(tmp)
	for _, name := range sorted {
		if err := addArchiveEntry(zw, rootDir, name); err != nil {
			// Leave the partial archive out of the result entirely:
			// a half-combined download is worse than an error here
			// because the caller has the originals on disk anyway.
			zw.Close()
			tmp.Close()
			os.Remove(tmp.Name())
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize combined archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close combined archive: %w", err)
	}

	slog.Debug("combined archive created", "path", tmp.Name(), "bundles", len(sorted))
	return tmp.Name(), nil
}

// addArchiveEntry copies one existing bundle file into the combined
// archive as a top-level entry.
func addArchiveEntry(zw *zip.Writer, rootDir, name string) error {
	src, err := os.Open(filepath.Join(rootDir, name))
	if err != nil {
		return fmt.Errorf("open bundle %q: %w", name, err)
	}
	defer src.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create combined entry %q: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("copy bundle %q into combined archive: %w", name, err)
	}
	return nil
}
