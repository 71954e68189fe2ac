// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bundle

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ArchiveExtension is the fixed suffix identifying bundle archives in
// the persistent root.
const ArchiveExtension = ".zip"

// ErrNoBundles is returned when a batch operation's selection matches
// no existing archives.
var ErrNoBundles = errors.New("no bundles selected")

// Store manages the persistent bundle root: the longer-lived directory
// of user-retained named archives, distinct from the per-task spool
// tree.
//
// Store is safe for concurrent use; it holds no mutable state and every
// operation is a fresh directory scan or file operation.
type Store struct {
	root string
}

// NewStore creates a Store over root, creating the directory if needed.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0750); err != nil {
		return nil, fmt.Errorf("create bundle root %q: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Root returns the persistent bundle root directory.
func (s *Store) Root() string {
	return s.root
}

// List enumerates the bundle archives in the root, sorted
// lexicographically by name for stable display.
func (s *Store) List() []string {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		slog.Error("failed to list bundle root", "root", s.root, "error", err)
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ArchiveExtension) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names
}

// FilterExisting reduces a selection form to the names that are both
// selected and currently present in the listing. Selected names that do
// not exist are skipped with a debug log; they never cause an error.
// Also serves as the path-traversal guard: only names the listing
// itself produced survive.
func (s *Store) FilterExisting(selections []Selection) []string {
	existing := make(map[string]struct{})
	for _, name := range s.List() {
		existing[name] = struct{}{}
	}

	seen := make(map[string]struct{})
	var names []string
	for _, sel := range selections {
		if !sel.Selected {
			continue
		}
		if _, ok := existing[sel.Name]; !ok {
			slog.Debug("selected bundle does not exist, skipping", "bundle", sel.Name)
			continue
		}
		if _, dup := seen[sel.Name]; dup {
			continue
		}
		seen[sel.Name] = struct{}{}
		names = append(names, sel.Name)
	}
	return names
}

// Delete removes the named bundle files from the root. Per-file delete
// failures are logged at error severity, never retried, and never
// surfaced as a collective failure.
func (s *Store) Delete(names []string) {
	for _, name := range names {
		path := filepath.Join(s.root, name)
		slog.Debug("deleting bundle file", "path", path)
		if err := os.Remove(path); err != nil {
			slog.Error("unable to delete bundle file", "path", path, "error", err)
			continue
		}
		slog.Info("bundle deleted", "path", path)
	}
}

// Path returns the absolute path of a named bundle inside the root. The
// name must come from List or FilterExisting; Path performs no
// validation of its own.
func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

// FileName generates a timestamped attachment name for a freshly
// prepared bundle, e.g. "support_2025-08-31_14.03.07.zip".
func FileName(now time.Time) string {
	return "support_" + now.UTC().Format("2006-01-02_15.04.05") + ArchiveExtension
}
