// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bundle

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrEmptySelection is returned when an inclusive selection resolves to
// zero runnable components. The caller must treat this as a client
// error; no task is created.
var ErrEmptySelection = errors.New("selected component list is empty")

// Selection is one entry of a selection form: a component or bundle
// name and whether the client checked it.
//
// A request carries an ordered sequence of Selections. Duplicates by
// name are permitted and no last-wins rule applies; callers only filter
// by the selected flag.
type Selection struct {
	Name     string `json:"name" binding:"required"`
	Selected bool   `json:"selected"`
}

// serviceExcluded is the deployment-wide exclusion list. Components on
// it never collect and are never selected by default, regardless of the
// per-request selection. Operators use it to keep sensitive collectors
// (environment variables, for instance) out of every bundle.
var (
	excludedMu      sync.RWMutex
	serviceExcluded = make(map[string]struct{})
)

// SetExcludedComponents replaces the deployment-wide exclusion list.
func SetExcludedComponents(ids ...string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	excludedMu.Lock()
	serviceExcluded = next
	excludedMu.Unlock()
	if len(ids) > 0 {
		slog.Info("component exclusion list set", "excluded", ids)
	}
}

// IsExcluded reports whether id is on the deployment-wide exclusion
// list.
func IsExcluded(id string) bool {
	excludedMu.RLock()
	defer excludedMu.RUnlock()
	_, ok := serviceExcluded[id]
	return ok
}

// legacyAliases maps retired component-group identifiers to their
// current successor identifiers. This is a fixed one-time rewrite kept
// for backward compatibility with clients that still send the old
// names; it is not recursive.
var legacyAliases = map[string][]string{
	"Master": {
		"MasterJVMProcessSystemMetricsContents",
		"MasterSystemConfiguration",
	},
	"Agents": {
		"AgentsJVMProcessSystemMetricsContents",
		"AgentsSystemConfiguration",
	},
}

// ExpandLegacyIDs rewrites retired component identifiers in place.
//
// If a reserved legacy identifier ("Master" or "Agents") appears in the
// set, its two successor identifiers are added to the same set and a
// deprecation warning is logged. Expansion is idempotent: expanding a
// set that already contains the successors yields the same set.
func ExpandLegacyIDs(ids map[string]struct{}) {
	for legacy, successors := range legacyAliases {
		if _, ok := ids[legacy]; !ok {
			continue
		}
		slog.Warn("deprecated component identifier in selection; "+
			"substituting its successor components", "id", legacy)
		for _, successor := range successors {
			ids[successor] = struct{}{}
		}
	}
}

// ResolveInclusive resolves an "only these" request.
//
// The result contains exactly the enabled, non-excluded components
// whose id appears in requested, in the order of all (stable filter, no
// re-sort).
// Legacy identifiers in requested are expanded first. Returns
// ErrEmptySelection if nothing matches.
func ResolveInclusive(requested map[string]struct{}, all []Component) ([]Component, error) {
	ExpandLegacyIDs(requested)

	var selected []Component
	for _, c := range all {
		if !c.Enabled() || IsExcluded(c.ID()) {
			continue
		}
		if _, ok := requested[c.ID()]; ok {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return nil, ErrEmptySelection
	}
	return selected, nil
}

// ResolveExclusive resolves an "all, minus excluded" request.
//
// The result contains every enabled, non-excluded component whose id
// does not appear in excluded, in the order of all. Legacy identifiers in excluded are
// expanded first. An empty result is legal for this request shape.
func ResolveExclusive(excluded map[string]struct{}, all []Component) []Component {
	ExpandLegacyIDs(excluded)

	var selected []Component
	for _, c := range all {
		if !c.Enabled() || IsExcluded(c.ID()) {
			continue
		}
		if _, ok := excluded[c.ID()]; ok {
			continue
		}
		selected = append(selected, c)
	}
	return selected
}
