// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bundle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeComponent is a minimal Component for resolver tests.
type fakeComponent struct {
	id         string
	enabled    bool
	byDefault  bool
	category   Category
	collectErr error
	collected  func(Container)
}

func (f *fakeComponent) ID() string              { return f.id }
func (f *fakeComponent) DisplayName() string     { return f.id }
func (f *fakeComponent) Category() Category      { return f.category }
func (f *fakeComponent) Enabled() bool           { return f.enabled }
func (f *fakeComponent) SelectedByDefault() bool { return f.byDefault }

func (f *fakeComponent) Collect(ctx context.Context, container Container) error {
	if f.collected != nil {
		f.collected(container)
	}
	return f.collectErr
}

func ids(components []Component) []string {
	out := make([]string, len(components))
	for i, c := range components {
		out[i] = c.ID()
	}
	return out
}

func catalog() []Component {
	return []Component{
		&fakeComponent{id: "Alpha", enabled: true},
		&fakeComponent{id: "Beta", enabled: true},
		&fakeComponent{id: "Disabled", enabled: false},
		&fakeComponent{id: "Gamma", enabled: true},
	}
}

// =============================================================================
// Inclusive Resolution
// =============================================================================

func TestResolveInclusive_KeepsOnlyRequestedEnabled(t *testing.T) {
	requested := map[string]struct{}{
		"Alpha":    {},
		"Disabled": {},
		"Gamma":    {},
		"NoSuch":   {},
	}

	selected, err := ResolveInclusive(requested, catalog())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Gamma"}, ids(selected))
}

func TestResolveInclusive_PreservesCatalogOrder(t *testing.T) {
	// Resolution is a stable filter: requesting in a different order
	// must not reorder the output.
	requested := map[string]struct{}{"Gamma": {}, "Beta": {}, "Alpha": {}}

	selected, err := ResolveInclusive(requested, catalog())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, ids(selected))
}

func TestResolveInclusive_EmptyResultFails(t *testing.T) {
	_, err := ResolveInclusive(map[string]struct{}{"NoSuch": {}}, catalog())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptySelection))

	_, err = ResolveInclusive(map[string]struct{}{"Disabled": {}}, catalog())
	assert.True(t, errors.Is(err, ErrEmptySelection),
		"a disabled component alone must resolve to an empty selection")
}

// =============================================================================
// Exclusive Resolution
// =============================================================================

func TestResolveExclusive_RemovesExcludedAndDisabled(t *testing.T) {
	excluded := map[string]struct{}{"Beta": {}}

	selected := ResolveExclusive(excluded, catalog())
	assert.Equal(t, []string{"Alpha", "Gamma"}, ids(selected))
}

func TestResolveExclusive_EmptyExclusionKeepsAllEnabled(t *testing.T) {
	selected := ResolveExclusive(map[string]struct{}{}, catalog())
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, ids(selected))
}

func TestResolveExclusive_AllExcludedIsLegal(t *testing.T) {
	excluded := map[string]struct{}{"Alpha": {}, "Beta": {}, "Gamma": {}}
	assert.Empty(t, ResolveExclusive(excluded, catalog()))
}

// =============================================================================
// Service-wide Exclusion List
// =============================================================================

func TestSetExcludedComponents_DropsFromBothResolvers(t *testing.T) {
	SetExcludedComponents("Beta")
	t.Cleanup(func() { SetExcludedComponents() })

	assert.True(t, IsExcluded("Beta"))
	assert.False(t, IsExcluded("Alpha"))

	selected, err := ResolveInclusive(map[string]struct{}{"Alpha": {}, "Beta": {}}, catalog())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, ids(selected),
		"an excluded component never collects even when requested")

	assert.Equal(t, []string{"Alpha", "Gamma"},
		ids(ResolveExclusive(map[string]struct{}{}, catalog())))
}

func TestSetExcludedComponents_ReplacesPreviousList(t *testing.T) {
	SetExcludedComponents("Alpha")
	t.Cleanup(func() { SetExcludedComponents() })

	SetExcludedComponents("Gamma")
	assert.False(t, IsExcluded("Alpha"))
	assert.True(t, IsExcluded("Gamma"))
}

// =============================================================================
// Legacy Alias Expansion
// =============================================================================

func TestExpandLegacyIDs_AddsSuccessors(t *testing.T) {
	set := map[string]struct{}{"Master": {}}
	ExpandLegacyIDs(set)

	assert.Contains(t, set, "Master")
	assert.Contains(t, set, "MasterJVMProcessSystemMetricsContents")
	assert.Contains(t, set, "MasterSystemConfiguration")

	set = map[string]struct{}{"Agents": {}}
	ExpandLegacyIDs(set)
	assert.Contains(t, set, "AgentsJVMProcessSystemMetricsContents")
	assert.Contains(t, set, "AgentsSystemConfiguration")
}

func TestExpandLegacyIDs_Idempotent(t *testing.T) {
	set := map[string]struct{}{"Master": {}}
	ExpandLegacyIDs(set)
	want := len(set)
	ExpandLegacyIDs(set)
	assert.Equal(t, want, len(set), "expanding an already-expanded set must not grow it")
}

func TestExpandLegacyIDs_NoLegacyNamesUnchanged(t *testing.T) {
	set := map[string]struct{}{"Alpha": {}, "Beta": {}}
	ExpandLegacyIDs(set)
	assert.Len(t, set, 2)
}

func TestResolveInclusive_ExpandsLegacyNames(t *testing.T) {
	all := []Component{
		&fakeComponent{id: "MasterSystemConfiguration", enabled: true},
		&fakeComponent{id: "Other", enabled: true},
	}

	selected, err := ResolveInclusive(map[string]struct{}{"Master": {}}, all)
	require.NoError(t, err)
	assert.Equal(t, []string{"MasterSystemConfiguration"}, ids(selected))
}

func TestResolveExclusive_ExpandsLegacyNames(t *testing.T) {
	all := []Component{
		&fakeComponent{id: "AgentsSystemConfiguration", enabled: true},
		&fakeComponent{id: "Other", enabled: true},
	}

	selected := ResolveExclusive(map[string]struct{}{"Agents": {}}, all)
	assert.Equal(t, []string{"Other"}, ids(selected))
}
