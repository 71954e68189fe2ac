// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package bundle implements support bundle content production: the
// component (collector) model, selection resolution, archive writing,
// multi-archive aggregation, and the persistent bundle store.
//
// A support bundle is a zip archive assembled from independent
// components. Each component contributes one or more named entries and
// is isolated from the others: a failing component is logged and
// skipped, never aborting the bundle.
package bundle

import (
	"context"
	"io"
)

// =============================================================================
// Component Model
// =============================================================================

// Category groups components for display purposes.
type Category string

const (
	// CategoryPlatform covers service and host level diagnostics.
	CategoryPlatform Category = "Platform"

	// CategoryLogs covers log captures.
	CategoryLogs Category = "Logs"

	// CategoryMetrics covers runtime and performance snapshots.
	CategoryMetrics Category = "Metrics"

	// CategoryMisc is the fallback for everything else.
	CategoryMisc Category = "Misc"
)

// Container is the sink a component writes its diagnostic content into.
//
// Add creates a named entry in the underlying archive and invokes fn
// with a writer for that entry. Entry names use forward slashes as path
// separators ("nodes/master/system.txt"). Add returns an error if the
// entry cannot be created or fn fails; components should propagate it.
//
// Implementations are safe for sequential use by one component at a
// time; the bundle writer never runs two components concurrently
// against the same container.
type Container interface {
	Add(name string, fn func(w io.Writer) error) error
}

// Component is an independently pluggable unit that appends one kind of
// diagnostic content to a support bundle.
//
// Implementations must be safe for concurrent use: multiple generation
// tasks may invoke the same component at the same time, each with its
// own Container.
//
// Collect may perform blocking file and network I/O; it always runs on
// a worker goroutine, never on the request path. The context carries
// the identity of the user who triggered generation (see
// extensions.RequesterFrom) and is valid only for the duration of the
// write.
type Component interface {
	// ID is the stable identifier used in selection requests.
	ID() string

	// DisplayName is the human-readable label shown in listings.
	DisplayName() string

	// Category groups the component for display.
	Category() Category

	// Enabled reports whether the component may run at all. Disabled
	// components are never selected, regardless of the request.
	Enabled() bool

	// SelectedByDefault reports whether the component is pre-checked in
	// a default "generate everything" request.
	SelectedByDefault() bool

	// Collect writes the component's content into the container. An
	// error is collector-local: the bundle writer logs it and moves on
	// to the next component.
	Collect(ctx context.Context, container Container) error
}
