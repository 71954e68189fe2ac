// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package bundle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/nevingeorgesunny/support-core-plugin/pkg/extensions"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/observability"
)

// =============================================================================
// Bundle Writer
// =============================================================================

// Write assembles a support bundle from the given components into out.
//
// Components run strictly in slice order, each completing (success or
// caught failure) before the next starts. A single component's failure
// or panic is caught and logged; the remaining components still run and
// the archive is still finalized with whatever content succeeded. A
// sink-level failure while writing one entry is likewise caught per
// component: the resulting archive may be partial, which is accepted,
// logged policy.
//
// The context must carry the identity captured at trigger time (see
// extensions.WithRequester); it is the only authorization state applied
// during writing and it expires with the context.
//
// The returned error is non-nil only when the archive itself cannot be
// finalized. Callers log it and keep the (possibly truncated) file; no
// retry is attempted.
func Write(ctx context.Context, components []Component, out io.Writer) error {
	cw := &countingWriter{w: out}
	zw := zip.NewWriter(cw)
	container := &zipContainer{zw: zw}

	writeManifest(ctx, container, components)

	for _, c := range components {
		collectSafely(ctx, c, container)
	}

	if err := zw.Close(); err != nil {
		recordBytesWritten(cw.n)
		return fmt.Errorf("finalize bundle archive: %w", err)
	}
	recordBytesWritten(cw.n)
	return nil
}

// collectSafely invokes one component and contains its failure.
//
// Both returned errors and panics stay local to the component: nothing
// a single collector does may unwind into the task or the request path.
func collectSafely(ctx context.Context, c Component, container Container) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("component panicked during collection",
				"component", c.ID(), "panic", fmt.Sprint(r))
			recordComponentFailure(c.ID())
		}
	}()

	slog.Debug("collecting component", "component", c.ID())
	if err := c.Collect(ctx, container); err != nil {
		slog.Debug("component collection failed, continuing with remaining components",
			"component", c.ID(), "error", err)
		recordComponentFailure(c.ID())
	}
}

// recordComponentFailure bumps the per-component failure counter when
// metrics are initialized.
func recordComponentFailure(id string) {
	if m := observability.DefaultMetrics; m != nil {
		m.ComponentFailuresTotal.WithLabelValues(id).Inc()
	}
}

// recordBytesWritten adds the compressed archive size to the bytes
// counter when metrics are initialized.
func recordBytesWritten(n int64) {
	if m := observability.DefaultMetrics; m != nil {
		m.BytesWrittenTotal.Add(float64(n))
	}
}

// countingWriter tracks how many bytes pass through to the underlying
// writer. It sits between the zip writer and the spool file so the
// count reflects compressed output.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// writeManifest adds a manifest.md entry describing the bundle: when it
// was generated, by whom, and which components it was asked to include.
// Manifest failure is not fatal; the bundle is still useful without it.
func writeManifest(ctx context.Context, container Container, components []Component) {
	err := container.Add("manifest.md", func(w io.Writer) error {
		fmt.Fprintf(w, "Support Bundle\n==============\n\n")
		fmt.Fprintf(w, "Generated at: %s\n", time.Now().UTC().Format(time.RFC3339))
		if requester := extensions.RequesterFrom(ctx); requester != nil {
			fmt.Fprintf(w, "Requested by: %s\n", requester.UserID)
		}
		fmt.Fprintf(w, "\nComponents:\n\n")
		for _, c := range components {
			fmt.Fprintf(w, "  * %s (%s)\n", c.DisplayName(), c.ID())
		}
		return nil
	})
	if err != nil {
		slog.Debug("failed to write bundle manifest", "error", err)
	}
}

// =============================================================================
// Zip Container
// =============================================================================

// zipContainer adapts a zip.Writer to the Container interface.
type zipContainer struct {
	zw *zip.Writer
}

// Add creates a named entry and streams fn's output into it.
func (c *zipContainer) Add(name string, fn func(w io.Writer) error) error {
	w, err := c.zw.Create(name)
	if err != nil {
		return fmt.Errorf("create archive entry %q: %w", name, err)
	}
	if err := fn(w); err != nil {
		return fmt.Errorf("write archive entry %q: %w", name, err)
	}
	return nil
}

var _ Container = (*zipContainer)(nil)
