// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nevingeorgesunny/support-core-plugin/pkg/extensions"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/observability"
)

// ErrUnknownTask is returned when a polled task identifier is absent
// from the registry: expired, never existed, or mistyped. Callers must
// treat this as "cannot continue", not as "still pending".
var ErrUnknownTask = errors.New("no task found for taskId")

// BundleFileName is the fixed archive name inside each task's working
// directory.
const BundleFileName = "support-bundle.zip"

// DefaultSpoolRoot returns the conventional spool location under the
// system temporary directory.
func DefaultSpoolRoot() string {
	return filepath.Join(os.TempDir(), "support-bundle")
}

// WriteFunc produces a bundle from components into out. It exists so
// tests can substitute a failing or instrumented writer; production
// uses bundle.Write.
type WriteFunc func(ctx context.Context, components []bundle.Component, out io.Writer) error

// Registry is the concurrent mapping from task identifier to generation
// task: the synchronization point between the triggering request and
// later polling and download requests.
//
// Three actors mutate it: task creation inserts, polling reads, and the
// retention sweeper deletes. Identifiers are unique by construction, so
// no entry is ever silently overwritten. Construct one per process and
// inject it into the trigger, poll, download, and cleanup paths; tests
// build isolated registries freely.
type Registry struct {
	spoolRoot string
	write     WriteFunc

	mu    sync.RWMutex
	tasks map[uuid.UUID]*Task
}

// NewRegistry creates a Registry spooling task artifacts under
// spoolRoot (DefaultSpoolRoot if empty).
func NewRegistry(spoolRoot string) *Registry {
	if spoolRoot == "" {
		spoolRoot = DefaultSpoolRoot()
	}
	return &Registry{
		spoolRoot: spoolRoot,
		write:     bundle.Write,
		tasks:     make(map[uuid.UUID]*Task),
	}
}

// SetWriter overrides the bundle writer. Intended for tests.
func (r *Registry) SetWriter(write WriteFunc) {
	r.write = write
}

// SpoolRoot returns the spool root directory.
func (r *Registry) SpoolRoot() string {
	return r.spoolRoot
}

// TaskDir returns the working directory owned by one task.
func (r *Registry) TaskDir(id uuid.UUID) string {
	return filepath.Join(r.spoolRoot, id.String())
}

// BundlePath returns the fixed on-disk location of a task's archive:
// <spool-root>/<taskId>/support-bundle.zip.
func (r *Registry) BundlePath(id uuid.UUID) string {
	return filepath.Join(r.TaskDir(id), BundleFileName)
}

// Create registers a new Pending task for the resolved component list
// and returns it. The identifier is freshly generated and never reused;
// Create returns before any collection work begins.
func (r *Registry) Create(components []bundle.Component) *Task {
	t := newTask(components)
	r.mu.Lock()
	r.tasks[t.id] = t
	r.mu.Unlock()

	slog.Info("support bundle task created",
		"task_id", t.id, "components", len(components))
	return t
}

// Launch starts the task's execution on a worker goroutine and returns
// immediately. The requester identity captured on the trigger path is
// applied only for the duration of writing, via the worker's context;
// it never leaks into concurrently executing tasks.
//
// Launch must be called at most once per task; a second call finds the
// task already started and does nothing beyond logging.
func (r *Registry) Launch(t *Task, requester *extensions.AuthInfo) {
	go r.Execute(context.Background(), t, requester)
}

// Execute runs the task to completion synchronously. Normal operation
// goes through Launch; tests call Execute directly to avoid sleeping in
// assertions.
func (r *Registry) Execute(ctx context.Context, t *Task, requester *extensions.AuthInfo) {
	if err := t.start(); err != nil {
		slog.Warn("duplicate task execution suppressed", "task_id", t.id, "error", err)
		return
	}

	started := time.Now()
	if m := observability.DefaultMetrics; m != nil {
		m.ActiveGenerations.Inc()
		defer m.ActiveGenerations.Dec()
	}

	outputPath, err := r.produce(ctx, t, requester)
	if err != nil {
		t.fail(err)
		slog.Error("support bundle task failed", "task_id", t.id, "error", err)
		if m := observability.DefaultMetrics; m != nil {
			m.GenerationsTotal.WithLabelValues("failed").Inc()
		}
		return
	}

	t.complete(outputPath)
	slog.Info("support bundle task completed",
		"task_id", t.id, "path", outputPath,
		"duration_ms", time.Since(started).Milliseconds())
	if m := observability.DefaultMetrics; m != nil {
		m.GenerationsTotal.WithLabelValues("completed").Inc()
		m.GenerationDurationSeconds.Observe(time.Since(started).Seconds())
	}
}

// produce creates the task's working directory and writes the archive
// into it. An infrastructure failure (directory or file creation) is
// fatal for this task only. A writer error is not: the archive may be
// partial, which is logged and accepted.
func (r *Registry) produce(ctx context.Context, t *Task, requester *extensions.AuthInfo) (string, error) {
	dir := r.TaskDir(t.id)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create working directory %q: %w", dir, err)
	}

	outputPath := filepath.Join(dir, BundleFileName)
	f, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("create bundle file %q: %w", outputPath, err)
	}

	ctx = extensions.WithRequester(ctx, requester)
	if err := r.write(ctx, t.components, f); err != nil {
		slog.Warn("bundle archive may be partial", "task_id", t.id, "error", err)
	}
	if err := f.Close(); err != nil {
		slog.Warn("closing bundle file failed", "task_id", t.id, "error", err)
	}
	return outputPath, nil
}

// Status returns the current snapshot for id, or ErrUnknownTask if the
// id is absent. It never blocks on an in-progress execution.
func (r *Registry) Status(id uuid.UUID) (Status, error) {
	r.mu.RLock()
	t, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t.Snapshot(), nil
}

// Get returns the task for id, or nil if absent.
func (r *Registry) Get(id uuid.UUID) *Task {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tasks[id]
}

// Remove deletes the task from the registry. Called by the retention
// sweeper once the task's on-disk state has been reclaimed.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.tasks, id)
	r.mu.Unlock()
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
