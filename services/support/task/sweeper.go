// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package task

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nevingeorgesunny/support-core-plugin/services/support/observability"
)

// DefaultRetentionDelay is how long a delivered bundle's spool
// directory is retained before reclamation.
const DefaultRetentionDelay = time.Hour

// Sweeper schedules deferred deletion of task working directories.
//
// Arm is invoked immediately after a task's artifact has been fully
// streamed to a requester. After the delay elapses the sweeper deletes
// the working directory recursively and removes the task from the
// registry. The scheduled sweep survives independently of the request
// that armed it.
//
// Deletion failure is logged, not retried, and not escalated: stale
// directories may persist, surfaced only via logs.
type Sweeper struct {
	registry *Registry
	delay    time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// NewSweeper creates a Sweeper over the registry with the given delay
// (DefaultRetentionDelay if zero or negative).
func NewSweeper(registry *Registry, delay time.Duration) *Sweeper {
	if delay <= 0 {
		delay = DefaultRetentionDelay
	}
	return &Sweeper{
		registry: registry,
		delay:    delay,
		timers:   make(map[uuid.UUID]*time.Timer),
	}
}

// Delay returns the configured retention delay.
func (s *Sweeper) Delay() time.Duration {
	return s.delay
}

// Arm schedules the task's working directory for deletion after the
// retention delay. Re-arming an already-armed task (repeat downloads of
// the same bundle) is a no-op: the first deadline stands.
func (s *Sweeper) Arm(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, armed := s.timers[id]; armed {
		return
	}
	s.timers[id] = time.AfterFunc(s.delay, func() { s.sweep(id) })
	slog.Debug("retention sweep armed", "task_id", id, "delay", s.delay.String())
}

// sweep reclaims one task: spool directory first, then the registry
// entry. The entry is removed even when deletion fails so a stale
// directory never pins a dead task in memory.
func (s *Sweeper) sweep(id uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, id)
	s.mu.Unlock()

	dir := s.registry.TaskDir(id)
	status := "ok"
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("unable to delete task working directory", "dir", dir, "error", err)
		status = "error"
	} else {
		slog.Debug("cleaned up task working directory", "dir", dir)
	}
	s.registry.Remove(id)

	if m := observability.DefaultMetrics; m != nil {
		m.CleanupsTotal.WithLabelValues(status).Inc()
	}
}

// Stop cancels all pending sweeps. Directories already due are not
// reclaimed; Stop exists for orderly test teardown and process
// shutdown, where the OS temp directory outlives us anyway.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
