// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package task orchestrates asynchronous bundle generation: the
// per-task state machine, the concurrent registry that connects the
// trigger, polling, and download paths, and the retention sweeper that
// reclaims spool directories.
package task

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
)

// =============================================================================
// Task State Machine
// =============================================================================

// State is the lifecycle phase of a generation task.
//
// Transitions are Pending -> Running -> Completed or Failed, exactly
// once, never backward.
type State int

const (
	// StatePending means the task is registered but not yet executing.
	StatePending State = iota

	// StateRunning means the task is executing and producing an archive
	// on disk.
	StateRunning

	// StateCompleted means the archive is finalized at the task's
	// output path and progress is 1.
	StateCompleted

	// StateFailed means execution itself failed before finishing (for
	// example the working directory could not be created). The task
	// stays queryable rather than vanishing.
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the immutable snapshot returned to polling clients.
type Status struct {
	// TaskID echoes the polled identifier.
	TaskID uuid.UUID `json:"taskId"`

	// IsCompleted is true once the archive is finalized.
	IsCompleted bool `json:"isCompleted"`

	// PathToBundle is the absolute archive path, set if and only if the
	// task completed.
	PathToBundle string `json:"pathToBundle,omitempty"`

	// State is the current lifecycle phase.
	State State `json:"-"`

	// Progress is the completion fraction in [0,1]. Reporting is
	// deliberately coarse: 0 until the archive is finalized, then 1.
	Progress float64 `json:"progress"`
}

// Task is one asynchronous bundle-generation execution.
//
// A Task is owned by the Registry from creation until the retention
// sweeper removes it; its working directory on disk is owned by the
// task for its lifetime. All state access goes through the mutex, so a
// Task may be polled concurrently with its own execution.
type Task struct {
	id         uuid.UUID
	components []bundle.Component

	mu          sync.Mutex
	state       State
	progress    float64
	outputPath  string
	completedAt time.Time
	failure     error
}

// newTask creates a Pending task with a fresh identifier.
func newTask(components []bundle.Component) *Task {
	return &Task{
		id:         uuid.New(),
		components: components,
		state:      StatePending,
	}
}

// ID returns the task's unique identifier, the sole external handle to
// the task.
func (t *Task) ID() uuid.UUID {
	return t.id
}

// Components returns the resolved component list in execution order.
func (t *Task) Components() []bundle.Component {
	return t.components
}

// Snapshot returns the current status. Safe to call at any time, any
// number of times, from any goroutine; it never blocks on execution.
func (t *Task) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		TaskID:       t.id,
		IsCompleted:  t.state == StateCompleted,
		PathToBundle: t.outputPath,
		State:        t.state,
		Progress:     t.progress,
	}
}

// start transitions Pending -> Running. It fails if the task already
// left Pending, which guards the execute-exactly-once contract.
func (t *Task) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePending {
		return fmt.Errorf("task %s already started (state %s)", t.id, t.state)
	}
	t.state = StateRunning
	return nil
}

// complete transitions Running -> Completed, records the archive path,
// and pins progress to 1.
func (t *Task) complete(outputPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateCompleted
	t.progress = 1
	t.outputPath = outputPath
	t.completedAt = time.Now()
}

// fail transitions the task to Failed and records the cause. The task
// remains queryable; polling observes a never-completing task and the
// download path reports not-found.
func (t *Task) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateFailed
	t.failure = err
	t.completedAt = time.Now()
}

// Err returns the failure cause for a Failed task, nil otherwise.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}
