// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Exporter Interface
// =============================================================================

// LogEntry is a structured log entry handed to LogExporter
// implementations. It carries everything needed to reconstruct the log
// in a destination system.
type LogEntry struct {
	// Timestamp when the log was generated (local time)
	Timestamp time.Time

	// Level of the log (Debug, Info, Warn, Error)
	Level Level

	// Message is the primary log message
	Message string

	// Service identifies the component (from Config.Service)
	Service string

	// Attrs contains all key-value attributes
	Attrs map[string]any
}

// LogExporter is an optional extension point for forwarding log entries
// to an external system (object storage, a log aggregator, a test
// buffer). Export errors are dropped; logging must never fail the
// operation being logged.
type LogExporter interface {
	// Export sends one entry. Called with a short-timeout context.
	Export(ctx context.Context, entry LogEntry) error

	// Flush ensures buffered entries are sent. Called on shutdown.
	Flush(ctx context.Context) error

	// Close releases resources. Called after Flush.
	Close() error
}

// =============================================================================
// Built-in Exporters
// =============================================================================

// NopExporter discards all entries.
type NopExporter struct{}

func (e *NopExporter) Export(ctx context.Context, entry LogEntry) error { return nil }
func (e *NopExporter) Flush(ctx context.Context) error                  { return nil }
func (e *NopExporter) Close() error                                     { return nil }

var _ LogExporter = (*NopExporter)(nil)

// BufferedExporter collects entries in memory. Useful in tests:
//
//	exporter := logging.NewBufferedExporter()
//	logger := logging.New(logging.Config{Exporter: exporter, Quiet: true})
//	logger.Info("test message", "key", "value")
//	entries := exporter.Entries()
type BufferedExporter struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewBufferedExporter creates an empty BufferedExporter.
func NewBufferedExporter() *BufferedExporter {
	return &BufferedExporter{entries: make([]LogEntry, 0, 100)}
}

// Export appends the entry to the buffer.
func (e *BufferedExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = append(e.entries, entry)
	return nil
}

func (e *BufferedExporter) Flush(ctx context.Context) error { return nil }
func (e *BufferedExporter) Close() error                    { return nil }

// Entries returns a copy of the collected entries.
func (e *BufferedExporter) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]LogEntry, len(e.entries))
	copy(out, e.entries)
	return out
}

var _ LogExporter = (*BufferedExporter)(nil)

// WriterExporter writes one formatted line per entry to an io.Writer.
type WriterExporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterExporter creates a WriterExporter over w.
func NewWriterExporter(w io.Writer) *WriterExporter {
	return &WriterExporter{w: w}
}

// Export writes the entry as a single line.
func (e *WriterExporter) Export(ctx context.Context, entry LogEntry) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := fmt.Fprintf(e.w, "[%s] %s: %s %v\n",
		entry.Timestamp.Format(time.RFC3339),
		entry.Level, entry.Message, entry.Attrs)
	return err
}

func (e *WriterExporter) Flush(ctx context.Context) error { return nil }
func (e *WriterExporter) Close() error                    { return nil }

var _ LogExporter = (*WriterExporter)(nil)

// =============================================================================
// Exporter Handler (Internal)
// =============================================================================

// exporterHandler adapts a LogExporter to slog.Handler so exports ride
// the same handler chain as stderr and file output.
type exporterHandler struct {
	exporter LogExporter
	level    slog.Level
	service  string
	attrs    []slog.Attr
}

func (h *exporterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *exporterHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	entry := LogEntry{
		Timestamp: r.Time,
		Level:     fromSlogLevel(r.Level),
		Message:   r.Message,
		Service:   h.service,
		Attrs:     attrs,
	}

	exportCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = h.exporter.Export(exportCtx, entry) // export failures never surface
	return nil
}

func (h *exporterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &exporterHandler{
		exporter: h.exporter,
		level:    h.level,
		service:  h.service,
		attrs:    merged,
	}
}

// WithGroup is accepted but groups are flattened into the attr map.
func (h *exporterHandler) WithGroup(name string) slog.Handler {
	return h
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return LevelDebug
	case level <= slog.LevelInfo:
		return LevelInfo
	case level <= slog.LevelWarn:
		return LevelWarn
	default:
		return LevelError
	}
}
