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
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// Built-in Components
// =============================================================================

// AboutService reports service identity and build information.
type AboutService struct {
	// Version is the service build version stamped at startup.
	Version string
}

func (a *AboutService) ID() string              { return "AboutService" }
func (a *AboutService) DisplayName() string     { return "About the service" }
func (a *AboutService) Category() Category      { return CategoryPlatform }
func (a *AboutService) Enabled() bool           { return true }
func (a *AboutService) SelectedByDefault() bool { return true }

func (a *AboutService) Collect(ctx context.Context, container Container) error {
	return container.Add("about.md", func(w io.Writer) error {
		fmt.Fprintf(w, "Service\n=======\n\n")
		fmt.Fprintf(w, "  * Version: %s\n", a.Version)
		fmt.Fprintf(w, "  * Go: %s\n", runtime.Version())
		fmt.Fprintf(w, "  * OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("read hostname: %w", err)
		}
		fmt.Fprintf(w, "  * Hostname: %s\n", hostname)
		return nil
	})
}

// EnvironmentVariables dumps the process environment. Disabled by
// default in the selection form because environments often carry
// credentials; an operator opts in explicitly.
type EnvironmentVariables struct{}

func (e *EnvironmentVariables) ID() string              { return "EnvironmentVariables" }
func (e *EnvironmentVariables) DisplayName() string     { return "Environment variables" }
func (e *EnvironmentVariables) Category() Category      { return CategoryPlatform }
func (e *EnvironmentVariables) Enabled() bool           { return true }
func (e *EnvironmentVariables) SelectedByDefault() bool { return false }

func (e *EnvironmentVariables) Collect(ctx context.Context, container Container) error {
	return container.Add("nodes/master/environment.txt", func(w io.Writer) error {
		env := os.Environ()
		sort.Strings(env)
		for _, kv := range env {
			fmt.Fprintln(w, kv)
		}
		return nil
	})
}

// RuntimeMetrics snapshots Go runtime statistics: goroutine count,
// memory allocator state, and GC summary.
type RuntimeMetrics struct{}

func (r *RuntimeMetrics) ID() string              { return "RuntimeMetrics" }
func (r *RuntimeMetrics) DisplayName() string     { return "Go runtime metrics" }
func (r *RuntimeMetrics) Category() Category      { return CategoryMetrics }
func (r *RuntimeMetrics) Enabled() bool           { return true }
func (r *RuntimeMetrics) SelectedByDefault() bool { return true }

func (r *RuntimeMetrics) Collect(ctx context.Context, container Container) error {
	return container.Add("nodes/master/runtime.txt", func(w io.Writer) error {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		fmt.Fprintf(w, "Goroutines: %d\n", runtime.NumGoroutine())
		fmt.Fprintf(w, "CPUs: %d\n", runtime.NumCPU())
		fmt.Fprintf(w, "HeapAlloc: %d\n", mem.HeapAlloc)
		fmt.Fprintf(w, "HeapSys: %d\n", mem.HeapSys)
		fmt.Fprintf(w, "NumGC: %d\n", mem.NumGC)
		fmt.Fprintf(w, "LastGC: %s\n", time.Unix(0, int64(mem.LastGC)).UTC().Format(time.RFC3339))
		return nil
	})
}

// GoroutineDump captures a full stack trace of every goroutine, the Go
// analogue of a thread dump.
type GoroutineDump struct{}

func (g *GoroutineDump) ID() string              { return "GoroutineDump" }
func (g *GoroutineDump) DisplayName() string     { return "Goroutine stack dump" }
func (g *GoroutineDump) Category() Category      { return CategoryMetrics }
func (g *GoroutineDump) Enabled() bool           { return true }
func (g *GoroutineDump) SelectedByDefault() bool { return true }

func (g *GoroutineDump) Collect(ctx context.Context, container Container) error {
	return container.Add("nodes/master/goroutines.txt", func(w io.Writer) error {
		buf := make([]byte, 1<<20)
		for {
			n := runtime.Stack(buf, true)
			if n < len(buf) {
				_, err := w.Write(buf[:n])
				return err
			}
			buf = make([]byte, len(buf)*2)
		}
	})
}

// LogFiles copies the service's own log files into the bundle. Missing
// or unreadable files are skipped per entry.
type LogFiles struct {
	// Dir is the log directory configured for the service. Empty
	// disables the component.
	Dir string
}

func (l *LogFiles) ID() string              { return "LogFiles" }
func (l *LogFiles) DisplayName() string     { return "Service log files" }
func (l *LogFiles) Category() Category      { return CategoryLogs }
func (l *LogFiles) Enabled() bool           { return l.Dir != "" }
func (l *LogFiles) SelectedByDefault() bool { return true }

func (l *LogFiles) Collect(ctx context.Context, container Container) error {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return fmt.Errorf("read log directory %q: %w", l.Dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		name := entry.Name()
		err := container.Add("nodes/master/logs/"+name, func(w io.Writer) error {
			f, err := os.Open(filepath.Join(l.Dir, name))
			if err != nil {
				return err
			}
			defer f.Close()
			_, err = io.Copy(w, f)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DefaultComponents returns the built-in component catalog in its
// canonical order. The order is the resolution order: selection is a
// stable filter over this slice.
func DefaultComponents(version, logDir string) []Component {
	return []Component{
		&AboutService{Version: version},
		&EnvironmentVariables{},
		&RuntimeMetrics{},
		&GoroutineDump{},
		&LogFiles{Dir: logDir},
	}
}

// Categorize groups components by category, preserving catalog order
// within each group. Categories are returned in a stable sorted order.
func Categorize(components []Component) ([]Category, map[Category][]Component) {
	grouped := make(map[Category][]Component)
	for _, c := range components {
		grouped[c.Category()] = append(grouped[c.Category()], c)
	}
	categories := make([]Category, 0, len(grouped))
	for cat := range grouped {
		categories = append(categories, cat)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	return categories, grouped
}
