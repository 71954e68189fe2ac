// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the support
// bundle service.
//
// Metrics cover the bundle generation lifecycle (task counts, duration,
// in-flight gauge), component-level failures, download activity, and
// retention sweeps. They are exposed via the /metrics endpoint; use
// with Prometheus + Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics.
const metricsNamespace = "support"

// Subsystem for bundle lifecycle metrics.
const bundleSubsystem = "bundle"

// BundleMetrics holds all Prometheus metrics for bundle operations.
//
// Initialize once at startup via InitMetrics(). Packages read the
// DefaultMetrics singleton and treat nil as "metrics disabled", which
// keeps unit tests free of registry setup.
type BundleMetrics struct {
	// GenerationsTotal counts finished generation tasks.
	// Labels: status (completed, failed)
	GenerationsTotal *prometheus.CounterVec

	// GenerationDurationSeconds measures wall time of a generation
	// task from launch to archive finalization.
	GenerationDurationSeconds prometheus.Histogram

	// ActiveGenerations tracks currently executing generation tasks.
	ActiveGenerations prometheus.Gauge

	// ComponentFailuresTotal counts collector-local failures by
	// component id. A failure here never fails the bundle.
	ComponentFailuresTotal *prometheus.CounterVec

	// BytesWrittenTotal counts compressed bytes written into bundle
	// archives across all generation tasks.
	BytesWrittenTotal prometheus.Counter

	// DownloadsTotal counts bundle downloads.
	// Labels: kind (task, single, multi)
	DownloadsTotal *prometheus.CounterVec

	// CleanupsTotal counts retention sweeps.
	// Labels: status (ok, error)
	CleanupsTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of BundleMetrics.
// Initialized by InitMetrics(); nil until then.
var DefaultMetrics *BundleMetrics

// InitMetrics initializes and registers the default metrics instance.
//
// Call once at application startup, before the server begins handling
// requests. Calling twice panics on duplicate registration, matching
// promauto semantics.
func InitMetrics() *BundleMetrics {
	DefaultMetrics = &BundleMetrics{
		GenerationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bundleSubsystem,
				Name:      "generations_total",
				Help:      "Total finished bundle generation tasks by status",
			},
			[]string{"status"},
		),

		GenerationDurationSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: bundleSubsystem,
				Name:      "generation_duration_seconds",
				Help:      "Wall time of a bundle generation task in seconds",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),

		ActiveGenerations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: bundleSubsystem,
				Name:      "active_generations",
				Help:      "Number of currently executing generation tasks",
			},
		),

		ComponentFailuresTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bundleSubsystem,
				Name:      "component_failures_total",
				Help:      "Collector-local failures by component id",
			},
			[]string{"component"},
		),

		BytesWrittenTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bundleSubsystem,
				Name:      "bytes_written_total",
				Help:      "Compressed bytes written into bundle archives",
			},
		),

		DownloadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bundleSubsystem,
				Name:      "downloads_total",
				Help:      "Bundle downloads by kind (task, single, multi)",
			},
			[]string{"kind"},
		),

		CleanupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: bundleSubsystem,
				Name:      "cleanups_total",
				Help:      "Retention sweeps by outcome",
			},
			[]string{"status"},
		),
	}
	return DefaultMetrics
}
