// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the scanner.
//
// # Description
//
// Metrics cover the scan lifecycle and the log-streaming surface:
//   - Submission counters (accepted and rejected, by mode / reason)
//   - Scan outcome counters and duration histograms (by mode and status)
//   - Finding counters by severity
//   - Gauges for in-flight scans and open log streams
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. The orchestrator engine
// reports lifecycle events through the Metrics value handed to it at
// startup; HTTP handlers report stream activity.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics.
const metricsNamespace = "webscan"

// Subsystem for scan lifecycle metrics.
const scansSubsystem = "scans"

// Metrics holds all Prometheus metrics for the scanner service.
//
// # Fields
//
//   - SubmissionsTotal: Counter of accepted scan submissions by mode
//   - RejectionsTotal: Counter of rejected submissions by reason
//   - ScansFinishedTotal: Counter of terminal scans by mode and status
//   - ScanDurationSeconds: Histogram of scan wall time by mode and status
//   - FindingsTotal: Counter of emitted findings by severity
//   - ActiveScans: Gauge of scans currently running
//   - ActiveLogStreams: Gauge of open log streams by transport (sse, ws)
//   - LogEventsStreamedTotal: Counter of log events delivered by transport
//
// # Thread Safety
//
// All operations are thread-safe.
type Metrics struct {
	// SubmissionsTotal counts accepted submissions.
	// Labels: mode (STATIC, DYNAMIC, BOTH)
	SubmissionsTotal *prometheus.CounterVec

	// RejectionsTotal counts rejected submissions.
	// Labels: reason (validation, invalid_target, unreachable, capacity,
	// auth_mode_conflict, cross_origin)
	RejectionsTotal *prometheus.CounterVec

	// ScansFinishedTotal counts terminal scans.
	// Labels: mode, status (COMPLETED, FAILED)
	ScansFinishedTotal *prometheus.CounterVec

	// ScanDurationSeconds measures scan wall time.
	// Labels: mode, status
	ScanDurationSeconds *prometheus.HistogramVec

	// FindingsTotal counts emitted findings.
	// Labels: severity (CRITICAL, HIGH, MEDIUM, LOW, INFO)
	FindingsTotal *prometheus.CounterVec

	// ActiveScans tracks scans currently executing.
	ActiveScans prometheus.Gauge

	// ActiveLogStreams tracks open log streams.
	// Labels: transport (sse, ws)
	ActiveLogStreams *prometheus.GaugeVec

	// LogEventsStreamedTotal counts log events delivered to clients.
	// Labels: transport (sse, ws)
	LogEventsStreamedTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance registered against the default
// Prometheus registry. Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance.
//
// Should be called once at startup. Calling it twice panics on duplicate
// registration.
func InitMetrics() *Metrics {
	DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	return DefaultMetrics
}

// NewMetrics creates and registers all scanner metrics against the given
// registerer. Tests pass a private registry to avoid duplicate-registration
// panics across test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "submissions_total",
				Help:      "Total accepted scan submissions by mode",
			},
			[]string{"mode"},
		),

		RejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "rejections_total",
				Help:      "Total rejected scan submissions by reason",
			},
			[]string{"reason"},
		),

		ScansFinishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "finished_total",
				Help:      "Total terminal scans by mode and status",
			},
			[]string{"mode", "status"},
		),

		ScanDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "duration_seconds",
				Help:      "Scan wall time in seconds by mode and status",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 300},
			},
			[]string{"mode", "status"},
		),

		FindingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "findings_total",
				Help:      "Total findings emitted by severity",
			},
			[]string{"severity"},
		),

		ActiveScans: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "active",
				Help:      "Number of scans currently running",
			},
		),

		ActiveLogStreams: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "active_log_streams",
				Help:      "Number of open log streams by transport",
			},
			[]string{"transport"},
		),

		LogEventsStreamedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: scansSubsystem,
				Name:      "log_events_streamed_total",
				Help:      "Total log events delivered to streaming clients",
			},
			[]string{"transport"},
		),
	}
}

// =============================================================================
// Rejection Reasons
// =============================================================================

// RejectionReason categorizes a rejected submission for metrics labeling.
type RejectionReason string

const (
	// ReasonValidation indicates a structurally invalid request body.
	ReasonValidation RejectionReason = "validation"

	// ReasonInvalidTarget indicates an unparseable or disallowed target URL.
	ReasonInvalidTarget RejectionReason = "invalid_target"

	// ReasonUnreachable indicates the target answered on no scheme.
	ReasonUnreachable RejectionReason = "unreachable"

	// ReasonCapacity indicates the concurrent scan cap was hit.
	ReasonCapacity RejectionReason = "capacity"

	// ReasonAuthModeConflict indicates authConfig paired with STATIC mode.
	ReasonAuthModeConflict RejectionReason = "auth_mode_conflict"

	// ReasonCrossOrigin indicates a same-origin policy violation.
	ReasonCrossOrigin RejectionReason = "cross_origin"
)

// =============================================================================
// Lifecycle Helpers
// =============================================================================

// ScanAccepted records an accepted submission entering execution.
func (m *Metrics) ScanAccepted(mode string) {
	m.SubmissionsTotal.WithLabelValues(mode).Inc()
	m.ActiveScans.Inc()
}

// ScanRejected records a rejected submission.
func (m *Metrics) ScanRejected(reason RejectionReason) {
	m.RejectionsTotal.WithLabelValues(string(reason)).Inc()
}

// ScanFinished records a scan reaching a terminal state.
func (m *Metrics) ScanFinished(mode, status string, duration time.Duration, findingSeverities []string) {
	m.ActiveScans.Dec()
	m.ScansFinishedTotal.WithLabelValues(mode, status).Inc()
	m.ScanDurationSeconds.WithLabelValues(mode, status).Observe(duration.Seconds())
	for _, sev := range findingSeverities {
		m.FindingsTotal.WithLabelValues(sev).Inc()
	}
}
