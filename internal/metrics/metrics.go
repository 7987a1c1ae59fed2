// Package metrics holds the Prometheus collectors shared across the
// gateway and the execution engine. HTTP-level request metrics live in
// the middleware package; everything here counts domain events.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scan lifecycle metrics
var (
	// ScansCreatedTotal counts scans accepted by the gateway.
	ScansCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scans_created_total",
			Help: "Total number of scans created",
		},
	)

	// ScansFinishedTotal counts scans reaching a terminal status.
	ScansFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scans_finished_total",
			Help: "Total number of scans finished by terminal status",
		},
		[]string{"status"},
	)

	// ScanDuration tracks wall time from execution start to finish.
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scan_duration_seconds",
			Help:    "Scan execution duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"status"},
	)

	// ScanVulnerabilitiesTotal counts findings recorded by the engine.
	ScanVulnerabilitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_vulnerabilities_total",
			Help: "Total number of vulnerabilities found by scans",
		},
		[]string{"severity"},
	)

	// ScansStaleFailedTotal counts scans the watchdog failed after a
	// worker crash left them in_progress.
	ScansStaleFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scans_stale_failed_total",
			Help: "Total number of stale scans failed by the watchdog",
		},
	)
)

// Admission metrics
var (
	// AdmissionDecisionsTotal counts rate-limit admission outcomes.
	AdmissionDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_decisions_total",
			Help: "Total number of admission decisions by outcome",
		},
		[]string{"outcome"}, // outcome: "allowed", "limited", "error"
	)
)

// Auth metrics
var (
	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"}, // outcome: "success", "failure"
	)

	// RegistrationsTotal counts successful account registrations.
	RegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Total number of successful registrations",
		},
	)

	// TokenRefreshesTotal counts refresh-token exchanges by outcome.
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refreshes_total",
			Help: "Total number of refresh token exchanges by outcome",
		},
		[]string{"outcome"},
	)
)

// Websocket metrics
var (
	// WebsocketConnections tracks currently connected clients.
	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Number of currently connected websocket clients",
		},
	)

	// WebsocketEventsForwardedTotal counts scan events delivered to
	// subscribed clients.
	WebsocketEventsForwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_events_forwarded_total",
			Help: "Total number of scan events forwarded to websocket clients",
		},
	)
)

// Report metrics
var (
	// ReportsCreatedTotal counts reports created.
	ReportsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reports_created_total",
			Help: "Total number of reports created",
		},
	)

	// ReportSharesTotal counts report share deliveries.
	ReportSharesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_shares_total",
			Help: "Total number of reports shared by email",
		},
	)

	// ExportsTotal counts export artifacts built by format.
	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exports_total",
			Help: "Total number of report exports by format",
		},
		[]string{"format"},
	)

	// ExportArtifactBytes tracks the size of stored export artifacts.
	ExportArtifactBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "export_artifact_bytes",
			Help:    "Size of stored export artifacts in bytes",
			Buckets: []float64{1000, 10000, 100000, 1000000, 10000000},
		},
	)
)
