package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Store holds the Prometheus metrics collectors.
type Store struct {
	Registry                 *prometheus.Registry // Use a custom registry
	RunRunning               prometheus.Gauge
	RunDuration              prometheus.Histogram
	FileProcessingDuration   *prometheus.HistogramVec
	FilesProcessedTotal      *prometheus.CounterVec
	FixesAppliedTotal        *prometheus.CounterVec
	ReconcileErrorsTotal     *prometheus.CounterVec
	StaleReportsRemovedTotal prometheus.Counter
}

// File outcome labels for FilesProcessedTotal.
const (
	OutcomeClean       = "clean"
	OutcomeFixed       = "fixed"
	OutcomeDiscrepancy = "discrepancy"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
)

// NewMetricsStore creates and registers Prometheus metrics.
func NewMetricsStore() *Store {
	registry := prometheus.NewRegistry() // Create a non-global registry

	return &Store{
		Registry: registry,
		RunRunning: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "sxmlsync_up",
			Help: "Indicates if the sxmlsync process is currently running (1 = running, 0 = not running).",
		}),
		RunDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "sxmlsync_run_duration_seconds",
			Help:    "Duration of the entire reconciliation run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27min
		}),
		FileProcessingDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sxmlsync_file_processing_duration_seconds",
			Help:    "Duration histogram for reconciling individual snapshot files.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"outcome"}),
		FilesProcessedTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "sxmlsync_files_processed_total",
			Help: "Total number of snapshot files processed, labeled by outcome.",
		}, []string{"outcome"}), // Outcomes: clean, fixed, discrepancy, failed, skipped
		FixesAppliedTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "sxmlsync_fixes_applied_total",
			Help: "Total number of corrections applied, labeled by fix kind.",
		}, []string{"kind"}),
		ReconcileErrorsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "sxmlsync_errors_total",
			Help: "Total number of errors encountered during a run, labeled by type.",
		}, []string{"type"}), // Types: read_file, marker_parse, reconcile, write_file, report_write, vcs_diff
		StaleReportsRemovedTotal: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "sxmlsync_stale_reports_removed_total",
			Help: "Total number of stale discrepancy reports removed before a run.",
		}),
	}
}
