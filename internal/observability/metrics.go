package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the aggregation service,
// organized by subsystem: connector calls, pipeline runs, and merge results.
// All counters and histograms are registered via promauto with the default
// Prometheus registry.
type Metrics struct {
	// ConnectorRequests counts connector searches, labeled by source,
	// execution mode, and outcome status ("ok" or the error kind).
	ConnectorRequests *prometheus.CounterVec

	// ConnectorDuration observes per-connector search duration in seconds.
	ConnectorDuration *prometheus.HistogramVec

	// ConnectorResults observes the number of raw results per connector search.
	ConnectorResults *prometheus.HistogramVec

	// ConnectorsSkipped counts connectors excluded from a run, labeled by
	// source and reason (e.g. "missing_credential", "disabled").
	ConnectorsSkipped *prometheus.CounterVec

	// PipelineRuns counts pipeline runs by terminal status
	// ("ok", "partial", "failed", "cancelled").
	PipelineRuns *prometheus.CounterVec

	// PipelineDuration observes end-to-end pipeline run duration in seconds.
	PipelineDuration prometheus.Histogram

	// WorksMerged counts canonical works produced across all runs.
	WorksMerged prometheus.Counter

	// DuplicatesCollapsed counts raw results folded into an existing
	// canonical work during merging.
	DuplicatesCollapsed prometheus.Counter

	// ResultsReturned observes the number of ranked works returned per run.
	ResultsReturned prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ConnectorRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connector_requests_total",
			Help:      "Total number of connector searches by source, mode, and status",
		}, []string{"source", "mode", "status"}),
		ConnectorDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connector_duration_seconds",
			Help:      "Duration of connector searches in seconds by source",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		ConnectorResults: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connector_results",
			Help:      "Number of raw results per connector search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}, []string{"source"}),
		ConnectorsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connectors_skipped_total",
			Help:      "Total number of connectors skipped by source and reason",
		}, []string{"source", "reason"}),
		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total number of pipeline runs by terminal status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end duration of pipeline runs in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		WorksMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "works_merged_total",
			Help:      "Total number of canonical works produced by merging",
		}),
		DuplicatesCollapsed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_collapsed_total",
			Help:      "Total number of raw results collapsed into existing canonical works",
		}),
		ResultsReturned: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "results_returned",
			Help:      "Number of ranked works returned per pipeline run",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200, 500},
		}),
	}
}

// RecordConnectorSuccess records a completed connector search.
func (m *Metrics) RecordConnectorSuccess(source, mode string, resultCount int, durationSeconds float64) {
	m.ConnectorRequests.WithLabelValues(source, mode, "ok").Inc()
	m.ConnectorDuration.WithLabelValues(source).Observe(durationSeconds)
	m.ConnectorResults.WithLabelValues(source).Observe(float64(resultCount))
}

// RecordConnectorFailure records a failed connector search. The status is
// the error kind (e.g. "rate_limited", "timeout").
func (m *Metrics) RecordConnectorFailure(source, mode, status string, durationSeconds float64) {
	m.ConnectorRequests.WithLabelValues(source, mode, status).Inc()
	m.ConnectorDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordConnectorSkipped records a connector excluded from a run.
func (m *Metrics) RecordConnectorSkipped(source, reason string) {
	m.ConnectorsSkipped.WithLabelValues(source, reason).Inc()
}

// RecordPipelineRun records a finished pipeline run with its merge statistics.
func (m *Metrics) RecordPipelineRun(status string, durationSeconds float64, merged, collapsed, returned int) {
	m.PipelineRuns.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(durationSeconds)
	m.WorksMerged.Add(float64(merged))
	m.DuplicatesCollapsed.Add(float64(collapsed))
	m.ResultsReturned.Observe(float64(returned))
}

// RecordPipelineFailed records a run that produced no result.
func (m *Metrics) RecordPipelineFailed(status string, durationSeconds float64) {
	m.PipelineRuns.WithLabelValues(status).Inc()
	m.PipelineDuration.Observe(durationSeconds)
}
