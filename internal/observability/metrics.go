package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// durationBucketBoundaries covers 10ms to 600s, matching the range from a
// handful of tokenized files to a full-course multi-minute pipeline run.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// PipelineMetrics instruments internal/pipeline.Run: stage durations, pairs
// produced, and file-level tokenize failures (spec.md §5's "tokenize
// failures are recorded, not fatal").
type PipelineMetrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	stageDuration   *prometheus.HistogramVec
	pairsReturned   prometheus.Histogram
	tokenizeFailure *prometheus.CounterVec
}

// NewPipelineMetrics registers the pipeline instrument set on reg.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)

	return &PipelineMetrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simguard_pipeline_runs_total",
			Help: "Total pipeline runs by outcome.",
		}, []string{"outcome"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "simguard_pipeline_run_duration_seconds",
			Help:    "Wall-clock duration of a full pipeline run.",
			Buckets: durationBucketBoundaries,
		}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "simguard_pipeline_stage_duration_seconds",
			Help:    "Duration of a single pipeline stage.",
			Buckets: durationBucketBoundaries,
		}, []string{"stage"}),
		pairsReturned: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "simguard_pipeline_pairs_returned",
			Help:    "Number of submission pairs returned per run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		tokenizeFailure: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simguard_pipeline_tokenize_failures_total",
			Help: "Files that failed tokenization, by language.",
		}, []string{"language"}),
	}
}

// RecordRun records a completed run's outcome and duration.
func (m *PipelineMetrics) RecordRun(outcome string, duration time.Duration, pairs int) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.pairsReturned.Observe(float64(pairs))
}

// RecordStage records a single pipeline stage's duration.
func (m *PipelineMetrics) RecordStage(stage string, duration time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordTokenizeFailure increments the tokenize-failure counter for language.
func (m *PipelineMetrics) RecordTokenizeFailure(language string) {
	m.tokenizeFailure.WithLabelValues(language).Inc()
}

// CoordinatorMetrics instruments internal/coordinator: debounce collapses,
// analysis runs by trigger, and reconciliation sweep outcomes.
type CoordinatorMetrics struct {
	debouncedEvents prometheus.Counter
	analysesTotal   *prometheus.CounterVec
	reconcileSweeps prometheus.Counter
	reconcileStale  prometheus.Counter
}

// NewCoordinatorMetrics registers the coordinator instrument set on reg.
func NewCoordinatorMetrics(reg prometheus.Registerer) *CoordinatorMetrics {
	factory := promauto.With(reg)

	return &CoordinatorMetrics{
		debouncedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "simguard_coordinator_debounced_submissions_total",
			Help: "Submission events collapsed into an already-scheduled debounce timer.",
		}),
		analysesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "simguard_coordinator_analyses_total",
			Help: "Auto-analysis runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		reconcileSweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "simguard_coordinator_reconcile_sweeps_total",
			Help: "Reconciliation ticks that actually ran (not skipped as still in flight).",
		}),
		reconcileStale: factory.NewCounter(prometheus.CounterOpts{
			Name: "simguard_coordinator_reconcile_stale_found_total",
			Help: "Assignments found stale during reconciliation and rescheduled.",
		}),
	}
}

// RecordDebounce increments the debounce-collapse counter.
func (m *CoordinatorMetrics) RecordDebounce() { m.debouncedEvents.Inc() }

// RecordAnalysis records an analysis attempt's trigger and outcome.
func (m *CoordinatorMetrics) RecordAnalysis(trigger, outcome string) {
	m.analysesTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordReconcileSweep increments the reconciliation-sweep counter.
func (m *CoordinatorMetrics) RecordReconcileSweep() { m.reconcileSweeps.Inc() }

// RecordReconcileStaleFound increments the stale-assignments-found counter.
func (m *CoordinatorMetrics) RecordReconcileStaleFound(count int) {
	m.reconcileStale.Add(float64(count))
}

// Handler serves the Prometheus scrape endpoint for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
