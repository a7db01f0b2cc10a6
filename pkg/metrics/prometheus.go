package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ingested   *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	replaced   *prometheus.CounterVec
	suppressed *prometheus.CounterVec
	evicted    prometheus.Counter
	resyncs    prometheus.Counter
	storeSize  prometheus.Gauge
	conflicts  *prometheus.CounterVec
	advice     *prometheus.CounterVec
	published  *prometheus.CounterVec
	throttled  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	errors     *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ingested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_signals_ingested_total",
				Help: "Signals accepted into the store",
			},
			[]string{"symbol", "type"},
		),
		rejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_signals_rejected_total",
				Help: "Signals rejected at validation",
			},
			[]string{"reason"},
		),
		replaced: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_signals_replaced_total",
				Help: "Stored signals replaced by a higher-priority duplicate",
			},
			[]string{"symbol"},
		),
		suppressed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_signals_suppressed_total",
				Help: "Duplicate signals dropped in favor of the stored one",
			},
			[]string{"symbol"},
		),
		evicted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flowradar_signals_evicted_total",
				Help: "Signals evicted by the ring buffer at capacity",
			},
		),
		resyncs: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "flowradar_store_index_resyncs_total",
				Help: "Index rebuilds after a consistency check failure",
			},
		),
		storeSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "flowradar_store_size",
				Help: "Signals currently stored",
			},
		),
		conflicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_conflicts_total",
				Help: "Directional conflicts by outcome",
			},
			[]string{"outcome"},
		),
		advice: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_advice_total",
				Help: "Recommendations by symbol and advice",
			},
			[]string{"symbol", "advice"},
		),
		published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_results_published_total",
				Help: "Pipeline results delivered downstream",
			},
			[]string{"target"},
		),
		throttled: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_advice_throttled_total",
				Help: "Recommendations suppressed by the advice throttle",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flowradar_pipeline_duration_seconds",
				Help:    "Duration of fused pipeline passes in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"symbol"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowradar_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordIngested(symbol, signalType string) {
	r.ingested.WithLabelValues(symbol, signalType).Inc()
}

func (r *Recorder) RecordRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordReplaced(symbol string) {
	r.replaced.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordSuppressed(symbol string) {
	r.suppressed.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordEvicted() {
	r.evicted.Inc()
}

func (r *Recorder) RecordIndexResync() {
	r.resyncs.Inc()
}

func (r *Recorder) RecordStoreSize(n int) {
	r.storeSize.Set(float64(n))
}

func (r *Recorder) RecordConflict(outcome string) {
	r.conflicts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordAdvice(symbol, advice string) {
	r.advice.WithLabelValues(symbol, advice).Inc()
}

func (r *Recorder) RecordPublished(target string) {
	r.published.WithLabelValues(target).Inc()
}

func (r *Recorder) RecordThrottled(symbol string) {
	r.throttled.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordPipelineLatency(symbol string, seconds float64) {
	r.latency.WithLabelValues(symbol).Observe(seconds)
}

func (r *Recorder) RecordError(kind string) {
	r.errors.WithLabelValues(kind).Inc()
}
