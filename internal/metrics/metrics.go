// Package metrics provides Prometheus metrics for the SignalScope service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scoring run outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(r *Recorder) {
		if namespace != "" {
			r.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom buckets for latency histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = buckets
		}
	}
}

// WithRegistry sets the registry metrics are registered on and served from.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(r *Recorder) {
		if reg != nil {
			r.registry = reg
		}
	}
}

// Recorder owns the service's Prometheus collectors. A nil *Recorder is a
// valid no-op recorder.
type Recorder struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	scoringRuns     *prometheus.CounterVec
	scoringDuration prometheus.Histogram
	priorities      *prometheus.CounterVec
	skippedSignals  prometheus.Counter
	signalsIngested prometheus.Counter
	batchRuns       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
}

// New creates a Recorder on its own registry unless WithRegistry is given.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		namespace: "signalscope",
		buckets:   prometheus.DefBuckets,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}

	auto := promauto.With(r.registry)
	r.scoringRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "scoring",
		Name:      "runs_total",
		Help:      "Entity scoring runs by outcome",
	}, []string{"outcome"})
	r.scoringDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "scoring",
		Name:      "duration_seconds",
		Help:      "Wall time of a full entity scoring pipeline",
		Buckets:   r.buckets,
	})
	r.priorities = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "scoring",
		Name:      "priority_total",
		Help:      "Persisted score records by priority band",
	}, []string{"priority"})
	r.skippedSignals = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "scoring",
		Name:      "skipped_signals_total",
		Help:      "Invalid signals excluded under the skip policy",
	})
	r.signalsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "ingest",
		Name:      "signals_total",
		Help:      "Raw signals accepted for storage",
	})
	r.batchRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "batch",
		Name:      "runs_total",
		Help:      "Batch rescoring runs by final status",
	}, []string{"status"})
	r.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})
	r.httpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   r.buckets,
	}, []string{"route", "method"})
	r.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Live record cache lookups by result",
	}, []string{"result"})
	return r
}

// ObserveScoring records one scoring run.
func (r *Recorder) ObserveScoring(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.scoringRuns.WithLabelValues(outcome).Inc()
	r.scoringDuration.Observe(d.Seconds())
}

// RecordPriority counts a persisted record's priority band.
func (r *Recorder) RecordPriority(priority string) {
	if r == nil {
		return
	}
	r.priorities.WithLabelValues(priority).Inc()
}

// RecordSkippedSignals adds n skipped invalid signals.
func (r *Recorder) RecordSkippedSignals(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.skippedSignals.Add(float64(n))
}

// RecordSignalsIngested adds n accepted raw signals.
func (r *Recorder) RecordSignalsIngested(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.signalsIngested.Add(float64(n))
}

// RecordBatch counts a finished batch run by status.
func (r *Recorder) RecordBatch(status string) {
	if r == nil {
		return
	}
	r.batchRuns.WithLabelValues(status).Inc()
}

// RecordCacheLookup counts a record cache hit or miss.
func (r *Recorder) RecordCacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(route, method string, code int, d time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Registry returns the registry backing this recorder.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
