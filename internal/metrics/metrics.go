package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records pipeline activity using Prometheus.
type Recorder struct {
	gatherer        prometheus.Gatherer
	pricesIngested  *prometheus.CounterVec
	signalsUpserted *prometheus.CounterVec
	assetsSkipped   prometheus.Counter
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	cacheResults    *prometheus.CounterVec
}

// New creates a Recorder whose collectors live in their own registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		gatherer: reg,
		pricesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphastream_prices_ingested_total",
				Help: "Daily price rows inserted, per ticker",
			},
			[]string{"ticker"},
		),
		signalsUpserted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphastream_signals_upserted_total",
				Help: "Signals written, per signal type",
			},
			[]string{"signal_type"},
		),
		assetsSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "alphastream_assets_skipped_total",
				Help: "Assets skipped for insufficient history",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphastream_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alphastream_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		cacheResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alphastream_dashboard_cache_total",
				Help: "Dashboard cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// RecordPricesIngested adds n inserted rows for ticker.
func (r *Recorder) RecordPricesIngested(ticker string, n int64) {
	if r == nil || n <= 0 {
		return
	}
	r.pricesIngested.WithLabelValues(ticker).Add(float64(n))
}

// RecordSignal counts one written signal.
func (r *Recorder) RecordSignal(signalType string) {
	if r == nil {
		return
	}
	r.signalsUpserted.WithLabelValues(signalType).Inc()
}

// RecordSkipped counts one asset skipped by the engine.
func (r *Recorder) RecordSkipped() {
	if r == nil {
		return
	}
	r.assetsSkipped.Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// ObserveDuration records the time elapsed since start for op.
func (r *Recorder) ObserveDuration(op string, start time.Time) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// RecordCache records a dashboard cache lookup: "hit", "miss" or "error".
func (r *Recorder) RecordCache(result string) {
	if r == nil {
		return
	}
	r.cacheResults.WithLabelValues(result).Inc()
}

// Handler exposes the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
