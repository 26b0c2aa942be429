package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusReporter implements MetricsReporter with Prometheus metrics.
// Labels carry the limiter family, never the client key, to keep
// cardinality bounded.
type PrometheusReporter struct {
	collector MetricsCollector

	checkTotal      *prometheus.CounterVec
	peekTotal       *prometheus.CounterVec
	resetTotal      *prometheus.CounterVec
	remainingGauge  *prometheus.GaugeVec
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	modelCallTotal  *prometheus.CounterVec
	modelDuration   *prometheus.HistogramVec
}

// NewPrometheusReporter registers the gateway metrics with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewPrometheusReporter(reg prometheus.Registerer) *PrometheusReporter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusReporter{
		collector: NewCollector(),
		checkTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: checkTotalName,
				Help: "Total number of limiter checks",
			},
			[]string{"family", "decision"},
		),
		peekTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: peekTotalName,
				Help: "Total number of limiter peeks",
			},
			[]string{"family"},
		),
		resetTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: resetTotalName,
				Help: "Total number of limiter resets",
			},
			[]string{"family"},
		),
		remainingGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: remainingName,
				Help: "Requests remaining in the window after the last operation",
			},
			[]string{"family"},
		),
		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: requestTotalName,
				Help: "Total number of gateway requests by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    requestSecondsName,
				Help:    "Gateway request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		modelCallTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: modelCallTotalName,
				Help: "Total number of model calls",
			},
			[]string{"endpoint", "result"},
		),
		modelDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    modelSecondsName,
				Help:    "Model call latency",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
			},
			[]string{"endpoint"},
		),
	}
}

// RecordCheck records a check decision
func (p *PrometheusReporter) RecordCheck(family string, limited bool, remaining int64) {
	p.checkTotal.WithLabelValues(family, decisionLabel(limited)).Inc()
	p.remainingGauge.WithLabelValues(family).Set(float64(remaining))
}

// RecordPeek records a peek operation
func (p *PrometheusReporter) RecordPeek(family string, remaining int64) {
	p.peekTotal.WithLabelValues(family).Inc()
}

// RecordReset records a reset operation
func (p *PrometheusReporter) RecordReset(family string) {
	p.resetTotal.WithLabelValues(family).Inc()
}

// RecordRequest records one gateway request
func (p *PrometheusReporter) RecordRequest(endpoint, outcome string, duration time.Duration) {
	p.requestTotal.WithLabelValues(endpoint, outcome).Inc()
	p.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordModelCall records one call to the external model
func (p *PrometheusReporter) RecordModelCall(endpoint string, err error, duration time.Duration) {
	p.modelCallTotal.WithLabelValues(endpoint, resultLabel(err)).Inc()
	p.modelDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// GetCollector returns an empty collector; Prometheus keeps its own state.
func (p *PrometheusReporter) GetCollector() MetricsCollector {
	return p.collector
}
