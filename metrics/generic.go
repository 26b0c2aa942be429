package metrics

import (
	"sync"
	"time"
)

// GenericReporter implements MetricsReporter by appending samples to an
// in-memory collector, for deployments without a Prometheus scraper.
type GenericReporter struct {
	collector MetricsCollector
	now       func() time.Time
	mu        sync.Mutex
}

// NewGenericReporter creates a new generic metrics reporter
func NewGenericReporter() *GenericReporter {
	return &GenericReporter{
		collector: NewCollector(),
		now:       time.Now,
	}
}

// RecordCheck records a check decision
func (g *GenericReporter) RecordCheck(family string, limited bool, remaining int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	decision := decisionLabel(limited)

	g.collector.AddMetric(Metric{
		Name:      checkTotalName,
		Type:      Counter,
		Value:     1.0,
		Labels:    map[string]string{"family": family, "decision": decision},
		Timestamp: now,
		Help:      "Total number of limiter checks",
	})

	g.collector.AddMetric(Metric{
		Name:      remainingName,
		Type:      Gauge,
		Value:     float64(remaining),
		Labels:    map[string]string{"family": family, "operation": "check"},
		Timestamp: now,
		Help:      "Requests remaining in the window after the last operation",
	})
}

// RecordPeek records a peek operation
func (g *GenericReporter) RecordPeek(family string, remaining int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()

	g.collector.AddMetric(Metric{
		Name:      peekTotalName,
		Type:      Counter,
		Value:     1.0,
		Labels:    map[string]string{"family": family},
		Timestamp: now,
		Help:      "Total number of limiter peeks",
	})

	g.collector.AddMetric(Metric{
		Name:      remainingName,
		Type:      Gauge,
		Value:     float64(remaining),
		Labels:    map[string]string{"family": family, "operation": "peek"},
		Timestamp: now,
		Help:      "Requests remaining in the window after the last operation",
	})
}

// RecordReset records a reset operation
func (g *GenericReporter) RecordReset(family string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.collector.AddMetric(Metric{
		Name:      resetTotalName,
		Type:      Counter,
		Value:     1.0,
		Labels:    map[string]string{"family": family},
		Timestamp: g.now(),
		Help:      "Total number of limiter resets",
	})
}

// RecordRequest records one gateway request
func (g *GenericReporter) RecordRequest(endpoint, outcome string, duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	labels := map[string]string{"endpoint": endpoint, "outcome": outcome}

	g.collector.AddMetric(Metric{
		Name:      requestTotalName,
		Type:      Counter,
		Value:     1.0,
		Labels:    labels,
		Timestamp: now,
		Help:      "Total number of gateway requests by outcome",
	})

	g.collector.AddMetric(Metric{
		Name:      requestSecondsName,
		Type:      Histogram,
		Value:     duration.Seconds(),
		Labels:    labels,
		Timestamp: now,
		Help:      "Gateway request latency",
	})
}

// RecordModelCall records one call to the external model
func (g *GenericReporter) RecordModelCall(endpoint string, err error, duration time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	labels := map[string]string{"endpoint": endpoint, "result": resultLabel(err)}

	g.collector.AddMetric(Metric{
		Name:      modelCallTotalName,
		Type:      Counter,
		Value:     1.0,
		Labels:    labels,
		Timestamp: now,
		Help:      "Total number of model calls",
	})

	g.collector.AddMetric(Metric{
		Name:      modelSecondsName,
		Type:      Histogram,
		Value:     duration.Seconds(),
		Labels:    labels,
		Timestamp: now,
		Help:      "Model call latency",
	})
}

// GetCollector returns the metrics collector
func (g *GenericReporter) GetCollector() MetricsCollector {
	return g.collector
}
