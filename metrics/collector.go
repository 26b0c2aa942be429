package metrics

import (
	"sync"
)

// DefaultSampleLimit bounds how many samples are kept per metric name.
const DefaultSampleLimit = 1000

// Collector implements MetricsCollector with thread-safe metric storage.
// Only the most recent samples per name are retained.
type Collector struct {
	mu      sync.RWMutex
	metrics map[string][]Metric
	limit   int
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return NewCollectorWithLimit(DefaultSampleLimit)
}

// NewCollectorWithLimit creates a collector keeping at most limit samples per
// name. A non-positive limit falls back to DefaultSampleLimit.
func NewCollectorWithLimit(limit int) *Collector {
	if limit <= 0 {
		limit = DefaultSampleLimit
	}
	return &Collector{
		metrics: make(map[string][]Metric),
		limit:   limit,
	}
}

// AddMetric adds a metric to the collector, evicting the oldest sample of
// the same name when full
func (c *Collector) AddMetric(metric Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	samples := append(c.metrics[metric.Name], metric)
	if len(samples) > c.limit {
		samples = samples[len(samples)-c.limit:]
	}
	c.metrics[metric.Name] = samples
}

// Collect returns all current metrics
func (c *Collector) Collect() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var all []Metric
	for _, samples := range c.metrics {
		all = append(all, samples...)
	}
	return all
}

// GetMetrics returns a copy of the samples for a specific name
func (c *Collector) GetMetrics(name string) []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	samples, exists := c.metrics[name]
	if !exists {
		return nil
	}
	result := make([]Metric, len(samples))
	copy(result, samples)
	return result
}

// Reset clears all metrics
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = make(map[string][]Metric)
}

// GetMetricsByType returns all metrics of a specific type
func (c *Collector) GetMetricsByType(metricType MetricType) []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var result []Metric
	for _, samples := range c.metrics {
		for _, metric := range samples {
			if metric.Type == metricType {
				result = append(result, metric)
			}
		}
	}
	return result
}

// GetMetricsSummary returns a sample count by name and type
func (c *Collector) GetMetricsSummary() map[string]map[MetricType]int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := make(map[string]map[MetricType]int)
	for name, samples := range c.metrics {
		summary[name] = make(map[MetricType]int)
		for _, metric := range samples {
			summary[name][metric.Type]++
		}
	}
	return summary
}
