package metrics

import "time"

// MetricType represents the type of metric
type MetricType string

const (
	Counter   MetricType = "counter"
	Gauge     MetricType = "gauge"
	Histogram MetricType = "histogram"
)

// Metric represents a generic metric that can be consumed by any monitoring system
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Help      string            `json:"help,omitempty"`
}

// MetricsCollector defines the interface for collecting metrics
type MetricsCollector interface {
	// AddMetric adds a metric to the collector
	AddMetric(metric Metric)

	// Collect returns all current metrics
	Collect() []Metric

	// GetMetrics returns metrics for a specific name
	GetMetrics(name string) []Metric

	// Reset clears all metrics
	Reset()

	// GetMetricsSummary returns a summary of metrics by name and type
	GetMetricsSummary() map[string]map[MetricType]int
}

// MetricsReporter covers limiter decisions (it satisfies core.MetricsReporter)
// and gateway request outcomes.
type MetricsReporter interface {
	// RecordCheck records a check decision for a limiter family
	RecordCheck(family string, limited bool, remaining int64)

	// RecordPeek records a peek operation
	RecordPeek(family string, remaining int64)

	// RecordReset records a reset operation
	RecordReset(family string)

	// RecordRequest records one gateway request and how it ended
	RecordRequest(endpoint, outcome string, duration time.Duration)

	// RecordModelCall records one call to the external model
	RecordModelCall(endpoint string, err error, duration time.Duration)

	// GetCollector returns the metrics collector
	GetCollector() MetricsCollector
}

// Metric names shared by every reporter.
const (
	checkTotalName     = "glucogate_limiter_check_total"
	peekTotalName      = "glucogate_limiter_peek_total"
	resetTotalName     = "glucogate_limiter_reset_total"
	remainingName      = "glucogate_limiter_remaining"
	requestTotalName   = "glucogate_requests_total"
	requestSecondsName = "glucogate_request_duration_seconds"
	modelCallTotalName = "glucogate_model_calls_total"
	modelSecondsName   = "glucogate_model_call_duration_seconds"
)

func decisionLabel(limited bool) string {
	if limited {
		return "limited"
	}
	return "allowed"
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
