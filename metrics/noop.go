package metrics

import "time"

// NoOpReporter discards everything.
type NoOpReporter struct {
	collector MetricsCollector
}

// NewNoOpReporter creates a new no-op metrics reporter
func NewNoOpReporter() *NoOpReporter {
	return &NoOpReporter{
		collector: NewCollector(),
	}
}

func (n *NoOpReporter) RecordCheck(family string, limited bool, remaining int64) {}

func (n *NoOpReporter) RecordPeek(family string, remaining int64) {}

func (n *NoOpReporter) RecordReset(family string) {}

func (n *NoOpReporter) RecordRequest(endpoint, outcome string, duration time.Duration) {}

func (n *NoOpReporter) RecordModelCall(endpoint string, err error, duration time.Duration) {}

// GetCollector returns an always-empty collector
func (n *NoOpReporter) GetCollector() MetricsCollector {
	return n.collector
}
