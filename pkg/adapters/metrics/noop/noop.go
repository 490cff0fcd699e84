// Package noop provides a metrics collector that records nothing. It is
// used when metrics are disabled and as a test fixture, since Prometheus
// collectors cannot register twice on the default registry.
package noop

// Collector implements ports.MetricsCollector as a no-op.
type Collector struct{}

// NewCollector creates a no-op metrics collector.
func NewCollector() *Collector { return &Collector{} }

func (*Collector) RecordRunSubmitted(status string)                        {}
func (*Collector) RecordRunCompleted(status string, durationSeconds float64) {}
func (*Collector) RecordNodeExecuted(status string, durationSeconds float64) {}
func (*Collector) RecordTaskRetry()                                        {}
func (*Collector) RecordWorkflowWidth(width int)                           {}
func (*Collector) RecordWorkerPoolStatus(idle, busy, stopped int)          {}
