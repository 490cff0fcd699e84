package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	runsSubmitted     *prometheus.CounterVec
	runsCompleted     *prometheus.CounterVec
	runDuration       *prometheus.HistogramVec
	nodesExecuted     *prometheus.CounterVec
	nodeDuration      prometheus.Histogram
	taskRetries       prometheus.Counter
	workflowWidth     prometheus.Histogram
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a Prometheus metrics collector registered on the
// default registry.
func NewCollector() *Collector {
	return &Collector{
		runsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weft_runs_submitted_total",
				Help: "Total number of workflow runs submitted",
			},
			[]string{"status"},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weft_runs_completed_total",
				Help: "Total number of workflow runs finished, by final status",
			},
			[]string{"status"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "weft_run_duration_seconds",
				Help:    "Workflow run duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weft_nodes_executed_total",
				Help: "Total number of node executions, by outcome",
			},
			[]string{"status"},
		),
		nodeDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "weft_node_execution_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
		),
		taskRetries: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "weft_task_retries_total",
				Help: "Total number of task re-publishes after node failures",
			},
		),
		workflowWidth: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "weft_workflow_width",
				Help:    "Computed DAG width (maximum antichain size) per run",
				Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16, 32},
			},
		),
		workerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "weft_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "weft_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "weft_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordRunSubmitted records a run submission.
func (c *Collector) RecordRunSubmitted(status string) {
	c.runsSubmitted.WithLabelValues(status).Inc()
}

// RecordRunCompleted records a finished run and its duration.
func (c *Collector) RecordRunCompleted(status string, durationSeconds float64) {
	c.runsCompleted.WithLabelValues(status).Inc()
	c.runDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordNodeExecuted records a node execution and its duration.
func (c *Collector) RecordNodeExecuted(status string, durationSeconds float64) {
	c.nodesExecuted.WithLabelValues(status).Inc()
	c.nodeDuration.Observe(durationSeconds)
}

// RecordTaskRetry records one task re-publish.
func (c *Collector) RecordTaskRetry() {
	c.taskRetries.Inc()
}

// RecordWorkflowWidth records a run's computed width.
func (c *Collector) RecordWorkflowWidth(width int) {
	c.workflowWidth.Observe(float64(width))
}

// RecordWorkerPoolStatus records worker pool gauges.
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
