// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector holds the Prometheus metrics emitted by the execution core:
// execution/node lifecycle, scheduler admission, circuit breaker state,
// and compensation runs.
type Collector struct {
	executionsTotal    *prometheus.CounterVec
	executionDuration  *prometheus.HistogramVec

	nodeExecutionsTotal   *prometheus.CounterVec
	nodeExecutionDuration *prometheus.HistogramVec
	nodeRetriesTotal      *prometheus.CounterVec

	schedulerQueueDepth       *prometheus.GaugeVec
	schedulerConcurrencyInUse *prometheus.GaugeVec

	circuitBreakerState            *prometheus.GaugeVec
	circuitBreakerStateTransitions *prometheus.CounterVec

	compensationRunsTotal *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a Collector and registers its metrics under namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.executionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Total number of workflow executions by terminal status",
		},
		[]string{"workflow_name", "status"},
	)

	c.executionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Workflow execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"workflow_name"},
	)

	c.nodeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Total number of node dispatches by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	c.nodeExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_execution_duration_seconds",
			Help:      "Node dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	c.nodeRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_retries_total",
			Help:      "Total number of node dispatch retries",
		},
		[]string{"node_id", "kind"},
	)

	c.schedulerQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_queue_depth",
			Help:      "Number of tasks currently queued awaiting admission",
		},
		[]string{},
	)

	c.schedulerConcurrencyInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_concurrency_in_use",
			Help:      "Number of admitted tasks currently running, by kind",
		},
		[]string{"kind"},
	)

	c.circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per node: 0=closed, 1=half_open, 2=open",
		},
		[]string{"node_id"},
	)

	c.circuitBreakerStateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"node_id", "from", "to"},
	)

	c.compensationRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensation_runs_total",
			Help:      "Total number of Saga compensation runs by outcome",
		},
		[]string{"status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordExecution records a terminated workflow execution.
func (c *Collector) RecordExecution(workflowName, status string, duration time.Duration) {
	c.executionsTotal.WithLabelValues(workflowName, status).Inc()
	c.executionDuration.WithLabelValues(workflowName).Observe(duration.Seconds())
}

// RecordNodeExecution records one node dispatch's terminal outcome.
func (c *Collector) RecordNodeExecution(kind, status string, duration time.Duration) {
	c.nodeExecutionsTotal.WithLabelValues(kind, status).Inc()
	c.nodeExecutionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordNodeRetry records one retry attempt for nodeID.
func (c *Collector) RecordNodeRetry(nodeID, kind string) {
	c.nodeRetriesTotal.WithLabelValues(nodeID, kind).Inc()
}

// RecordSchedulerQueueDepth sets the current scheduler queue depth.
func (c *Collector) RecordSchedulerQueueDepth(depth int) {
	c.schedulerQueueDepth.WithLabelValues().Set(float64(depth))
}

// RecordSchedulerConcurrency sets the number of currently-running tasks
// of the given kind.
func (c *Collector) RecordSchedulerConcurrency(kind string, inUse int) {
	c.schedulerConcurrencyInUse.WithLabelValues(kind).Set(float64(inUse))
}

// circuitStateValue maps a breaker state name to the gauge's numeric
// encoding; unrecognized names are left unset by the caller.
func circuitStateValue(state string) float64 {
	switch state {
	case "closed":
		return 0
	case "half_open":
		return 1
	case "open":
		return 2
	default:
		return -1
	}
}

// RecordCircuitBreakerTransition records a breaker state change for nodeID.
func (c *Collector) RecordCircuitBreakerTransition(nodeID, from, to string) {
	c.circuitBreakerStateTransitions.WithLabelValues(nodeID, from, to).Inc()
	if v := circuitStateValue(to); v >= 0 {
		c.circuitBreakerState.WithLabelValues(nodeID).Set(v)
	}
}

// RecordCompensationRun records one Saga compensation run's outcome.
func (c *Collector) RecordCompensationRun(status string) {
	c.compensationRunsTotal.WithLabelValues(status).Inc()
}
