package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.executionsTotal)
	assert.NotNil(t, collector.executionDuration)
	assert.NotNil(t, collector.nodeExecutionsTotal)
	assert.NotNil(t, collector.nodeExecutionDuration)
	assert.NotNil(t, collector.circuitBreakerState)
}

func TestCollector_RecordExecution(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordExecution("approval", "completed", 100*time.Millisecond)
	count := testutil.CollectAndCount(collector.executionsTotal)
	assert.Greater(t, count, 0)

	collector.RecordExecution("approval", "failed", 50*time.Millisecond)
	newCount := testutil.CollectAndCount(collector.executionsTotal)
	assert.GreaterOrEqual(t, newCount, count)
}

func TestCollector_RecordNodeExecution(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordNodeExecution("agent", "success", 500*time.Millisecond)
	count := testutil.CollectAndCount(collector.nodeExecutionsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordNodeRetry(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordNodeRetry("node-a", "agent")
	count := testutil.CollectAndCount(collector.nodeRetriesTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_SchedulerGauges(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordSchedulerQueueDepth(7)
	collector.RecordSchedulerConcurrency("agent", 3)

	assert.Equal(t, float64(7), testutil.ToFloat64(collector.schedulerQueueDepth.WithLabelValues()))
	assert.Equal(t, float64(3), testutil.ToFloat64(collector.schedulerConcurrencyInUse.WithLabelValues("agent")))
}

func TestCollector_RecordCircuitBreakerTransition(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCircuitBreakerTransition("node-a", "closed", "open")
	transitionCount := testutil.CollectAndCount(collector.circuitBreakerStateTransitions)
	assert.Greater(t, transitionCount, 0)
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.circuitBreakerState.WithLabelValues("node-a")))
}

func TestCollector_RecordCompensationRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCompensationRun("success")
	count := testutil.CollectAndCount(collector.compensationRunsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordExecution("wf", "completed", 100*time.Millisecond)
			collector.RecordNodeExecution("tool", "success", 10*time.Millisecond)
			collector.RecordNodeRetry("node-a", "tool")
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Greater(t, testutil.CollectAndCount(collector.executionsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.nodeExecutionsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.nodeRetriesTotal), 0)
}
