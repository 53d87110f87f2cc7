package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_HigherPriorityFirst(t *testing.T) {
	s := New(Limits{GlobalConcurrency: 1}, nil)
	s.Enqueue(&Task{NodeID: "low", Priority: 1})
	s.Enqueue(&Task{NodeID: "high", Priority: 10})

	ctx := context.Background()
	got, err := s.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, "high", got.NodeID)
}

func TestAcquire_RespectsGlobalConcurrency(t *testing.T) {
	s := New(Limits{GlobalConcurrency: 1}, nil)
	s.Enqueue(&Task{NodeID: "a", Priority: 1})
	s.Enqueue(&Task{NodeID: "b", Priority: 1})

	ctx := context.Background()
	a, err := s.Acquire(ctx)
	require.NoError(t, err)

	acquired := make(chan *Task, 1)
	go func() {
		t, _ := s.Acquire(context.Background())
		acquired <- t
	}()

	select {
	case <-acquired:
		t.Fatal("second task should not be admitted while global slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	s.Release(a)
	select {
	case got := <-acquired:
		assert.Equal(t, "b", got.NodeID)
	case <-time.After(time.Second):
		t.Fatal("expected second task to be admitted after release")
	}
}

func TestAcquire_RespectsPerKindConcurrency(t *testing.T) {
	s := New(Limits{GlobalConcurrency: 10, PerKindConcurrency: map[string]int{"agent": 1}}, nil)
	s.Enqueue(&Task{NodeID: "a1", Kind: "agent", Priority: 1})
	s.Enqueue(&Task{NodeID: "t1", Kind: "tool", Priority: 1})

	ctx := context.Background()
	first, err := s.Acquire(ctx)
	require.NoError(t, err)

	second, err := s.Acquire(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Kind, second.Kind)
}

func TestAcquire_CancelledContext(t *testing.T) {
	s := New(Limits{GlobalConcurrency: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Acquire(ctx)
	assert.Error(t, err)
}

func TestCancel_DropsQueuedTasksForExecution(t *testing.T) {
	s := New(Limits{GlobalConcurrency: 5}, nil)
	s.Enqueue(&Task{ExecutionID: "e1", NodeID: "a"})
	s.Enqueue(&Task{ExecutionID: "e2", NodeID: "b"})

	dropped := s.Cancel("e1")
	assert.Equal(t, 1, dropped)
	assert.Equal(t, 1, s.Len())
}
