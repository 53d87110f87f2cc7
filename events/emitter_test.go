package events

import (
	"sync"
	"testing"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *collector) OnEvent(e domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) snapshot() []domain.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Event{}, c.events...)
}

func TestEmit_AssignsMonotonicSeqPerExecution(t *testing.T) {
	em := NewEmitter(nil)
	c := &collector{}
	em.Subscribe(c)

	em.Emit("exec-1", "a", "node_started", nil)
	em.Emit("exec-1", "a", "node_completed", nil)
	em.Emit("exec-2", "x", "node_started", nil)

	require.Eventually(t, func() bool { return len(c.snapshot()) == 3 }, time.Second, time.Millisecond)

	var exec1Seqs []uint64
	for _, e := range c.snapshot() {
		if e.ExecutionID == "exec-1" {
			exec1Seqs = append(exec1Seqs, e.EventSeq)
		}
	}
	assert.Equal(t, []uint64{1, 2}, exec1Seqs)
}

func TestEmit_DispatchesToAllHandlers(t *testing.T) {
	em := NewEmitter(nil)
	c1, c2 := &collector{}, &collector{}
	em.Subscribe(c1)
	em.Subscribe(c2)

	em.Emit("exec-1", "a", "node_started", nil)

	require.Eventually(t, func() bool { return len(c1.snapshot()) == 1 && len(c2.snapshot()) == 1 }, time.Second, time.Millisecond)
}

func TestDeduper_AdmitsOnce(t *testing.T) {
	d := NewDeduper()
	assert.True(t, d.Admit("exec-1", 1))
	assert.False(t, d.Admit("exec-1", 1))
	assert.True(t, d.Admit("exec-1", 2))
	assert.True(t, d.Admit("exec-2", 1))
}

func TestDeduper_ForgetResets(t *testing.T) {
	d := NewDeduper()
	d.Admit("exec-1", 1)
	d.Forget("exec-1")
	assert.True(t, d.Admit("exec-1", 1))
}
