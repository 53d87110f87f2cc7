package memorybus

import (
	"testing"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_WildcardSubscriberReceivesEveryEvent(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("")
	defer unsubscribe()

	b.Publish(domain.Event{ExecutionID: "e1", EventType: "node.completed"})

	select {
	case ev := <-ch:
		assert.Equal(t, "node.completed", ev.EventType)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_TopicSubscriberOnlyReceivesMatchingEvents(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("node.completed")
	defer unsubscribe()

	b.Publish(domain.Event{EventType: "node.failed"})
	b.Publish(domain.Event{EventType: "node.completed"})

	select {
	case ev := <-ch:
		assert.Equal(t, "node.completed", ev.EventType)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case ev := <-ch:
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_Unsubscribe_ClosesChannel(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("")
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
}

func TestBus_Publish_DoesNotBlockOnFullSubscriberBuffer(t *testing.T) {
	b := New()
	_, unsubscribe := b.Subscribe("")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(domain.Event{EventType: "spam"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}

func TestBus_OnEvent_ImplementsEventsHandler(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("")
	defer unsubscribe()

	b.OnEvent(domain.Event{EventType: "instance.created"})

	select {
	case ev := <-ch:
		require.Equal(t, "instance.created", ev.EventType)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
