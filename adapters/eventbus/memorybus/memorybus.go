// Package memorybus is the in-process reference event bus: it bridges
// events.Emitter's internal Handler fan-out to external topic
// subscribers (a UI, a log shipper, a test harness), grounded on
// workflow/workflow.go's WorkflowStreamEvent channel-per-subscriber
// pattern but keyed on event type rather than a single fixed channel.
package memorybus

import (
	"sync"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// Bus fans out published events to topic subscribers. A subscriber with
// topic "" receives every event; any other topic receives only events
// whose EventType equals it. Bus implements events.Handler, so it can be
// registered directly with an events.Emitter via Subscribe.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]chan domain.Event
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]chan domain.Event)}
}

// Subscribe returns a channel that receives every future event matching
// topic ("" for all events), and an unsubscribe function that closes it.
// The channel is buffered so a slow subscriber cannot block Publish;
// events are dropped, not blocked, if the buffer fills.
func (b *Bus) Subscribe(topic string) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 64)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[topic]
		for i, c := range list {
			if c == ch {
				b.subs[topic] = append(list[:i], list[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, unsubscribe
}

// Publish delivers e to every subscriber of e.EventType and every
// wildcard ("") subscriber.
func (b *Bus) Publish(e domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[""] {
		trySend(ch, e)
	}
	if e.EventType != "" {
		for _, ch := range b.subs[e.EventType] {
			trySend(ch, e)
		}
	}
}

// OnEvent implements events.Handler, letting Bus subscribe directly to
// an events.Emitter.
func (b *Bus) OnEvent(e domain.Event) {
	b.Publish(e)
}

func trySend(ch chan domain.Event, e domain.Event) {
	select {
	case ch <- e:
	default:
	}
}
