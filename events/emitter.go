// Package events implements the append-only, monotonically-sequenced
// lifecycle event stream emitted by the execution engines (spec.md §5),
// adapted from the teacher's async CircuitBreakerEventHandler dispatch
// in workflow/circuit_breaker.go.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler receives every event emitted after it subscribes. The emitter
// calls each handler in its own goroutine, after releasing its lock, so a
// handler never blocks Emit; events may therefore reach a handler out of
// EventSeq order.
type Handler interface {
	OnEvent(e domain.Event)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(domain.Event)

// OnEvent implements Handler.
func (f HandlerFunc) OnEvent(e domain.Event) { f(e) }

// Emitter assigns a per-execution monotonic EventSeq and fans each event
// out to every registered handler at least once.
type Emitter struct {
	logger   *zap.Logger
	mu       sync.Mutex
	seqs     map[string]*uint64 // executionID -> next sequence number
	handlers []Handler
}

// NewEmitter creates an Emitter. logger may be nil, in which case a no-op
// logger is used.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		logger: logger.With(zap.String("component", "events")),
		seqs:   map[string]*uint64{},
	}
}

// Subscribe registers h to receive every future emitted event.
func (em *Emitter) Subscribe(h Handler) {
	em.mu.Lock()
	defer em.mu.Unlock()
	em.handlers = append(em.handlers, h)
}

// Emit assigns the next EventSeq for executionID, stamps TS, and
// dispatches the event to every subscribed handler.
func (em *Emitter) Emit(executionID, nodeID, eventType string, payload map[string]any) domain.Event {
	em.mu.Lock()
	counter, ok := em.seqs[executionID]
	if !ok {
		counter = new(uint64)
		em.seqs[executionID] = counter
	}
	handlers := append([]Handler{}, em.handlers...)
	em.mu.Unlock()

	seq := atomic.AddUint64(counter, 1)
	ev := domain.Event{
		ID:          uuid.NewString(),
		ExecutionID: executionID,
		NodeID:      nodeID,
		EventType:   eventType,
		Payload:     payload,
		TS:          time.Now(),
		EventSeq:    seq,
	}

	em.logger.Debug("event emitted",
		zap.String("execution_id", executionID),
		zap.String("node_id", nodeID),
		zap.String("event_type", eventType),
		zap.Uint64("seq", seq),
	)

	for _, h := range handlers {
		go h.OnEvent(ev)
	}
	return ev
}

// Forget drops the sequence counter for executionID once its execution
// has reached a terminal status, so the map does not grow unbounded.
func (em *Emitter) Forget(executionID string) {
	em.mu.Lock()
	defer em.mu.Unlock()
	delete(em.seqs, executionID)
}
