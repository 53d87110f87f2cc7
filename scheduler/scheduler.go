package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limits configures the Scheduler's admission caps.
type Limits struct {
	GlobalConcurrency int
	PerKindConcurrency map[string]int
	PerAgentConcurrency map[string]int
	// RatePerSecond/Burst configure a token-bucket limiter applied before
	// concurrency caps; zero RatePerSecond disables rate limiting.
	RatePerSecond float64
	Burst         int
}

// Scheduler admits ready Tasks under priority order and concurrency caps.
// Callers enqueue tasks as they become ready (dependencies satisfied) and
// call Acquire to cooperatively wait for a slot; Release frees the slot.
type Scheduler struct {
	logger *zap.Logger
	limits Limits
	limiter *rate.Limiter

	mu          sync.Mutex
	queue       priorityQueue
	nextSeq     int64
	globalInUse int
	kindInUse   map[string]int
	agentInUse  map[string]int
	notify      chan struct{}
}

// New creates a Scheduler with the given Limits. logger may be nil.
func New(limits Limits, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if limits.RatePerSecond > 0 {
		burst := limits.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(limits.RatePerSecond), burst)
	}
	return &Scheduler{
		logger:     logger.With(zap.String("component", "scheduler")),
		limits:     limits,
		limiter:    limiter,
		kindInUse:  map[string]int{},
		agentInUse: map[string]int{},
		notify:     make(chan struct{}, 1),
	}
}

// Enqueue adds t to the priority queue. Safe for concurrent use.
func (s *Scheduler) Enqueue(t *Task) {
	s.mu.Lock()
	t.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, t)
	s.mu.Unlock()
	s.wake()
}

func (s *Scheduler) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Acquire blocks until the highest-priority admissible task is ready to
// run — satisfying the token bucket (if configured) and every
// concurrency cap simultaneously, all-or-nothing — or ctx is cancelled.
// The rate-limit wait happens before a concurrency slot is reserved, so a
// task waiting on the token bucket never holds a slot another task could
// otherwise use.
func (s *Scheduler) Acquire(ctx context.Context) (*Task, error) {
	for {
		s.mu.Lock()
		t := s.peekAdmissible()
		s.mu.Unlock()
		if t == nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.notify:
			}
			continue
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		s.mu.Lock()
		if t.index < 0 || !s.admits(t) {
			// Another Acquire claimed t (or a cap tightened) while we
			// waited on the limiter; re-peek from scratch.
			s.mu.Unlock()
			continue
		}
		s.reserve(t)
		heap.Remove(&s.queue, t.index)
		s.mu.Unlock()
		return t, nil
	}
}

// peekAdmissible returns the highest-priority queued task whose caps are
// not exhausted, without removing it. Caller must hold s.mu.
func (s *Scheduler) peekAdmissible() *Task {
	best := -1
	for i, t := range s.queue {
		if s.admits(t) && (best < 0 || s.queue.Less(i, best)) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return s.queue[best]
}

func (s *Scheduler) admits(t *Task) bool {
	if s.limits.GlobalConcurrency > 0 && s.globalInUse >= s.limits.GlobalConcurrency {
		return false
	}
	if limit, ok := s.limits.PerKindConcurrency[t.Kind]; ok && limit > 0 && s.kindInUse[t.Kind] >= limit {
		return false
	}
	if t.AgentName != "" {
		if limit, ok := s.limits.PerAgentConcurrency[t.AgentName]; ok && limit > 0 && s.agentInUse[t.AgentName] >= limit {
			return false
		}
	}
	return true
}

// reserve must be called with s.mu held, before removing t from the queue.
func (s *Scheduler) reserve(t *Task) {
	s.globalInUse++
	s.kindInUse[t.Kind]++
	if t.AgentName != "" {
		s.agentInUse[t.AgentName]++
	}
}

// Release frees the concurrency slots t held, admitting the next waiter.
func (s *Scheduler) Release(t *Task) {
	s.mu.Lock()
	s.globalInUse--
	s.kindInUse[t.Kind]--
	if t.AgentName != "" {
		s.agentInUse[t.AgentName]--
	}
	s.mu.Unlock()
	s.wake()
}

// Len returns the number of tasks currently queued (not yet acquired).
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Cancel drops every queued task matching executionID, used when an
// execution is cancelled while some of its ready nodes are still
// waiting for a slot.
func (s *Scheduler) Cancel(executionID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept priorityQueue
	dropped := 0
	for _, t := range s.queue {
		if t.ExecutionID == executionID {
			t.index = -1
			dropped++
			continue
		}
		t.index = len(kept)
		kept = append(kept, t)
	}
	s.queue = kept
	heap.Init(&s.queue)
	if dropped > 0 {
		s.logger.Debug("cancelled queued tasks", zap.String("execution_id", executionID), zap.Int("dropped", dropped))
	}
	return dropped
}

// Stats reports current concurrency usage for observability.
func (s *Scheduler) Stats() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("global=%d queued=%d", s.globalInUse, len(s.queue))
}
