package errorhandler

import (
	"fmt"
	"sync"
	"time"

	"github.com/agentflow-runtime/workflowcore/corerr"
	"go.uber.org/zap"
)

// CircuitState is one of closed/open/half_open (spec.md §4.7).
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures one node's breaker.
type CircuitBreakerConfig struct {
	FailureThreshold           int
	RecoveryTimeout            time.Duration
	HalfOpenMaxProbes          int
	SuccessThresholdInHalfOpen int
}

// DefaultCircuitBreakerConfig returns sane defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:           5,
		RecoveryTimeout:            30 * time.Second,
		HalfOpenMaxProbes:          3,
		SuccessThresholdInHalfOpen: 2,
	}
}

// StateChange is emitted whenever a breaker transitions.
type StateChange struct {
	NodeID    string
	OldState  CircuitState
	NewState  CircuitState
	Reason    string
	Failures  int
	// ErrorKind is the corerr.Kind of the failure that triggered this
	// transition (empty for a manual Reset or a success-driven close).
	ErrorKind string
	Timestamp time.Time
}

// StateChangeHandler observes breaker transitions.
type StateChangeHandler interface {
	OnStateChange(StateChange)
}

// CircuitBreaker guards one node's error-handler Retry policy: once a
// node has failed FailureThreshold times in a row, further attempts are
// rejected until RecoveryTimeout elapses, at which point a bounded number
// of probe attempts are allowed through (half-open) before the breaker
// either closes again or re-opens.
type CircuitBreaker struct {
	nodeID          string
	config          CircuitBreakerConfig
	handler         StateChangeHandler
	logger          *zap.Logger
	mu              sync.Mutex
	state           CircuitState
	failures        int
	successes       int
	lastFailureTime time.Time
	lastErrorKind   corerr.Kind
	probeCount      int
}

// NewCircuitBreaker creates a breaker for nodeID. handler and logger may
// be nil.
func NewCircuitBreaker(nodeID string, config CircuitBreakerConfig, handler StateChangeHandler, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		nodeID:  nodeID,
		config:  config,
		handler: handler,
		logger:  logger.With(zap.String("node_id", nodeID)),
		state:   CircuitClosed,
	}
}

// Allow reports whether a request may proceed, transitioning
// open -> half_open if the recovery timeout has elapsed.
func (cb *CircuitBreaker) Allow() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true, nil
	case CircuitOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.transitionTo(CircuitHalfOpen, "recovery timeout elapsed")
			cb.probeCount = 0
			cb.successes = 0
			return true, nil
		}
		return false, fmt.Errorf("circuit open for node %s (last error kind %q): retry after %v", cb.nodeID,
			cb.lastErrorKind, cb.config.RecoveryTimeout-time.Since(cb.lastFailureTime))
	case CircuitHalfOpen:
		if cb.probeCount < cb.config.HalfOpenMaxProbes {
			cb.probeCount++
			return true, nil
		}
		return false, fmt.Errorf("circuit half-open for node %s: max probes reached", cb.nodeID)
	default:
		return false, fmt.Errorf("unknown circuit state for node %s", cb.nodeID)
	}
}

// RecordSuccess reports a successful attempt.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0
	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThresholdInHalfOpen {
			cb.transitionTo(CircuitClosed, fmt.Sprintf("%d consecutive successes in half-open", cb.successes))
			cb.failures, cb.successes = 0, 0
		}
	}
}

// RecordFailure reports a failed attempt. err, if non-nil, is recorded as
// the breaker's lastErrorKind so a later Allow rejection or StateChange
// names what kind of failure tripped it (corerr.KindCircuitOpen's own
// dispatch-time error embeds the same kind back into the node's error).
func (cb *CircuitBreaker) RecordFailure(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()
	if err != nil {
		cb.lastErrorKind = corerr.KindOf(err)
	}

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}
	case CircuitHalfOpen:
		cb.successes = 0
		cb.transitionTo(CircuitOpen, "failure while half-open")
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.failures, cb.successes, cb.probeCount = 0, 0, 0
	cb.lastErrorKind = ""
	if old != CircuitClosed {
		cb.emit(old, CircuitClosed, "manual reset")
	}
}

func (cb *CircuitBreaker) transitionTo(to CircuitState, reason string) {
	old := cb.state
	cb.state = to
	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", old.String()),
		zap.String("new_state", to.String()),
		zap.String("reason", reason),
		zap.Int("failures", cb.failures))
	cb.emit(old, to, reason)
}

func (cb *CircuitBreaker) emit(old, to CircuitState, reason string) {
	if cb.handler == nil {
		return
	}
	change := StateChange{
		NodeID: cb.nodeID, OldState: old, NewState: to,
		Reason: reason, Failures: cb.failures, ErrorKind: string(cb.lastErrorKind),
		Timestamp: time.Now(),
	}
	go cb.handler.OnStateChange(change)
}

// Registry manages one CircuitBreaker per node id.
type Registry struct {
	mu       sync.RWMutex
	config   CircuitBreakerConfig
	handler  StateChangeHandler
	logger   *zap.Logger
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty Registry.
func NewRegistry(config CircuitBreakerConfig, handler StateChangeHandler, logger *zap.Logger) *Registry {
	return &Registry{
		config:   config,
		handler:  handler,
		logger:   logger,
		breakers: map[string]*CircuitBreaker{},
	}
}

// GetOrCreate returns nodeID's breaker, creating it on first use.
func (r *Registry) GetOrCreate(nodeID string) *CircuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[nodeID]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[nodeID]; ok {
		return cb
	}
	cb := NewCircuitBreaker(nodeID, r.config, r.handler, r.logger)
	r.breakers[nodeID] = cb
	return cb
}

// States returns a snapshot of every known node's breaker state.
func (r *Registry) States() map[string]CircuitState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]CircuitState, len(r.breakers))
	for id, cb := range r.breakers {
		out[id] = cb.State()
	}
	return out
}
