// MockAgentInvoker is a test double for dagengine.AgentInvoker /
// statemachine.AgentInvoker's identical InvokeAgent contract: fixed
// per-agent responses, error injection, and call recording, grounded on
// the teacher's MockProvider builder/call-recording idiom.
package mocks

import (
	"context"
	"fmt"
	"sync"
)

// AgentCall records one InvokeAgent call.
type AgentCall struct {
	AgentID string
	Input   map[string]any
	Options map[string]any
	Result  any
	Error   error
}

// MockAgentInvoker implements AgentInvoker against a fixed table of
// per-agent-ID responses/errors.
type MockAgentInvoker struct {
	mu sync.Mutex

	responses map[string]any
	errors    map[string]error
	fn        func(ctx context.Context, agentID string, input, options map[string]any) (any, error)

	defaultResult any
	defaultError  error
	failAfter     int // fail every call once callCount exceeds failAfter (0 = disabled)
	callCount     int

	calls []AgentCall
}

// NewAgentInvoker creates an empty MockAgentInvoker; unbound agent IDs
// return defaultResult (nil) unless configured otherwise.
func NewAgentInvoker() *MockAgentInvoker {
	return &MockAgentInvoker{
		responses: make(map[string]any),
		errors:    make(map[string]error),
	}
}

// WithResponse fixes agentID's result.
func (m *MockAgentInvoker) WithResponse(agentID string, result any) *MockAgentInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[agentID] = result
	return m
}

// WithError fixes agentID's error.
func (m *MockAgentInvoker) WithError(agentID string, err error) *MockAgentInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[agentID] = err
	return m
}

// WithDefaultResult sets the result returned for any agent ID without a
// specific WithResponse binding.
func (m *MockAgentInvoker) WithDefaultResult(result any) *MockAgentInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResult = result
	return m
}

// WithDefaultError sets the error returned for any agent ID without a
// specific WithResponse/WithError binding.
func (m *MockAgentInvoker) WithDefaultError(err error) *MockAgentInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultError = err
	return m
}

// WithFunc replaces the dispatch entirely with fn, for scenarios too
// dynamic for a fixed response table (e.g. responses keyed off input).
func (m *MockAgentInvoker) WithFunc(fn func(ctx context.Context, agentID string, input, options map[string]any) (any, error)) *MockAgentInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// WithFailAfter makes every call starting from the (n+1)th fail with err,
// for testing circuit-breaker/retry behavior under a degrading collaborator.
func (m *MockAgentInvoker) WithFailAfter(n int, err error) *MockAgentInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.defaultError = err
	return m
}

// InvokeAgent implements dagengine.AgentInvoker / statemachine.AgentInvoker.
func (m *MockAgentInvoker) InvokeAgent(ctx context.Context, agentID string, input, options map[string]any) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	var result any
	var err error

	switch {
	case m.fn != nil:
		result, err = m.fn(ctx, agentID, input, options)
	case m.failAfter > 0 && m.callCount > m.failAfter:
		err = m.defaultError
	default:
		if e, ok := m.errors[agentID]; ok {
			err = e
		} else if r, ok := m.responses[agentID]; ok {
			result = r
		} else if m.defaultError != nil && m.failAfter == 0 {
			err = m.defaultError
		} else {
			result = m.defaultResult
		}
	}

	m.calls = append(m.calls, AgentCall{AgentID: agentID, Input: input, Options: options, Result: result, Error: err})
	if err != nil {
		return nil, fmt.Errorf("mock agent %q: %w", agentID, err)
	}
	return result, nil
}

// Calls returns every recorded call, in order.
func (m *MockAgentInvoker) Calls() []AgentCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AgentCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of InvokeAgent calls so far.
func (m *MockAgentInvoker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
