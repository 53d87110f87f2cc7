// MockToolInvoker is a test double for dagengine.ToolInvoker /
// statemachine.ToolInvoker's InvokeTool contract, grounded on the
// teacher's MockToolManager registration/call-recording idiom.
package mocks

import (
	"context"
	"fmt"
	"sync"
)

// ToolCall records one InvokeTool call.
type ToolCall struct {
	ToolID string
	Params map[string]any
	Result any
	Error  error
}

// ToolFunc is a registrable tool implementation.
type ToolFunc func(ctx context.Context, params map[string]any) (any, error)

// MockToolInvoker implements ToolInvoker against a registry of fixed
// results/errors/funcs, keyed by tool ID.
type MockToolInvoker struct {
	mu sync.Mutex

	results map[string]any
	errors  map[string]error
	funcs   map[string]ToolFunc

	calls []ToolCall
}

// NewToolInvoker creates an empty MockToolInvoker.
func NewToolInvoker() *MockToolInvoker {
	return &MockToolInvoker{
		results: make(map[string]any),
		errors:  make(map[string]error),
		funcs:   make(map[string]ToolFunc),
	}
}

// WithResult fixes toolID's result.
func (m *MockToolInvoker) WithResult(toolID string, result any) *MockToolInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[toolID] = result
	return m
}

// WithError fixes toolID's error.
func (m *MockToolInvoker) WithError(toolID string, err error) *MockToolInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[toolID] = err
	return m
}

// WithFunc registers a dynamic tool implementation, overriding any
// WithResult/WithError binding for the same toolID.
func (m *MockToolInvoker) WithFunc(toolID string, fn ToolFunc) *MockToolInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funcs[toolID] = fn
	return m
}

// InvokeTool implements dagengine.ToolInvoker / statemachine.ToolInvoker.
func (m *MockToolInvoker) InvokeTool(ctx context.Context, toolID string, params map[string]any) (any, error) {
	m.mu.Lock()
	fn, hasFunc := m.funcs[toolID]
	m.mu.Unlock()

	var result any
	var err error
	switch {
	case hasFunc:
		result, err = fn(ctx, params)
	default:
		m.mu.Lock()
		if e, ok := m.errors[toolID]; ok {
			err = e
		} else if r, ok := m.results[toolID]; ok {
			result = r
		} else {
			err = fmt.Errorf("mock tool %q: no binding registered", toolID)
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.calls = append(m.calls, ToolCall{ToolID: toolID, Params: params, Result: result, Error: err})
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return result, nil
}

// Calls returns every recorded call, in order.
func (m *MockToolInvoker) Calls() []ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ToolCall, len(m.calls))
	copy(out, m.calls)
	return out
}
