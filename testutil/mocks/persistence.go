// MockExecutionRepo is a failure-injecting test double for
// persistence.ExecutionRepo (it does not implement WorkflowRepo), for exercising engine behavior
// under storage outages — something memstore.Store (a correctness-focused
// reference adapter) deliberately never does.
package mocks

import (
	"context"
	"sync"

	"github.com/agentflow-runtime/workflowcore/adapters/persistence"
	"github.com/agentflow-runtime/workflowcore/domain"
)

// MockExecutionRepo wraps an in-memory map-backed store; errors can be
// injected for SaveExecution and GetExecution only.
type MockExecutionRepo struct {
	mu sync.Mutex

	executions     map[string]*domain.Execution
	nodeExecutions map[string]map[string]*domain.NodeExecution

	saveExecutionErr error
	getExecutionErr  error
	saveNodeErr      error
	getNodeErr       error
}

// NewExecutionRepo creates an empty MockExecutionRepo.
func NewExecutionRepo() *MockExecutionRepo {
	return &MockExecutionRepo{
		executions:     make(map[string]*domain.Execution),
		nodeExecutions: make(map[string]map[string]*domain.NodeExecution),
	}
}

// WithSaveExecutionError makes every subsequent SaveExecution call fail.
func (m *MockExecutionRepo) WithSaveExecutionError(err error) *MockExecutionRepo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveExecutionErr = err
	return m
}

// WithGetExecutionError makes every subsequent GetExecution call fail.
func (m *MockExecutionRepo) WithGetExecutionError(err error) *MockExecutionRepo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getExecutionErr = err
	return m
}

func (m *MockExecutionRepo) SaveExecution(ctx context.Context, e *domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveExecutionErr != nil {
		return m.saveExecutionErr
	}
	cp := *e
	m.executions[e.ExecutionID] = &cp
	return nil
}

func (m *MockExecutionRepo) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getExecutionErr != nil {
		return nil, m.getExecutionErr
	}
	e, ok := m.executions[executionID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockExecutionRepo) ListExecutions(ctx context.Context, filter persistence.ExecutionFilter) ([]*domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Execution
	for _, e := range m.executions {
		if filter.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockExecutionRepo) SaveNodeExecution(ctx context.Context, ne *domain.NodeExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveNodeErr != nil {
		return m.saveNodeErr
	}
	if m.nodeExecutions[ne.ExecutionID] == nil {
		m.nodeExecutions[ne.ExecutionID] = make(map[string]*domain.NodeExecution)
	}
	cp := *ne
	m.nodeExecutions[ne.ExecutionID][ne.NodeID] = &cp
	return nil
}

func (m *MockExecutionRepo) GetNodeExecution(ctx context.Context, executionID, nodeID string) (*domain.NodeExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getNodeErr != nil {
		return nil, m.getNodeErr
	}
	byNode, ok := m.nodeExecutions[executionID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	ne, ok := byNode[nodeID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *ne
	return &cp, nil
}

func (m *MockExecutionRepo) ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byNode := m.nodeExecutions[executionID]
	out := make([]*domain.NodeExecution, 0, len(byNode))
	for _, ne := range byNode {
		cp := *ne
		out = append(out, &cp)
	}
	return out, nil
}

var _ persistence.ExecutionRepo = (*MockExecutionRepo)(nil)
