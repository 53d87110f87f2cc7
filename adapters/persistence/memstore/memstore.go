// Package memstore is the default, in-process WorkflowRepo/ExecutionRepo
// backend: development, tests, and cmd/workflowcore all run against it.
// Data does not survive process restart.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/agentflow-runtime/workflowcore/adapters/persistence"
	"github.com/agentflow-runtime/workflowcore/domain"
)

// Store is an in-memory WorkflowRepo + ExecutionRepo guarded by a single
// RWMutex; the workflow corpus and execution history of a single process
// are small enough that a coarse lock never becomes a bottleneck.
type Store struct {
	mu sync.RWMutex

	workflows map[string]map[string]*domain.Workflow // name -> version -> workflow
	latest    map[string]string                       // name -> newest version seen

	executions     map[string]*domain.Execution
	nodeExecutions map[string]map[string]*domain.NodeExecution // executionID -> nodeID -> record
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		workflows:      make(map[string]map[string]*domain.Workflow),
		latest:         make(map[string]string),
		executions:     make(map[string]*domain.Execution),
		nodeExecutions: make(map[string]map[string]*domain.NodeExecution),
	}
}

var (
	_ persistence.WorkflowRepo  = (*Store)(nil)
	_ persistence.ExecutionRepo = (*Store)(nil)
)

// Save upserts a workflow definition, keyed on (Name, Version).
func (s *Store) Save(ctx context.Context, wf *domain.Workflow) error {
	if wf == nil || wf.Name == "" || wf.Version == "" {
		return persistence.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.workflows[wf.Name]
	if !ok {
		versions = make(map[string]*domain.Workflow)
		s.workflows[wf.Name] = versions
	}
	versions[wf.Version] = wf
	s.latest[wf.Name] = wf.Version
	return nil
}

// Get retrieves a workflow by exact (name, version).
func (s *Store) Get(ctx context.Context, name, version string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.workflows[name]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	wf, ok := versions[version]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return wf, nil
}

// GetLatest retrieves the most recently saved version of name.
func (s *Store) GetLatest(ctx context.Context, name string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	version, ok := s.latest[name]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return s.workflows[name][version], nil
}

// List returns every stored version of name, sorted lexically by version.
func (s *Store) List(ctx context.Context, name string) ([]*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.workflows[name]
	if !ok {
		return nil, nil
	}
	out := make([]*domain.Workflow, 0, len(versions))
	for _, wf := range versions {
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Delete removes one (name, version) entry.
func (s *Store) Delete(ctx context.Context, name, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions, ok := s.workflows[name]
	if !ok {
		return persistence.ErrNotFound
	}
	if _, ok := versions[version]; !ok {
		return persistence.ErrNotFound
	}
	delete(versions, version)
	if s.latest[name] == version {
		delete(s.latest, name)
		for v := range versions {
			if v > s.latest[name] {
				s.latest[name] = v
			}
		}
	}
	return nil
}

// SaveExecution upserts a copy of an execution record; the write is
// visible to the next GetExecution in the same process, since both go
// through the same mutex-guarded map.
func (s *Store) SaveExecution(ctx context.Context, e *domain.Execution) error {
	if e == nil || e.ExecutionID == "" {
		return persistence.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *e
	s.executions[e.ExecutionID] = &cp
	return nil
}

// GetExecution retrieves an execution record by id.
func (s *Store) GetExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.executions[executionID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

// ListExecutions returns every stored execution matching filter, newest
// first.
func (s *Store) ListExecutions(ctx context.Context, filter persistence.ExecutionFilter) ([]*domain.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Execution, 0)
	for _, e := range s.executions {
		if filter.Matches(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTS.After(out[j].StartTS) })
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// SaveNodeExecution upserts a node-execution record keyed on
// (ExecutionID, NodeID).
func (s *Store) SaveNodeExecution(ctx context.Context, ne *domain.NodeExecution) error {
	if ne == nil || ne.ExecutionID == "" || ne.NodeID == "" {
		return persistence.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byNode, ok := s.nodeExecutions[ne.ExecutionID]
	if !ok {
		byNode = make(map[string]*domain.NodeExecution)
		s.nodeExecutions[ne.ExecutionID] = byNode
	}
	cp := *ne
	byNode[ne.NodeID] = &cp
	return nil
}

// GetNodeExecution retrieves one node-execution record.
func (s *Store) GetNodeExecution(ctx context.Context, executionID, nodeID string) (*domain.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byNode, ok := s.nodeExecutions[executionID]
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

// ListNodeExecutions returns every node-execution record for executionID.
func (s *Store) ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byNode, ok := s.nodeExecutions[executionID]
	if !ok {
		return nil, nil
	}
	out := make([]*domain.NodeExecution, 0, len(byNode))
	for _, ne := range byNode {
		cp := *ne
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out, nil
}
