// Package persistence defines the storage interfaces the execution core
// depends on for workflow definitions and execution records. Persistence
// is an external collaborator (see domain/workflow.go, domain/execution.go):
// this package only names the contract; adapters/persistence/{memstore,
// gormstore,mongostore,redisstore} provide concrete backends.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// Common store errors, returned by every backend so callers can branch on
// them with errors.Is regardless of which adapter is wired in.
var (
	ErrNotFound      = errors.New("persistence: not found")
	ErrAlreadyExists = errors.New("persistence: already exists")
	ErrStoreClosed   = errors.New("persistence: store is closed")
)

// WorkflowRepo stores immutable, versioned workflow definitions. (Name,
// Version) is unique; Save is an upsert keyed on that pair.
type WorkflowRepo interface {
	Save(ctx context.Context, wf *domain.Workflow) error
	Get(ctx context.Context, name, version string) (*domain.Workflow, error)
	GetLatest(ctx context.Context, name string) (*domain.Workflow, error)
	List(ctx context.Context, name string) ([]*domain.Workflow, error)
	Delete(ctx context.Context, name, version string) error
}

// ExecutionRepo stores mutable execution and node-execution records.
// SaveExecution/SaveNodeExecution are upserts keyed on ExecutionID and
// (ExecutionID, NodeID) respectively.
type ExecutionRepo interface {
	SaveExecution(ctx context.Context, e *domain.Execution) error
	GetExecution(ctx context.Context, executionID string) (*domain.Execution, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) ([]*domain.Execution, error)

	SaveNodeExecution(ctx context.Context, ne *domain.NodeExecution) error
	GetNodeExecution(ctx context.Context, executionID, nodeID string) (*domain.NodeExecution, error)
	ListNodeExecutions(ctx context.Context, executionID string) ([]*domain.NodeExecution, error)
}

// ExecutionFilter narrows ListExecutions. A zero-value filter matches
// every execution.
type ExecutionFilter struct {
	WorkflowID    string
	Status        domain.ExecutionStatus
	CreatedAfter  time.Time
	CreatedBefore time.Time
	Limit         int
}

// Matches reports whether e satisfies f. Shared by every in-memory/
// reference adapter so filtering semantics stay identical across backends.
func (f ExecutionFilter) Matches(e *domain.Execution) bool {
	if f.WorkflowID != "" && e.WorkflowID != f.WorkflowID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.CreatedAfter.IsZero() && e.StartTS.Before(f.CreatedAfter) {
		return false
	}
	if !f.CreatedBefore.IsZero() && e.StartTS.After(f.CreatedBefore) {
		return false
	}
	return true
}
