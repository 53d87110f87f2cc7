package fixtures

import (
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// NewExecution returns a running Execution for workflowID, seeded with a
// fresh ContextTree over input.
func NewExecution(executionID, workflowID string, input map[string]any) *domain.Execution {
	return &domain.Execution{
		ExecutionID:     executionID,
		WorkflowID:      workflowID,
		WorkflowVersion: "1.0",
		Status:          domain.ExecRunning,
		Context:         domain.NewContextTree(input, nil, nil, nil),
		Input:           input,
		StartTS:         time.Now(),
		TriggerType:     "manual",
	}
}

// CompletedExecution returns an Execution already in its terminal
// completed state, with output set and EndTS after StartTS.
func CompletedExecution(executionID, workflowID string, output any) *domain.Execution {
	e := NewExecution(executionID, workflowID, map[string]any{})
	e.Status = domain.ExecCompleted
	e.Output = output
	e.EndTS = e.StartTS.Add(time.Second)
	return e
}

// FailedExecution returns an Execution already in its terminal failed
// state, carrying err.
func FailedExecution(executionID, workflowID string, err error) *domain.Execution {
	e := NewExecution(executionID, workflowID, map[string]any{})
	e.Status = domain.ExecFailed
	e.Err = err
	e.EndTS = e.StartTS.Add(time.Second)
	return e
}

// NewNodeExecution returns a successful NodeExecution for nodeID within
// executionID, with output set.
func NewNodeExecution(executionID, nodeID string, output any) *domain.NodeExecution {
	return &domain.NodeExecution{
		ID:          executionID + ":" + nodeID,
		ExecutionID: executionID,
		NodeID:      nodeID,
		Status:      domain.NodeSuccess,
		Output:      output,
		StartTS:     time.Now(),
		EndTS:       time.Now().Add(time.Millisecond * 50),
	}
}
