package mocks

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow-runtime/workflowcore/adapters/persistence"
	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAgentInvoker_WithResponse_ReturnsFixedResult(t *testing.T) {
	inv := NewAgentInvoker().WithResponse("reviewer", map[string]any{"approved": true})

	out, err := inv.InvokeAgent(context.Background(), "reviewer", map[string]any{"prompt": "hi"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"approved": true}, out)
	assert.Equal(t, 1, inv.CallCount())
	require.Len(t, inv.Calls(), 1)
	assert.Equal(t, "reviewer", inv.Calls()[0].AgentID)
}

func TestMockAgentInvoker_WithError_ReturnsWrappedError(t *testing.T) {
	inv := NewAgentInvoker().WithError("flaky", errors.New("boom"))
	_, err := inv.InvokeAgent(context.Background(), "flaky", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMockAgentInvoker_WithFailAfter_FailsOnceThresholdExceeded(t *testing.T) {
	inv := NewAgentInvoker().WithFailAfter(2, errors.New("degraded"))

	_, err := inv.InvokeAgent(context.Background(), "a", nil, nil)
	require.NoError(t, err)
	_, err = inv.InvokeAgent(context.Background(), "a", nil, nil)
	require.NoError(t, err)
	_, err = inv.InvokeAgent(context.Background(), "a", nil, nil)
	require.Error(t, err)
}

func TestMockToolInvoker_WithFunc_TakesPrecedenceOverResult(t *testing.T) {
	inv := NewToolInvoker().WithResult("calc", 1).WithFunc("calc", func(ctx context.Context, params map[string]any) (any, error) {
		return params["x"], nil
	})

	out, err := inv.InvokeTool(context.Background(), "calc", map[string]any{"x": 42})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestMockToolInvoker_UnboundTool_Errors(t *testing.T) {
	inv := NewToolInvoker()
	_, err := inv.InvokeTool(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestMockExecutionRepo_SaveAndGetExecution_ReadAfterWrite(t *testing.T) {
	repo := NewExecutionRepo()
	exec := &domain.Execution{ExecutionID: "e1", Status: domain.ExecRunning}
	require.NoError(t, repo.SaveExecution(context.Background(), exec))

	got, err := repo.GetExecution(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecRunning, got.Status)
}

func TestMockExecutionRepo_GetExecution_Missing_ReturnsErrNotFound(t *testing.T) {
	repo := NewExecutionRepo()
	_, err := repo.GetExecution(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrNotFound)
}

func TestMockExecutionRepo_WithSaveExecutionError_PropagatesInjectedFailure(t *testing.T) {
	repo := NewExecutionRepo().WithSaveExecutionError(errors.New("disk full"))
	err := repo.SaveExecution(context.Background(), &domain.Execution{ExecutionID: "e1"})
	assert.Error(t, err)
}
