package fixtures

import (
	"testing"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearDAG_HasExpectedDependencyChain(t *testing.T) {
	wf := LinearDAG()
	require.Len(t, wf.Nodes, 3)
	score := wf.NodeByID("score")
	require.NotNil(t, score)
	assert.Equal(t, []string{"fetch"}, score.Dependencies)
}

func TestApprovalDAG_SwitchNodeRoutesToEscalateOrApprove(t *testing.T) {
	wf := ApprovalDAG()
	route := wf.NodeByID("route")
	require.NotNil(t, route)
	assert.Equal(t, domain.ControlSwitch, route.Control)
	require.Len(t, route.SwitchCases, 1)
	assert.Equal(t, []string{"escalate"}, route.SwitchCases[0].Targets)
	assert.Equal(t, []string{"approve"}, route.SwitchDefault)
}

func TestLoopDAG_BodyReferencesProcessNode(t *testing.T) {
	wf := LoopDAG()
	loopNode := wf.NodeByID("for_each_item")
	require.NotNil(t, loopNode)
	require.NotNil(t, loopNode.Loop)
	assert.Equal(t, []string{"process_item"}, loopNode.Loop.Body)
}

func TestApprovalStateMachine_InitialStateHasBothTransitions(t *testing.T) {
	wf := ApprovalStateMachine()
	assert.Equal(t, "pending", wf.InitialState)
	require.Len(t, wf.States, 3)
	assert.Equal(t, domain.StateInitial, wf.States[0].Type)
	assert.Len(t, wf.States[0].Transitions, 2)
}

func TestNewExecution_SeedsRunningStatusAndContext(t *testing.T) {
	e := NewExecution("e1", "wf-linear", map[string]any{"x": 1})
	assert.Equal(t, domain.ExecRunning, e.Status)
	assert.NotNil(t, e.Context)
}

func TestCompletedExecution_EndTSAfterStartTS(t *testing.T) {
	e := CompletedExecution("e1", "wf-linear", map[string]any{"ok": true})
	assert.Equal(t, domain.ExecCompleted, e.Status)
	assert.True(t, e.EndTS.After(e.StartTS))
}

func TestNewNodeExecution_DefaultsToSuccess(t *testing.T) {
	ne := NewNodeExecution("e1", "fetch", map[string]any{"name": "ok"})
	assert.Equal(t, domain.NodeSuccess, ne.Status)
	assert.Equal(t, "e1", ne.ExecutionID)
}
