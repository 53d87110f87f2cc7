package statemachine

import (
	"context"
	"testing"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/agentflow-runtime/workflowcore/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trafficLightWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID: "wf-light", Name: "light", Version: "1", Kind: domain.KindStateMachine,
		States: []*domain.StateDefinition{
			{
				Name: "red", Type: domain.StateInitial,
				Transitions: []domain.Transition{{Event: "go", Target: "green"}},
			},
			{
				Name: "green",
				Transitions: []domain.Transition{{Event: "caution", Target: "yellow"}},
			},
			{
				Name: "yellow", Type: domain.StateFinal,
				Transitions: []domain.Transition{{Event: "stop", Target: "red"}},
			},
		},
	}
}

func TestMachine_FirstMatchTransitionAdvancesState(t *testing.T) {
	m := NewMachine(NewRegistry(nil, nil, nil, nil), events.NewEmitter(nil), nil)
	wf := trafficLightWorkflow()
	inst, err := m.NewInstance(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.Equal(t, "red", inst.CurrentState)

	require.NoError(t, m.Process(context.Background(), wf, inst, "go", nil))
	assert.Equal(t, "green", inst.CurrentState)
	assert.False(t, inst.IsFinal)

	require.NoError(t, m.Process(context.Background(), wf, inst, "caution", nil))
	assert.Equal(t, "yellow", inst.CurrentState)
	assert.True(t, inst.IsFinal)

	require.Len(t, inst.History, 2)
	assert.Equal(t, "red", inst.History[0].From)
	assert.Equal(t, "green", inst.History[0].To)
}

func TestMachine_UnmatchedEventIsNoop(t *testing.T) {
	m := NewMachine(NewRegistry(nil, nil, nil, nil), events.NewEmitter(nil), nil)
	wf := trafficLightWorkflow()
	inst, err := m.NewInstance(context.Background(), wf, nil)
	require.NoError(t, err)

	require.NoError(t, m.Process(context.Background(), wf, inst, "caution", nil))
	assert.Equal(t, "red", inst.CurrentState)
}

func TestMachine_TransitionAfterFinalStateErrors(t *testing.T) {
	m := NewMachine(NewRegistry(nil, nil, nil, nil), events.NewEmitter(nil), nil)
	wf := trafficLightWorkflow()
	inst, err := m.NewInstance(context.Background(), wf, nil)
	require.NoError(t, err)
	require.NoError(t, m.Process(context.Background(), wf, inst, "go", nil))
	require.NoError(t, m.Process(context.Background(), wf, inst, "caution", nil))

	err = m.Process(context.Background(), wf, inst, "stop", nil)
	assert.Error(t, err)
}

func guardedWorkflow() *domain.Workflow {
	return &domain.Workflow{
		ID: "wf-guard", Name: "guard", Version: "1", Kind: domain.KindStateMachine,
		States: []*domain.StateDefinition{
			{
				Name: "review", Type: domain.StateInitial,
				Transitions: []domain.Transition{
					{Event: "decide", Guard: "session.event.approved == true", Target: "approved"},
					{Event: "decide", Target: "rejected"},
				},
			},
			{Name: "approved", Type: domain.StateFinal},
			{Name: "rejected", Type: domain.StateFinal},
		},
	}
}

func TestMachine_GuardSelectsBranch(t *testing.T) {
	m := NewMachine(NewRegistry(nil, nil, nil, nil), events.NewEmitter(nil), nil)
	wf := guardedWorkflow()

	approvedInst, err := m.NewInstance(context.Background(), wf, nil)
	require.NoError(t, err)
	require.NoError(t, m.Process(context.Background(), wf, approvedInst, "decide", map[string]any{"approved": true}))
	assert.Equal(t, "approved", approvedInst.CurrentState)

	rejectedInst, err := m.NewInstance(context.Background(), wf, nil)
	require.NoError(t, err)
	require.NoError(t, m.Process(context.Background(), wf, rejectedInst, "decide", map[string]any{"approved": false}))
	assert.Equal(t, "rejected", rejectedInst.CurrentState)
}

func TestMachine_ActionsRunOnTransition(t *testing.T) {
	reg := NewRegistry(nil, nil, events.NewEmitter(nil), nil)
	m := NewMachine(reg, events.NewEmitter(nil), nil)
	wf := &domain.Workflow{
		ID: "wf-actions", Name: "actions", Version: "1", Kind: domain.KindStateMachine,
		States: []*domain.StateDefinition{
			{
				Name: "start", Type: domain.StateInitial,
				OnExit: []domain.Action{{Variant: domain.ActionSetContext, Params: map[string]any{"key": "left_start", "value": true}}},
				Transitions: []domain.Transition{{
					Event:  "go",
					Target: "done",
					Actions: []domain.Action{{Variant: domain.ActionSetContext, Params: map[string]any{"key": "transitioned", "value": true}}},
				}},
			},
			{
				Name: "done", Type: domain.StateFinal,
				OnEnter: []domain.Action{{Variant: domain.ActionSetContext, Params: map[string]any{"key": "entered_done", "value": true}}},
			},
		},
	}
	inst, err := m.NewInstance(context.Background(), wf, nil)
	require.NoError(t, err)
	require.NoError(t, m.Process(context.Background(), wf, inst, "go", nil))

	snap := inst.Context.Snapshot()
	session := snap["session"].(map[string]any)
	assert.Equal(t, true, session["left_start"])
	assert.Equal(t, true, session["transitioned"])
	assert.Equal(t, true, session["entered_done"])
}

func TestMachine_TimerFiresTransition(t *testing.T) {
	m := NewMachine(NewRegistry(nil, nil, nil, nil), events.NewEmitter(nil), nil)
	wf := &domain.Workflow{
		ID: "wf-timer", Name: "timer", Version: "1", Kind: domain.KindStateMachine,
		States: []*domain.StateDefinition{
			{
				Name: "waiting", Type: domain.StateInitial,
				OnEnter: []domain.Action{{
					Variant: domain.ActionTimerStart,
					Params:  map[string]any{"timer_id": "t1", "event": "timeout", "after_ms": 10},
				}},
				Transitions: []domain.Transition{{Event: "timeout", Target: "timed_out"}},
			},
			{Name: "timed_out", Type: domain.StateFinal},
		},
	}
	inst, err := m.NewInstance(context.Background(), wf, nil)
	require.NoError(t, err)
	assert.Equal(t, "waiting", inst.CurrentState)

	assert.Eventually(t, func() bool {
		return inst.CurrentState == "timed_out"
	}, time.Second, 5*time.Millisecond)
}

func TestRegistry_ExecuteTimerVariantErrors(t *testing.T) {
	reg := NewRegistry(nil, nil, nil, nil)
	err := reg.Execute(context.Background(), "inst-1", domain.Action{Variant: domain.ActionTimerStart}, domain.NewContextTree(nil, nil, nil, nil))
	assert.Error(t, err)
}
