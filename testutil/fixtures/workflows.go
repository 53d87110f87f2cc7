// Package fixtures provides workflow and execution-record factories for
// this module's package tests, grounded on the workflow shapes exercised
// throughout parser/parser_test.go and dagengine/statemachine's own test
// suites (linear/diamond DAGs, a switch+join approval flow, a bounded
// loop, and a state-machine approval flow).
package fixtures

import "github.com/agentflow-runtime/workflowcore/domain"

// LinearDAG returns a three-node agent->agent->tool chain with no control
// nodes: fetch -> score -> notify.
func LinearDAG() *domain.Workflow {
	return &domain.Workflow{
		ID:      "wf-linear",
		Name:    "linear_dag",
		Version: "1.0",
		Kind:    domain.KindDAG,
		Nodes: []*domain.Node{
			{ID: "fetch", Kind: domain.NodeAgent, Config: map[string]any{"agent": "profile_lookup"}},
			{ID: "score", Kind: domain.NodeAgent, Dependencies: []string{"fetch"}, Config: map[string]any{"agent": "risk_scorer"}},
			{ID: "notify", Kind: domain.NodeTool, Dependencies: []string{"score"}, Config: map[string]any{"tool": "send_notification"}},
		},
	}
}

// ApprovalDAG returns a switch-routed approval flow: score branches to
// either escalate (human review) or approve (auto tool), then both join
// into notify.
func ApprovalDAG() *domain.Workflow {
	return &domain.Workflow{
		ID:      "wf-approval",
		Name:    "approval_dag",
		Version: "1.0",
		Kind:    domain.KindDAG,
		Nodes: []*domain.Node{
			{ID: "fetch", Kind: domain.NodeAgent, Config: map[string]any{"agent": "profile_lookup"}},
			{
				ID: "score", Kind: domain.NodeAgent, Dependencies: []string{"fetch"},
				Config: map[string]any{"agent": "risk_scorer"},
				RetryPolicy: &domain.RetryPolicy{
					MaxAttempts: 3,
					Backoff:     domain.BackoffExponential,
					BaseDelay:   100_000_000,
					MaxDelay:    2_000_000_000,
				},
			},
			{
				ID: "route", Kind: domain.NodeControl, Control: domain.ControlSwitch,
				Dependencies: []string{"score"},
				SwitchCases: []domain.SwitchCase{
					{Condition: "nodes.score.output.risk > 0.8", Targets: []string{"escalate"}},
				},
				SwitchDefault: []string{"approve"},
			},
			{ID: "escalate", Kind: domain.NodeAgent, Dependencies: []string{"route"}, Config: map[string]any{"agent": "human_review"}},
			{ID: "approve", Kind: domain.NodeTool, Dependencies: []string{"route"}, Config: map[string]any{"tool": "auto_approve"}},
			{
				ID: "notify", Kind: domain.NodeControl, Control: domain.ControlJoin,
				Dependencies: []string{"escalate", "approve"},
				JoinMode:     domain.JoinWaitAny,
				JoinSources:  []string{"escalate", "approve"},
			},
		},
		ErrorHandlers: []domain.ErrorHandlerRule{
			{NodePattern: ".*", Policy: domain.PolicyRetry, Retry: &domain.RetryPolicy{MaxAttempts: 2}},
		},
	}
}

// LoopDAG returns a single for_each loop node iterating over a fixed
// input path, with a one-node agent body.
func LoopDAG() *domain.Workflow {
	return &domain.Workflow{
		ID:      "wf-loop",
		Name:    "loop_dag",
		Version: "1.0",
		Kind:    domain.KindDAG,
		Nodes: []*domain.Node{
			{
				ID: "for_each_item", Kind: domain.NodeControl, Control: domain.ControlLoop,
				Loop: &domain.LoopSpec{
					Kind:         domain.LoopForEach,
					IteratorPath: "input.items",
					Body:         []string{"process_item"},
				},
			},
			{ID: "process_item", Kind: domain.NodeTool, Config: map[string]any{"tool": "transform_item"}},
		},
	}
}

// ApprovalStateMachine returns a three-state approval workflow: pending
// (initial) -> approved|rejected (final), each final state emitting an
// approval event on enter.
func ApprovalStateMachine() *domain.Workflow {
	return &domain.Workflow{
		ID:           "wf-approval-sm",
		Name:         "approval_state_machine",
		Version:      "1.0",
		Kind:         domain.KindStateMachine,
		InitialState: "pending",
		States: []*domain.StateDefinition{
			{
				Name: "pending", Type: domain.StateInitial,
				Transitions: []domain.Transition{
					{Event: "approve", Target: "approved"},
					{Event: "reject", Target: "rejected"},
				},
			},
			{
				Name: "approved", Type: domain.StateFinal,
				OnEnter: []domain.Action{{Variant: domain.ActionEmitEvent, Params: map[string]any{"event_type": "approval.approved"}}},
			},
			{
				Name: "rejected", Type: domain.StateFinal,
				OnEnter: []domain.Action{{Variant: domain.ActionEmitEvent, Params: map[string]any{"event_type": "approval.rejected"}}},
			},
		},
	}
}
