package parser

import (
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// build converts a structurally-validated WorkflowDoc into a *domain.Workflow.
// Callers must run validate(doc) first and check the result is empty.
func build(doc *WorkflowDoc) *domain.Workflow {
	sec := doc.Workflow

	wf := &domain.Workflow{
		ID:                sec.ID,
		Name:              sec.Name,
		Version:           sec.Version,
		Kind:              domain.WorkflowKind(sec.Type),
		InitialState:      sec.InitialState,
		CompensationPlans: map[string]domain.CompensationPlan{},
		Metadata:          sec.Metadata,
	}

	for _, n := range sec.Nodes {
		wf.Nodes = append(wf.Nodes, buildNode(n))
	}
	for _, e := range sec.Edges {
		wf.Edges = append(wf.Edges, &domain.Edge{
			From:        e.From,
			To:          e.To,
			Kind:        domain.EdgeKind(defaultStr(e.Kind, string(domain.EdgeData))),
			Condition:   e.Condition,
			DataMapping: e.DataMapping,
		})
	}
	for _, s := range sec.States {
		wf.States = append(wf.States, buildState(s))
	}
	for _, h := range sec.ErrorHandlers {
		wf.ErrorHandlers = append(wf.ErrorHandlers, buildErrorHandler(h))
	}
	for _, c := range sec.Compensation {
		wf.CompensationPlans[c.NodeID] = domain.CompensationPlan{
			NodeID:                c.NodeID,
			CompensatingActionRef: c.CompensatingActionRef,
			Strategy:              defaultStr(c.Strategy, "sequential_reverse"),
			ContinueOnError:       c.ContinueOnError,
		}
	}

	return wf
}

func buildNode(n NodeDoc) *domain.Node {
	node := &domain.Node{
		ID:              n.ID,
		Kind:            domain.NodeKind(n.Type),
		Control:         domain.ControlSubkind(n.Subtype),
		Config:          n.Config,
		InputBindings:   n.Inputs,
		Dependencies:    n.Dependencies,
		TimeoutMS:       n.TimeoutMS,
		CompensationRef: n.CompensationRef,
		Priority:        n.Priority,
		JoinMode:        domain.JoinMode(defaultStr(n.JoinMode, string(domain.JoinWaitAll))),
		JoinSources:     n.JoinSources,
		SubWorkflowRef:  n.SubWorkflowRef,
	}
	if n.Retry != nil {
		node.RetryPolicy = buildRetryPolicy(n.Retry)
	}
	for _, c := range n.Cases {
		node.SwitchCases = append(node.SwitchCases, domain.SwitchCase{Condition: c.Condition, Targets: c.Targets})
	}
	node.SwitchDefault = n.Default
	node.ParallelBranches = n.Branches
	if n.Loop != nil {
		node.Loop = &domain.LoopSpec{
			Kind:          domain.LoopKind(n.Loop.Type),
			Condition:     n.Loop.Condition,
			MaxIterations: n.Loop.MaxIterations,
			IteratorPath:  n.Loop.IteratorPath,
			Body:          n.Loop.Body,
		}
	}
	if len(n.AggregationSources) > 0 || n.Reducer != "" {
		node.Aggregation = &domain.AggregationSpec{
			Sources: n.AggregationSources,
			Reducer: domain.ReducerKind(n.Reducer),
		}
	}
	return node
}

func buildRetryPolicy(r *RetryDoc) *domain.RetryPolicy {
	return &domain.RetryPolicy{
		MaxAttempts:     r.MaxAttempts,
		Backoff:         domain.BackoffKind(defaultStr(r.Backoff, string(domain.BackoffExponential))),
		BaseDelay:       time.Duration(r.BaseDelayMS) * time.Millisecond,
		MaxDelay:        time.Duration(r.MaxDelayMS) * time.Millisecond,
		Jitter:          r.Jitter,
		RetryableErrors: r.RetryableErrors,
	}
}

func buildState(s StateDoc) *domain.StateDefinition {
	st := &domain.StateDefinition{
		Name: s.Name,
		Type: domain.StateType(defaultStr(s.Type, string(domain.StateNormal))),
	}
	for _, a := range s.OnEnter {
		st.OnEnter = append(st.OnEnter, buildAction(a))
	}
	for _, a := range s.OnExit {
		st.OnExit = append(st.OnExit, buildAction(a))
	}
	for _, t := range s.Transitions {
		tr := domain.Transition{Event: t.Event, Guard: t.Condition, Target: t.Target}
		for _, a := range t.Actions {
			tr.Actions = append(tr.Actions, buildAction(a))
		}
		st.Transitions = append(st.Transitions, tr)
	}
	return st
}

func buildAction(a ActionDoc) domain.Action {
	return domain.Action{Variant: domain.ActionVariant(a.Variant), Params: a.Params}
}

func buildErrorHandler(h ErrorHandlerDoc) domain.ErrorHandlerRule {
	rule := domain.ErrorHandlerRule{
		NodePattern:           h.NodePattern,
		ErrorKinds:            h.ErrorKinds,
		Policy:                domain.PolicyKind(h.Policy),
		FallbackNode:          h.FallbackNode,
		DefaultOutput:         h.DefaultOutput,
		CompensationStrategy:  h.CompensationStrategy,
	}
	if h.Retry != nil {
		rule.Retry = buildRetryPolicy(h.Retry)
	}
	return rule
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
