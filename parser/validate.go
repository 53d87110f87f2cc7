package parser

import (
	"fmt"
	"regexp"

	"github.com/agentflow-runtime/workflowcore/corerr"
	"github.com/agentflow-runtime/workflowcore/domain"
)

// ValidationErrors aggregates every structural problem found in one pass,
// so callers see the whole list rather than stopping at the first issue.
type ValidationErrors []error

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "no validation errors"
	}
	s := fmt.Sprintf("%d validation error(s): %s", len(v), v[0].Error())
	for _, e := range v[1:] {
		s += "; " + e.Error()
	}
	return s
}

// validate runs every structural invariant spec.md §4.1 requires and
// returns the complete list of violations (empty slice means valid).
func validate(doc *WorkflowDoc) ValidationErrors {
	var errs ValidationErrors
	sec := doc.Workflow

	if sec.Name == "" {
		errs = append(errs, &corerr.SchemaError{Detail: "workflow.name is required"})
	}
	if sec.Version == "" {
		errs = append(errs, &corerr.SchemaError{Detail: "workflow.version is required"})
	}
	switch domain.WorkflowKind(sec.Type) {
	case domain.KindDAG, domain.KindStateMachine, domain.KindHybrid:
	default:
		errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("workflow.type %q is invalid", sec.Type)})
	}

	if domain.WorkflowKind(sec.Type) != domain.KindStateMachine {
		errs = append(errs, validateDAGNodes(sec)...)
	}
	if domain.WorkflowKind(sec.Type) == domain.KindStateMachine || domain.WorkflowKind(sec.Type) == domain.KindHybrid {
		errs = append(errs, validateStates(sec)...)
	}
	errs = append(errs, validateErrorHandlers(sec)...)

	return errs
}

func validateDAGNodes(sec WorkflowSection) ValidationErrors {
	var errs ValidationErrors
	if len(sec.Nodes) == 0 {
		errs = append(errs, &corerr.SchemaError{Detail: "dag workflow requires at least one node"})
		return errs
	}

	ids := map[string]bool{}
	for _, n := range sec.Nodes {
		if n.ID == "" {
			errs = append(errs, &corerr.SchemaError{Detail: "node id is required"})
			continue
		}
		if ids[n.ID] {
			errs = append(errs, &corerr.DuplicateIdError{ID: n.ID})
			continue
		}
		ids[n.ID] = true
	}

	for _, n := range sec.Nodes {
		for _, dep := range n.Dependencies {
			if dep == n.ID {
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: self-loop via dependency", n.ID)})
			}
			if !ids[dep] {
				errs = append(errs, &corerr.UnknownReferenceError{Ref: dep})
			}
		}
		errs = append(errs, validateNodeKind(n, ids)...)
	}

	for _, e := range sec.Edges {
		if !ids[e.From] {
			errs = append(errs, &corerr.UnknownReferenceError{Ref: e.From})
		}
		if !ids[e.To] {
			errs = append(errs, &corerr.UnknownReferenceError{Ref: e.To})
		}
		if e.From == e.To {
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("edge %s->%s is a self-loop", e.From, e.To)})
		}
	}

	if cyc := detectCycle(sec); cyc != nil {
		errs = append(errs, &corerr.CycleError{CycleNodes: cyc})
	}

	return errs
}

func validateNodeKind(n NodeDoc, ids map[string]bool) ValidationErrors {
	var errs ValidationErrors
	switch domain.NodeKind(n.Type) {
	case domain.NodeAgent, domain.NodeTool:
		// config/inputs validated at runtime dispatch per spec.md §4.1
	case domain.NodeControl:
		switch domain.ControlSubkind(n.Subtype) {
		case domain.ControlSwitch:
			if len(n.Cases) == 0 && len(n.Default) == 0 {
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: switch requires cases or default", n.ID)})
			}
			for _, c := range n.Cases {
				for _, t := range c.Targets {
					if !ids[t] {
						errs = append(errs, &corerr.UnknownReferenceError{Ref: t})
					}
				}
			}
			for _, t := range n.Default {
				if !ids[t] {
					errs = append(errs, &corerr.UnknownReferenceError{Ref: t})
				}
			}
		case domain.ControlParallel:
			if len(n.Branches) < 2 {
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: parallel requires at least 2 branches", n.ID)})
			}
			for _, branch := range n.Branches {
				for _, t := range branch {
					if !ids[t] {
						errs = append(errs, &corerr.UnknownReferenceError{Ref: t})
					}
				}
			}
		case domain.ControlLoop:
			if n.Loop == nil {
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: loop requires loop config", n.ID)})
				break
			}
			switch domain.LoopKind(n.Loop.Type) {
			case domain.LoopWhile:
				if n.Loop.Condition == "" {
					errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: while loop requires condition", n.ID)})
				}
			case domain.LoopFor:
				if n.Loop.MaxIterations <= 0 {
					errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: for loop requires positive max_iterations", n.ID)})
				}
			case domain.LoopForEach:
				if n.Loop.IteratorPath == "" {
					errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: for_each loop requires iterator_path", n.ID)})
				}
			default:
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: invalid loop type %q", n.ID, n.Loop.Type)})
			}
		case domain.ControlJoin:
			if len(n.JoinSources) < 1 {
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: join requires join_sources", n.ID)})
			}
			for _, s := range n.JoinSources {
				if !ids[s] {
					errs = append(errs, &corerr.UnknownReferenceError{Ref: s})
				}
			}
		default:
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: invalid control subtype %q", n.ID, n.Subtype)})
		}
	case domain.NodeAggregation:
		if len(n.AggregationSources) == 0 {
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: aggregation requires sources", n.ID)})
		}
		for _, s := range n.AggregationSources {
			if !ids[s] {
				errs = append(errs, &corerr.UnknownReferenceError{Ref: s})
			}
		}
		switch domain.ReducerKind(n.Reducer) {
		case domain.ReducerConcat, domain.ReducerMergeObject, domain.ReducerSum, domain.ReducerLast:
		default:
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: invalid reducer %q", n.ID, n.Reducer)})
		}
	case domain.NodeSubWorkflow:
		if n.SubWorkflowRef == "" {
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: sub_workflow requires sub_workflow_ref", n.ID)})
		}
	default:
		errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: invalid type %q", n.ID, n.Type)})
	}

	if n.Retry != nil {
		if n.Retry.MaxAttempts < 0 {
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: retry.max_attempts must be non-negative", n.ID)})
		}
	}
	if n.TimeoutMS < 0 {
		errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("node %s: timeout must be non-negative", n.ID)})
	}

	return errs
}

// detectCycle runs a DFS with grey/black coloring over the dependency
// graph; returns the cycle's node ids if one exists, nil otherwise.
func detectCycle(sec WorkflowSection) []string {
	adj := map[string][]string{}
	for _, n := range sec.Nodes {
		adj[n.ID] = append(adj[n.ID], n.Dependencies...)
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		stack = append(stack, id)
		for _, dep := range adj[id] {
			switch color[dep] {
			case grey:
				// found the back edge; extract the cycle from stack
				for i, s := range stack {
					if s == dep {
						cycle = append([]string{}, stack[i:]...)
						return true
					}
				}
				cycle = []string{dep, id}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
		return false
	}

	for _, n := range sec.Nodes {
		if color[n.ID] == white {
			if visit(n.ID) {
				return cycle
			}
		}
	}
	return nil
}

func validateStates(sec WorkflowSection) ValidationErrors {
	var errs ValidationErrors
	if len(sec.States) == 0 {
		errs = append(errs, &corerr.SchemaError{Detail: "state_machine workflow requires at least one state"})
		return errs
	}

	names := map[string]bool{}
	initialCount := 0
	for _, s := range sec.States {
		if s.Name == "" {
			errs = append(errs, &corerr.SchemaError{Detail: "state name is required"})
			continue
		}
		if names[s.Name] {
			errs = append(errs, &corerr.DuplicateIdError{ID: s.Name})
			continue
		}
		names[s.Name] = true
		if domain.StateType(s.Type) == domain.StateInitial {
			initialCount++
		}
	}

	if sec.InitialState == "" {
		errs = append(errs, &corerr.SchemaError{Detail: "initial_state is required"})
	} else if !names[sec.InitialState] {
		errs = append(errs, &corerr.UnknownReferenceError{Ref: sec.InitialState})
	}
	if initialCount > 1 {
		errs = append(errs, &corerr.SchemaError{Detail: "at most one state may be declared type: initial"})
	}

	for _, s := range sec.States {
		for _, t := range s.Transitions {
			if t.Target == "" {
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("state %s: transition requires target", s.Name)})
				continue
			}
			if !names[t.Target] {
				errs = append(errs, &corerr.UnknownReferenceError{Ref: t.Target})
			}
			if t.Event == "" {
				errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("state %s: transition requires event", s.Name)})
			}
		}
	}

	return errs
}

func validateErrorHandlers(sec WorkflowSection) ValidationErrors {
	var errs ValidationErrors
	for i, h := range sec.ErrorHandlers {
		if h.NodePattern == "" {
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("error_handlers[%d]: node_pattern is required", i)})
		} else if _, err := regexp.Compile(h.NodePattern); err != nil {
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("error_handlers[%d]: invalid node_pattern regex: %v", i, err)})
		}
		switch domain.PolicyKind(h.Policy) {
		case domain.PolicyRetry, domain.PolicySkip, domain.PolicyDegrade, domain.PolicyCompensate, domain.PolicyEscalate:
		default:
			errs = append(errs, &corerr.SchemaError{Detail: fmt.Sprintf("error_handlers[%d]: invalid policy %q", i, h.Policy)})
		}
	}
	return errs
}
