// Package optimizer precomputes an ExecutionPlan for a domain.Workflow:
// topological layering, predecessor/successor sets, and parallel-eligible
// node groups. The plan is a scheduling hint, never required for
// correctness — dagengine re-derives readiness from dependency state on
// every step.
package optimizer

import (
	"fmt"

	"github.com/agentflow-runtime/workflowcore/corerr"
	"github.com/agentflow-runtime/workflowcore/domain"
)

// ExecutionPlan is the precomputed scheduling shape of one workflow version.
type ExecutionPlan struct {
	WorkflowName    string
	WorkflowVersion string
	// Layers holds nodes grouped by topological depth; nodes within a
	// layer have no dependency relationship with each other and are
	// parallel-eligible.
	Layers       [][]string
	Predecessors map[string][]string
	Successors   map[string][]string
}

// Build computes an ExecutionPlan for a DAG-kind or hybrid workflow.
// wf must already have passed parser validation (acyclic, references
// resolved); Build returns an error only if that invariant was violated.
func Build(wf *domain.Workflow) (*ExecutionPlan, error) {
	plan := &ExecutionPlan{
		WorkflowName:    wf.Name,
		WorkflowVersion: wf.Version,
		Predecessors:    map[string][]string{},
		Successors:      map[string][]string{},
	}

	indegree := map[string]int{}
	for _, n := range wf.Nodes {
		indegree[n.ID] = len(n.Dependencies)
		plan.Predecessors[n.ID] = append([]string{}, n.Dependencies...)
		for _, dep := range n.Dependencies {
			plan.Successors[dep] = append(plan.Successors[dep], n.ID)
		}
	}

	remaining := len(wf.Nodes)
	processed := map[string]bool{}
	for remaining > 0 {
		var layer []string
		for _, n := range wf.Nodes {
			if processed[n.ID] {
				continue
			}
			if indegree[n.ID] == 0 {
				layer = append(layer, n.ID)
			}
		}
		if len(layer) == 0 {
			return nil, fmt.Errorf("%w: no zero-indegree node remains with %d node(s) unprocessed",
				(&corerr.CycleError{}).AsError(), remaining)
		}
		for _, id := range layer {
			processed[id] = true
			remaining--
			for _, succ := range plan.Successors[id] {
				indegree[succ]--
			}
		}
		plan.Layers = append(plan.Layers, layer)
	}

	return plan, nil
}

// ParallelGroup returns the nodes in the same layer as nodeID, excluding
// nodeID itself — the set the scheduler may freely run concurrently with it.
func (p *ExecutionPlan) ParallelGroup(nodeID string) []string {
	for _, layer := range p.Layers {
		for _, id := range layer {
			if id != nodeID {
				continue
			}
			var group []string
			for _, other := range layer {
				if other != nodeID {
					group = append(group, other)
				}
			}
			return group
		}
	}
	return nil
}
