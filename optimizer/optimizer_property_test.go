package optimizer

import (
	"fmt"
	"testing"

	"github.com/agentflow-runtime/workflowcore/corerr"
	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// chainWorkflow builds an n-node linear dependency chain (node i depends on
// node i-1) and, when closeCycle is true, additionally makes node 0 depend
// on the last node — turning the chain into a single cycle through every
// node.
func chainWorkflow(n int, closeCycle bool) *domain.Workflow {
	wf := &domain.Workflow{ID: "wf-chain", Name: "chain", Version: "1", Kind: domain.KindDAG}
	for i := 0; i < n; i++ {
		node := &domain.Node{ID: fmt.Sprintf("n%d", i), Kind: domain.NodeTool}
		if i > 0 {
			node.Dependencies = []string{fmt.Sprintf("n%d", i-1)}
		}
		if i == 0 && closeCycle && n > 1 {
			node.Dependencies = append(node.Dependencies, fmt.Sprintf("n%d", n-1))
		}
		wf.Nodes = append(wf.Nodes, node)
	}
	return wf
}

// Property 2 spec.md §8: Build accepts every acyclic dependency chain and
// rejects the same chain once closed into a cycle, with the rejection an
// error of kind corerr.KindCycle.
func TestProperty_BuildRejectsCyclesAndOnlyCycles(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("Build succeeds iff the dependency chain is acyclic", prop.ForAll(
		func(n int, closeCycle bool) bool {
			wf := chainWorkflow(n, closeCycle)
			_, err := Build(wf)

			if closeCycle && n > 1 {
				return err != nil && corerr.KindOf(err) == corerr.KindCycle
			}
			return err == nil
		},
		gen.IntRange(2, 12),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
