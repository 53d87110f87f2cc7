package compensation

import (
	"context"
	"fmt"
	"testing"

	"github.com/agentflow-runtime/workflowcore/events"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property 5 spec.md §8: sequential_reverse compensation invokes every
// logged entry exactly once, in the exact reverse of their append
// (completion) order, regardless of how many entries were logged.
func TestProperty_SequentialReverseIsExactReverseOfCompletionOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("invocation order is the exact reverse of append order", prop.ForAll(
		func(n int) bool {
			inv := &recordingInvoker{}
			log := NewLog()
			m := NewManager(log, inv, events.NewEmitter(nil), nil)

			var wantReverse []string
			for i := 0; i < n; i++ {
				ref := fmt.Sprintf("undo-%d", i)
				log.Append("exec-1", Entry{NodeID: fmt.Sprintf("node-%d", i), ActionRef: ref})
				wantReverse = append(wantReverse, ref)
			}
			for i, j := 0, len(wantReverse)-1; i < j; i, j = i+1, j-1 {
				wantReverse[i], wantReverse[j] = wantReverse[j], wantReverse[i]
			}

			result, err := m.Compensate(context.Background(), "exec-1", Plan{Strategy: StrategySequentialReverse})
			if err != nil || !result.Success {
				return false
			}
			if len(inv.calls) != len(wantReverse) {
				return false
			}
			for i := range wantReverse {
				if inv.calls[i] != wantReverse[i] {
					return false
				}
			}
			return true
		},
		gen.IntRange(0, 15),
	))

	properties.TestingRun(t)
}
