package compensation

import (
	"context"
	"fmt"
	"time"

	"github.com/agentflow-runtime/workflowcore/corerr"
	"github.com/agentflow-runtime/workflowcore/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Invoker runs one compensating action. actionRef is a node's
// CompensationRef (spec.md §3's Node type); input is the
// compensation_input recorded alongside the entry.
type Invoker interface {
	InvokeCompensation(ctx context.Context, actionRef string, input map[string]any) (any, error)
}

const (
	StrategySequentialReverse = "sequential_reverse"
	StrategyParallel          = "parallel"
	StrategyCustomPlan        = "custom_plan"
)

// maxAttempts bounds the best-effort retry budget spec.md §4.8 grants each
// compensating action; a fixed, small budget rather than the node-level
// RetryPolicy machinery, since a compensating action is itself the last
// resort — it has nothing further to fall back to.
const maxAttempts = 3

// Plan selects how an execution's compensation log is rolled back.
type Plan struct {
	Strategy string // sequential_reverse | parallel | custom_plan
	// CustomOrder lists node ids in the order custom_plan should run them;
	// any logged entry whose node id is absent runs last, in reverse
	// completion order.
	CustomOrder []string
	// ContinueOnError runs every entry regardless of prior failures and
	// reports an overall failure; false aborts at the first failing entry.
	ContinueOnError bool
}

// Outcome records one entry's compensation result.
type Outcome struct {
	NodeID   string
	Attempts int
	Err      error
}

// Result is the overall compensation run outcome.
type Result struct {
	ExecutionID string
	Outcomes    []Outcome
	Success     bool // true iff every entry compensated successfully
}

// Manager runs Saga rollback over a Log.
type Manager struct {
	log     *Log
	invoker Invoker
	emitter *events.Emitter
	logger  *zap.Logger
}

// NewManager creates a Manager. emitter/logger may be nil.
func NewManager(log *Log, invoker Invoker, emitter *events.Emitter, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{log: log, invoker: invoker, emitter: emitter, logger: logger.With(zap.String("component", "compensation"))}
}

// Record appends a compensation entry for executionID. Call this when a
// node with a non-empty CompensationRef commits success — never at
// dispatch, so a node that fails mid-commit leaves no dangling entry.
func (m *Manager) Record(executionID, nodeID, actionRef string, input map[string]any) {
	if actionRef == "" {
		return
	}
	m.log.Append(executionID, Entry{NodeID: nodeID, ActionRef: actionRef, Input: input, CompletedAt: time.Now()})
}

// Compensate runs the Saga rollback for executionID per plan. The log is
// forgotten once the run finishes, regardless of outcome.
func (m *Manager) Compensate(ctx context.Context, executionID string, plan Plan) (*Result, error) {
	entries := m.log.Snapshot(executionID)
	defer m.log.Forget(executionID)

	if m.emitter != nil {
		m.emitter.Emit(executionID, "", "compensation.started", map[string]any{"entries": len(entries), "strategy": plan.Strategy})
	}

	ordered := order(entries, plan)

	var result *Result
	var err error
	switch plan.Strategy {
	case StrategyParallel:
		result, err = m.runParallel(ctx, executionID, ordered)
	case StrategySequentialReverse, StrategyCustomPlan, "":
		result, err = m.runSequential(ctx, executionID, ordered, plan.ContinueOnError)
	default:
		return nil, fmt.Errorf("compensation: unknown strategy %q", plan.Strategy)
	}
	if err != nil {
		return nil, err
	}

	if m.emitter != nil {
		m.emitter.Emit(executionID, "", "compensation.completed", map[string]any{"success": result.Success})
	}
	return result, nil
}

// order returns entries in the sequence the chosen strategy should run
// them: sequential_reverse and parallel both use exact reverse completion
// order; custom_plan honors plan.CustomOrder first, then appends any
// unlisted entries in reverse completion order.
func order(entries []Entry, plan Plan) []Entry {
	if plan.Strategy != StrategyCustomPlan || len(plan.CustomOrder) == 0 {
		reversed := make([]Entry, len(entries))
		for i, e := range entries {
			reversed[len(entries)-1-i] = e
		}
		return reversed
	}

	byNode := map[string]Entry{}
	for _, e := range entries {
		byNode[e.NodeID] = e
	}
	placed := map[string]bool{}
	out := make([]Entry, 0, len(entries))
	for _, nodeID := range plan.CustomOrder {
		if e, ok := byNode[nodeID]; ok {
			out = append(out, e)
			placed[nodeID] = true
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if !placed[entries[i].NodeID] {
			out = append(out, entries[i])
		}
	}
	return out
}

func (m *Manager) runSequential(ctx context.Context, executionID string, entries []Entry, continueOnError bool) (*Result, error) {
	result := &Result{ExecutionID: executionID, Success: true}
	for _, e := range entries {
		outcome := m.runOne(ctx, e)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Err != nil {
			result.Success = false
			if !continueOnError {
				break
			}
		}
	}
	return result, nil
}

func (m *Manager) runParallel(ctx context.Context, executionID string, entries []Entry) (*Result, error) {
	outcomes := make([]Outcome, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range entries {
		i, e := i, e
		g.Go(func() error {
			outcomes[i] = m.runOne(gctx, e)
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{ExecutionID: executionID, Success: true}
	for _, o := range outcomes {
		result.Outcomes = append(result.Outcomes, o)
		if o.Err != nil {
			result.Success = false
		}
	}
	return result, nil
}

func (m *Manager) runOne(ctx context.Context, e Entry) Outcome {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err := m.invoker.InvokeCompensation(ctx, e.ActionRef, e.Input)
		if err == nil {
			return Outcome{NodeID: e.NodeID, Attempts: attempt}
		}
		lastErr = err
		m.logger.Warn("compensating action failed", zap.String("node_id", e.NodeID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = maxAttempts
		}
	}
	return Outcome{NodeID: e.NodeID, Attempts: maxAttempts, Err: corerr.New(corerr.KindCompensation, lastErr.Error()).WithNodeID(e.NodeID).WithCause(lastErr)}
}
