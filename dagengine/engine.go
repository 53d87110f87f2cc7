package dagengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentflow-runtime/workflowcore/compensation"
	"github.com/agentflow-runtime/workflowcore/condexpr"
	"github.com/agentflow-runtime/workflowcore/corerr"
	"github.com/agentflow-runtime/workflowcore/ctxengine"
	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/agentflow-runtime/workflowcore/errorhandler"
	"github.com/agentflow-runtime/workflowcore/events"
	"github.com/agentflow-runtime/workflowcore/optimizer"
	"github.com/agentflow-runtime/workflowcore/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxLoopIterations bounds a while-loop control node so a mistyped
// condition cannot spin an execution forever.
const maxLoopIterations = 10000

// Engine drives one DAG-kind (or the DAG half of a hybrid) workflow
// execution: dependency-based readiness, control-node handling, retry and
// circuit-breaking of agent/tool dispatch, and aggregation reduction
// (spec.md §4.5), generalized from workflow/dag_executor.go's fixed
// entry-node walk into a readiness loop driven by per-node dependency
// state instead of a precomputed traversal order.
type Engine struct {
	registry *Registry
	sched    *scheduler.Scheduler
	breakers *errorhandler.Registry
	emitter  *events.Emitter
	logger   *zap.Logger

	compensator *compensation.Manager
}

// New creates an Engine. logger may be nil.
func New(registry *Registry, sched *scheduler.Scheduler, breakers *errorhandler.Registry, emitter *events.Emitter, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: registry,
		sched:    sched,
		breakers: breakers,
		emitter:  emitter,
		logger:   logger.With(zap.String("component", "dagengine")),
	}
}

// WithCompensator attaches a Saga compensation manager: successful nodes
// with a CompensationRef are recorded with it, and an error-handler rule
// resolving to PolicyCompensate triggers a rollback run through it.
// Without one the Engine never compensates; node.compensation_requested
// is still emitted either way.
func (e *Engine) WithCompensator(mgr *compensation.Manager) *Engine {
	e.compensator = mgr
	return e
}

// RunResult bundles an Execution with its per-node records, the unit a
// Suspend/Resume cycle carries across a persistence boundary.
type RunResult struct {
	Execution *domain.Execution
	Nodes     map[string]*domain.NodeExecution
}

// execState is the mutable working set threaded through one run's
// round loop and its control-node helpers.
type execState struct {
	wf      *domain.Workflow
	exec    *domain.Execution
	plan    *optimizer.ExecutionPlan
	matcher *errorhandler.Matcher
	nodes   map[string]*domain.NodeExecution
}

// Run executes wf from scratch with the given trigger input, driving it to
// a terminal status (completed/failed/cancelled) or to suspended if the
// caller-supplied ctx is cancelled mid-flight.
func (e *Engine) Run(ctx context.Context, wf *domain.Workflow, input map[string]any) (*RunResult, error) {
	plan, err := optimizer.Build(wf)
	if err != nil {
		return nil, err
	}
	matcher, err := errorhandler.NewMatcher(wf.ErrorHandlers)
	if err != nil {
		return nil, err
	}

	exec := &domain.Execution{
		ExecutionID:     uuid.NewString(),
		WorkflowID:      wf.ID,
		WorkflowVersion: wf.Version,
		Status:          domain.ExecPending,
		Input:           input,
		StartTS:         time.Now(),
		TriggerType:     "manual",
	}
	exec.Context = domain.NewContextTree(input, nil, nil, nil)
	e.emitter.Emit(exec.ExecutionID, "", "execution.created", nil)

	nodes := make(map[string]*domain.NodeExecution, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodes[n.ID] = &domain.NodeExecution{
			ID:          uuid.NewString(),
			ExecutionID: exec.ExecutionID,
			NodeID:      n.ID,
			Status:      domain.NodeWaiting,
		}
	}

	st := &execState{wf: wf, exec: exec, plan: plan, matcher: matcher, nodes: nodes}

	if err := exec.SetStatus(domain.ExecRunning); err != nil {
		return &RunResult{Execution: exec, Nodes: nodes}, err
	}
	e.emitter.Emit(exec.ExecutionID, "", "execution.started", nil)

	return e.drive(ctx, st)
}

// Resume continues a previously suspended RunResult. wf must be the same
// workflow definition the suspended execution was running.
func (e *Engine) Resume(ctx context.Context, wf *domain.Workflow, result *RunResult) (*RunResult, error) {
	if result.Execution.Status != domain.ExecSuspended {
		return result, fmt.Errorf("execution %s is not suspended (status=%s)", result.Execution.ExecutionID, result.Execution.Status)
	}
	plan, err := optimizer.Build(wf)
	if err != nil {
		return result, err
	}
	matcher, err := errorhandler.NewMatcher(wf.ErrorHandlers)
	if err != nil {
		return result, err
	}
	if err := result.Execution.SetStatus(domain.ExecRunning); err != nil {
		return result, err
	}
	e.emitter.Emit(result.Execution.ExecutionID, "", "execution.resumed", nil)

	st := &execState{wf: wf, exec: result.Execution, plan: plan, matcher: matcher, nodes: result.Nodes}
	return e.drive(ctx, st)
}

// drive runs the dependency-driven readiness loop until the execution
// reaches a terminal status or ctx is cancelled (in which case it
// transitions to suspended so a later Resume can pick up where it left off).
func (e *Engine) drive(ctx context.Context, st *execState) (*RunResult, error) {
	result := &RunResult{Execution: st.exec, Nodes: st.nodes}

	var firstErr error
roundLoop:
	for {
		ready := e.readyNodes(st)
		if len(ready) == 0 {
			if e.allTerminal(st) {
				break
			}
			firstErr = fmt.Errorf("%w: execution %s has non-terminal nodes remaining", ErrStalled, st.exec.ExecutionID)
			break
		}
		for _, id := range ready {
			_ = st.nodes[id].SetStatus(domain.NodeReady)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range ready {
			id := id
			g.Go(func() error {
				return e.dispatchRound(gctx, st, id)
			})
		}
		roundErr := g.Wait()

		if ctx.Err() != nil {
			e.sched.Cancel(st.exec.ExecutionID)
			_ = st.exec.SetStatus(domain.ExecSuspended)
			e.emitter.Emit(st.exec.ExecutionID, "", "execution.suspended", nil)
			return result, ctx.Err()
		}
		if roundErr != nil {
			firstErr = roundErr
			break roundLoop
		}
	}

	if firstErr != nil {
		st.exec.Err = firstErr
		_ = st.exec.SetStatus(domain.ExecFailed)
		e.emitter.Emit(st.exec.ExecutionID, "", "execution.failed", map[string]any{"error": firstErr.Error()})
	} else {
		st.exec.Output = aggregateOutputs(st)
		_ = st.exec.SetStatus(domain.ExecCompleted)
		e.emitter.Emit(st.exec.ExecutionID, "", "execution.completed", nil)
	}
	st.exec.EndTS = time.Now()
	e.emitter.Forget(st.exec.ExecutionID)
	return result, firstErr
}

// dispatchRound admits one ready node through the scheduler and executes
// it to a terminal node status.
func (e *Engine) dispatchRound(ctx context.Context, st *execState, nodeID string) error {
	node := st.wf.NodeByID(nodeID)
	ne := st.nodes[nodeID]

	task := &scheduler.Task{
		ExecutionID: st.exec.ExecutionID,
		NodeID:      nodeID,
		Kind:        string(node.Kind),
		Priority:    node.Priority,
		EnqueuedAt:  time.Now(),
	}
	if node.Kind == domain.NodeAgent {
		if agentID, ok := node.Config["agent"].(string); ok {
			task.AgentName = agentID
		}
	}
	e.sched.Enqueue(task)
	acquired, err := e.sched.Acquire(ctx)
	if err != nil {
		ne.Err = err
		_ = ne.SetStatus(domain.NodeCancelled)
		return nil // ctx cancellation surfaces via drive's ctx.Err() check, not as an execution failure
	}
	defer e.sched.Release(acquired)

	ne.StartTS = time.Now()
	_ = ne.SetStatus(domain.NodeRunning)
	e.emitter.Emit(st.exec.ExecutionID, nodeID, "node.started", nil)

	var runErr error
	switch node.Kind {
	case domain.NodeControl:
		runErr = e.runControl(ctx, st, ne, node)
	case domain.NodeAggregation:
		runErr = e.runAggregation(st, ne, node)
	case domain.NodeSubWorkflow:
		runErr = fmt.Errorf("node %s: sub_workflow dispatch requires a workflow resolver, none configured", nodeID)
		ne.Err = runErr
		_ = ne.SetStatus(domain.NodeFailed)
	default:
		runErr = e.runDispatch(ctx, st, ne, node)
	}

	ne.EndTS = time.Now()
	if runErr != nil {
		e.emitter.Emit(st.exec.ExecutionID, nodeID, "node.failed", map[string]any{"error": runErr.Error()})
	} else {
		e.emitter.Emit(st.exec.ExecutionID, nodeID, "node.completed", nil)
	}
	return runErr
}

// runDispatch invokes an agent/tool node's external collaborator, applying
// the workflow's error-handler policy (retry/skip/degrade/escalate/
// compensate) and per-node circuit breaker on failure (spec.md §4.7).
func (e *Engine) runDispatch(ctx context.Context, st *execState, ne *domain.NodeExecution, node *domain.Node) error {
	breaker := e.breakers.GetOrCreate(node.ID)
	input, err := resolveInput(node, st.exec.Context)
	if err != nil {
		ne.Err = err
		_ = ne.SetStatus(domain.NodeFailed)
		return err
	}
	ne.Input = input

	for {
		allowed, cbErr := breaker.Allow()
		if !allowed {
			ne.Err = corerr.New(corerr.KindCircuitOpen, cbErr.Error()).WithNodeID(node.ID).WithRetryable(false)
			_ = ne.SetStatus(domain.NodeFailed)
			return ne.Err
		}

		attemptStart := time.Now()
		out, callErr := e.registry.Dispatch(ctx, node, input)
		ne.AttemptHistory = append(ne.AttemptHistory, domain.AttemptRecord{
			Attempt: ne.RetryCount + 1,
			StartTS: attemptStart,
			EndTS:   time.Now(),
			Error:   callErr,
		})

		if callErr == nil {
			breaker.RecordSuccess()
			ne.Output = out
			_ = ne.SetStatus(domain.NodeSuccess)
			st.exec.Context.SetNodeOutput(node.ID, out)
			if e.compensator != nil {
				e.compensator.Record(st.exec.ExecutionID, node.ID, node.CompensationRef, input)
			}
			return nil
		}

		breaker.RecordFailure(callErr)
		rule := st.matcher.Match(node.ID, string(corerr.KindOf(callErr)))
		outcome := errorhandler.Decide(rule, ne, callErr)

		switch outcome.Policy {
		case domain.PolicyRetry:
			ne.RetryCount++
			_ = ne.SetStatus(domain.NodeRetrying)
			delay := errorhandler.Delay(outcome.Retry, ne.RetryCount)
			e.emitter.Emit(st.exec.ExecutionID, node.ID, "node.retrying", map[string]any{
				"attempt": ne.RetryCount, "delay_ms": delay.Milliseconds(),
			})
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				ne.Err = ctx.Err()
				_ = ne.SetStatus(domain.NodeFailed)
				return ne.Err
			}
			_ = ne.SetStatus(domain.NodeRunning)
			continue
		case domain.PolicySkip, domain.PolicyDegrade:
			out := outcome.DefaultOutput
			if out == nil {
				out = map[string]any{}
			}
			ne.Output = out
			_ = ne.SetStatus(domain.NodeSuccess)
			st.exec.Context.SetNodeOutput(node.ID, out)
			return nil
		default: // escalate, or compensate
			ne.Err = callErr
			_ = ne.SetStatus(domain.NodeFailed)
			if outcome.Policy == domain.PolicyCompensate {
				e.emitter.Emit(st.exec.ExecutionID, node.ID, "node.compensation_requested", map[string]any{"strategy": outcome.Strategy})
				if e.compensator != nil {
					if _, compErr := e.compensator.Compensate(ctx, st.exec.ExecutionID, compensation.Plan{Strategy: outcome.Strategy}); compErr != nil {
						e.logger.Error("compensation run failed", zap.String("node_id", node.ID), zap.Error(compErr))
					}
				}
			}
			return ne.Err
		}
	}
}

func resolveInput(node *domain.Node, ctx *domain.ContextTree) (map[string]any, error) {
	snap := ctx.Snapshot()
	input := map[string]any{}
	for name, tmpl := range node.InputBindings {
		v, err := ctxengine.Resolve(tmpl, snap)
		if err != nil {
			return nil, fmt.Errorf("node %s: resolving input %q: %w", node.ID, name, err)
		}
		input[name] = v
	}
	return input, nil
}

// runControl dispatches a control node by its ControlSubkind.
func (e *Engine) runControl(ctx context.Context, st *execState, ne *domain.NodeExecution, node *domain.Node) error {
	switch node.Control {
	case domain.ControlParallel:
		ne.Output = map[string]any{"branches": len(node.ParallelBranches)}
		_ = ne.SetStatus(domain.NodeSuccess)
		st.exec.Context.SetNodeOutput(node.ID, ne.Output)
		return nil
	case domain.ControlSwitch:
		return e.runSwitch(st, ne, node)
	case domain.ControlJoin:
		return e.runJoin(st, ne, node)
	case domain.ControlLoop:
		return e.runLoop(ctx, st, ne, node)
	default:
		err := fmt.Errorf("node %s: unknown control subkind %q", node.ID, node.Control)
		ne.Err = err
		_ = ne.SetStatus(domain.NodeFailed)
		return err
	}
}

// runSwitch evaluates each case's condition in declaration order,
// dispatching to the first match (or the default), and transitively
// skips every node reachable only through the branches not taken
// (spec.md §4.5.6).
func (e *Engine) runSwitch(st *execState, ne *domain.NodeExecution, node *domain.Node) error {
	vars := st.exec.Context.Snapshot()

	var selected []string
	matched := false
	for _, c := range node.SwitchCases {
		ok, err := condexpr.Evaluate(c.Condition, vars)
		if err != nil {
			ne.Err = fmt.Errorf("node %s: evaluating case condition %q: %w", node.ID, c.Condition, err)
			_ = ne.SetStatus(domain.NodeFailed)
			return ne.Err
		}
		if ok {
			selected = c.Targets
			matched = true
			break
		}
	}
	if !matched {
		selected = node.SwitchDefault
	}

	ne.Output = map[string]any{"selected": selected}
	_ = ne.SetStatus(domain.NodeSuccess)
	st.exec.Context.SetNodeOutput(node.ID, ne.Output)

	selectedSet := map[string]bool{}
	for _, id := range selected {
		selectedSet[id] = true
	}
	var skipRoots []string
	seen := map[string]bool{}
	collect := func(targets []string) {
		for _, id := range targets {
			if !selectedSet[id] && !seen[id] {
				seen[id] = true
				skipRoots = append(skipRoots, id)
			}
		}
	}
	for _, c := range node.SwitchCases {
		collect(c.Targets)
	}
	collect(node.SwitchDefault)
	e.propagateSkip(st, skipRoots)
	return nil
}

// propagateSkip marks every root as skipped (if still waiting) and
// recursively skips any successor whose every dependency ended up skipped.
func (e *Engine) propagateSkip(st *execState, roots []string) {
	queue := append([]string{}, roots...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ne := st.nodes[id]
		if ne == nil || ne.Status != domain.NodeWaiting {
			continue
		}
		_ = ne.SetStatus(domain.NodeSkipped)
		e.emitter.Emit(st.exec.ExecutionID, id, "node.skipped", nil)

		for _, succ := range st.plan.Successors[id] {
			sne := st.nodes[succ]
			if sne == nil || sne.Status != domain.NodeWaiting {
				continue
			}
			n := st.wf.NodeByID(succ)
			if n == nil || len(n.Dependencies) == 0 {
				continue
			}
			allSkipped := true
			for _, dep := range n.Dependencies {
				if st.nodes[dep].Status != domain.NodeSkipped {
					allSkipped = false
					break
				}
			}
			if allSkipped {
				queue = append(queue, succ)
			}
		}
	}
}

// runJoin merges its sources' outputs once its JoinMode is satisfied.
// Readiness itself (wait_all vs wait_any) is enforced by isReady/joinReady
// before a join node is ever dispatched.
func (e *Engine) runJoin(st *execState, ne *domain.NodeExecution, node *domain.Node) error {
	sources := map[string]any{}
	for _, src := range node.JoinSources {
		sne := st.nodes[src]
		if sne != nil && sne.Status == domain.NodeSuccess {
			sources[src] = sne.Output
		}
	}
	ne.Output = map[string]any{"sources": sources}
	_ = ne.SetStatus(domain.NodeSuccess)
	st.exec.Context.SetNodeOutput(node.ID, ne.Output)
	return nil
}

// runAggregation reduces an aggregation node's source outputs with its
// configured reducer.
func (e *Engine) runAggregation(st *execState, ne *domain.NodeExecution, node *domain.Node) error {
	if node.Aggregation == nil {
		err := fmt.Errorf("node %s: aggregation node missing spec", node.ID)
		ne.Err = err
		_ = ne.SetStatus(domain.NodeFailed)
		return err
	}
	var values []any
	for _, src := range node.Aggregation.Sources {
		sne := st.nodes[src]
		if sne != nil && sne.Status == domain.NodeSuccess {
			values = append(values, sne.Output)
		}
	}
	out, err := Reduce(node.Aggregation.Reducer, values)
	if err != nil {
		ne.Err = fmt.Errorf("node %s: %w", node.ID, err)
		_ = ne.SetStatus(domain.NodeFailed)
		return ne.Err
	}
	if out == nil {
		out = map[string]any{}
	}
	ne.Output = out
	_ = ne.SetStatus(domain.NodeSuccess)
	st.exec.Context.SetNodeOutput(node.ID, out)
	return nil
}

// runLoop executes a loop control node's body sequentially, once per
// iteration. Each iteration's input starts as {"iteration": i} (plus
// "item" for for_each) and gains each body node's output under that
// node's id for the body nodes after it; nothing carries over from one
// iteration to the next. The loop's output lists the last body node's
// output per iteration. The body is treated as a simple ordered sequence of
// agent/tool nodes rather than a nested sub-DAG — adequate for the
// iteration patterns spec.md §4.5 describes (map over a collection,
// retry-style while loop), not a general nested scheduler.
func (e *Engine) runLoop(ctx context.Context, st *execState, ne *domain.NodeExecution, node *domain.Node) error {
	spec := node.Loop
	if spec == nil {
		err := fmt.Errorf("node %s: loop node missing spec", node.ID)
		ne.Err = err
		_ = ne.SetStatus(domain.NodeFailed)
		return err
	}

	var items []any
	if spec.Kind == domain.LoopForEach {
		v, err := ctxengine.Resolve("${"+spec.IteratorPath+"}", st.exec.Context.Snapshot())
		if err != nil {
			ne.Err = fmt.Errorf("node %s: resolving iterator path: %w", node.ID, err)
			_ = ne.SetStatus(domain.NodeFailed)
			return ne.Err
		}
		arr, ok := v.([]any)
		if !ok {
			ne.Err = fmt.Errorf("node %s: iterator path %q did not resolve to an array", node.ID, spec.IteratorPath)
			_ = ne.SetStatus(domain.NodeFailed)
			return ne.Err
		}
		items = arr
	}

	var iterationOutputs []any
	for i := 0; ; i++ {
		switch spec.Kind {
		case domain.LoopFor:
			if i >= spec.MaxIterations {
				goto done
			}
		case domain.LoopForEach:
			if i >= len(items) {
				goto done
			}
		case domain.LoopWhile:
			if i >= maxLoopIterations {
				goto done
			}
			ok, err := condexpr.Evaluate(spec.Condition, st.exec.Context.Snapshot())
			if err != nil {
				ne.Err = fmt.Errorf("node %s: evaluating loop condition: %w", node.ID, err)
				_ = ne.SetStatus(domain.NodeFailed)
				return ne.Err
			}
			if !ok {
				goto done
			}
		}

		iterInput := map[string]any{"iteration": i}
		if spec.Kind == domain.LoopForEach {
			iterInput["item"] = items[i]
		}
		var last any
		for _, bodyID := range spec.Body {
			bodyNode := st.wf.NodeByID(bodyID)
			if bodyNode == nil {
				ne.Err = fmt.Errorf("node %s: loop body references unknown node %s", node.ID, bodyID)
				_ = ne.SetStatus(domain.NodeFailed)
				return ne.Err
			}
			out, err := e.dispatchBodyNode(ctx, bodyNode, iterInput)
			if err != nil {
				ne.Err = fmt.Errorf("node %s: loop body node %s: %w", node.ID, bodyID, err)
				_ = ne.SetStatus(domain.NodeFailed)
				return ne.Err
			}
			last = out
			iterInput[bodyID] = out
		}
		iterationOutputs = append(iterationOutputs, last)
	}

done:
	ne.Output = map[string]any{"iterations": iterationOutputs}
	_ = ne.SetStatus(domain.NodeSuccess)
	st.exec.Context.SetNodeOutput(node.ID, ne.Output)
	return nil
}

func (e *Engine) dispatchBodyNode(ctx context.Context, node *domain.Node, input map[string]any) (any, error) {
	switch node.Kind {
	case domain.NodeAgent, domain.NodeTool:
		return e.registry.Dispatch(ctx, node, input)
	default:
		return nil, fmt.Errorf("kind %s is not supported inside a loop body", node.Kind)
	}
}

func isTerminal(s domain.NodeExecStatus) bool {
	switch s {
	case domain.NodeSuccess, domain.NodeFailed, domain.NodeSkipped, domain.NodeCancelled:
		return true
	}
	return false
}

func (e *Engine) readyNodes(st *execState) []string {
	var ready []string
	for _, n := range st.wf.Nodes {
		ne := st.nodes[n.ID]
		if ne.Status != domain.NodeWaiting {
			continue
		}
		if isReady(st, n) {
			ready = append(ready, n.ID)
		}
	}
	return ready
}

func isReady(st *execState, node *domain.Node) bool {
	if node.Kind == domain.NodeControl && node.Control == domain.ControlJoin {
		return joinReady(st, node)
	}
	for _, dep := range node.Dependencies {
		s := st.nodes[dep].Status
		if s != domain.NodeSuccess && s != domain.NodeSkipped {
			return false
		}
	}
	return true
}

func joinReady(st *execState, node *domain.Node) bool {
	allTerminal := true
	for _, src := range node.JoinSources {
		sne := st.nodes[src]
		if sne == nil {
			continue
		}
		if node.JoinMode == domain.JoinWaitAny && sne.Status == domain.NodeSuccess {
			return true
		}
		if !isTerminal(sne.Status) {
			allTerminal = false
		}
	}
	return allTerminal
}

func (e *Engine) allTerminal(st *execState) bool {
	for _, ne := range st.nodes {
		if !isTerminal(ne.Status) {
			return false
		}
	}
	return true
}

// aggregateOutputs collects the outputs of every sink node (no successors)
// into the execution's final Output.
func aggregateOutputs(st *execState) map[string]any {
	out := map[string]any{}
	for _, n := range st.wf.Nodes {
		if len(st.plan.Successors[n.ID]) > 0 {
			continue
		}
		ne := st.nodes[n.ID]
		if ne.Status == domain.NodeSuccess {
			out[n.ID] = ne.Output
		}
	}
	return out
}

// ErrStalled is returned (wrapped) when drive cannot make progress despite
// non-terminal nodes remaining; this should only occur if a workflow passed
// validation with a join/loop configuration no reachable input satisfies.
var ErrStalled = errors.New("dagengine: scheduling stalled")
