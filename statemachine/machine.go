package statemachine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentflow-runtime/workflowcore/condexpr"
	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/agentflow-runtime/workflowcore/events"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Machine drives state-machine-kind workflow instances: event intake,
// first-match-wins transition selection against the current state's
// Transitions (original_source/workflow_engine/state_machine.py's
// StateMachineService.transition), then the exit/transition/enter action
// sequence. Access per instance is serialized by a per-instance mutex, the
// same fix workflow/routing.go applies to its handlers map ("without this
// lock, concurrent access ... causes a panic").
type Machine struct {
	registry *Registry
	emitter  *events.Emitter
	logger   *zap.Logger

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	timers map[string]map[string]*time.Timer
}

// NewMachine creates a Machine. emitter/logger may be nil.
func NewMachine(registry *Registry, emitter *events.Emitter, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		registry: registry,
		emitter:  emitter,
		logger:   logger.With(zap.String("component", "statemachine")),
		locks:    map[string]*sync.Mutex{},
		timers:   map[string]map[string]*time.Timer{},
	}
}

func (m *Machine) lockFor(instanceID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[instanceID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[instanceID] = l
	}
	return l
}

// NewInstance creates a StateMachineInstance in wf's initial state and runs
// that state's OnEnter action sequence.
func (m *Machine) NewInstance(ctx context.Context, wf *domain.Workflow, input map[string]any) (*domain.StateMachineInstance, error) {
	initial := findInitialState(wf)
	if initial == nil {
		return nil, fmt.Errorf("workflow %s: no initial state defined", wf.ID)
	}
	inst := &domain.StateMachineInstance{
		InstanceID:   uuid.NewString(),
		WorkflowID:   wf.ID,
		CurrentState: initial.Name,
		Context:      domain.NewContextTree(input, nil, nil, nil),
	}
	if m.emitter != nil {
		m.emitter.Emit(inst.InstanceID, "", "instance.created", map[string]any{"state": initial.Name})
	}
	lock := m.lockFor(inst.InstanceID)
	lock.Lock()
	defer lock.Unlock()
	if err := m.runActions(ctx, wf, inst, initial.OnEnter); err != nil {
		return nil, fmt.Errorf("instance %s: enter action for initial state %q: %w", inst.InstanceID, initial.Name, err)
	}
	inst.IsFinal = initial.Type == domain.StateFinal
	return inst, nil
}

// Process feeds event/payload into inst. If the current state has no
// transition matching event (and passing its guard, if any), Process leaves
// the state unchanged, emits event.unhandled and returns nil — an unmatched
// event is ignored, not an error, per the reference transition() returning
// None. The payload is written to session.event in either case.
func (m *Machine) Process(ctx context.Context, wf *domain.Workflow, inst *domain.StateMachineInstance, event string, payload map[string]any) error {
	lock := m.lockFor(inst.InstanceID)
	lock.Lock()
	defer lock.Unlock()
	return m.process(ctx, wf, inst, event, payload)
}

func (m *Machine) process(ctx context.Context, wf *domain.Workflow, inst *domain.StateMachineInstance, event string, payload map[string]any) error {
	if inst.IsFinal {
		return fmt.Errorf("instance %s: already in final state %q", inst.InstanceID, inst.CurrentState)
	}
	current := wf.StateByName(inst.CurrentState)
	if current == nil {
		return fmt.Errorf("instance %s: unknown current state %q", inst.InstanceID, inst.CurrentState)
	}

	inst.Context.SetSessionValue("event", payload)

	matched, err := selectTransition(current, event, inst.Context)
	if err != nil {
		return fmt.Errorf("instance %s: guard evaluation: %w", inst.InstanceID, err)
	}
	if matched == nil {
		if m.emitter != nil {
			m.emitter.Emit(inst.InstanceID, "", "event.unhandled", map[string]any{"state": current.Name, "event": event})
		}
		return nil
	}

	target := wf.StateByName(matched.Target)
	if target == nil {
		return fmt.Errorf("instance %s: transition %s->%s: unknown target state", inst.InstanceID, current.Name, matched.Target)
	}

	if err := m.runActions(ctx, wf, inst, current.OnExit); err != nil {
		if m.emitter != nil {
			m.emitter.Emit(inst.InstanceID, "", "transition.aborted", map[string]any{
				"from": current.Name, "to": target.Name, "event": event, "error": err.Error(),
			})
		}
		return fmt.Errorf("instance %s: exit action for state %q: %w", inst.InstanceID, current.Name, err)
	}
	if err := m.runActions(ctx, wf, inst, matched.Actions); err != nil {
		if m.emitter != nil {
			m.emitter.Emit(inst.InstanceID, "", "transition.aborted", map[string]any{
				"from": current.Name, "to": target.Name, "event": event, "error": err.Error(),
			})
		}
		return fmt.Errorf("instance %s: transition action %s->%s: %w", inst.InstanceID, current.Name, target.Name, err)
	}

	// Commit point: current_state and history advance together before
	// on_enter runs, so an on_enter failure below never leaves a
	// half-committed transition (spec §4.6 step 5 precedes step 6).
	from := inst.CurrentState
	inst.CurrentState = target.Name
	inst.History = append(inst.History, domain.HistoryEntry{From: from, Event: event, To: target.Name, TS: time.Now(), Payload: payload})
	inst.IsFinal = target.Type == domain.StateFinal

	if m.emitter != nil {
		m.emitter.Emit(inst.InstanceID, "", "transition.fired", map[string]any{"from": from, "to": target.Name, "event": event})
	}

	// on_enter failures do not roll back the now-committed transition; they
	// surface as on_enter.failed and bubble to the caller's error handler.
	var enterErr error
	if err := m.runActions(ctx, wf, inst, target.OnEnter); err != nil {
		enterErr = fmt.Errorf("instance %s: enter action for state %q: %w", inst.InstanceID, target.Name, err)
		if m.emitter != nil {
			m.emitter.Emit(inst.InstanceID, "", "on_enter.failed", map[string]any{"state": target.Name, "event": event, "error": err.Error()})
		}
	}

	if m.emitter != nil && inst.IsFinal {
		m.emitter.Emit(inst.InstanceID, "", "instance.completed", map[string]any{"state": target.Name})
	}
	return enterErr
}

// selectTransition returns the first transition off current whose Event
// matches and whose Guard (if any) evaluates true against inst's context
// snapshot, or nil if none match.
func selectTransition(current *domain.StateDefinition, event string, ctxTree *domain.ContextTree) (*domain.Transition, error) {
	for i := range current.Transitions {
		t := &current.Transitions[i]
		if t.Event != event {
			continue
		}
		if t.Guard == "" {
			return t, nil
		}
		ok, err := condexpr.Evaluate(t.Guard, ctxTree.Snapshot())
		if err != nil {
			return nil, err
		}
		if ok {
			return t, nil
		}
	}
	return nil, nil
}

func (m *Machine) runActions(ctx context.Context, wf *domain.Workflow, inst *domain.StateMachineInstance, actions []domain.Action) error {
	for _, a := range actions {
		if err := m.runAction(ctx, wf, inst, a); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) runAction(ctx context.Context, wf *domain.Workflow, inst *domain.StateMachineInstance, a domain.Action) error {
	switch a.Variant {
	case domain.ActionTimerStart:
		return m.startTimer(wf, inst, a)
	case domain.ActionTimerCancel:
		return m.cancelTimer(inst, a)
	default:
		return m.registry.Execute(ctx, inst.InstanceID, a, inst.Context)
	}
}

// startTimer schedules event to fire against inst after the action's
// after_ms param elapses. A repeated timer_id replaces the pending timer.
// Firing hands off to a background context — Process's caller-supplied
// ctx is long gone by the time a timer elapses.
func (m *Machine) startTimer(wf *domain.Workflow, inst *domain.StateMachineInstance, a domain.Action) error {
	timerID, _ := a.Params["timer_id"].(string)
	event, _ := a.Params["event"].(string)
	if timerID == "" || event == "" {
		return fmt.Errorf("timer_start action requires timer_id and event params")
	}
	afterMS := 0
	switch v := a.Params["after_ms"].(type) {
	case int:
		afterMS = v
	case int64:
		afterMS = int(v)
	case float64:
		afterMS = int(v)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.timers[inst.InstanceID]
	if !ok {
		byID = map[string]*time.Timer{}
		m.timers[inst.InstanceID] = byID
	}
	if existing, ok := byID[timerID]; ok {
		existing.Stop()
	}
	byID[timerID] = time.AfterFunc(time.Duration(afterMS)*time.Millisecond, func() {
		if err := m.Process(context.Background(), wf, inst, event, nil); err != nil {
			m.logger.Warn("timer-fired event rejected",
				zap.String("instance_id", inst.InstanceID), zap.String("timer_id", timerID), zap.Error(err))
		}
	})
	return nil
}

func (m *Machine) cancelTimer(inst *domain.StateMachineInstance, a domain.Action) error {
	timerID, _ := a.Params["timer_id"].(string)
	m.mu.Lock()
	defer m.mu.Unlock()
	byID, ok := m.timers[inst.InstanceID]
	if !ok {
		return nil
	}
	if t, ok := byID[timerID]; ok {
		t.Stop()
		delete(byID, timerID)
	}
	return nil
}

func findInitialState(wf *domain.Workflow) *domain.StateDefinition {
	for i := range wf.States {
		if wf.States[i].Type == domain.StateInitial {
			return wf.States[i]
		}
	}
	return nil
}
