// Package statemachine drives state-machine-kind (and the state-machine
// half of hybrid) workflow executions: event intake, first-match-wins
// transition selection, and the exit/transition/enter action sequence
// (spec.md §4.6), adapted from the reference runtime's StateMachineService
// (original_source/workflow_engine/state_machine.py) and the teacher's
// workflow.RoutingWorkflow first-match dispatch in workflow/routing.go.
package statemachine

import (
	"context"
	"fmt"

	"github.com/agentflow-runtime/workflowcore/domain"
	"github.com/agentflow-runtime/workflowcore/events"
	"go.uber.org/zap"
)

// AgentInvoker and ToolInvoker are declared locally rather than imported
// from dagengine, so this package does not import dagengine — the same
// workflow-local-interface convention workflow/steps.go documents for its
// ToolRegistry/HumanInputHandler interfaces.
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, agentID string, input map[string]any, options map[string]any) (any, error)
}

type ToolInvoker interface {
	InvokeTool(ctx context.Context, toolID string, params map[string]any) (any, error)
}

// Registry dispatches the non-timer ActionVariants (spec.md §4.6: actions
// are tagged variants executed by the same capability-registry idiom the
// DAG engine uses for node dispatch). Timer actions are handled by Machine
// directly since they must schedule a future call back into Process.
type Registry struct {
	agents  AgentInvoker
	tools   ToolInvoker
	emitter *events.Emitter
	logger  *zap.Logger
}

// NewRegistry creates a Registry. agents/tools may be nil if the workflow
// never dispatches that action variant; logger may be nil.
func NewRegistry(agents AgentInvoker, tools ToolInvoker, emitter *events.Emitter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{agents: agents, tools: tools, emitter: emitter, logger: logger.With(zap.String("component", "statemachine"))}
}

// Execute runs a single action against instanceID's context tree.
func (r *Registry) Execute(ctx context.Context, instanceID string, a domain.Action, instCtx *domain.ContextTree) error {
	switch a.Variant {
	case domain.ActionLog:
		msg, _ := a.Params["message"].(string)
		r.logger.Info(msg, zap.String("instance_id", instanceID))
		return nil
	case domain.ActionSetContext:
		key, _ := a.Params["key"].(string)
		if key == "" {
			return fmt.Errorf("set_context action requires a non-empty key param")
		}
		instCtx.SetSessionValue(key, a.Params["value"])
		return nil
	case domain.ActionEmitEvent:
		eventType, _ := a.Params["event_type"].(string)
		if eventType == "" {
			return fmt.Errorf("emit_event action requires an event_type param")
		}
		if r.emitter != nil {
			r.emitter.Emit(instanceID, "", eventType, a.Params)
		}
		return nil
	case domain.ActionInvokeAgent:
		if r.agents == nil {
			return fmt.Errorf("invoke_agent action: no agent invoker registered")
		}
		agentID, _ := a.Params["agent"].(string)
		_, err := r.agents.InvokeAgent(ctx, agentID, a.Params, nil)
		return err
	case domain.ActionInvokeTool:
		if r.tools == nil {
			return fmt.Errorf("invoke_tool action: no tool invoker registered")
		}
		toolID, _ := a.Params["tool"].(string)
		_, err := r.tools.InvokeTool(ctx, toolID, a.Params)
		return err
	default:
		return fmt.Errorf("action variant %q is not dispatched by Registry", a.Variant)
	}
}
