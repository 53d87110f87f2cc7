// Package dagengine drives DAG-kind (and the DAG half of hybrid) workflow
// executions: dependency-based readiness, control-node handling
// (switch/parallel/loop/join), aggregation reducers, and suspend/resume
// (spec.md §4.5), adapted from workflow/dag_executor.go's executeNode
// dispatch switch generalized from a fixed entry-node walk to dynamic
// dependency-driven readiness.
package dagengine

import (
	"context"
	"fmt"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// AgentInvoker is the external agent-invocation collaborator (spec.md §6).
type AgentInvoker interface {
	InvokeAgent(ctx context.Context, agentID string, input map[string]any, options map[string]any) (any, error)
}

// ToolInvoker is the external tool-invocation collaborator (spec.md §6).
type ToolInvoker interface {
	InvokeTool(ctx context.Context, toolID string, params map[string]any) (any, error)
}

// Registry is the capability registry dispatching node invocation by kind
// (spec.md §9: tagged-variant + registry, not subclass polymorphism).
// Control/aggregation/sub_workflow kinds are handled directly by Engine;
// only agent/tool reach an external collaborator.
type Registry struct {
	agents AgentInvoker
	tools  ToolInvoker
}

// NewRegistry creates a Registry. Either collaborator may be nil if the
// workflow never dispatches that kind.
func NewRegistry(agents AgentInvoker, tools ToolInvoker) *Registry {
	return &Registry{agents: agents, tools: tools}
}

// Dispatch invokes node's external collaborator with the resolved input.
func (r *Registry) Dispatch(ctx context.Context, node *domain.Node, input map[string]any) (any, error) {
	switch node.Kind {
	case domain.NodeAgent:
		if r.agents == nil {
			return nil, fmt.Errorf("no agent invoker registered")
		}
		agentID, _ := node.Config["agent"].(string)
		options, _ := node.Config["options"].(map[string]any)
		return r.agents.InvokeAgent(ctx, agentID, input, options)
	case domain.NodeTool:
		if r.tools == nil {
			return nil, fmt.Errorf("no tool invoker registered")
		}
		toolID, _ := node.Config["tool"].(string)
		return r.tools.InvokeTool(ctx, toolID, input)
	default:
		return nil, fmt.Errorf("node kind %s is not externally dispatched", node.Kind)
	}
}
