// Package tool is the reference invoke_tool adapter: a local registry of
// named functions satisfying dagengine.ToolInvoker/statemachine.ToolInvoker,
// grounded on workflow/steps.go's ToolRegistry/Tool pattern but collapsed
// to a single function-valued Tool rather than a Name()/Execute() interface,
// since every registered tool here is local Go code, not a remote RPC stub.
package tool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Func is the signature every registered tool implements.
type Func func(ctx context.Context, params map[string]any) (any, error)

// Registry is an in-process, name-keyed tool dispatcher.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Func
	logger *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Func),
		logger: logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds or replaces the tool named name.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Has reports whether a tool named name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// InvokeTool looks up and runs the named tool, satisfying
// dagengine.ToolInvoker and statemachine.ToolInvoker.
func (r *Registry) InvokeTool(ctx context.Context, toolID string, params map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.tools[toolID]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", toolID)
	}

	r.logger.Debug("tool invoked", zap.String("tool_id", toolID))
	out, err := fn(ctx, params)
	if err != nil {
		r.logger.Warn("tool invocation failed", zap.String("tool_id", toolID), zap.Error(err))
		return nil, err
	}
	return out, nil
}
