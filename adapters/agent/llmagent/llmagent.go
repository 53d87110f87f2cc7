// Package llmagent is the reference invoke_agent adapter: it binds
// agent-kind DAG/state-machine nodes to real LLM providers (Anthropic,
// OpenAI, Gemini) behind one AgentInvoker, grounded on
// workflow/agent_adapter.go's executor-wrapping shape generalized from a
// single fixed agent.Agent collaborator to a provider-routed dispatch
// table keyed by agent ID.
package llmagent

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Message is one turn of a chat-shaped completion request.
type Message struct {
	Role    string // system | user | assistant
	Content string
}

// Request is the provider-agnostic completion request built from a node's
// resolved input.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage reports token accounting for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Response is a provider's completion result.
type Response struct {
	Content string
	Usage   Usage
}

// Provider is a single LLM backend capable of driving a chat completion.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, req Request) (Response, error)
}

// Binding pins an agent ID to a provider+model pair.
type Binding struct {
	Provider string
	Model    string
}

// AgentResponse is the value Router.InvokeAgent returns, satisfying
// dagengine/statemachine's AgentInvoker contract (spec.md §6) with enough
// shape for downstream nodes to reference via path expressions.
type AgentResponse struct {
	AgentID  string `json:"agent_id"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Content  string `json:"content"`
	Usage    Usage  `json:"usage"`
}

// Router dispatches InvokeAgent calls to a registered Provider according to
// each agent ID's Binding.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	bindings  map[string]Binding
	estimator *usageEstimator
	logger    *zap.Logger
}

// NewRouter creates an empty Router. Providers and bindings are added with
// RegisterProvider/BindAgent before use.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		providers: make(map[string]Provider),
		bindings:  make(map[string]Binding),
		estimator: newUsageEstimator(),
		logger:    logger,
	}
}

// RegisterProvider makes p available under its own Name().
func (r *Router) RegisterProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// BindAgent pins agentID to the provider+model b names. A node of kind
// agent with ID agentID will be routed through b's provider at InvokeAgent
// time.
func (r *Router) BindAgent(agentID string, b Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[agentID] = b
}

// InvokeAgent implements dagengine.AgentInvoker and statemachine.AgentInvoker.
func (r *Router) InvokeAgent(ctx context.Context, agentID string, input map[string]any, options map[string]any) (any, error) {
	r.mu.RLock()
	binding, bound := r.bindings[agentID]
	var provider Provider
	if bound {
		provider = r.providers[binding.Provider]
	}
	r.mu.RUnlock()

	if !bound {
		return nil, fmt.Errorf("llmagent: no provider binding registered for agent %q", agentID)
	}
	if provider == nil {
		return nil, fmt.Errorf("llmagent: provider %q not registered for agent %q", binding.Provider, agentID)
	}

	req := requestFromInput(input, options)

	resp, err := provider.Complete(ctx, binding.Model, req)
	if err != nil {
		return nil, fmt.Errorf("llmagent: invoke agent %q via %s: %w", agentID, binding.Provider, err)
	}

	// Some providers (or test doubles) may not populate usage; estimate it
	// from the request/response text. If the tokenizer encoding cannot be
	// loaded, the estimate (and so the reported usage) stays zero.
	if resp.Usage == (Usage{}) {
		resp.Usage = r.estimator.estimate(req, resp.Content)
	}

	if r.logger != nil {
		r.logger.Debug("llmagent: agent invoked",
			zap.String("agent_id", agentID),
			zap.String("provider", binding.Provider),
			zap.String("model", binding.Model),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		)
	}

	return AgentResponse{
		AgentID:  agentID,
		Provider: binding.Provider,
		Model:    binding.Model,
		Content:  resp.Content,
		Usage:    resp.Usage,
	}, nil
}

// requestFromInput maps a node's resolved input/options maps to a
// provider-agnostic Request. Recognized input keys: "messages" ([]any of
// {"role","content"} maps), "prompt" (string, appended as a user turn),
// "system" (string, prepended as a system turn). Recognized option keys:
// "max_tokens" (int), "temperature" (float64).
func requestFromInput(input map[string]any, options map[string]any) Request {
	var req Request

	if msgsAny, ok := input["messages"].([]any); ok {
		for _, m := range msgsAny {
			mm, ok := m.(map[string]any)
			if !ok {
				continue
			}
			role, _ := mm["role"].(string)
			content, _ := mm["content"].(string)
			if role == "" {
				role = "user"
			}
			req.Messages = append(req.Messages, Message{Role: role, Content: content})
		}
	}

	if prompt, ok := input["prompt"].(string); ok && prompt != "" {
		req.Messages = append(req.Messages, Message{Role: "user", Content: prompt})
	}

	if system, ok := input["system"].(string); ok && system != "" {
		req.Messages = append([]Message{{Role: "system", Content: system}}, req.Messages...)
	}

	if options != nil {
		if maxTokens, ok := options["max_tokens"].(int); ok {
			req.MaxTokens = maxTokens
		}
		if temp, ok := options["temperature"].(float64); ok {
			req.Temperature = temp
		}
	}

	return req
}
