package llmagent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name        string
	response    Response
	err         error
	lastModel   string
	lastRequest Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, model string, req Request) (Response, error) {
	f.lastModel = model
	f.lastRequest = req
	if f.err != nil {
		return Response{}, f.err
	}
	return f.response, nil
}

func TestRouter_InvokeAgent_DispatchesToBoundProvider(t *testing.T) {
	r := NewRouter(nil)
	fp := &fakeProvider{
		name:     "anthropic",
		response: Response{Content: "hi", Usage: Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}},
	}
	r.RegisterProvider(fp)
	r.BindAgent("greeter", Binding{Provider: "anthropic", Model: "claude-3-5-sonnet-latest"})

	out, err := r.InvokeAgent(context.Background(), "greeter", map[string]any{"prompt": "hello"}, nil)
	require.NoError(t, err)

	resp, ok := out.(AgentResponse)
	require.True(t, ok)
	assert.Equal(t, "hi", resp.Content)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, "claude-3-5-sonnet-latest", fp.lastModel)
	require.Len(t, fp.lastRequest.Messages, 1)
	assert.Equal(t, "hello", fp.lastRequest.Messages[0].Content)
	assert.Equal(t, Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4}, resp.Usage)
}

func TestRouter_InvokeAgent_UnknownAgentErrors(t *testing.T) {
	r := NewRouter(nil)
	_, err := r.InvokeAgent(context.Background(), "missing", nil, nil)
	assert.Error(t, err)
}

func TestRouter_InvokeAgent_UnregisteredProviderErrors(t *testing.T) {
	r := NewRouter(nil)
	r.BindAgent("a", Binding{Provider: "openai", Model: "gpt-4o"})
	_, err := r.InvokeAgent(context.Background(), "a", nil, nil)
	assert.Error(t, err)
}

func TestRouter_InvokeAgent_PropagatesProviderError(t *testing.T) {
	r := NewRouter(nil)
	fp := &fakeProvider{name: "openai", err: assert.AnError}
	r.RegisterProvider(fp)
	r.BindAgent("a", Binding{Provider: "openai", Model: "gpt-4o"})

	_, err := r.InvokeAgent(context.Background(), "a", nil, nil)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRouter_InvokeAgent_EstimatesUsageWhenProviderOmitsIt(t *testing.T) {
	r := NewRouter(nil)
	fp := &fakeProvider{name: "gemini", response: Response{Content: "a response with several words in it"}}
	r.RegisterProvider(fp)
	r.BindAgent("a", Binding{Provider: "gemini", Model: "gemini-2.0-flash"})

	out, err := r.InvokeAgent(context.Background(), "a", map[string]any{"prompt": "please count my tokens"}, nil)
	require.NoError(t, err)

	resp := out.(AgentResponse)
	assert.Greater(t, resp.Usage.PromptTokens, 0)
	assert.Greater(t, resp.Usage.CompletionTokens, 0)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestRouter_InvokeAgent_PassesThroughMaxTokensOption(t *testing.T) {
	r := NewRouter(nil)
	fp := &fakeProvider{name: "openai", response: Response{Content: "ok", Usage: Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}}}
	r.RegisterProvider(fp)
	r.BindAgent("a", Binding{Provider: "openai", Model: "gpt-4o"})

	_, err := r.InvokeAgent(context.Background(), "a", map[string]any{"prompt": "hi"}, map[string]any{"max_tokens": 256})
	require.NoError(t, err)
	assert.Equal(t, 256, fp.lastRequest.MaxTokens)
}

func TestRequestFromInput_ExtractsMessagesSystemAndOptions(t *testing.T) {
	input := map[string]any{
		"system": "be terse",
		"messages": []any{
			map[string]any{"role": "user", "content": "hi"},
		},
	}
	req := requestFromInput(input, map[string]any{"max_tokens": 512, "temperature": 0.2})

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Equal(t, "be terse", req.Messages[0].Content)
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.Equal(t, 512, req.MaxTokens)
	assert.InDelta(t, 0.2, req.Temperature, 0.0001)
}

func TestRequestFromInput_PromptWithoutMessagesBecomesSingleUserTurn(t *testing.T) {
	req := requestFromInput(map[string]any{"prompt": "hello there"}, nil)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "hello there", req.Messages[0].Content)
}
