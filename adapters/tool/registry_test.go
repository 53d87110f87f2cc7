package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_InvokeTool_DispatchesToRegisteredFunc(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return params["message"], nil
	})

	out, err := r.InvokeTool(context.Background(), "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestRegistry_InvokeTool_UnknownToolErrors(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	_, err := r.InvokeTool(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestRegistry_InvokeTool_PropagatesFuncError(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	boom := errors.New("boom")
	r.Register("fail", func(ctx context.Context, params map[string]any) (any, error) {
		return nil, boom
	})

	_, err := r.InvokeTool(context.Background(), "fail", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_Has(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	assert.False(t, r.Has("echo"))
	r.Register("echo", func(ctx context.Context, params map[string]any) (any, error) { return nil, nil })
	assert.True(t, r.Has("echo"))
}

func TestRegistry_Register_ReplacesExisting(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register("echo", func(ctx context.Context, params map[string]any) (any, error) { return "first", nil })
	r.Register("echo", func(ctx context.Context, params map[string]any) (any, error) { return "second", nil })

	out, err := r.InvokeTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}
