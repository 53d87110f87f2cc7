package ctxengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCtx() map[string]any {
	return map[string]any{
		"input": map[string]any{"val": 0, "name": "ada"},
		"nodes": map[string]any{
			"a": map[string]any{"output": map[string]any{"out": 1}},
		},
		"session": map[string]any{},
		"trigger": map[string]any{},
		"meta":    map[string]any{},
		"items":   []any{"x", "y", "z"},
	}
}

func TestResolve_WholeExpressionReturnsNativeType(t *testing.T) {
	v, err := Resolve("${nodes.a.output}", sampleCtx())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"out": 1}, v)
}

func TestResolve_DottedPathIntoNestedOutput(t *testing.T) {
	v, err := Resolve("${nodes.a.output.out}", sampleCtx())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestResolve_ArrayIndex(t *testing.T) {
	v, err := Resolve("${items[1]}", sampleCtx())
	require.NoError(t, err)
	assert.Equal(t, "y", v)
}

func TestResolve_UnresolvedIsError(t *testing.T) {
	_, err := Resolve("${nodes.missing.output}", sampleCtx())
	assert.Error(t, err)
}

func TestResolve_NullableUnresolvedReturnsNil(t *testing.T) {
	v, err := Resolve("${nodes.missing.output?}", sampleCtx())
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestResolve_InterpolatedString(t *testing.T) {
	v, err := Resolve("hello ${input.name}, val=${input.val}", sampleCtx())
	require.NoError(t, err)
	assert.Equal(t, "hello ada, val=0", v)
}

func TestResolveBindings_WrapsBindingNameOnError(t *testing.T) {
	_, err := ResolveBindings(map[string]string{"x": "${nope}"}, sampleCtx())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `binding "x"`)
}

func TestMissingDependencies(t *testing.T) {
	ctx := sampleCtx()
	assert.Empty(t, MissingDependencies(ctx, []string{"a"}))
	assert.Equal(t, []string{"b"}, MissingDependencies(ctx, []string{"a", "b"}))
}
