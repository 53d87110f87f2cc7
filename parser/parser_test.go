package parser

import (
	"testing"

	"github.com/agentflow-runtime/workflowcore/corerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDAGYAML = `
workflow:
  name: onboarding
  version: "1.0"
  type: dag
  nodes:
    - id: fetch
      type: agent
      config:
        agent: profile_lookup
    - id: score
      type: agent
      dependencies: [fetch]
      config:
        agent: risk_scorer
      retry:
        max_attempts: 3
        backoff: exponential
        base_delay_ms: 100
        max_delay_ms: 2000
    - id: route
      type: control
      subtype: switch
      dependencies: [score]
      cases:
        - condition: "nodes.score.output.risk > 0.8"
          targets: [escalate]
      default: [approve]
    - id: escalate
      type: agent
      config:
        agent: human_review
    - id: approve
      type: tool
      config:
        tool: auto_approve
  error_handlers:
    - node_pattern: ".*"
      policy: retry
      retry:
        max_attempts: 2
`

func TestParse_ValidDAGWorkflow(t *testing.T) {
	wf, errs := Parse([]byte(validDAGYAML), "yaml")
	require.Empty(t, errs)
	require.NotNil(t, wf)
	assert.Equal(t, "onboarding", wf.Name)
	assert.Len(t, wf.Nodes, 5)
	route := wf.NodeByID("route")
	require.NotNil(t, route)
	assert.Equal(t, "switch", string(route.Control))
	assert.Len(t, route.SwitchCases, 1)
}

func TestParse_DetectsCycle(t *testing.T) {
	src := `
workflow:
  name: cyclic
  version: "1.0"
  type: dag
  nodes:
    - id: a
      type: agent
      dependencies: [b]
    - id: b
      type: agent
      dependencies: [a]
`
	_, errs := Parse([]byte(src), "yaml")
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if _, ok := e.(*corerr.CycleError); ok {
			found = true
		}
	}
	assert.True(t, found, "expected a CycleError among: %v", errs)
}

func TestParse_DuplicateNodeID(t *testing.T) {
	src := `
workflow:
  name: dupes
  version: "1.0"
  type: dag
  nodes:
    - id: a
      type: agent
    - id: a
      type: tool
`
	_, errs := Parse([]byte(src), "yaml")
	require.NotEmpty(t, errs)
}

func TestParse_UnknownDependencyReference(t *testing.T) {
	src := `
workflow:
  name: dangling
  version: "1.0"
  type: dag
  nodes:
    - id: a
      type: agent
      dependencies: [ghost]
`
	_, errs := Parse([]byte(src), "yaml")
	require.NotEmpty(t, errs)
}

func TestParse_StateMachineRequiresValidInitialState(t *testing.T) {
	src := `
workflow:
  name: approvals
  version: "1.0"
  type: state_machine
  initial_state: submitted
  states:
    - name: submitted
      type: initial
      transitions:
        - event: approve
          target: approved
    - name: approved
      type: final
`
	wf, errs := Parse([]byte(src), "yaml")
	require.Empty(t, errs)
	require.NotNil(t, wf)
	assert.Equal(t, "submitted", wf.InitialState)
}

func TestParse_StateMachineUnknownTransitionTarget(t *testing.T) {
	src := `
workflow:
  name: approvals
  version: "1.0"
  type: state_machine
  initial_state: submitted
  states:
    - name: submitted
      type: initial
      transitions:
        - event: approve
          target: nowhere
`
	_, errs := Parse([]byte(src), "yaml")
	require.NotEmpty(t, errs)
}

func TestParse_InvalidJSON(t *testing.T) {
	_, errs := Parse([]byte("{not json"), "json")
	require.NotEmpty(t, errs)
}

func TestRoundTrip_YAML(t *testing.T) {
	wf, errs := Parse([]byte(validDAGYAML), "yaml")
	require.Empty(t, errs)

	out, err := ToYAML(wf)
	require.NoError(t, err)

	wf2, errs2 := FromYAML(out)
	require.Empty(t, errs2)
	require.NotNil(t, wf2)

	assert.Equal(t, wf.Name, wf2.Name)
	assert.Equal(t, wf.Version, wf2.Version)
	assert.Equal(t, wf.Kind, wf2.Kind)
	assert.Len(t, wf2.Nodes, len(wf.Nodes))
	assert.Equal(t, wf.NodeByID("score").RetryPolicy.MaxAttempts, wf2.NodeByID("score").RetryPolicy.MaxAttempts)
}

func TestRoundTrip_JSON(t *testing.T) {
	wf, errs := Parse([]byte(validDAGYAML), "yaml")
	require.Empty(t, errs)

	out, err := ToJSON(wf)
	require.NoError(t, err)

	wf2, errs2 := FromJSON(out)
	require.Empty(t, errs2)
	require.NotNil(t, wf2)
	assert.Equal(t, wf.Name, wf2.Name)
	assert.Len(t, wf2.Nodes, len(wf.Nodes))
}
