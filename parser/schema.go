// Package parser turns a declarative YAML/JSON workflow definition into a
// validated domain.Workflow, or a list of validation errors (spec.md §4.1).
package parser

// WorkflowDoc is the top-level declarative form (spec.md §6):
//
//	workflow: {id?, name, version, type, nodes: [...], edges: [...], error_handlers: [...]}
type WorkflowDoc struct {
	Workflow WorkflowSection `yaml:"workflow" json:"workflow"`
}

// WorkflowSection is the body of the top-level "workflow" key.
type WorkflowSection struct {
	ID            string                 `yaml:"id,omitempty" json:"id,omitempty"`
	Name          string                 `yaml:"name" json:"name"`
	Version       string                 `yaml:"version" json:"version"`
	Type          string                 `yaml:"type" json:"type"`
	Nodes         []NodeDoc              `yaml:"nodes,omitempty" json:"nodes,omitempty"`
	Edges         []EdgeDoc              `yaml:"edges,omitempty" json:"edges,omitempty"`
	ErrorHandlers []ErrorHandlerDoc      `yaml:"error_handlers,omitempty" json:"error_handlers,omitempty"`
	InitialState  string                 `yaml:"initial_state,omitempty" json:"initial_state,omitempty"`
	States        []StateDoc             `yaml:"states,omitempty" json:"states,omitempty"`
	Compensation  []CompensationPlanDoc  `yaml:"compensation_plans,omitempty" json:"compensation_plans,omitempty"`
	Metadata      map[string]any         `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// NodeDoc is one DAG-kind node. Not every field applies to every Type;
// see domain.Node for which fields each Type/Subtype combination uses.
type NodeDoc struct {
	ID              string            `yaml:"id" json:"id"`
	Name            string            `yaml:"name,omitempty" json:"name,omitempty"`
	Type            string            `yaml:"type" json:"type"`
	Subtype         string            `yaml:"subtype,omitempty" json:"subtype,omitempty"`
	Config          map[string]any    `yaml:"config,omitempty" json:"config,omitempty"`
	Dependencies    []string          `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Inputs          map[string]string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Retry           *RetryDoc         `yaml:"retry,omitempty" json:"retry,omitempty"`
	TimeoutMS       int               `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	CompensationRef string            `yaml:"compensation_ref,omitempty" json:"compensation_ref,omitempty"`
	Priority        int               `yaml:"priority,omitempty" json:"priority,omitempty"`

	Cases   []SwitchCaseDoc `yaml:"cases,omitempty" json:"cases,omitempty"`
	Default []string        `yaml:"default,omitempty" json:"default,omitempty"`

	Branches [][]string `yaml:"branches,omitempty" json:"branches,omitempty"`

	Loop *LoopDoc `yaml:"loop,omitempty" json:"loop,omitempty"`

	JoinMode    string   `yaml:"join_mode,omitempty" json:"join_mode,omitempty"`
	JoinSources []string `yaml:"join_sources,omitempty" json:"join_sources,omitempty"`

	AggregationSources []string `yaml:"aggregation_sources,omitempty" json:"aggregation_sources,omitempty"`
	Reducer            string   `yaml:"reducer,omitempty" json:"reducer,omitempty"`

	SubWorkflowRef string `yaml:"sub_workflow_ref,omitempty" json:"sub_workflow_ref,omitempty"`
}

// SwitchCaseDoc is one branch of a switch control node.
type SwitchCaseDoc struct {
	Condition string   `yaml:"condition" json:"condition"`
	Targets   []string `yaml:"targets" json:"targets"`
}

// LoopDoc configures a loop control node; Type selects which of
// Condition/MaxIterations/IteratorPath is meaningful.
type LoopDoc struct {
	Type          string   `yaml:"type" json:"type"` // while|for|for_each
	Condition     string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty"`
	IteratorPath  string   `yaml:"iterator_path,omitempty" json:"iterator_path,omitempty"`
	Body          []string `yaml:"body,omitempty" json:"body,omitempty"`
}

// RetryDoc is the declarative form of domain.RetryPolicy.
type RetryDoc struct {
	MaxAttempts     int      `yaml:"max_attempts" json:"max_attempts"`
	Backoff         string   `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	BaseDelayMS     int      `yaml:"base_delay_ms,omitempty" json:"base_delay_ms,omitempty"`
	MaxDelayMS      int      `yaml:"max_delay_ms,omitempty" json:"max_delay_ms,omitempty"`
	Jitter          float64  `yaml:"jitter,omitempty" json:"jitter,omitempty"`
	RetryableErrors []string `yaml:"retryable_errors,omitempty" json:"retryable_errors,omitempty"`
}

// EdgeDoc is an optional explicit edge; dependencies alone are sufficient
// for readiness.
type EdgeDoc struct {
	From        string            `yaml:"from" json:"from"`
	To          string            `yaml:"to" json:"to"`
	Kind        string            `yaml:"kind,omitempty" json:"kind,omitempty"`
	Condition   string            `yaml:"condition,omitempty" json:"condition,omitempty"`
	DataMapping map[string]string `yaml:"data_mapping,omitempty" json:"data_mapping,omitempty"`
}

// ErrorHandlerDoc is one ordered entry of the workflow's error-handler list.
type ErrorHandlerDoc struct {
	NodePattern           string    `yaml:"node_pattern" json:"node_pattern"`
	ErrorKinds            []string  `yaml:"error_kinds,omitempty" json:"error_kinds,omitempty"`
	Policy                string    `yaml:"policy" json:"policy"`
	Retry                 *RetryDoc `yaml:"retry,omitempty" json:"retry,omitempty"`
	FallbackNode          string    `yaml:"fallback_node,omitempty" json:"fallback_node,omitempty"`
	DefaultOutput         any       `yaml:"default_output,omitempty" json:"default_output,omitempty"`
	CompensationStrategy  string    `yaml:"compensation_strategy,omitempty" json:"compensation_strategy,omitempty"`
}

// ActionDoc is a tagged-variant action (spec.md §4.6).
type ActionDoc struct {
	Variant string         `yaml:"variant" json:"variant"`
	Params  map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
}

// TransitionDoc is one state-machine transition.
type TransitionDoc struct {
	Event     string      `yaml:"event" json:"event"`
	Condition string      `yaml:"condition,omitempty" json:"condition,omitempty"`
	Target    string      `yaml:"target" json:"target"`
	Actions   []ActionDoc `yaml:"actions,omitempty" json:"actions,omitempty"`
}

// StateDoc is one state-machine-kind state.
type StateDoc struct {
	Name        string          `yaml:"name" json:"name"`
	Type        string          `yaml:"type,omitempty" json:"type,omitempty"`
	OnEnter     []ActionDoc     `yaml:"on_enter,omitempty" json:"on_enter,omitempty"`
	OnExit      []ActionDoc     `yaml:"on_exit,omitempty" json:"on_exit,omitempty"`
	Transitions []TransitionDoc `yaml:"transitions,omitempty" json:"transitions,omitempty"`
}

// CompensationPlanDoc configures Saga rollback for one node.
type CompensationPlanDoc struct {
	NodeID                string `yaml:"node_id" json:"node_id"`
	CompensatingActionRef string `yaml:"compensating_action_ref" json:"compensating_action_ref"`
	Strategy              string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	ContinueOnError       bool   `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
}
