// Package domain holds the immutable workflow definition types and the
// mutable execution-record types they produce at runtime.
package domain

import "time"

// WorkflowKind selects the execution topology.
type WorkflowKind string

const (
	KindDAG          WorkflowKind = "dag"
	KindStateMachine WorkflowKind = "state_machine"
	KindHybrid       WorkflowKind = "hybrid"
)

// NodeKind is the tag a capability registry dispatches on.
type NodeKind string

const (
	NodeAgent       NodeKind = "agent"
	NodeTool        NodeKind = "tool"
	NodeControl     NodeKind = "control"
	NodeAggregation NodeKind = "aggregation"
	NodeSubWorkflow NodeKind = "sub_workflow"
)

// ControlSubkind further tags NodeControl nodes.
type ControlSubkind string

const (
	ControlSwitch   ControlSubkind = "switch"
	ControlParallel ControlSubkind = "parallel"
	ControlLoop     ControlSubkind = "loop"
	ControlJoin     ControlSubkind = "join"
)

// LoopKind is the explicit loop-termination subtype (see DESIGN.md,
// Open Question: loop control node subtypes).
type LoopKind string

const (
	LoopWhile   LoopKind = "while"
	LoopFor     LoopKind = "for"
	LoopForEach LoopKind = "for_each"
)

// ReducerKind names a built-in aggregation reducer.
type ReducerKind string

const (
	ReducerConcat      ReducerKind = "concat"
	ReducerMergeObject ReducerKind = "merge_object"
	ReducerSum         ReducerKind = "sum"
	ReducerLast        ReducerKind = "last"
)

// JoinMode controls how a join control node waits on its sources.
type JoinMode string

const (
	JoinWaitAll JoinMode = "wait_all"
	JoinWaitAny JoinMode = "wait_any"
)

// BackoffKind selects a retry-delay growth function.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffLinear      BackoffKind = "linear"
	BackoffExponential BackoffKind = "exponential"
)

// RetryPolicy configures the node-local or global Retry error-handler policy.
type RetryPolicy struct {
	MaxAttempts     int
	Backoff         BackoffKind
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	Jitter          float64
	RetryableErrors []string
}

// SwitchCase is one branch of a switch control node.
type SwitchCase struct {
	Condition string
	Targets   []string
}

// LoopSpec configures a loop control node. Exactly one of Condition
// (while), MaxIterations (for), or IteratorPath (for_each) is meaningful,
// selected by Kind.
type LoopSpec struct {
	Kind          LoopKind
	Condition     string
	MaxIterations int
	IteratorPath  string
	Body          []string // node ids forming the loop's sub-region
}

// AggregationSpec configures an aggregation node.
type AggregationSpec struct {
	Sources []string
	Reducer ReducerKind
}

// Node is a single unit of work or control operation within a DAG-kind
// workflow.
type Node struct {
	ID           string
	Kind         NodeKind
	Control      ControlSubkind
	Config       map[string]any
	InputBindings map[string]string // name -> template expression
	OutputSchema  map[string]any
	Dependencies  []string
	RetryPolicy   *RetryPolicy
	TimeoutMS     int
	CompensationRef string
	Priority      int

	// Control-node fields, populated according to Control.
	SwitchCases []SwitchCase
	SwitchDefault []string
	ParallelBranches [][]string
	Loop          *LoopSpec
	JoinMode      JoinMode
	JoinSources   []string

	// NodeAggregation fields.
	Aggregation *AggregationSpec

	// NodeSubWorkflow fields: the referenced workflow (by name+version).
	SubWorkflowRef string
}

// EdgeKind distinguishes the three edge shapes spec.md §3 allows.
type EdgeKind string

const (
	EdgeData        EdgeKind = "data"
	EdgeControl     EdgeKind = "control"
	EdgeConditional EdgeKind = "conditional"
)

// Edge is an optional explicit link between two nodes; dependencies
// alone are sufficient for readiness, edges add conditional/data-mapping
// detail.
type Edge struct {
	From        string
	To          string
	Kind        EdgeKind
	Condition   string
	DataMapping map[string]string
}

// ActionVariant tags a state-machine/control action.
type ActionVariant string

const (
	ActionLog         ActionVariant = "log"
	ActionSetContext  ActionVariant = "set_context"
	ActionEmitEvent   ActionVariant = "emit_event"
	ActionInvokeAgent ActionVariant = "invoke_agent"
	ActionInvokeTool  ActionVariant = "invoke_tool"
	ActionTimerStart  ActionVariant = "timer_start"
	ActionTimerCancel ActionVariant = "timer_cancel"
)

// Action is a tagged-variant operation executed by the same capability
// registry the DAG engine uses for node dispatch.
type Action struct {
	Variant ActionVariant
	Params  map[string]any
}

// StateType classifies a state-machine state.
type StateType string

const (
	StateInitial StateType = "initial"
	StateNormal  StateType = "normal"
	StateFinal   StateType = "final"
)

// Transition is one outgoing edge of a StateDefinition.
type Transition struct {
	Event   string
	Guard   string
	Target  string
	Actions []Action
}

// StateDefinition is one node of a state-machine-kind workflow.
type StateDefinition struct {
	Name        string
	Type        StateType
	OnEnter     []Action
	OnExit      []Action
	Transitions []Transition
}

// ErrorHandlerRule is one entry of a workflow's ordered error-handler list
// (spec.md §4.7); matching is first-match-wins against NodePattern+ErrorKinds.
type ErrorHandlerRule struct {
	NodePattern string // regex
	ErrorKinds  []string
	Policy      PolicyKind
	Retry       *RetryPolicy
	FallbackNode string
	DefaultOutput any
	CompensationStrategy string
}

// PolicyKind names an error-handler policy outcome.
type PolicyKind string

const (
	PolicyRetry      PolicyKind = "retry"
	PolicySkip       PolicyKind = "skip"
	PolicyDegrade    PolicyKind = "degrade"
	PolicyCompensate PolicyKind = "compensate"
	PolicyEscalate   PolicyKind = "escalate"
)

// CompensationPlan names how a node's compensating action is invoked.
type CompensationPlan struct {
	NodeID              string
	CompensatingActionRef string
	Strategy            string // sequential_reverse | parallel | custom_plan
	ContinueOnError      bool
}

// Workflow is the immutable, versioned declarative definition.
// (name, version) is unique across the owning WorkflowRepo.
type Workflow struct {
	ID                string
	Name              string
	Version           string
	Kind              WorkflowKind
	Nodes             []*Node
	Edges             []*Edge
	States            []*StateDefinition
	InitialState      string
	ErrorHandlers     []ErrorHandlerRule
	CompensationPlans map[string]CompensationPlan // keyed by node id
	Metadata          map[string]any
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// StateByName returns the state definition with the given name, or nil.
func (w *Workflow) StateByName(name string) *StateDefinition {
	for _, s := range w.States {
		if s.Name == name {
			return s
		}
	}
	return nil
}
