// Package corerr defines the error taxonomy surfaced by every workflowcore
// subsystem to handlers, events, and persisted execution/node-execution
// records.
package corerr

import "fmt"

// Kind identifies the class of a core error.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindCycle              Kind = "CYCLE"
	KindUnknownReference   Kind = "UNKNOWN_REFERENCE"
	KindTemplateResolution Kind = "TEMPLATE_RESOLUTION"
	KindAgent              Kind = "AGENT"
	KindTool               Kind = "TOOL"
	KindTimeout            Kind = "TIMEOUT"
	KindCancelled          Kind = "CANCELLED"
	KindCircuitOpen        Kind = "CIRCUIT_OPEN"
	KindResourceExhausted  Kind = "RESOURCE_EXHAUSTED"
	KindCompensation       Kind = "COMPENSATION"
	KindInternal           Kind = "INTERNAL"
)

// Error is the structured error type carried on execution/node-execution
// records and on every emitted lifecycle event.
type Error struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	NodeID    string `json:"node_id,omitempty"`
	Subkind   string `json:"subkind,omitempty"`
	Retryable bool   `json:"retryable"`
	Cause     error  `json:"-"`
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithNodeID attaches the originating node id.
func (e *Error) WithNodeID(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// WithSubkind attaches a provider/adapter-specific subkind
// (e.g. AgentNotFound, AgentTimeout, AgentRateLimit, AgentAuth, AgentExecution).
func (e *Error) WithSubkind(subkind string) *Error {
	e.Subkind = subkind
	return e
}

// WithRetryable marks whether the error should be considered for retry.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable reports whether err is a *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if as(err, &e) {
		return e.Retryable
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if as(err, &e) {
		return e.Kind
	}
	return ""
}

// as is a tiny indirection over errors.As kept local so this file has a
// single stdlib import line; it avoids pulling in errors just for the two
// helpers above.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Validation-time errors (spec.md §4.1), each also representable as an
// *Error via their AsError method so they flow through the same
// error-handling path as runtime errors.

// SchemaError indicates a structurally invalid declarative workflow.
type SchemaError struct {
	Detail string
}

func (e *SchemaError) Error() string { return fmt.Sprintf("schema error: %s", e.Detail) }

// AsError converts to the common taxonomy.
func (e *SchemaError) AsError() *Error { return New(KindValidation, e.Error()) }

// CycleError reports a cycle detected in a DAG-kind workflow.
type CycleError struct {
	CycleNodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %v", e.CycleNodes)
}

func (e *CycleError) AsError() *Error {
	return New(KindCycle, e.Error())
}

// UnknownReferenceError reports a dangling id reference.
type UnknownReferenceError struct {
	Ref string
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("unknown reference: %s", e.Ref)
}

func (e *UnknownReferenceError) AsError() *Error {
	return New(KindUnknownReference, e.Error())
}

// DuplicateIdError reports a node/state id declared more than once.
type DuplicateIdError struct {
	ID string
}

func (e *DuplicateIdError) Error() string {
	return fmt.Sprintf("duplicate id: %s", e.ID)
}

func (e *DuplicateIdError) AsError() *Error {
	return New(KindValidation, e.Error())
}
