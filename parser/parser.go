package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentflow-runtime/workflowcore/domain"
	"gopkg.in/yaml.v3"
)

// Parse decodes raw declarative workflow source (YAML or JSON, selected by
// format) and returns a validated *domain.Workflow, or the full list of
// structural violations found.
func Parse(data []byte, format string) (*domain.Workflow, ValidationErrors) {
	doc, err := decode(data, format)
	if err != nil {
		return nil, ValidationErrors{err}
	}
	if errs := validate(doc); len(errs) > 0 {
		return nil, errs
	}
	return build(doc), nil
}

// ParseFile reads path and parses it, inferring format from its extension
// (.yaml/.yml -> yaml, .json -> json).
func ParseFile(path string) (*domain.Workflow, ValidationErrors) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ValidationErrors{fmt.Errorf("reading %s: %w", path, err)}
	}
	return Parse(data, formatFromExt(path))
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}

func decode(data []byte, format string) (*WorkflowDoc, error) {
	doc := &WorkflowDoc{}
	var err error
	switch format {
	case "json":
		err = json.Unmarshal(data, doc)
	default:
		err = yaml.Unmarshal(data, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding workflow document: %w", err)
	}
	return doc, nil
}

// ToYAML serializes wf back to its declarative YAML form. Round-tripping
// ToYAML -> Parse reproduces an equivalent *domain.Workflow (spec.md §8).
func ToYAML(wf *domain.Workflow) ([]byte, error) {
	doc := toDoc(wf)
	return yaml.Marshal(doc)
}

// ToJSON serializes wf back to its declarative JSON form.
func ToJSON(wf *domain.Workflow) ([]byte, error) {
	doc := toDoc(wf)
	return json.MarshalIndent(doc, "", "  ")
}

// FromYAML parses YAML source directly into a domain.Workflow.
func FromYAML(data []byte) (*domain.Workflow, ValidationErrors) {
	return Parse(data, "yaml")
}

// FromJSON parses JSON source directly into a domain.Workflow.
func FromJSON(data []byte) (*domain.Workflow, ValidationErrors) {
	return Parse(data, "json")
}

func toDoc(wf *domain.Workflow) *WorkflowDoc {
	sec := WorkflowSection{
		ID:           wf.ID,
		Name:         wf.Name,
		Version:      wf.Version,
		Type:         string(wf.Kind),
		InitialState: wf.InitialState,
		Metadata:     wf.Metadata,
	}
	for _, n := range wf.Nodes {
		sec.Nodes = append(sec.Nodes, nodeToDoc(n))
	}
	for _, e := range wf.Edges {
		sec.Edges = append(sec.Edges, EdgeDoc{
			From:        e.From,
			To:          e.To,
			Kind:        string(e.Kind),
			Condition:   e.Condition,
			DataMapping: e.DataMapping,
		})
	}
	for _, s := range wf.States {
		sec.States = append(sec.States, stateToDoc(s))
	}
	for _, h := range wf.ErrorHandlers {
		sec.ErrorHandlers = append(sec.ErrorHandlers, errorHandlerToDoc(h))
	}
	for _, c := range wf.CompensationPlans {
		sec.Compensation = append(sec.Compensation, CompensationPlanDoc{
			NodeID:                c.NodeID,
			CompensatingActionRef: c.CompensatingActionRef,
			Strategy:              c.Strategy,
			ContinueOnError:       c.ContinueOnError,
		})
	}
	return &WorkflowDoc{Workflow: sec}
}

func nodeToDoc(n *domain.Node) NodeDoc {
	doc := NodeDoc{
		ID:                 n.ID,
		Type:               string(n.Kind),
		Subtype:            string(n.Control),
		Config:              n.Config,
		Dependencies:        n.Dependencies,
		Inputs:              n.InputBindings,
		TimeoutMS:           n.TimeoutMS,
		CompensationRef:     n.CompensationRef,
		Priority:            n.Priority,
		Default:             n.SwitchDefault,
		Branches:            n.ParallelBranches,
		JoinMode:            string(n.JoinMode),
		JoinSources:         n.JoinSources,
		SubWorkflowRef:      n.SubWorkflowRef,
	}
	if n.RetryPolicy != nil {
		doc.Retry = retryToDoc(n.RetryPolicy)
	}
	for _, c := range n.SwitchCases {
		doc.Cases = append(doc.Cases, SwitchCaseDoc{Condition: c.Condition, Targets: c.Targets})
	}
	if n.Loop != nil {
		doc.Loop = &LoopDoc{
			Type:          string(n.Loop.Kind),
			Condition:     n.Loop.Condition,
			MaxIterations: n.Loop.MaxIterations,
			IteratorPath:  n.Loop.IteratorPath,
			Body:          n.Loop.Body,
		}
	}
	if n.Aggregation != nil {
		doc.AggregationSources = n.Aggregation.Sources
		doc.Reducer = string(n.Aggregation.Reducer)
	}
	return doc
}

func retryToDoc(r *domain.RetryPolicy) *RetryDoc {
	return &RetryDoc{
		MaxAttempts:     r.MaxAttempts,
		Backoff:         string(r.Backoff),
		BaseDelayMS:     int(r.BaseDelay.Milliseconds()),
		MaxDelayMS:      int(r.MaxDelay.Milliseconds()),
		Jitter:          r.Jitter,
		RetryableErrors: r.RetryableErrors,
	}
}

func stateToDoc(s *domain.StateDefinition) StateDoc {
	doc := StateDoc{Name: s.Name, Type: string(s.Type)}
	for _, a := range s.OnEnter {
		doc.OnEnter = append(doc.OnEnter, actionToDoc(a))
	}
	for _, a := range s.OnExit {
		doc.OnExit = append(doc.OnExit, actionToDoc(a))
	}
	for _, t := range s.Transitions {
		td := TransitionDoc{Event: t.Event, Condition: t.Guard, Target: t.Target}
		for _, a := range t.Actions {
			td.Actions = append(td.Actions, actionToDoc(a))
		}
		doc.Transitions = append(doc.Transitions, td)
	}
	return doc
}

func actionToDoc(a domain.Action) ActionDoc {
	return ActionDoc{Variant: string(a.Variant), Params: a.Params}
}

func errorHandlerToDoc(h domain.ErrorHandlerRule) ErrorHandlerDoc {
	doc := ErrorHandlerDoc{
		NodePattern:          h.NodePattern,
		ErrorKinds:           h.ErrorKinds,
		Policy:               string(h.Policy),
		FallbackNode:         h.FallbackNode,
		DefaultOutput:        h.DefaultOutput,
		CompensationStrategy: h.CompensationStrategy,
	}
	if h.Retry != nil {
		doc.Retry = retryToDoc(h.Retry)
	}
	return doc
}
