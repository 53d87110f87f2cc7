package errorhandler

import (
	"regexp"

	"github.com/agentflow-runtime/workflowcore/corerr"
	"github.com/agentflow-runtime/workflowcore/domain"
)

// Outcome is what the matched rule decided should happen for a failed
// node. Recovered distinguishes "the execution still succeeds overall"
// (skip/degrade/a retry that eventually succeeds) from a failure that
// propagates (escalate, or retries exhausted) — the supplemented
// ExecutionFailed-vs-other-failure split.
type Outcome struct {
	Policy        domain.PolicyKind
	Recovered     bool
	Retry         *domain.RetryPolicy
	FallbackNode  string
	DefaultOutput any
	Strategy      string // compensation strategy, when Policy == PolicyCompensate
}

// Matcher selects the first ErrorHandlerRule whose NodePattern+ErrorKinds
// match a failing node's id and error kind (spec.md §4.7: first-match-wins,
// declaration order).
type Matcher struct {
	rules    []compiledRule
	fallback domain.PolicyKind
}

type compiledRule struct {
	pattern *regexp.Regexp
	rule    domain.ErrorHandlerRule
}

// NewMatcher precompiles every rule's NodePattern regex. Rules must
// already have passed parser validation (valid regex).
func NewMatcher(rules []domain.ErrorHandlerRule) (*Matcher, error) {
	m := &Matcher{fallback: domain.PolicyEscalate}
	for _, r := range rules {
		re, err := regexp.Compile(r.NodePattern)
		if err != nil {
			return nil, err
		}
		m.rules = append(m.rules, compiledRule{pattern: re, rule: r})
	}
	return m, nil
}

// Match returns the first rule matching nodeID and errKind, or a default
// escalate outcome if none match.
func (m *Matcher) Match(nodeID, errKind string) domain.ErrorHandlerRule {
	for _, cr := range m.rules {
		if !cr.pattern.MatchString(nodeID) {
			continue
		}
		if len(cr.rule.ErrorKinds) == 0 {
			return cr.rule
		}
		for _, k := range cr.rule.ErrorKinds {
			if k == errKind {
				return cr.rule
			}
		}
	}
	return domain.ErrorHandlerRule{NodePattern: ".*", Policy: m.fallback}
}

// Decide evaluates the matched rule against the node's current retry
// state and returns the Outcome the dagengine/statemachine should act on.
func Decide(rule domain.ErrorHandlerRule, ne *domain.NodeExecution, err error) Outcome {
	switch rule.Policy {
	case domain.PolicyRetry:
		policy := rule.Retry
		if policy == nil {
			policy = &domain.RetryPolicy{MaxAttempts: 1, Backoff: domain.BackoffExponential, BaseDelay: 0}
		}
		if ne.RetryCount < policy.MaxAttempts && IsRetryableKind(policy, string(corerr.KindOf(err))) {
			return Outcome{Policy: domain.PolicyRetry, Recovered: false, Retry: policy}
		}
		return Outcome{Policy: domain.PolicyEscalate, Recovered: false}
	case domain.PolicySkip:
		return Outcome{Policy: domain.PolicySkip, Recovered: true, DefaultOutput: rule.DefaultOutput}
	case domain.PolicyDegrade:
		return Outcome{Policy: domain.PolicyDegrade, Recovered: true, FallbackNode: rule.FallbackNode, DefaultOutput: rule.DefaultOutput}
	case domain.PolicyCompensate:
		return Outcome{Policy: domain.PolicyCompensate, Recovered: false, Strategy: rule.CompensationStrategy}
	default:
		return Outcome{Policy: domain.PolicyEscalate, Recovered: false}
	}
}
