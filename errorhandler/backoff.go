// Package errorhandler implements the workflow's ordered error-handler
// matching, retry backoff, and per-node circuit breaker (spec.md §4.7),
// adapted from workflow/circuit_breaker.go and the reference runtime's
// exponential-backoff retryer.
package errorhandler

import (
	"math"
	"math/rand"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// Delay computes the retry delay for the given 1-based attempt number
// according to policy.Backoff (a BaseDelay <= 0 counts as one second),
// clamped to policy.MaxDelay and then perturbed by +/-policy.Jitter
// fraction; the jittered delay is never below the base delay.
func Delay(policy *domain.RetryPolicy, attempt int) time.Duration {
	if policy == nil || attempt <= 0 {
		return 0
	}

	base := float64(policy.BaseDelay)
	if base <= 0 {
		base = float64(time.Second)
	}

	var delay float64
	switch policy.Backoff {
	case domain.BackoffFixed:
		delay = base
	case domain.BackoffLinear:
		delay = base * float64(attempt)
	default: // domain.BackoffExponential
		delay = base * math.Pow(2, float64(attempt-1))
	}

	if policy.MaxDelay > 0 && delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}

	if policy.Jitter > 0 {
		spread := delay * policy.Jitter
		delay += (rand.Float64()*2 - 1) * spread
		if delay < base {
			delay = base
		}
	}

	return time.Duration(delay)
}

// IsRetryableKind reports whether kind is listed in policy.RetryableErrors,
// or true when the list is empty (retry every kind by default).
func IsRetryableKind(policy *domain.RetryPolicy, kind string) bool {
	if policy == nil || len(policy.RetryableErrors) == 0 {
		return true
	}
	for _, k := range policy.RetryableErrors {
		if k == kind {
			return true
		}
	}
	return false
}
