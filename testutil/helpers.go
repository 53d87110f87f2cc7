// Shared test helpers: context construction, assertions, async polling,
// and JSON convenience wrappers used across this module's package tests.
//
// Usage:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertEventuallyTrue(t, func() bool { return engine.Done() }, 5*time.Second)
package testutil

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/agentflow-runtime/workflowcore/domain"
)

// TestContext returns a context with a generous default timeout, canceled
// automatically via t.Cleanup.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestContextWithTimeout is TestContext with a caller-supplied timeout.
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext returns an already-canceled context, for exercising
// ctx.Err() handling paths.
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// AssertExecutionStatus asserts e has reached want, printing e.Err (if any)
// on mismatch so a failing engine test doesn't need a second run to learn why.
func AssertExecutionStatus(t *testing.T, want domain.ExecutionStatus, e *domain.Execution) {
	t.Helper()
	if e.Status != want {
		t.Errorf("execution %s: expected status %s, got %s (err: %v)", e.ExecutionID, want, e.Status, e.Err)
	}
}

// AssertNodeStatus asserts ne has reached want.
func AssertNodeStatus(t *testing.T, want domain.NodeExecStatus, ne *domain.NodeExecution) {
	t.Helper()
	if ne.Status != want {
		t.Errorf("node %s: expected status %s, got %s (err: %v)", ne.NodeID, want, ne.Status, ne.Err)
	}
}

// AssertJSONEqual asserts expected and actual marshal to identical JSON,
// useful when comparing structs holding unexported or interface fields
// that reflect.DeepEqual would otherwise report as mismatched.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// AssertEventuallyTrue polls condition until it returns true or timeout
// elapses, for asserting on asynchronously-updated engine/scheduler state.
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("condition did not become true within %v", timeout)
}

// AssertEventuallyEqual polls getter until it returns a value deeply equal
// to expected, or timeout elapses.
func AssertEventuallyEqual(t *testing.T, expected any, getter func() any, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var lastValue any
	for time.Now().Before(deadline) {
		lastValue = getter()
		if reflect.DeepEqual(expected, lastValue) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("value did not become %v within %v, last value: %v", expected, timeout, lastValue)
}

// AssertNoError fails the test with an optional message if err is non-nil.
func AssertNoError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: unexpected error: %v", msgAndArgs[0], err)
		} else {
			t.Errorf("unexpected error: %v", err)
		}
	}
}

// AssertError fails the test with an optional message if err is nil.
func AssertError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Errorf("%v: expected error but got nil", msgAndArgs[0])
		} else {
			t.Error("expected error but got nil")
		}
	}
}

// WaitFor polls condition until it returns true or timeout elapses,
// reporting which happened first (for code, as opposed to AssertEventuallyTrue
// which reports directly to a *testing.T).
func WaitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForChannel receives one value from ch, or reports timed-out via ok=false.
func WaitForChannel[T any](ch <-chan T, timeout time.Duration) (T, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		var zero T
		return zero, false
	}
}

// MustJSON marshals v to a JSON string, panicking on error — for building
// fixture literals where a marshal failure indicates a test bug, not a
// runtime condition to handle.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// MustParseJSON unmarshals s into T, panicking on error.
func MustParseJSON[T any](s string) T {
	var v T
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

// CollectEvents drains ch into a slice once it closes, for asserting on
// the full sequence an events.Emitter subscriber observed.
func CollectEvents(ch <-chan domain.Event) []domain.Event {
	var events []domain.Event
	for e := range ch {
		events = append(events, e)
	}
	return events
}

// BenchmarkHelper wraps common *testing.B operations.
type BenchmarkHelper struct {
	b *testing.B
}

// NewBenchmarkHelper wraps b.
func NewBenchmarkHelper(b *testing.B) *BenchmarkHelper {
	return &BenchmarkHelper{b: b}
}

func (h *BenchmarkHelper) ResetTimer()    { h.b.ResetTimer() }
func (h *BenchmarkHelper) StopTimer()     { h.b.StopTimer() }
func (h *BenchmarkHelper) StartTimer()    { h.b.StartTimer() }
func (h *BenchmarkHelper) ReportAllocs()  { h.b.ReportAllocs() }

// RunParallel runs body across GOMAXPROCS goroutines via b.RunParallel.
func (h *BenchmarkHelper) RunParallel(body func()) {
	h.b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			body()
		}
	})
}
