// Package compensation implements the Saga-style rollback manager
// (spec.md §4.8): a per-execution compensation log appended on node
// success commit, and a reverse-order rollback run against that log when
// an execution escalates to compensating. Adapted in shape from
// workflow/checkpoint_enhanced.go's EnhancedCheckpointManager/
// CheckpointStore pair, repurposed from checkpoint snapshots to
// compensation log entries.
package compensation

import (
	"sync"
	"time"
)

// Entry records one node's compensating action, appended when that node's
// success is committed — never at dispatch time, so a node that fails
// mid-commit never leaves a dangling entry.
type Entry struct {
	NodeID      string
	ActionRef   string
	Input       map[string]any
	CompletedAt time.Time
}

// Log is a mutex-guarded, append-only compensation log keyed by execution
// id, mirroring the guarded-map shape of
// workflow/checkpoint_enhanced.go's InMemoryCheckpointStore.
type Log struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// NewLog creates an empty Log.
func NewLog() *Log {
	return &Log{entries: map[string][]Entry{}}
}

// Append records a compensation entry for executionID, in completion order.
func (l *Log) Append(executionID string, e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[executionID] = append(l.entries[executionID], e)
}

// Snapshot returns a copy of executionID's entries in completion order.
func (l *Log) Snapshot(executionID string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.entries[executionID]
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}

// Forget discards executionID's log, once its execution has reached a
// terminal state and compensation (if any) has resolved.
func (l *Log) Forget(executionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, executionID)
}
