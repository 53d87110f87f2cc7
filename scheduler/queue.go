// Package scheduler admits ready nodes into execution under priority
// ordering and concurrency limits (spec.md §4.2), adapted from the
// reference runtime's asyncio.Queue-based TaskScheduler and the
// teacher's token-bucket rate-limiting middleware.
package scheduler

import (
	"container/heap"
	"time"
)

// Task is one unit of admitted work: a node ready to execute.
type Task struct {
	ExecutionID string
	NodeID      string
	Kind        string // domain.NodeKind, used for per-kind concurrency caps
	AgentName   string // non-empty for NodeAgent tasks, for per-agent caps
	Priority    int    // higher runs first
	EnqueuedAt  time.Time
	seq         int64 // enqueue order, breaks priority ties FIFO
	index       int   // heap.Interface bookkeeping
}

// priorityQueue orders by (Priority desc, EnqueuedAt/seq asc).
type priorityQueue []*Task

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].Priority != pq[j].Priority {
		return pq[i].Priority > pq[j].Priority
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}

func (pq *priorityQueue) Push(x any) {
	t := x.(*Task)
	t.index = len(*pq)
	*pq = append(*pq, t)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*pq = old[:n-1]
	return t
}

var _ = heap.Interface(&priorityQueue{})
