package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property 3 spec.md §8: at no point does the number of concurrently-held
// tasks exceed either the global cap or the per-kind cap, regardless of how
// many tasks race to Acquire at once.
func TestProperty_AcquireNeverExceedsConcurrencyCaps(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("global and per-kind in-flight counts stay within their caps", prop.ForAll(
		func(globalCap, kindCap, numTasks int) bool {
			s := New(Limits{
				GlobalConcurrency:  globalCap,
				PerKindConcurrency: map[string]int{"agent": kindCap},
			}, nil)

			for i := 0; i < numTasks; i++ {
				s.Enqueue(&Task{NodeID: "n", Kind: "agent", Priority: 1})
			}

			var mu sync.Mutex
			var curGlobal, curKind, maxGlobal, maxKind int32
			var wg sync.WaitGroup
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			for i := 0; i < numTasks; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					task, err := s.Acquire(ctx)
					if err != nil {
						return
					}

					mu.Lock()
					curGlobal++
					curKind++
					if curGlobal > maxGlobal {
						maxGlobal = curGlobal
					}
					if curKind > maxKind {
						maxKind = curKind
					}
					mu.Unlock()

					time.Sleep(time.Millisecond)

					mu.Lock()
					curGlobal--
					curKind--
					mu.Unlock()

					s.Release(task)
				}()
			}
			wg.Wait()

			return int(maxGlobal) <= globalCap && int(maxKind) <= kindCap
		},
		gen.IntRange(1, 4),
		gen.IntRange(1, 3),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

// Property 4 spec.md §8: once a task's slot is released, some queued waiter
// (if any remain) is eventually admitted — concurrency caps never starve
// the queue once capacity frees up.
func TestProperty_ReleaseAlwaysAdmitsNextWaiter(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("every enqueued task is eventually acquired exactly once", prop.ForAll(
		func(globalCap, numTasks int) bool {
			s := New(Limits{GlobalConcurrency: globalCap}, nil)
			for i := 0; i < numTasks; i++ {
				s.Enqueue(&Task{NodeID: "n", Kind: "agent", Priority: 1})
			}

			var acquired int32
			var wg sync.WaitGroup
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			for i := 0; i < numTasks; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					task, err := s.Acquire(ctx)
					if err != nil {
						return
					}
					atomic.AddInt32(&acquired, 1)
					s.Release(task)
				}()
			}
			wg.Wait()

			return int(acquired) == numTasks
		},
		gen.IntRange(1, 4),
		gen.IntRange(1, 10),
	))

	properties.TestingRun(t)
}
