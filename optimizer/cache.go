package optimizer

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// PlanCache memoizes ExecutionPlan by "name@version" key (adapted from
// the reference runtime's ExecutionPlanCache). dagengine.Engine does not
// consult it: Run and Resume call Build every time.
type PlanCache struct {
	cache *lru.Cache[string, *ExecutionPlan]
}

// NewPlanCache creates a PlanCache holding at most capacity entries.
func NewPlanCache(capacity int) (*PlanCache, error) {
	c, err := lru.New[string, *ExecutionPlan](capacity)
	if err != nil {
		return nil, err
	}
	return &PlanCache{cache: c}, nil
}

// Key builds the cache key for a workflow name+version pair.
func Key(name, version string) string {
	return name + "@" + version
}

// Get returns the cached plan for key, if present.
func (c *PlanCache) Get(key string) (*ExecutionPlan, bool) {
	return c.cache.Get(key)
}

// Put stores plan under key, evicting the least-recently-used entry if
// the cache is at capacity.
func (c *PlanCache) Put(key string, plan *ExecutionPlan) {
	c.cache.Add(key, plan)
}

// Clear empties the cache.
func (c *PlanCache) Clear() {
	c.cache.Purge()
}
