package domain

import "sync"

// ContextTree is the nested key-value store backing one execution
// (spec.md §3, §4.3). Top-level branches are well-known: input, nodes,
// session, trigger, meta. Node outputs live under nodes[node_id].output.
//
// Writes go through the tree's mutex, so nodes completing concurrently
// may record their outputs directly; readers of a node's input receive a
// snapshot instead of a reference into this tree (see Snapshot).
type ContextTree struct {
	mu   sync.RWMutex
	root map[string]any
}

// NewContextTree builds a ContextTree seeded with the well-known branches.
func NewContextTree(input map[string]any, session, trigger, meta map[string]any) *ContextTree {
	if input == nil {
		input = map[string]any{}
	}
	if session == nil {
		session = map[string]any{}
	}
	if trigger == nil {
		trigger = map[string]any{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return &ContextTree{
		root: map[string]any{
			"input":   input,
			"nodes":   map[string]any{},
			"session": session,
			"trigger": trigger,
			"meta":    meta,
		},
	}
}

// Snapshot returns a deep-enough copy of the tree for a single node
// invocation: the top-level branches are copied by reference to their own
// maps, but a fresh "nodes" map is returned so concurrent writers appending
// other nodes' outputs cannot race with a reader walking this snapshot.
func (c *ContextTree) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]any, len(c.root))
	for k, v := range c.root {
		snap[k] = v
	}
	if nodes, ok := c.root["nodes"].(map[string]any); ok {
		nodesCopy := make(map[string]any, len(nodes))
		for k, v := range nodes {
			nodesCopy[k] = v
		}
		snap["nodes"] = nodesCopy
	}
	return snap
}

// SetNodeOutput merges a completed node's output into the tree under
// nodes[nodeID].output. It takes the tree's write lock, so concurrent
// calls (one per node the DAG engine dispatches in a round) are safe.
func (c *ContextTree) SetNodeOutput(nodeID string, output any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	nodes, _ := c.root["nodes"].(map[string]any)
	if nodes == nil {
		nodes = map[string]any{}
		c.root["nodes"] = nodes
	}
	nodes[nodeID] = map[string]any{"output": output}
}

// Get resolves a top-level branch by name (input/nodes/session/trigger/meta).
func (c *ContextTree) Get(branch string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root[branch]
}

// SetSessionValue writes into the session branch; used by the set_context
// state-machine/control action.
func (c *ContextTree) SetSessionValue(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, _ := c.root["session"].(map[string]any)
	if session == nil {
		session = map[string]any{}
		c.root["session"] = session
	}
	session[key] = value
}
