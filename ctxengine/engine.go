package ctxengine

// HasNodeOutput reports whether a node's output is present in a context
// snapshot (an entry for nodeID under its "nodes" branch). The DAG engine
// does not call it before resolving input bindings; it dispatches a node
// once every dependency's node-execution status is success or skipped.
func HasNodeOutput(ctx map[string]any, nodeID string) bool {
	nodes, ok := ctx["nodes"].(map[string]any)
	if !ok {
		return false
	}
	_, ok = nodes[nodeID]
	return ok
}

// MissingDependencies returns the subset of deps not yet present in ctx.
func MissingDependencies(ctx map[string]any, deps []string) []string {
	var missing []string
	for _, d := range deps {
		if !HasNodeOutput(ctx, d) {
			missing = append(missing, d)
		}
	}
	return missing
}
