package flowgraph

import "sort"

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is safe for concurrent use. Invoke serializes calls that
// share a session ID; different sessions run independently.
type CompiledGraph[S, U any] struct {
	name       string
	merge      MergeFunc[S, U]
	nodes      map[string]NodeFunc[S, U]
	defaults   map[string]string
	branches   map[string]map[string]bool
	entryPoint string

	successors   map[string][]string
	predecessors map[string][]string

	locks *keyedMutex
}

// Name returns the graph name used in traces.
func (cg *CompiledGraph[S, U]) Name() string {
	return cg.name
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S, U]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in the graph, sorted.
func (cg *CompiledGraph[S, U]) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S, U]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the default edge target followed by declared branch
// targets of a node. Returns nil for END or unknown nodes.
func (cg *CompiledGraph[S, U]) Successors(id string) []string {
	if id == END {
		return nil
	}
	return cg.successors[id]
}

// Predecessors returns the node IDs that can route to the given node.
func (cg *CompiledGraph[S, U]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// DefaultEdge returns the target followed when a node's Command has no Goto.
func (cg *CompiledGraph[S, U]) DefaultEdge(id string) (string, bool) {
	to, ok := cg.defaults[id]
	return to, ok
}

// CanBranch reports whether node id may route to target via Command.Goto.
func (cg *CompiledGraph[S, U]) CanBranch(id, target string) bool {
	if target == END {
		return true
	}
	return cg.branches[id][target]
}
