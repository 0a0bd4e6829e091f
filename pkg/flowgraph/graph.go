package flowgraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// AddBranches, and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := flowgraph.NewGraph(plan.Merge).
//	    AddNode("gate", gate).
//	    AddNode("manual", manual).
//	    AddNode("plan", planDay).
//	    AddEdge("gate", "plan").
//	    AddBranches("gate", "manual").
//	    AddEdge("manual", "plan").
//	    AddEdge("plan", flowgraph.END).
//	    SetEntry("gate")
//
//	compiled, err := graph.Compile()
type Graph[S, U any] struct {
	mu         sync.RWMutex
	name       string
	merge      MergeFunc[S, U]
	nodes      map[string]NodeFunc[S, U]
	edges      map[string][]string
	branches   map[string][]string
	entryPoint string
}

// NewGraph creates a new graph builder for state type S and update type U.
// merge is applied after every node to fold its update into the state.
//
// Panics if merge is nil.
func NewGraph[S, U any](merge MergeFunc[S, U]) *Graph[S, U] {
	if merge == nil {
		panic("flowgraph: merge function cannot be nil")
	}
	return &Graph[S, U]{
		name:     "flowgraph",
		merge:    merge,
		nodes:    make(map[string]NodeFunc[S, U]),
		edges:    make(map[string][]string),
		branches: make(map[string][]string),
	}
}

// Named sets the graph name used in traces.
func (g *Graph[S, U]) Named(name string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.name = name
	return g
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S, U]) AddNode(id string, fn NodeFunc[S, U]) *Graph[S, U] {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == "__end__" {
		panic("flowgraph: node ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}

	if fn == nil {
		panic("flowgraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	return g
}

// AddEdge sets the default edge of a node, followed when the node returns
// a Command with an empty Goto. The target can be a node ID or END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph[S, U]) AddEdge(from, to string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddBranches declares the targets a node may name in Command.Goto.
// END is always allowed and need not be listed.
// Returns the graph for method chaining.
//
// Nodes without a default edge must declare at least one branch.
func (g *Graph[S, U]) AddBranches(from string, targets ...string) *Graph[S, U] {
	if len(targets) == 0 {
		panic("flowgraph: AddBranches requires at least one target")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.branches[from] = append(g.branches[from], targets...)
	return g
}

// SetEntry designates the entry point node.
// This must be called before Compile().
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph[S, U]) SetEntry(id string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}
