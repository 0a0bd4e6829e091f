package flowgraph

import (
	"errors"
	"fmt"
	"log/slog"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. Entry point must be set
//  2. Entry point must reference an existing node
//  3. All edge and branch sources must reference existing nodes
//  4. All edge and branch targets must reference existing nodes or END
//  5. Every node has at most one default edge and at least one way out
//  6. The entry point has a path to END
//
// Unreachable nodes (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
func (g *Graph[S, U]) Compile() (*CompiledGraph[S, U], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	errs = append(errs, g.validateTargets("edge", g.edges)...)
	errs = append(errs, g.validateTargets("branch", g.branches)...)

	for id := range g.nodes {
		if len(g.edges[id]) > 1 {
			errs = append(errs, fmt.Errorf("%w: node '%s' has %d default edges", ErrMultipleEdges, id, len(g.edges[id])))
		}
		if len(g.edges[id]) == 0 && len(g.branches[id]) == 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoOutgoingEdge, id))
		}
	}

	if g.entryPoint != "" {
		if _, exists := g.nodes[g.entryPoint]; exists && !g.hasPathToEnd() {
			errs = append(errs, ErrNoPathToEnd)
		}
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

func (g *Graph[S, U]) validateTargets(kind string, targets map[string][]string) []error {
	var errs []error
	for from, tos := range targets {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: %s source '%s' does not exist", ErrNodeNotFound, kind, from))
		}
		for _, to := range tos {
			if to == END {
				continue
			}
			if _, exists := g.nodes[to]; !exists {
				errs = append(errs, fmt.Errorf("%w: %s target '%s' does not exist", ErrNodeNotFound, kind, to))
			}
		}
	}
	return errs
}

// successorsOf returns default edge targets followed by declared branches.
func (g *Graph[S, U]) successorsOf(id string) []string {
	out := make([]string, 0, len(g.edges[id])+len(g.branches[id]))
	out = append(out, g.edges[id]...)
	out = append(out, g.branches[id]...)
	return out
}

// hasPathToEnd checks if there's a path from entry to END using reverse
// propagation over edges and branches.
func (g *Graph[S, U]) hasPathToEnd() bool {
	canReachEnd := map[string]bool{END: true}

	changed := true
	for changed {
		changed = false
		for id := range g.nodes {
			if canReachEnd[id] {
				continue
			}
			for _, to := range g.successorsOf(id) {
				if canReachEnd[to] {
					canReachEnd[id] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd[g.entryPoint]
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph[S, U]) warnUnreachableNodes() {
	if g.entryPoint == "" {
		return
	}

	reachable := g.findReachableNodes()
	for nodeID := range g.nodes {
		if !reachable[nodeID] {
			slog.Warn("node is unreachable from entry", "node_id", nodeID)
		}
	}
}

// findReachableNodes returns the set of nodes reachable from the entry point.
func (g *Graph[S, U]) findReachableNodes() map[string]bool {
	reachable := make(map[string]bool)
	if g.entryPoint == "" {
		return reachable
	}

	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.successorsOf(current) {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	return reachable
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph[S, U]) buildCompiledGraph() *CompiledGraph[S, U] {
	nodes := make(map[string]NodeFunc[S, U], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	defaults := make(map[string]string, len(g.edges))
	for from, targets := range g.edges {
		defaults[from] = targets[0]
	}

	branches := make(map[string]map[string]bool, len(g.branches))
	for from, targets := range g.branches {
		set := make(map[string]bool, len(targets))
		for _, to := range targets {
			set[to] = true
		}
		branches[from] = set
	}

	successors := make(map[string][]string, len(g.nodes))
	predecessors := make(map[string][]string)
	for id := range g.nodes {
		seen := make(map[string]bool)
		for _, to := range g.successorsOf(id) {
			if seen[to] {
				continue
			}
			seen[to] = true
			successors[id] = append(successors[id], to)
			if to != END {
				predecessors[to] = append(predecessors[to], id)
			}
		}
	}

	return &CompiledGraph[S, U]{
		name:         g.name,
		merge:        g.merge,
		nodes:        nodes,
		defaults:     defaults,
		branches:     branches,
		entryPoint:   g.entryPoint,
		successors:   successors,
		predecessors: predecessors,
		locks:        newKeyedMutex(),
	}
}
