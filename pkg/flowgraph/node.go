package flowgraph

// END is the terminal node identifier.
// Use this as an edge target or a Goto value to finish the session.
const END = "__end__"

// Command is what a node returns: the state delta to merge and,
// optionally, the next node to run.
//
// An empty Goto follows the node's default edge. A non-empty Goto must be
// END or one of the targets declared for the node with AddBranches.
type Command[U any] struct {
	Update U
	Goto   string
}

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and a copy of the current state and
// return a Command carrying only the parts of the state they changed.
//
// To pause for external input, call RequestInput and return its error.
//
// Example:
//
//	func approve(ctx flowgraph.Context, s plan.State) (flowgraph.Command[plan.Patch], error) {
//	    v, err := flowgraph.RequestInput(ctx, prompt)
//	    if err != nil {
//	        return flowgraph.Command[plan.Patch]{}, err
//	    }
//	    ...
//	}
type NodeFunc[S, U any] func(ctx Context, state S) (Command[U], error)

// MergeFunc folds a node's update into the state.
// It must not mutate state in place; the executor keeps the previous value
// when a node fails after partial work.
type MergeFunc[S, U any] func(state S, update U) S

// Update is shorthand for a Command that follows the default edge.
func Update[U any](u U) Command[U] {
	return Command[U]{Update: u}
}

// Goto is shorthand for a Command that routes to target after merging u.
func Goto[U any](target string, u U) Command[U] {
	return Command[U]{Update: u, Goto: target}
}
