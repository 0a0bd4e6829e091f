package flowgraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph building and compilation.
var (
	// ErrNoEntryPoint indicates SetEntry() was not called before Compile().
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrEntryNotFound indicates the entry point references a non-existent node.
	ErrEntryNotFound = errors.New("entry point node not found")

	// ErrNodeNotFound indicates an edge or branch references a non-existent node.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNoPathToEnd indicates no path exists from the entry point to END.
	ErrNoPathToEnd = errors.New("no path to END from entry")

	// ErrMultipleEdges indicates a node has more than one default edge.
	ErrMultipleEdges = errors.New("node has more than one default edge")

	// ErrNoOutgoingEdge indicates a node has neither a default edge nor branches.
	ErrNoOutgoingEdge = errors.New("node has no outgoing edge")
)

// Sentinel errors for execution.
var (
	// ErrMaxIterations indicates the execution loop exceeded the configured limit.
	ErrMaxIterations = errors.New("exceeded maximum iterations")

	// ErrNilContext indicates Run() or Invoke() was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrInvalidRouterResult indicates a node returned no Goto and has no default edge.
	ErrInvalidRouterResult = errors.New("no route from node")

	// ErrRouterTargetNotFound indicates a node named an undeclared Goto target.
	ErrRouterTargetNotFound = errors.New("goto target not declared")
)

// Sentinel errors for sessions and the interrupt protocol.
var (
	// ErrInvalidInput indicates a request that cannot start or resume a session:
	// an unknown session without input, or input and resume given together.
	ErrInvalidInput = errors.New("invalid session request")

	// ErrSessionBusyOrDone indicates fresh input or a resume value was sent to a
	// session that is not waiting for one.
	ErrSessionBusyOrDone = errors.New("session is not awaiting input")

	// ErrInterrupted matches every *Interrupt via errors.Is.
	ErrInterrupted = errors.New("node requested external input")

	// ErrInvalidResume indicates a resume value a node cannot accept.
	// The session stays suspended at the same point.
	ErrInvalidResume = errors.New("invalid resume value")

	// ErrDoubleInterrupt indicates a node requested input twice in one execution.
	ErrDoubleInterrupt = errors.New("node requested input more than once")

	// ErrNotInNode indicates RequestInput was called outside node execution.
	ErrNotInNode = errors.New("input requested outside node execution")
)

// Sentinel errors for checkpoint state.
var (
	// ErrSerializeState indicates state serialization failed.
	ErrSerializeState = errors.New("failed to serialize state")

	// ErrDeserializeState indicates state deserialization failed.
	ErrDeserializeState = errors.New("failed to deserialize state")

	// ErrInvalidResumeNode indicates the stored position doesn't exist in the graph.
	ErrInvalidResumeNode = errors.New("invalid resume node")

	// ErrCheckpointVersionMismatch indicates the checkpoint version is incompatible.
	ErrCheckpointVersionMismatch = errors.New("checkpoint version mismatch")
)

// IsProtocolViolation reports whether err breaks the interrupt protocol.
// Such errors abort an invocation without persisting anything.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrInvalidResume) || errors.Is(err, ErrDoubleInterrupt) || errors.Is(err, ErrNotInNode)
}

// CheckpointError wraps errors from checkpoint operations.
type CheckpointError struct {
	// NodeID is the node where checkpointing failed.
	NodeID string
	// Op is the operation that failed ("save", "load", "serialize").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s at node %s: %v", e.Op, e.NodeID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// NodeError wraps an error with node context.
type NodeError struct {
	// NodeID is the identifier of the node that failed.
	NodeID string
	// Op is the operation that failed (e.g., "execute").
	Op string
	// Err is the underlying error from the node.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures panic information from node execution.
type PanicError struct {
	// NodeID is the identifier of the node that panicked.
	NodeID string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.NodeID, e.Value)
}

// CancellationError captures the position when execution was cancelled.
// The session keeps its last persisted checkpoint.
type CancellationError struct {
	// NodeID is the node that was running or about to run.
	NodeID string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled at node %s: %v", e.NodeID, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}

// RouterError reports a Goto target the node may not use.
type RouterError struct {
	// FromNode is the node that returned the Command.
	FromNode string
	// Returned is the Goto value.
	Returned string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *RouterError) Error() string {
	return fmt.Sprintf("route from %s to %q: %v", e.FromNode, e.Returned, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *RouterError) Unwrap() error {
	return e.Err
}

// MaxIterationsError provides context when the loop limit is exceeded.
type MaxIterationsError struct {
	// Max is the configured iteration limit.
	Max int
	// LastNodeID is the node that would have executed next.
	LastNodeID string
}

// Error implements the error interface.
func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d) at node %s", e.Max, e.LastNodeID)
}

// Unwrap returns ErrMaxIterations for errors.Is support.
func (e *MaxIterationsError) Unwrap() error {
	return ErrMaxIterations
}
