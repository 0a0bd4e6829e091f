package flowgraph

import (
	"encoding/json"
	"fmt"
)

// Interrupt is returned by RequestInput when a node must wait for external
// input. Nodes return it unchanged; the executor persists the payload and
// suspends the session at that node.
type Interrupt struct {
	NodeID  string
	Payload json.RawMessage
}

// Error implements the error interface.
func (i *Interrupt) Error() string {
	return fmt.Sprintf("node %s requested input", i.NodeID)
}

// Is makes errors.Is(err, ErrInterrupted) match any *Interrupt.
func (i *Interrupt) Is(target error) bool {
	return target == ErrInterrupted
}

// resumeValue is the external input delivered to a replayed node.
type resumeValue struct {
	value any
}

// inputSlot tracks RequestInput calls within one node execution.
type inputSlot struct {
	resume    *resumeValue
	requested bool
}

// RequestInput asks the caller of the session for input.
//
// On the first execution of a node it returns a nil value and an *Interrupt
// carrying payload, which the node must return as its error. When the
// session is later resumed, the node runs again from the start and the same
// call returns the resume value instead.
//
// A node may request input at most once per execution; a second call
// returns ErrDoubleInterrupt, which aborts the invocation.
//
// payload is serialized with encoding/json and handed back to the caller
// verbatim.
func RequestInput(ctx Context, payload any) (any, error) {
	ec, ok := ctx.(*executionContext)
	if !ok || ec.input == nil {
		return nil, ErrNotInNode
	}

	slot := ec.input
	if slot.requested {
		return nil, fmt.Errorf("%w: node %s", ErrDoubleInterrupt, ec.nodeID)
	}
	slot.requested = true

	if slot.resume != nil {
		return slot.resume.value, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode interrupt payload: %w", err)
	}
	return nil, &Interrupt{NodeID: ec.nodeID, Payload: raw}
}

// Resuming reports whether the current node execution carries a resume value.
func Resuming(ctx Context) bool {
	ec, ok := ctx.(*executionContext)
	return ok && ec.input != nil && ec.input.resume != nil
}
