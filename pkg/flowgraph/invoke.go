package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/randalmurphal/tripflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/tripflow/pkg/flowgraph/observability"
)

// Status is the position of a session after an invocation.
type Status = checkpoint.Status

// Session statuses.
const (
	StatusRunning   = checkpoint.StatusRunning
	StatusSuspended = checkpoint.StatusSuspended
	StatusCompleted = checkpoint.StatusCompleted
	StatusFailed    = checkpoint.StatusFailed
)

// ErrSessionNotFound is joined with ErrInvalidInput when an unknown session
// is addressed without initial input.
var ErrSessionNotFound = errors.New("session not found")

// Request is one call into a session: fresh input, a resume value, or
// neither (an observation).
type Request[S any] struct {
	// Input starts a new session. Ignored for suspended sessions.
	Input *S
	// Resume is delivered to the pending RequestInput when Resuming is set.
	// It may legitimately be a zero value such as false or "".
	Resume   any
	Resuming bool
}

// StartWith builds a Request that starts a session from input.
func StartWith[S any](input S) Request[S] {
	return Request[S]{Input: &input}
}

// ResumeWith builds a Request that answers a pending interrupt.
func ResumeWith[S any](value any) Request[S] {
	return Request[S]{Resume: value, Resuming: true}
}

// Outcome describes where a session stands after Invoke returns.
type Outcome[S any] struct {
	SessionID string
	Status    Status
	State     S
	// NodeID is the node the session stopped at: the suspended or failed
	// node, or the last node executed.
	NodeID string
	// Interrupt is the pending request when Status is StatusSuspended.
	Interrupt *Interrupt
	// Err is the stage failure when Status is StatusFailed.
	Err error

	stages int
}

// Invoke advances a persisted session by one call.
//
// Dispatch:
//   - unknown session: Input is required and execution starts at the entry
//     node; otherwise ErrInvalidInput (joined with ErrSessionNotFound).
//   - suspended session: a resume value replays the suspended node with that
//     value; without one, the pending interrupt is returned again.
//   - running session (a previous process stopped mid-run): continues at the
//     stored next node.
//   - completed or failed session: returns the stored outcome; input or a
//     resume value yields ErrSessionBusyOrDone.
//
// State is persisted after every node, on suspension, on completion, and on
// failure. Calls for the same session are serialized.
//
// A returned error means the call was rejected or could not be recorded;
// stage failures are reported as an Outcome with StatusFailed. Protocol
// violations (ErrInvalidResume, ErrDoubleInterrupt) leave the session
// exactly as it was before the call. So does cancellation of ctx: a
// stage interrupted by it is not recorded and runs again on the next call.
// With WithDetachedStages, ctx only bounds the wait for the session.
func (cg *CompiledGraph[S, U]) Invoke(ctx Context, store checkpoint.Store, sessionID string, req Request[S], opts ...RunOption) (*Outcome[S], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if req.Input != nil && req.Resuming {
		return nil, fmt.Errorf("%w: input and resume value are mutually exclusive", ErrInvalidInput)
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	unlock, err := cg.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("wait for session %s: %w", sessionID, err)
	}
	defer unlock()

	ec := asExecutionContext(ctx).forSession(sessionID)
	if cfg.detached {
		ec = ec.detach()
	}

	cp, err := cg.loadLatest(store, sessionID)
	if err != nil {
		return nil, err
	}

	cur, mode, stored, err := cg.position(sessionID, cp, req)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		observability.LogSessionStart(cfg.logger, sessionID, modeObserve, stored.NodeID)
		return stored, nil
	}

	start := time.Now()
	observability.LogSessionStart(cfg.logger, sessionID, mode, cur.node)

	spanCtx, span := cfg.spans.StartSessionSpan(ec, cg.name, sessionID, mode)
	ec = ec.withTracing(spanCtx)

	persist := func(c *cursor[S], status Status, next string, intr *Interrupt, failure error) error {
		return cg.save(ec, store, &cfg, c, status, next, intr, failure)
	}

	out, err := cg.drive(ec, cur, &cfg, persist)
	if out != nil {
		out.SessionID = sessionID
		out.stages = cur.stages
	}
	cg.finish(ec, &cfg, start, span, out, err)

	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reset discards every checkpoint of a session.
func (cg *CompiledGraph[S, U]) Reset(store checkpoint.Store, sessionID string) error {
	unlock, err := cg.locks.Lock(context.Background(), sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	return store.DeleteSession(sessionID)
}

// position decides where an invocation starts. It returns either a cursor
// to drive or a stored outcome for pure observations.
func (cg *CompiledGraph[S, U]) position(sessionID string, cp *checkpoint.Checkpoint, req Request[S]) (*cursor[S], string, *Outcome[S], error) {
	if cp == nil {
		if req.Input == nil {
			return nil, "", nil, fmt.Errorf("%w: %w: %s", ErrInvalidInput, ErrSessionNotFound, sessionID)
		}
		return &cursor[S]{state: *req.Input, node: cg.entryPoint, attempt: 1}, modeStart, nil, nil
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, "", nil, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	cur := &cursor[S]{
		state:    state,
		node:     cp.NextNode,
		prev:     cp.NodeID,
		attempt:  1,
		sequence: cp.Sequence,
	}

	switch cp.Status {
	case StatusSuspended:
		if !req.Resuming {
			return nil, "", storedOutcome(sessionID, cp, state), nil
		}
		cur.node = cp.NodeID
		cur.prev = cp.PrevNodeID
		cur.attempt = cp.Attempt + 1
		cur.resume = &resumeValue{value: req.Resume}
		if !cg.HasNode(cur.node) {
			return nil, "", nil, fmt.Errorf("%w: %s", ErrInvalidResumeNode, cur.node)
		}
		return cur, modeResume, nil, nil

	case StatusRunning:
		if req.Input != nil || req.Resuming {
			return nil, "", nil, fmt.Errorf("%w: %s is %s", ErrSessionBusyOrDone, sessionID, cp.Status)
		}
		if cur.node != END && !cg.HasNode(cur.node) {
			return nil, "", nil, fmt.Errorf("%w: %s", ErrInvalidResumeNode, cur.node)
		}
		return cur, modeRecover, nil, nil

	default:
		if req.Input != nil || req.Resuming {
			return nil, "", nil, fmt.Errorf("%w: %s is %s", ErrSessionBusyOrDone, sessionID, cp.Status)
		}
		return nil, "", storedOutcome(sessionID, cp, state), nil
	}
}

func storedOutcome[S any](sessionID string, cp *checkpoint.Checkpoint, state S) *Outcome[S] {
	out := &Outcome[S]{
		SessionID: sessionID,
		Status:    cp.Status,
		State:     state,
		NodeID:    cp.NodeID,
	}
	if cp.Interrupt != nil {
		out.Interrupt = &Interrupt{NodeID: cp.Interrupt.NodeID, Payload: cp.Interrupt.Payload}
	}
	if cp.Error != "" {
		out.Err = errors.New(cp.Error)
	}
	return out
}

// loadLatest returns the newest checkpoint, or nil for an unknown session.
func (cg *CompiledGraph[S, U]) loadLatest(store checkpoint.Store, sessionID string) (*checkpoint.Checkpoint, error) {
	cp, err := checkpoint.Latest(store, sessionID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &CheckpointError{Op: "load", Err: err}
	}
	if cp.Version != checkpoint.Version {
		return nil, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}
	return cp, nil
}

// save persists the cursor as the session's newest checkpoint.
func (cg *CompiledGraph[S, U]) save(ec *executionContext, store checkpoint.Store, cfg *runConfig, cur *cursor[S], status Status, next string, intr *Interrupt, failure error) error {
	stateBytes, err := json.Marshal(cur.state)
	if err != nil {
		observability.LogCheckpointError(cfg.logger, cur.node, "serialize", err)
		return &CheckpointError{NodeID: cur.node, Op: "serialize", Err: fmt.Errorf("%w: %v", ErrSerializeState, err)}
	}

	cur.sequence++
	cp := checkpoint.New(ec.sessionID, cur.node, cur.sequence, stateBytes, next).
		WithPrevNode(cur.prev).
		WithAttempt(cur.attempt)

	switch status {
	case StatusSuspended:
		cp.Suspended(intr.Payload)
	case StatusFailed:
		cp.Failed(failure.Error())
	case StatusCompleted:
		cp.Completed()
	}

	data, err := cp.Marshal()
	if err != nil {
		observability.LogCheckpointError(cfg.logger, cur.node, "marshal", err)
		return &CheckpointError{NodeID: cur.node, Op: "marshal", Err: err}
	}

	if err := store.Save(ec.sessionID, cur.node, data); err != nil {
		observability.LogCheckpointError(cfg.logger, cur.node, "save", err)
		return &CheckpointError{NodeID: cur.node, Op: "save", Err: err}
	}

	observability.LogCheckpoint(cfg.logger, cur.node, string(status), len(data))
	cfg.metrics.RecordCheckpoint(ec, cur.node, int64(len(data)))
	return nil
}
