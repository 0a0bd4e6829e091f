package flowgraph

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/tripflow/pkg/flowgraph/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	modeStart   = "start"
	modeResume  = "resume"
	modeObserve = "observe"
	modeRecover = "recover"
)

// cursor is the executor's position inside one invocation.
type cursor[S any] struct {
	state    S
	node     string
	prev     string
	attempt  int
	sequence int
	stages   int

	// resume is delivered to the first node executed, then cleared.
	resume *resumeValue
}

// persistFunc saves the cursor after a transition. nil disables persistence.
type persistFunc[S any] func(cur *cursor[S], status Status, next string, intr *Interrupt, failure error) error

// Run executes the graph in memory from the entry point without a session
// store. It is meant for tests and one-shot pipelines.
//
// On success, returns the state after the last node before END.
// If a node requests input, Run returns the state at that point and an
// *Interrupt (errors.Is(err, ErrInterrupted) is true).
// On failure, returns the state including the failing node's update and the
// node error.
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, initialState)
func (cg *CompiledGraph[S, U]) Run(ctx Context, state S, opts ...RunOption) (S, error) {
	if ctx == nil {
		return state, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ec := asExecutionContext(ctx)
	start := time.Now()
	observability.LogSessionStart(cfg.logger, ec.sessionID, modeStart, cg.entryPoint)

	spanCtx, span := cfg.spans.StartSessionSpan(ec, cg.name, ec.sessionID, modeStart)
	ec = ec.withTracing(spanCtx)

	cur := &cursor[S]{state: state, node: cg.entryPoint, attempt: 1}
	out, err := cg.drive(ec, cur, &cfg, nil)
	if out != nil {
		out.SessionID = ec.sessionID
		out.stages = cur.stages
	}
	cg.finish(ec, &cfg, start, span, out, err)

	if err != nil {
		return cur.state, err
	}
	switch out.Status {
	case StatusSuspended:
		return out.State, out.Interrupt
	case StatusFailed:
		return out.State, out.Err
	}
	return out.State, nil
}

// drive runs nodes from cur.node until END, a suspension, or a failure.
//
// Stage failures are reported in the Outcome. A non-nil error means the
// invocation itself broke: cancellation, a protocol violation, or a
// checkpoint that could not be written.
func (cg *CompiledGraph[S, U]) drive(ec *executionContext, cur *cursor[S], cfg *runConfig, persist persistFunc[S]) (*Outcome[S], error) {
	iterations := 0

	for cur.node != END {
		iterations++
		if iterations > cfg.maxIterations {
			return cg.fail(cur, &MaxIterationsError{Max: cfg.maxIterations, LastNodeID: cur.node}, persist)
		}

		select {
		case <-ec.Done():
			return nil, &CancellationError{NodeID: cur.node, Cause: ec.Err()}
		default:
		}

		current := cur.node
		observability.LogNodeStart(cfg.logger, current)

		nodeSpanCtx, nodeSpan := cfg.spans.StartStageSpan(ec, current, cur.attempt)
		nodeCtx := ec.withTracing(nodeSpanCtx).withNode(current, cur.attempt, cur.resume)
		cur.resume = nil

		nodeStart := time.Now()
		cmd, nodeErr := cg.executeNode(nodeCtx, current, cur.state)
		nodeDuration := time.Since(nodeStart)

		var intr *Interrupt
		if errors.As(nodeErr, &intr) {
			intr.NodeID = current
			cfg.metrics.RecordStage(nodeSpanCtx, current, cur.attempt, nodeDuration, nil)
			cfg.metrics.RecordSuspend(nodeSpanCtx, current)
			cfg.spans.Event(nodeSpanCtx, "session.suspended", attribute.String("stage", current))
			cfg.spans.End(nodeSpan, nil)
			observability.LogInterrupt(cfg.logger, current, len(intr.Payload))

			if persist != nil {
				if err := persist(cur, StatusSuspended, current, intr, nil); err != nil {
					return nil, err
				}
			}
			return &Outcome[S]{Status: StatusSuspended, State: cur.state, NodeID: current, Interrupt: intr}, nil
		}

		cfg.metrics.RecordStage(nodeSpanCtx, current, cur.attempt, nodeDuration, nodeErr)
		cfg.spans.End(nodeSpan, nodeErr)

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			// A caller that went away mid-stage leaves the session at its
			// last checkpoint; the stage runs again on the next call.
			if ec.Err() != nil {
				return nil, &CancellationError{NodeID: current, Cause: ec.Err()}
			}
			if IsProtocolViolation(nodeErr) {
				cfg.metrics.RecordRejected(nodeSpanCtx, current)
				return nil, nodeErr
			}
			var panicErr *PanicError
			if !errors.As(nodeErr, &panicErr) {
				cur.state = cg.merge(cur.state, cmd.Update)
			}
			return cg.fail(cur, nodeErr, persist)
		}

		cur.state = cg.merge(cur.state, cmd.Update)

		next, err := cg.route(current, cmd.Goto)
		if err != nil {
			observability.LogNodeError(cfg.logger, current, err)
			return cg.fail(cur, err, persist)
		}

		observability.LogNodeComplete(cfg.logger, current, next, float64(nodeDuration.Milliseconds()))
		cur.stages++

		if persist != nil {
			status := StatusRunning
			if next == END {
				status = StatusCompleted
			}
			if err := persist(cur, status, next, nil, nil); err != nil {
				return nil, err
			}
		}

		cur.prev = current
		cur.node = next
		cur.attempt = 1
	}

	return &Outcome[S]{Status: StatusCompleted, State: cur.state, NodeID: cur.prev}, nil
}

// fail records a stage failure at cur.node.
func (cg *CompiledGraph[S, U]) fail(cur *cursor[S], failure error, persist persistFunc[S]) (*Outcome[S], error) {
	if persist != nil {
		if err := persist(cur, StatusFailed, cur.node, nil, failure); err != nil {
			return nil, err
		}
	}
	return &Outcome[S]{Status: StatusFailed, State: cur.state, NodeID: cur.node, Err: failure}, nil
}

// finish records invocation-level logs, metrics, and the session span.
func (cg *CompiledGraph[S, U]) finish(ec *executionContext, cfg *runConfig, start time.Time, span trace.Span, out *Outcome[S], err error) {
	duration := time.Since(start)
	durationMs := float64(duration.Milliseconds())

	status := "error"
	spanErr := err
	switch {
	case err != nil:
		lastNode := ""
		var cancelErr *CancellationError
		var nodeErr *NodeError
		if errors.As(err, &cancelErr) {
			lastNode = cancelErr.NodeID
		} else if errors.As(err, &nodeErr) {
			lastNode = nodeErr.NodeID
		}
		observability.LogSessionError(cfg.logger, ec.sessionID, err, durationMs, lastNode)
	case out.Status == StatusFailed:
		status = string(out.Status)
		spanErr = out.Err
		observability.LogSessionError(cfg.logger, ec.sessionID, out.Err, durationMs, out.NodeID)
	case out.Status == StatusSuspended:
		status = string(out.Status)
		observability.LogSessionSuspended(cfg.logger, ec.sessionID, out.NodeID, durationMs)
	default:
		status = string(out.Status)
		if out.Status == StatusCompleted {
			observability.LogSessionComplete(cfg.logger, ec.sessionID, durationMs, out.stages)
		}
	}

	cfg.metrics.RecordCall(ec, status, duration)
	cfg.spans.End(span, spanErr)
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph[S, U]) executeNode(ctx *executionContext, nodeID string, state S) (cmd Command[U], err error) {
	fn, exists := cg.nodes[nodeID]
	if !exists {
		return cmd, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("%w: %s", ErrInvalidResumeNode, nodeID),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			cmd = Command[U]{}
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	cmd, err = fn(ctx, state)
	if err != nil {
		return cmd, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}
	return cmd, nil
}

// route resolves the node that follows current.
func (cg *CompiledGraph[S, U]) route(current, target string) (string, error) {
	if target == "" {
		if to, ok := cg.defaults[current]; ok {
			return to, nil
		}
		return "", &RouterError{FromNode: current, Returned: target, Err: ErrInvalidRouterResult}
	}

	if cg.CanBranch(current, target) || cg.defaults[current] == target {
		return target, nil
	}
	return "", &RouterError{FromNode: current, Returned: target, Err: ErrRouterTargetNotFound}
}
