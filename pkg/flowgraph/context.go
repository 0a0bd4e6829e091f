package flowgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context provides execution context to nodes.
// It extends context.Context with flowgraph-specific services and metadata.
//
// Context is immutable after creation. The executor creates derived contexts
// for each node with updated NodeID and enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with session and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// SessionID returns the identifier of the session being advanced.
	// Auto-generated if not configured.
	SessionID() string

	// NodeID returns the current node being executed.
	// Empty string before execution starts.
	NodeID() string

	// Attempt returns how many times the current node has been entered in a
	// row; a resumed node is on attempt 2 or later.
	Attempt() int
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger    *slog.Logger
	sessionID string
	nodeID    string
	attempt   int

	// input is set only on node contexts and carries the resume value.
	input *inputSlot
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// SessionID returns the session identifier.
func (c *executionContext) SessionID() string {
	return c.sessionID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Attempt returns the attempt number.
func (c *executionContext) Attempt() int {
	return c.attempt
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with session_id, node_id, and attempt during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSessionID sets the session identifier for the context.
// Invoke overrides it with the session being advanced.
func WithSessionID(id string) ContextOption {
	return func(c *executionContext) {
		c.sessionID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background(),
//	    flowgraph.WithLogger(myLogger))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context:   ctx,
		logger:    slog.Default(),
		sessionID: uuid.New().String(),
		attempt:   1,
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// asExecutionContext adopts any Context so the executor can derive node contexts.
func asExecutionContext(ctx Context) *executionContext {
	if ec, ok := ctx.(*executionContext); ok {
		return ec
	}
	return &executionContext{
		Context:   ctx,
		logger:    ctx.Logger(),
		sessionID: ctx.SessionID(),
		attempt:   1,
	}
}

// forSession returns a copy bound to sessionID.
func (c *executionContext) forSession(sessionID string) *executionContext {
	cp := *c
	cp.sessionID = sessionID
	cp.input = nil
	return &cp
}

// detach returns a copy that keeps the values of its context but ignores
// its cancellation and deadline.
func (c *executionContext) detach() *executionContext {
	cp := *c
	cp.Context = context.WithoutCancel(c.Context)
	return &cp
}

// withTracing returns a copy whose context.Context carries the span context.
func (c *executionContext) withTracing(ctx context.Context) *executionContext {
	cp := *c
	cp.Context = ctx
	return &cp
}

// withNode returns a context for one node execution.
// A fresh input slot is attached so RequestInput sees only this execution.
func (c *executionContext) withNode(nodeID string, attempt int, resume *resumeValue) *executionContext {
	return &executionContext{
		Context:   c.Context,
		logger:    c.logger.With("session_id", c.sessionID, "node_id", nodeID, "attempt", attempt),
		sessionID: c.sessionID,
		nodeID:    nodeID,
		attempt:   attempt,
		input:     &inputSlot{resume: resume},
	}
}
