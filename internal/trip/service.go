package trip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/randalmurphal/tripflow/internal/plan"
	"github.com/randalmurphal/tripflow/pkg/flowgraph"
	"github.com/randalmurphal/tripflow/pkg/flowgraph/checkpoint"
)

// Status is what a caller learns about a session after a call.
type Status string

// Session statuses as seen by callers.
const (
	StatusNeedInteraction Status = "NEED_INTERACTION"
	StatusCompleted       Status = "COMPLETED"
	StatusFailed          Status = "FAILED"
)

// ErrInvalidInput is returned for requests that can neither start nor
// resume a session.
var ErrInvalidInput = flowgraph.ErrInvalidInput

// ErrSessionNotFound is returned when observing an unknown session.
var ErrSessionNotFound = flowgraph.ErrSessionNotFound

// RunRequest is one call into a session. Input starts a session; Resume
// answers the pending prompt when Resuming is set. The two are mutually
// exclusive. With neither, the call observes the session.
type RunRequest struct {
	SessionID string
	Input     *string
	Resume    any
	Resuming  bool
}

// RunResponse describes a session after a call.
type RunResponse struct {
	SessionID string       `json:"thread_id"`
	Status    Status       `json:"status"`
	Prompt    *plan.Prompt `json:"interrupt_data,omitempty"`
	Report    string       `json:"final_result,omitempty"`
	Error     string       `json:"error,omitempty"`
	// Stage is where the session stopped.
	Stage string     `json:"stage,omitempty"`
	State plan.State `json:"-"`
}

// Service runs trip planning sessions against a checkpoint store.
type Service struct {
	pipeline *Pipeline
	store    checkpoint.Store
	logger   *slog.Logger
	runOpts  []flowgraph.RunOption
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger handed to stages.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunOptions passes executor options to every invocation.
func WithRunOptions(opts ...flowgraph.RunOption) ServiceOption {
	return func(s *Service) { s.runOpts = append(s.runOpts, opts...) }
}

// NewService compiles p's pipeline and serves it from store.
func NewService(p *Planner, store checkpoint.Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("trip: checkpoint store is required")
	}
	pipeline, err := p.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile pipeline: %w", err)
	}
	s := &Service{
		pipeline: pipeline,
		store:    store,
		logger:   slog.Default(),
		runOpts:  []flowgraph.RunOption{flowgraph.WithDetachedStages()},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSessionID returns a fresh session identifier.
func NewSessionID() string {
	return "task-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Run advances a session by one call. A missing session id starts a new
// session under a generated id. Stage failures are reported in the
// response; a returned error means the call was rejected, as for an
// invalid resume value, and the session is unchanged.
//
// ctx bounds only the wait for a session busy with another call. A stage
// that has started finishes even if ctx is cancelled.
func (s *Service) Run(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if req.Input != nil && req.Resuming {
		return nil, fmt.Errorf("%w: input and resume value are mutually exclusive", ErrInvalidInput)
	}
	id := req.SessionID
	if id == "" {
		if req.Input == nil {
			return nil, fmt.Errorf("%w: a new session needs input", ErrInvalidInput)
		}
		id = NewSessionID()
	}

	var fr flowgraph.Request[plan.State]
	switch {
	case req.Input != nil:
		if strings.TrimSpace(*req.Input) == "" {
			return nil, fmt.Errorf("%w: input is empty", ErrInvalidInput)
		}
		fr = flowgraph.StartWith(plan.State{User: plan.User{RawInput: *req.Input}})
	case req.Resuming:
		fr = flowgraph.ResumeWith[plan.State](req.Resume)
	}

	return s.invoke(ctx, id, fr)
}

// Get observes a session without changing it.
func (s *Service) Get(ctx context.Context, sessionID string) (*RunResponse, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	return s.invoke(ctx, sessionID, flowgraph.Request[plan.State]{})
}

// Reset discards a session.
func (s *Service) Reset(sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	return s.pipeline.Reset(s.store, sessionID)
}

func (s *Service) invoke(ctx context.Context, id string, req flowgraph.Request[plan.State]) (*RunResponse, error) {
	fctx := flowgraph.NewContext(ctx,
		flowgraph.WithLogger(s.logger),
		flowgraph.WithSessionID(id))

	out, err := s.pipeline.Invoke(fctx, s.store, id, req, s.runOpts...)
	if err != nil {
		return nil, err
	}
	return respond(out)
}

func respond(out *flowgraph.Outcome[plan.State]) (*RunResponse, error) {
	resp := &RunResponse{SessionID: out.SessionID, Stage: out.NodeID, State: out.State}

	switch out.Status {
	case flowgraph.StatusSuspended:
		if out.Interrupt == nil {
			return nil, fmt.Errorf("session %s suspended without a prompt", out.SessionID)
		}
		p, err := plan.DecodePrompt(out.Interrupt.Payload)
		if err != nil {
			return nil, err
		}
		resp.Status = StatusNeedInteraction
		resp.Prompt = &p
	case flowgraph.StatusCompleted:
		resp.Status = StatusCompleted
		resp.Report = out.State.Itinerary.Report
	case flowgraph.StatusFailed:
		resp.Status = StatusFailed
		resp.Error = out.State.Control.ErrorMessage
		if resp.Error == "" && out.Err != nil {
			resp.Error = out.Err.Error()
		}
	default:
		return nil, fmt.Errorf("session %s is %s", out.SessionID, out.Status)
	}
	return resp, nil
}
