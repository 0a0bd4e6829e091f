package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNodeError_Error tests NodeError formatting.
func TestNodeError_Error(t *testing.T) {
	err := &NodeError{
		NodeID: "process",
		Op:     "execute",
		Err:    errors.New("connection failed"),
	}

	assert.Equal(t, "node process: execute: connection failed", err.Error())
}

// TestNodeError_Unwrap tests NodeError unwrapping.
func TestNodeError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying")
	err := &NodeError{
		NodeID: "test",
		Op:     "execute",
		Err:    underlying,
	}

	assert.ErrorIs(t, err, underlying)
}

// TestPanicError_Error tests PanicError formatting.
func TestPanicError_Error(t *testing.T) {
	err := &PanicError{
		NodeID: "crash",
		Value:  "unexpected nil",
		Stack:  "goroutine 1 [running]:\n...",
	}

	assert.Equal(t, "node crash panicked: unexpected nil", err.Error())
}

// TestCancellationError_Error tests cancellation error formatting.
func TestCancellationError_Error(t *testing.T) {
	err := &CancellationError{
		NodeID: "plan_day_2",
		Cause:  context.DeadlineExceeded,
	}

	assert.Equal(t, "cancelled at node plan_day_2: context deadline exceeded", err.Error())
}

// TestCancellationError_Unwrap tests CancellationError unwrapping.
func TestCancellationError_Unwrap(t *testing.T) {
	err := &CancellationError{
		NodeID: "test",
		Cause:  context.Canceled,
	}

	assert.ErrorIs(t, err, context.Canceled)
}

// TestRouterError_Error tests RouterError formatting.
func TestRouterError_Error(t *testing.T) {
	err := &RouterError{
		FromNode: "route",
		Returned: "unknown",
		Err:      ErrRouterTargetNotFound,
	}

	assert.Equal(t, "route from route to \"unknown\": goto target not declared", err.Error())
}

// TestRouterError_Unwrap tests RouterError unwrapping.
func TestRouterError_Unwrap(t *testing.T) {
	err := &RouterError{
		FromNode: "test",
		Returned: "",
		Err:      ErrInvalidRouterResult,
	}

	assert.ErrorIs(t, err, ErrInvalidRouterResult)
}

// TestMaxIterationsError_Error tests MaxIterationsError formatting.
func TestMaxIterationsError_Error(t *testing.T) {
	err := &MaxIterationsError{
		Max:        1000,
		LastNodeID: "loop",
	}

	assert.Equal(t, "exceeded maximum iterations (1000) at node loop", err.Error())
}

// TestMaxIterationsError_Unwrap tests MaxIterationsError unwrapping.
func TestMaxIterationsError_Unwrap(t *testing.T) {
	err := &MaxIterationsError{
		Max:        100,
		LastNodeID: "test",
	}

	assert.ErrorIs(t, err, ErrMaxIterations)
}

// TestCheckpointError tests CheckpointError formatting and unwrapping.
func TestCheckpointError(t *testing.T) {
	err := &CheckpointError{
		NodeID: "select_train",
		Op:     "save",
		Err:    ErrSerializeState,
	}

	assert.Equal(t, "checkpoint save at node select_train: failed to serialize state", err.Error())
	assert.ErrorIs(t, err, ErrSerializeState)
}

// TestInterrupt_MatchesErrInterrupted tests that any *Interrupt matches the sentinel.
func TestInterrupt_MatchesErrInterrupted(t *testing.T) {
	var err error = &NodeError{
		NodeID: "approve",
		Op:     "execute",
		Err:    &Interrupt{NodeID: "approve", Payload: []byte(`{"type":"approval"}`)},
	}

	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, "node approve requested input", (&Interrupt{NodeID: "approve"}).Error())
}

// TestIsProtocolViolation tests classification of interrupt protocol errors.
func TestIsProtocolViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"invalid resume", fmt.Errorf("bad index: %w", ErrInvalidResume), true},
		{"double interrupt", &NodeError{NodeID: "x", Op: "execute", Err: ErrDoubleInterrupt}, true},
		{"not in node", ErrNotInNode, true},
		{"interrupt", &Interrupt{NodeID: "x"}, false},
		{"plain", errors.New("provider down"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProtocolViolation(tt.err))
		})
	}
}
