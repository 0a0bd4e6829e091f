package flowgraph

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/tripflow/pkg/flowgraph/observability"
)

const (
	// DefaultMaxIterations bounds node executions per invocation.
	DefaultMaxIterations = 1000
	// MaxIterationsLimit is the largest value WithMaxIterations accepts.
	MaxIterationsLimit = 100000
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxIterations  int
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	detached       bool
}

// defaultRunConfig returns the default execution configuration.
func defaultRunConfig() runConfig {
	return runConfig{
		maxIterations: DefaultMaxIterations,
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
	}
}

// RunOption configures execution behavior for Run and Invoke.
type RunOption func(*runConfig)

// WithMaxIterations sets the maximum number of node executions per call.
// Default: 1000
//
// This prevents loops (such as a refinement back-edge) from running
// forever. If a call exceeds this limit, the session fails with
// ErrMaxIterations.
//
// Panics if n <= 0 or n > MaxIterationsLimit.
func WithMaxIterations(n int) RunOption {
	if n <= 0 {
		panic("flowgraph: max iterations must be > 0")
	}
	if n > MaxIterationsLimit {
		panic(fmt.Sprintf("flowgraph: max iterations exceeds limit (%d)", MaxIterationsLimit))
	}
	return func(c *runConfig) {
		c.maxIterations = n
	}
}

// WithObservabilityLogger enables structured session and node logs.
// Passing nil disables them.
func WithObservabilityLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter provider.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans through the global tracer provider.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithDetachedStages runs stages on a context that ignores the caller's
// cancellation and deadline. The caller's context still bounds the wait
// for a busy session in Invoke. Once a stage starts it runs to completion
// or failure even if the caller goes away.
func WithDetachedStages() RunOption {
	return func(c *runConfig) {
		c.detached = true
	}
}
