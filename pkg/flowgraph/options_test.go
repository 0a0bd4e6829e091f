package flowgraph

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/tripflow/pkg/flowgraph/observability"
)

func applyRunOptions(opts ...RunOption) runConfig {
	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func TestDefaultRunConfig(t *testing.T) {
	cfg := defaultRunConfig()
	assert.Equal(t, DefaultMaxIterations, cfg.maxIterations)
	assert.Nil(t, cfg.logger)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, cfg.spans)
	assert.False(t, cfg.tracingEnabled)
}

func TestWithMaxIterations(t *testing.T) {
	for _, n := range []int{1, 15, DefaultMaxIterations, MaxIterationsLimit} {
		assert.Equal(t, n, applyRunOptions(WithMaxIterations(n)).maxIterations)
	}

	for _, n := range []int{0, -1} {
		assert.PanicsWithValue(t, "flowgraph: max iterations must be > 0", func() {
			WithMaxIterations(n)
		})
	}
	assert.PanicsWithValue(t, "flowgraph: max iterations exceeds limit (100000)", func() {
		WithMaxIterations(MaxIterationsLimit + 1)
	})
}

func TestWithObservabilityLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.Same(t, logger, applyRunOptions(WithObservabilityLogger(logger)).logger)
	assert.Nil(t, applyRunOptions(WithObservabilityLogger(logger), WithObservabilityLogger(nil)).logger)
}

func TestWithMetricsAndTracing_Toggle(t *testing.T) {
	on := applyRunOptions(WithMetrics(true), WithTracing(true))
	assert.NotEqual(t, observability.MetricsRecorder(observability.NoopMetrics{}), on.metrics)
	assert.True(t, on.tracingEnabled)
	assert.NotEqual(t, observability.NoopSpanManager{}, on.spans)

	// The last option wins.
	off := applyRunOptions(WithMetrics(true), WithMetrics(false), WithTracing(true), WithTracing(false))
	assert.IsType(t, observability.NoopMetrics{}, off.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, off.spans)
	assert.False(t, off.tracingEnabled)
}
