package flowgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/tripflow/pkg/flowgraph/checkpoint"
	"github.com/randalmurphal/tripflow/pkg/flowgraph/observability"
)

// testLogHandler captures log records for testing.
type testLogHandler struct {
	buf   *bytes.Buffer
	level slog.Level
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testLogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})
	enc := json.NewEncoder(h.buf)
	return enc.Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *testLogHandler) WithGroup(name string) slog.Handler {
	return h
}

func (h *testLogHandler) getRecords() []map[string]any {
	var records []map[string]any
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for _, line := range lines {
		if len(line) > 0 {
			var m map[string]any
			if err := json.Unmarshal(line, &m); err == nil {
				records = append(records, m)
			}
		}
	}
	return records
}

func recordsWithMsg(records []map[string]any, msg string) []map[string]any {
	var out []map[string]any
	for _, r := range records {
		if r["msg"] == msg {
			out = append(out, r)
		}
	}
	return out
}

func linearCounterGraph(t *testing.T) *CompiledGraph[Counter, Delta] {
	t.Helper()
	compiled, err := newCounterGraph().
		AddNode("inc1", increment).
		AddNode("inc2", increment).
		AddEdge("inc1", "inc2").
		AddEdge("inc2", END).
		SetEntry("inc1").
		Compile()
	require.NoError(t, err)
	return compiled
}

func TestRun_WithObservabilityLogger(t *testing.T) {
	handler := newTestLogHandler()
	logger := slog.New(handler)
	compiled := linearCounterGraph(t)

	ctx := NewContext(context.Background(), WithSessionID("task-0badf00d"))
	result, err := compiled.Run(ctx, Counter{Value: 0}, WithObservabilityLogger(logger))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)

	records := handler.getRecords()

	starts := recordsWithMsg(records, "session invocation starting")
	require.Len(t, starts, 1)
	assert.Equal(t, "task-0badf00d", starts[0]["session_id"])
	assert.Equal(t, "start", starts[0]["mode"])
	assert.Equal(t, "inc1", starts[0]["from_node"])

	assert.Len(t, recordsWithMsg(records, "node starting"), 2)

	completes := recordsWithMsg(records, "node completed")
	require.Len(t, completes, 2)
	assert.Equal(t, "inc2", completes[0]["next_node"])
	assert.Equal(t, END, completes[1]["next_node"])

	done := recordsWithMsg(records, "session completed")
	require.Len(t, done, 1)
	assert.Equal(t, "task-0badf00d", done[0]["session_id"])
	assert.EqualValues(t, 2, done[0]["stages_executed"])
}

func TestRun_WithObservabilityLogger_Error(t *testing.T) {
	handler := newTestLogHandler()
	logger := slog.New(handler)

	compiled, err := newCounterGraph().
		AddNode("fail", makeFailingNode("fail", errors.New("intentional failure"))).
		AddEdge("fail", END).
		SetEntry("fail").
		Compile()
	require.NoError(t, err)

	_, err = compiled.Run(testCtx(), Counter{}, WithObservabilityLogger(logger))
	require.Error(t, err)

	records := handler.getRecords()

	nodeErrs := recordsWithMsg(records, "node failed")
	require.Len(t, nodeErrs, 1)
	assert.Equal(t, "fail", nodeErrs[0]["node_id"])
	assert.Equal(t, "ERROR", nodeErrs[0]["level"])

	sessionErrs := recordsWithMsg(records, "session failed")
	require.Len(t, sessionErrs, 1)
	assert.Equal(t, "fail", sessionErrs[0]["last_node"])
	assert.Contains(t, sessionErrs[0]["error"], "intentional failure")
}

func TestInvoke_WithObservabilityLogger_Suspension(t *testing.T) {
	handler := newTestLogHandler()
	logger := slog.New(handler)
	compiled := approvalGraph(t)
	store := checkpoint.NewMemoryStore()

	_, err := compiled.Invoke(testCtx(), store, "session-1", StartWith(Counter{}), WithObservabilityLogger(logger))
	require.NoError(t, err)

	records := handler.getRecords()

	asks := recordsWithMsg(records, "node requested input")
	require.Len(t, asks, 1)
	assert.Equal(t, "ask", asks[0]["node_id"])

	suspended := recordsWithMsg(records, "session suspended")
	require.Len(t, suspended, 1)
	assert.Equal(t, "session-1", suspended[0]["session_id"])
	assert.Equal(t, "ask", suspended[0]["node_id"])

	saved := recordsWithMsg(records, "checkpoint saved")
	require.Len(t, saved, 2)
	assert.Equal(t, "running", saved[0]["status"])
	assert.Equal(t, "suspended", saved[1]["status"])

	_, err = compiled.Invoke(testCtx(), store, "session-1", ResumeWith[Counter]("yes"), WithObservabilityLogger(logger))
	require.NoError(t, err)

	var modes []any
	for _, r := range recordsWithMsg(handler.getRecords(), "session invocation starting") {
		modes = append(modes, r["mode"])
	}
	assert.Equal(t, []any{"start", "resume"}, modes)
}

func TestRun_WithMetrics_Disabled(t *testing.T) {
	compiled := linearCounterGraph(t)

	result, err := compiled.Run(testCtx(), Counter{}, WithMetrics(false))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)
}

func TestRun_WithMetrics_Enabled(t *testing.T) {
	compiled := linearCounterGraph(t)

	result, err := compiled.Run(testCtx(), Counter{}, WithMetrics(true))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)
}

func TestRun_WithTracing_Disabled(t *testing.T) {
	compiled := linearCounterGraph(t)

	result, err := compiled.Run(testCtx(), Counter{}, WithTracing(false))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)
}

func TestRun_WithTracing_Enabled(t *testing.T) {
	compiled := linearCounterGraph(t)

	result, err := compiled.Run(testCtx(), Counter{}, WithTracing(true))

	require.NoError(t, err)
	assert.Equal(t, 2, result.Value)
}

func TestInvoke_WithAllObservability(t *testing.T) {
	handler := newTestLogHandler()
	logger := slog.New(handler)
	compiled := approvalGraph(t)
	store := checkpoint.NewMemoryStore()

	out, err := compiled.Invoke(testCtx(), store, "session-1", StartWith(Counter{}),
		WithObservabilityLogger(logger),
		WithMetrics(true),
		WithTracing(true),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, out.Status)

	out, err = compiled.Invoke(testCtx(), store, "session-1", ResumeWith[Counter]("yes"),
		WithObservabilityLogger(logger),
		WithMetrics(true),
		WithTracing(true),
	)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.NotEmpty(t, handler.getRecords())
}

func TestRun_ObservabilityOptions_AreApplied(t *testing.T) {
	cfg := defaultRunConfig()
	assert.Nil(t, cfg.logger)
	assert.False(t, cfg.tracingEnabled)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
	assert.IsType(t, observability.NoopSpanManager{}, cfg.spans)

	logger := slog.New(newTestLogHandler())
	WithObservabilityLogger(logger)(&cfg)
	WithMetrics(true)(&cfg)
	WithTracing(true)(&cfg)

	assert.Same(t, logger, cfg.logger)
	assert.True(t, cfg.tracingEnabled)

	WithMetrics(false)(&cfg)
	assert.IsType(t, observability.NoopMetrics{}, cfg.metrics)
}
