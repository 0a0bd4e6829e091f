package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testHandler captures log records for testing.
type testHandler struct {
	buf    *bytes.Buffer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newTestHandler() *testHandler {
	return &testHandler{
		buf:   &bytes.Buffer{},
		level: slog.LevelDebug,
	}
}

func (h *testHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *testHandler) Handle(_ context.Context, r slog.Record) error {
	// Build a map from the record
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}

	// Add pre-configured attrs
	for _, attr := range h.attrs {
		data[attr.Key] = attr.Value.Any()
	}

	// Add record attrs
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	// Encode as JSON
	enc := json.NewEncoder(h.buf)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return nil
}

func (h *testHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)+len(attrs)),
		groups: h.groups,
	}
	copy(newH.attrs, h.attrs)
	copy(newH.attrs[len(h.attrs):], attrs)
	return newH
}

func (h *testHandler) WithGroup(name string) slog.Handler {
	newH := &testHandler{
		buf:    h.buf,
		level:  h.level,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
	return newH
}

func (h *testHandler) getLastRecord() map[string]any {
	lines := bytes.Split(h.buf.Bytes(), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) > 0 {
			var m map[string]any
			if err := json.Unmarshal(lines[i], &m); err == nil {
				return m
			}
		}
	}
	return nil
}

func (h *testHandler) getAllRecords() []map[string]any {
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

func TestEnrichLogger(t *testing.T) {
	t.Run("adds session_id, node_id, and attempt", func(t *testing.T) {
		h := newTestHandler()
		logger := slog.New(h)

		enriched := EnrichLogger(logger, "task-1a2b3c4d", "traffic_query", 2)
		enriched.Info("test message")

		record := h.getLastRecord()
		require.NotNil(t, record)
		assert.Equal(t, "task-1a2b3c4d", record["session_id"])
		assert.Equal(t, "traffic_query", record["node_id"])
		assert.Equal(t, float64(2), record["attempt"]) // JSON decodes ints as float64
		assert.Equal(t, "test message", record["msg"])
	})

	t.Run("nil logger returns nil", func(t *testing.T) {
		assert.Nil(t, EnrichLogger(nil, "s", "n", 1))
	})
}

func TestLogSessionLifecycle(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogSessionStart(logger, "s1", "resume", "transport_approval_gate")
	LogSessionSuspended(logger, "s1", "user_select_transport", 12)
	LogSessionComplete(logger, "s2", 40, 7)
	LogSessionError(logger, "s3", errors.New("boom"), 5, "check_constraints")

	records := h.getAllRecords()
	require.Len(t, records, 4)

	assert.Equal(t, "session invocation starting", records[0]["msg"])
	assert.Equal(t, "resume", records[0]["mode"])
	assert.Equal(t, "transport_approval_gate", records[0]["from_node"])

	assert.Equal(t, "session suspended", records[1]["msg"])
	assert.Equal(t, "user_select_transport", records[1]["node_id"])

	assert.Equal(t, "session completed", records[2]["msg"])
	assert.Equal(t, float64(7), records[2]["stages_executed"])

	assert.Equal(t, "ERROR", records[3]["level"])
	assert.Equal(t, "boom", records[3]["error"])
	assert.Equal(t, "check_constraints", records[3]["last_node"])
}

func TestLogNodeHelpers(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogNodeStart(logger, "plan_day_1_by_llm")
	LogNodeComplete(logger, "plan_day_1_by_llm", "user_select_research_mode", 3)
	LogNodeError(logger, "auto_research", errors.New("generation failed"))
	LogInterrupt(logger, "user_select_research_mode", 128)

	records := h.getAllRecords()
	require.Len(t, records, 4)

	assert.Equal(t, "DEBUG", records[0]["level"])
	assert.Equal(t, "node starting", records[0]["msg"])
	assert.Equal(t, "user_select_research_mode", records[1]["next_node"])
	assert.Equal(t, "ERROR", records[2]["level"])
	assert.Equal(t, "generation failed", records[2]["error"])
	assert.Equal(t, "node requested input", records[3]["msg"])
	assert.Equal(t, float64(128), records[3]["payload_bytes"])
}

func TestLogCheckpointHelpers(t *testing.T) {
	h := newTestHandler()
	logger := slog.New(h)

	LogCheckpoint(logger, "geocode_locations", "running", 512)
	LogCheckpointError(logger, "geocode_locations", "save", errors.New("disk full"))

	records := h.getAllRecords()
	require.Len(t, records, 2)
	assert.Equal(t, "running", records[0]["status"])
	assert.Equal(t, float64(512), records[0]["size_bytes"])
	assert.Equal(t, "WARN", records[1]["level"])
	assert.Equal(t, "save", records[1]["operation"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogSessionStart(nil, "s", "start", "n")
		LogSessionSuspended(nil, "s", "n", 0)
		LogSessionComplete(nil, "s", 0, 0)
		LogSessionError(nil, "s", errors.New("x"), 0, "n")
		LogNodeStart(nil, "n")
		LogNodeComplete(nil, "n", "m", 0)
		LogNodeError(nil, "n", errors.New("x"))
		LogInterrupt(nil, "n", 0)
		LogCheckpoint(nil, "n", "running", 0)
		LogCheckpointError(nil, "n", "save", errors.New("x"))
	})
}
