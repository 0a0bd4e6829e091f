package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*otelMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := newOtelMetrics(provider)
	require.NoError(t, err)
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		assert.Equal(t, MeterName, sm.Scope.Name)
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

// sumBy totals an int64 sum's data points whose attribute key equals value.
func sumBy(t *testing.T, m metricdata.Metrics, key attribute.Key, value string) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is %T", m.Name, m.Data)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(key); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestRecordStage(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordStage(ctx, "geocode_locations", 1, 40*time.Millisecond, nil)
	m.RecordStage(ctx, "user_select_transport", 2, 5*time.Millisecond, nil)
	m.RecordStage(ctx, "traffic_query", 1, time.Second, errors.New("flights unavailable"))

	got := collect(t, reader)
	runs := got["tripflow.stage.runs"]
	assert.Equal(t, int64(1), sumBy(t, runs, "stage", "geocode_locations"))
	assert.Equal(t, int64(1), sumBy(t, runs, "stage", "traffic_query"))
	assert.Equal(t, int64(0), sumBy(t, got["tripflow.stage.failures"], "stage", "geocode_locations"))
	assert.Equal(t, int64(1), sumBy(t, got["tripflow.stage.failures"], "stage", "traffic_query"))

	sum := runs.Data.(metricdata.Sum[int64])
	var resumed bool
	for _, dp := range sum.DataPoints {
		stage, _ := dp.Attributes.Value("stage")
		flag, _ := dp.Attributes.Value("resumed")
		if stage.AsString() == "user_select_transport" {
			resumed = flag.AsBool()
		}
	}
	assert.True(t, resumed, "second attempt is tagged as resumed")

	hist, ok := got["tripflow.stage.latency_ms"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, hist.DataPoints, 3)
}

func TestRecordCall(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCall(ctx, "suspended", 20*time.Millisecond)
	m.RecordCall(ctx, "suspended", 30*time.Millisecond)
	m.RecordCall(ctx, "completed", 200*time.Millisecond)

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumBy(t, got["tripflow.session.calls"], "status", "suspended"))
	assert.Equal(t, int64(1), sumBy(t, got["tripflow.session.calls"], "status", "completed"))
	assert.Contains(t, got, "tripflow.session.latency_ms")
}

func TestRecordSuspendAndRejected(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordSuspend(ctx, "user_refine_itinerary")
	m.RecordSuspend(ctx, "user_refine_itinerary")
	m.RecordRejected(ctx, "user_select_transport")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumBy(t, got["tripflow.session.suspensions"], "stage", "user_refine_itinerary"))
	assert.Equal(t, int64(1), sumBy(t, got["tripflow.session.rejected_resumes"], "stage", "user_select_transport"))
}

func TestRecordCheckpoint(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordCheckpoint(context.Background(), "plan_day_1", 4096)

	hist, ok := collect(t, reader)["tripflow.checkpoint.size_bytes"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, int64(4096), hist.DataPoints[0].Sum)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestNewMetricsRecorder_Shared(t *testing.T) {
	a := NewMetricsRecorder()
	b := NewMetricsRecorder()
	require.NotNil(t, a)
	assert.Same(t, a, b)
	_, isNoop := a.(NoopMetrics)
	assert.False(t, isNoop)
}
