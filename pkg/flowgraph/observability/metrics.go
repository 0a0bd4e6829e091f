package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of executor metrics.
const MeterName = "github.com/randalmurphal/tripflow/pkg/flowgraph"

// MetricsRecorder records executor metrics.
type MetricsRecorder interface {
	// RecordStage records one stage execution. A suspension is not an
	// error; attempt is 2 or more when the stage re-runs after a resume.
	RecordStage(ctx context.Context, stage string, attempt int, d time.Duration, err error)

	// RecordCall records one Invoke call and the status it ended in.
	RecordCall(ctx context.Context, status string, d time.Duration)

	// RecordCheckpoint records a checkpoint save with its size.
	RecordCheckpoint(ctx context.Context, stage string, sizeBytes int64)

	// RecordSuspend records a stage asking the caller for input.
	RecordSuspend(ctx context.Context, stage string)

	// RecordRejected records a resume value the stage refused.
	RecordRejected(ctx context.Context, stage string)
}

type otelMetrics struct {
	stageRuns      metric.Int64Counter
	stageFailures  metric.Int64Counter
	stageLatency   metric.Float64Histogram
	calls          metric.Int64Counter
	callLatency    metric.Float64Histogram
	checkpointSize metric.Int64Histogram
	suspensions    metric.Int64Counter
	rejections     metric.Int64Counter
}

var (
	sharedMetrics     *otelMetrics
	sharedMetricsOnce sync.Once
	sharedMetricsErr  error
)

// instruments collects creation errors so newOtelMetrics can check once.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc))
	if in.err == nil {
		in.err = err
	}
	return c
}

func (in *instruments) millis(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
	if in.err == nil {
		in.err = err
	}
	return h
}

func newOtelMetrics(mp metric.MeterProvider) (*otelMetrics, error) {
	in := &instruments{meter: mp.Meter(MeterName)}
	m := &otelMetrics{
		stageRuns:     in.counter("tripflow.stage.runs", "Stage executions"),
		stageFailures: in.counter("tripflow.stage.failures", "Stage executions that returned an error"),
		stageLatency:  in.millis("tripflow.stage.latency_ms", "Stage execution latency"),
		calls:         in.counter("tripflow.session.calls", "Session calls by resulting status"),
		callLatency:   in.millis("tripflow.session.latency_ms", "Session call latency"),
		suspensions:   in.counter("tripflow.session.suspensions", "Sessions suspended for user input"),
		rejections:    in.counter("tripflow.session.rejected_resumes", "Resume values refused by the suspended stage"),
	}
	size, err := in.meter.Int64Histogram("tripflow.checkpoint.size_bytes",
		metric.WithDescription("Serialized checkpoint size"),
		metric.WithUnit("By"),
	)
	if in.err == nil {
		in.err = err
	}
	m.checkpointSize = size
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder on the global OTel meter
// provider, or NoopMetrics if the instruments cannot be created.
func NewMetricsRecorder() MetricsRecorder {
	sharedMetricsOnce.Do(func() {
		sharedMetrics, sharedMetricsErr = newOtelMetrics(otel.GetMeterProvider())
	})
	if sharedMetricsErr != nil {
		slog.Warn("metrics unavailable, recording nothing", slog.String("error", sharedMetricsErr.Error()))
		return NoopMetrics{}
	}
	return sharedMetrics
}

func stageAttr(stage string) attribute.KeyValue {
	return attribute.String("stage", stage)
}

func (m *otelMetrics) RecordStage(ctx context.Context, stage string, attempt int, d time.Duration, err error) {
	attrs := metric.WithAttributes(stageAttr(stage), attribute.Bool("resumed", attempt > 1))
	m.stageRuns.Add(ctx, 1, attrs)
	m.stageLatency.Record(ctx, float64(d.Milliseconds()), attrs)
	if err != nil {
		m.stageFailures.Add(ctx, 1, metric.WithAttributes(stageAttr(stage)))
	}
}

func (m *otelMetrics) RecordCall(ctx context.Context, status string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.calls.Add(ctx, 1, attrs)
	m.callLatency.Record(ctx, float64(d.Milliseconds()), attrs)
}

func (m *otelMetrics) RecordCheckpoint(ctx context.Context, stage string, sizeBytes int64) {
	m.checkpointSize.Record(ctx, sizeBytes, metric.WithAttributes(stageAttr(stage)))
}

func (m *otelMetrics) RecordSuspend(ctx context.Context, stage string) {
	m.suspensions.Add(ctx, 1, metric.WithAttributes(stageAttr(stage)))
}

func (m *otelMetrics) RecordRejected(ctx context.Context, stage string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(stageAttr(stage)))
}
