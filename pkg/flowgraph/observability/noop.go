package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics records nothing. It is the executor default.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordStage(context.Context, string, int, time.Duration, error) {}
func (NoopMetrics) RecordCall(context.Context, string, time.Duration)              {}
func (NoopMetrics) RecordCheckpoint(context.Context, string, int64)                {}
func (NoopMetrics) RecordSuspend(context.Context, string)                          {}
func (NoopMetrics) RecordRejected(context.Context, string)                         {}

// NoopSpanManager hands out non-recording spans and leaves ctx unchanged.
type NoopSpanManager struct{}

var _ SpanManager = NoopSpanManager{}

func (NoopSpanManager) StartSessionSpan(ctx context.Context, _, _, _ string) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}

func (NoopSpanManager) StartStageSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noop.Span{}
}

func (NoopSpanManager) End(trace.Span, error) {}

func (NoopSpanManager) Event(context.Context, string, ...attribute.KeyValue) {}
