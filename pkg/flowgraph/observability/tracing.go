package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanManager creates spans for session calls and the stages they run.
type SpanManager interface {
	// StartSessionSpan opens the span covering one Invoke call. mode is
	// start, resume, recover or observe.
	StartSessionSpan(ctx context.Context, graph, sessionID, mode string) (context.Context, trace.Span)

	// StartStageSpan opens a child span for one stage execution.
	StartStageSpan(ctx context.Context, stage string, attempt int) (context.Context, trace.Span)

	// End closes span, marking it failed when err is non-nil.
	End(span trace.Span, err error)

	// Event adds an event to the recording span in ctx, if any.
	Event(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

type otelSpans struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager on the global tracer provider.
func NewSpanManager() SpanManager {
	return newSpanManager(otel.GetTracerProvider())
}

func newSpanManager(tp trace.TracerProvider) SpanManager {
	return otelSpans{tracer: tp.Tracer(MeterName)}
}

func (s otelSpans) StartSessionSpan(ctx context.Context, graph, sessionID, mode string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "session."+mode,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("graph.name", graph),
			attribute.String("session.id", sessionID),
			attribute.String("session.mode", mode),
		),
	)
}

func (s otelSpans) StartStageSpan(ctx context.Context, stage string, attempt int) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "stage "+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("stage", stage),
			attribute.Int("stage.attempt", attempt),
		),
	)
}

func (otelSpans) End(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err == nil {
		span.SetStatus(codes.Ok, "")
		span.End()
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.End()
}

func (otelSpans) Event(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}
