package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Counter counts events outside the executor, such as collaborator calls
// made by a stage.
type Counter interface {
	Add(ctx context.Context, n int64, attrs ...attribute.KeyValue)
}

type otelCounter struct {
	c metric.Int64Counter
}

// NewCounter creates an Int64 counter on the global meter provider under
// the given meter name. Falls back to NoopCounter if the instrument cannot
// be created.
func NewCounter(meterName, name, description string) Counter {
	return newCounter(otel.GetMeterProvider(), meterName, name, description)
}

func newCounter(mp metric.MeterProvider, meterName, name, description string) Counter {
	c, err := mp.Meter(meterName).Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		slog.Warn("counter initialization failed, using no-op counter",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return NoopCounter{}
	}
	return otelCounter{c: c}
}

func (o otelCounter) Add(ctx context.Context, n int64, attrs ...attribute.KeyValue) {
	o.c.Add(ctx, n, metric.WithAttributes(attrs...))
}

// NoopCounter discards counts.
type NoopCounter struct{}

var _ Counter = NoopCounter{}

func (NoopCounter) Add(_ context.Context, _ int64, _ ...attribute.KeyValue) {}
