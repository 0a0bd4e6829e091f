package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func TestCounter_RecordsWithAttributes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	c := newCounter(provider, MeterName, "tripflow.commute.calls", "Driving time lookups")
	ctx := context.Background()
	c.Add(ctx, 2, attribute.String("result", "ok"))
	c.Add(ctx, 1, attribute.String("result", "error"))
	c.Add(ctx, 4, attribute.String("result", "ok"))

	m, ok := collect(t, reader)["tripflow.commute.calls"]
	assert.True(t, ok)
	assert.Equal(t, int64(6), sumBy(t, m, "result", "ok"))
	assert.Equal(t, int64(1), sumBy(t, m, "result", "error"))
}

func TestNewCounter_UsesGlobalProvider(t *testing.T) {
	c := NewCounter(MeterName, "tripflow.commute.fallbacks", "Fallback cells")
	assert.NotNil(t, c)
	assert.NotPanics(t, func() {
		c.Add(context.Background(), 1)
	})
}

func TestNoopCounter_DoesNotPanic(t *testing.T) {
	var c Counter = NoopCounter{}
	assert.NotPanics(t, func() {
		c.Add(context.Background(), 5, attribute.String("k", "v"))
	})
}
