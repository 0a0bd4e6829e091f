package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// PrometheusExporter serves OTel metrics in the Prometheus text format.
type PrometheusExporter struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
}

// NewPrometheusExporter creates a meter provider backed by its own
// Prometheus registry. Install it with otel.SetMeterProvider(e.Provider())
// before recording; instruments created earlier from the global provider
// are forwarded once it is installed.
func NewPrometheusExporter() (*PrometheusExporter, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	return &PrometheusExporter{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// Provider returns the meter provider feeding the exporter.
func (e *PrometheusExporter) Provider() *sdkmetric.MeterProvider {
	return e.provider
}

// Handler returns the scrape handler.
func (e *PrometheusExporter) Handler() http.Handler {
	return e.handler
}

// Shutdown flushes and stops the meter provider.
func (e *PrometheusExporter) Shutdown(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
