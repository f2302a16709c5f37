package observe

import (
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Provider bundles a meter provider with the handler that exposes it.
// Handler is nil when the exporter has nothing to scrape.
type Provider struct {
	*sdkmetric.MeterProvider
	Handler http.Handler
}

// NewProvider creates a meter provider for the named exporter.
// Supported exporters: prometheus, none
func NewProvider(exporter string) (*Provider, error) {
	switch exporter {
	case "prometheus":
		registry := promclient.NewRegistry()
		exp, err := prometheus.New(prometheus.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return &Provider{
			MeterProvider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp)),
			Handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		}, nil

	case "none", "":
		return &Provider{MeterProvider: sdkmetric.NewMeterProvider()}, nil

	default:
		return nil, fmt.Errorf("unknown metrics exporter: %q", exporter)
	}
}
