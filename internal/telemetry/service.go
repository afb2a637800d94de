package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Service manages the OpenTelemetry meter provider and the Prometheus
// scrape endpoint backing it
type Service struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
}

// NewService initializes metrics with a Prometheus pull exporter and installs
// the meter provider globally
func NewService(serviceName string) (*Service, error) {
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)

	return &Service{
		meterProvider: provider,
		meter:         provider.Meter(serviceName),
	}, nil
}

// Meter returns the service meter
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// MetricsHandler returns the Prometheus scrape handler
func (s *Service) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider
func (s *Service) Shutdown(ctx context.Context) error {
	if s.meterProvider == nil {
		return nil
	}
	return s.meterProvider.Shutdown(ctx)
}
