// Package telemetry wires the OpenTelemetry metric SDK to the
// Prometheus exporter, so instruments created through otel.Meter show
// up on the /metrics endpoint.
package telemetry

import (
	"context"
	"fmt"

	otelprom "go.opentelemetry.io/otel/exporters/prometheus"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// Telemetry manages the process-wide MeterProvider.
//
// Failures degrade gracefully: the global no-op provider stays in place
// and instruments silently record nothing rather than crashing the
// service.
type Telemetry struct {
	meterProvider *sdkmetric.MeterProvider
}

// Setup registers a MeterProvider backed by the Prometheus exporter as
// the global OTel provider. serviceName and version label every metric.
func Setup(serviceName, version string) (*Telemetry, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("creating telemetry resource: %w", err)
	}

	// The exporter registers with the default Prometheus registry, which
	// promhttp serves.
	exporter, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(mp)

	return &Telemetry{meterProvider: mp}, nil
}

// Shutdown flushes and stops the meter provider.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.meterProvider == nil {
		return nil
	}
	return t.meterProvider.Shutdown(ctx)
}
