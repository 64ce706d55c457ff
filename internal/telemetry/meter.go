// Package telemetry wires OpenTelemetry metrics for the policy server.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultMetricsInterval is the default interval for metric export.
const DefaultMetricsInterval = 60 * time.Second

// MeterConfig configures the meter provider setup.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is the OTLP HTTP endpoint; empty disables export and
	// installs a noop provider.
	Endpoint string
	Insecure bool
}

// Provider bundles the meter provider with its shutdown hook.
type Provider struct {
	Meter    metric.Meter
	shutdown func(context.Context) error
}

// Shutdown flushes and stops the underlying provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// NewMeterProvider builds and globally registers a meter provider. With no
// endpoint configured, metrics are recorded against a noop provider so
// instrument call sites need no guards.
func NewMeterProvider(ctx context.Context, cfg MeterConfig) (*Provider, error) {
	if cfg.Endpoint == "" {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return &Provider{Meter: provider.Meter(cfg.ServiceName)}, nil
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	// We use resource.New to avoid schema URL conflicts with resource.Default()
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(DefaultMetricsInterval),
		)),
	)
	otel.SetMeterProvider(provider)

	return &Provider{
		Meter:    provider.Meter(cfg.ServiceName),
		shutdown: provider.Shutdown,
	}, nil
}
