// Package telemetry provides observability for the ride engine.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string // OTLP endpoint; empty keeps the provider local
	Insecure       bool
}

// MetricsProvider provides metrics functionality.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	config   MetricsConfig
}

// NewMetricsProvider creates a new metrics provider, exporting over OTLP
// when an endpoint is configured.
func NewMetricsProvider(ctx context.Context, config MetricsConfig) (*MetricsProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			attribute.String("environment", config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	if config.Endpoint != "" {
		exporterOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(config.Endpoint)}
		if config.Insecure {
			exporterOpts = append(exporterOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	return &MetricsProvider{
		provider: provider,
		meter:    provider.Meter(config.ServiceName),
		config:   config,
	}, nil
}

// Meter returns the meter for creating instruments.
func (m *MetricsProvider) Meter() metric.Meter {
	return m.meter
}

// Shutdown shuts down the metrics provider.
func (m *MetricsProvider) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// EngineMetrics instruments the engine's hot paths. A nil *EngineMetrics is
// safe to use; every method no-ops.
type EngineMetrics struct {
	quotesTotal      metric.Int64Counter
	dispatchTotal    metric.Int64Counter
	dispatchDuration metric.Float64Histogram
	claimAttempts    metric.Int64Counter
	claimRaces       metric.Int64Counter
	zoneLookups      metric.Int64Counter
}

// NewEngineMetrics creates the engine instruments.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	quotesTotal, err := meter.Int64Counter(
		"engine_quotes_total",
		metric.WithDescription("Total fare quotes produced"),
		metric.WithUnit("{quotes}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchTotal, err := meter.Int64Counter(
		"engine_dispatch_total",
		metric.WithDescription("Total dispatch attempts by outcome"),
		metric.WithUnit("{dispatches}"),
	)
	if err != nil {
		return nil, err
	}

	dispatchDuration, err := meter.Float64Histogram(
		"engine_dispatch_duration_seconds",
		metric.WithDescription("Dispatch call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	claimAttempts, err := meter.Int64Counter(
		"engine_claim_attempts_total",
		metric.WithDescription("Driver claim attempts"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	claimRaces, err := meter.Int64Counter(
		"engine_claim_races_total",
		metric.WithDescription("Claims lost to a concurrent assignment"),
		metric.WithUnit("{races}"),
	)
	if err != nil {
		return nil, err
	}

	zoneLookups, err := meter.Int64Counter(
		"engine_zone_lookups_total",
		metric.WithDescription("Zone membership lookups by coverage"),
		metric.WithUnit("{lookups}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		quotesTotal:      quotesTotal,
		dispatchTotal:    dispatchTotal,
		dispatchDuration: dispatchDuration,
		claimAttempts:    claimAttempts,
		claimRaces:       claimRaces,
		zoneLookups:      zoneLookups,
	}, nil
}

// RecordQuote counts a produced quote.
func (m *EngineMetrics) RecordQuote(ctx context.Context, bookingType string) {
	if m == nil {
		return
	}
	m.quotesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("booking_type", bookingType)))
}

// RecordDispatch counts a dispatch by outcome and records its duration.
func (m *EngineMetrics) RecordDispatch(ctx context.Context, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.dispatchTotal.Add(ctx, 1, attrs)
	m.dispatchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordClaimAttempt counts one claim attempt.
func (m *EngineMetrics) RecordClaimAttempt(ctx context.Context) {
	if m == nil {
		return
	}
	m.claimAttempts.Add(ctx, 1)
}

// RecordClaimRace counts a claim lost to a concurrent assignment.
func (m *EngineMetrics) RecordClaimRace(ctx context.Context) {
	if m == nil {
		return
	}
	m.claimRaces.Add(ctx, 1)
}

// RecordZoneLookup counts a lookup by coverage result.
func (m *EngineMetrics) RecordZoneLookup(ctx context.Context, covered bool) {
	if m == nil {
		return
	}
	m.zoneLookups.Add(ctx, 1, metric.WithAttributes(attribute.Bool("covered", covered)))
}
