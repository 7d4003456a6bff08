package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// defaultServiceName identifies this binary in exported telemetry when the
// caller does not override it.
const defaultServiceName = "elocute"

// ProviderConfig configures the OpenTelemetry SDK providers installed by
// [InitProvider].
type ProviderConfig struct {
	// ServiceName overrides the service.name resource attribute.
	ServiceName string

	// ServiceVersion is reported as service.version when non-empty.
	ServiceVersion string

	// TraceExporter receives finished spans. Leaving it nil keeps span
	// creation (and therefore correlation IDs) working without exporting
	// anywhere.
	TraceExporter sdktrace.SpanExporter
}

// InitProvider installs the global OTel meter and tracer providers: metrics
// flow to a Prometheus exporter scraped via /metrics, spans to the configured
// exporter when one is given. The returned shutdown function flushes both
// providers; call it with a bounded context during process exit.
func InitProvider(ctx context.Context, cfg ProviderConfig) (func(context.Context) error, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, err
	}

	mp, err := newMeterProvider(res)
	if err != nil {
		return nil, err
	}
	tp := newTracerProvider(res, cfg.TraceExporter)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(mp.Shutdown(ctx), tp.Shutdown(ctx))
	}, nil
}

// newMeterProvider bridges SDK metrics into the Prometheus default registry.
func newMeterProvider(res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := promexporter.New()
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exp),
	), nil
}

// newTracerProvider batches spans to exp; a nil exp yields a provider that
// records spans without exporting them.
func newTracerProvider(res *resource.Resource, exp sdktrace.SpanExporter) *sdktrace.TracerProvider {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if exp != nil {
		opts = append(opts, sdktrace.WithBatcher(exp))
	}
	return sdktrace.NewTracerProvider(opts...)
}
