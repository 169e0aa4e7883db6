package telemetry

import (
	"context"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/coralcommerce/dispatcher"

// InitTracing registers the global TracerProvider. When
// OTEL_EXPORTER_OTLP_ENDPOINT is unset, the provider carries no span
// processor: workerpool and transport still create and end spans
// (exercising the API), they are just never exported anywhere.
func InitTracing(ctx context.Context) (func(context.Context) error, error) {
	res, err := resource.New(ctx, resource.WithAttributes())
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		exporter, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	return provider.Shutdown, nil
}

// Tracer is the package-wide tracer handle other packages call
// StartSpan against, resolved once InitTracing has registered the
// global provider.
func Tracer() trace.Tracer { return otel.Tracer(tracerName) }
