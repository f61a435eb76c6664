// Package telemetry configures OpenTelemetry tracing for a run.
package telemetry

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// EndpointEnv enables the OTLP exporter when set.
const EndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

type ShutdownFunc func(context.Context) error

// Setup installs a global tracer provider. Without an OTLP endpoint in the
// environment a no-op provider is installed and nothing leaves the process.
func Setup(ctx context.Context, serviceName, version string) (trace.TracerProvider, ShutdownFunc, error) {
	if os.Getenv(EndpointEnv) == "" {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	log.Debugf("tracing enabled, exporting to %s", os.Getenv(EndpointEnv))
	return tp, tp.Shutdown, nil
}
