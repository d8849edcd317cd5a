// Package tracing installs the global OpenTelemetry tracer provider used by
// the pipeline spans.
package tracing

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ServiceName is reported as the service.name resource attribute.
const ServiceName = "socioprep"

// Shutdown flushes pending spans and stops the provider.
type Shutdown func(context.Context) error

// Setup installs a provider for exporter: "stdout" writes pretty-printed
// spans to w, "" and "none" leave the global no-op provider in place.
func Setup(exporter string, w io.Writer) (Shutdown, error) {
	switch strings.ToLower(strings.TrimSpace(exporter)) {
	case "", "none":
		return func(context.Context) error { return nil }, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("tracing: unknown exporter %q", exporter)
	}

	exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("tracing: create stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", ServiceName))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
