// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package otelconfig installs the global OpenTelemetry tracer provider.
package otelconfig

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/z5labs/fnrun/lifecycle"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Supported exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config
type Config struct {
	Exporter    string `config:"otel_exporter"`
	Endpoint    string `config:"otel_exporter_otlp_endpoint"`
	ServiceName string `config:"otel_service_name"`
}

// UnknownExporterError
type UnknownExporterError struct {
	Exporter string
}

// Error implements the [error] interface.
func (e UnknownExporterError) Error() string {
	return fmt.Sprintf("unknown otel exporter: %s", e.Exporter)
}

// MissingEndpointError is returned when the otlp exporter is selected
// without an endpoint.
type MissingEndpointError struct{}

// Error implements the [error] interface.
func (MissingEndpointError) Error() string {
	return "otlp exporter requires an endpoint"
}

type options struct {
	out io.Writer
}

// Option
type Option func(*options)

// Output sets where the stdout exporter writes spans.
func Output(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// Init builds a tracer provider for cfg and installs it, along with
// W3C trace context propagation, as the global default. The provider
// is flushed and shut down by a post run hook when ctx carries a
// [lifecycle.Context].
//
// The "none" exporter, or an empty one, leaves the global no-op
// provider in place.
func Init(ctx context.Context, cfg Config, opts ...Option) error {
	o := &options{out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "", ExporterNone:
		return nil
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(o.out))
	case ExporterOTLP:
		exporter, err = newOTLPExporter(ctx, cfg.Endpoint)
	default:
		return UnknownExporterError{Exporter: cfg.Exporter}
	}
	if err != nil {
		return err
	}

	res, err := resource.New(
		ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	lc, ok := lifecycle.FromContext(ctx)
	if ok {
		lc.OnPostRun(lifecycle.HookFunc(tp.Shutdown))
	}
	return nil
}

func newOTLPExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	if endpoint == "" {
		return nil, MissingEndpointError{}
	}

	// the connection is established lazily so a missing collector
	// does not prevent the server from starting
	conn, err := grpc.DialContext(
		ctx,
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, err
	}

	return otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
}
