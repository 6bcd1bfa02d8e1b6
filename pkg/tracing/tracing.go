// Package tracing wires chain runs to an OpenTelemetry collector.
//
// The chain runner opens one span per hop delivery on the global tracer
// provider. Setup installs an OTLP/gRPC-backed provider there; without it
// spans go to the no-op provider.
package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/waftester/desyncsim/pkg/defaults"
	"github.com/waftester/desyncsim/pkg/duration"
)

// DefaultEndpoint is the conventional OTLP/gRPC collector address.
const DefaultEndpoint = "localhost:4317"

// Options configures the exporter.
type Options struct {
	// Endpoint is the OTLP endpoint (default: localhost:4317).
	Endpoint string

	// ServiceName is the service name for traces (default: "desyncsim").
	ServiceName string

	// Insecure uses a plaintext connection.
	Insecure bool

	// Headers are sent with every export request.
	Headers map[string]string

	// ConnectTimeout bounds exporter creation (default: 10s).
	ConnectTimeout time.Duration
}

func (o *Options) applyDefaults() {
	if o.Endpoint == "" {
		o.Endpoint = DefaultEndpoint
	}
	if o.ServiceName == "" {
		o.ServiceName = defaults.ToolName
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = duration.TraceConnect
	}
}

// NewExporter creates an OTLP/gRPC span exporter.
func NewExporter(ctx context.Context, opts Options) (sdktrace.SpanExporter, error) {
	opts.applyDefaults()

	exporterOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		exporterOpts = append(exporterOpts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	}
	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	return otlptracegrpc.New(ctx, exporterOpts...)
}

// NewProvider builds a batching provider around exp. The resource is
// built without merging resource.Default to avoid schema conflicts.
func NewProvider(exp sdktrace.SpanExporter, serviceName string) *sdktrace.TracerProvider {
	if serviceName == "" {
		serviceName = defaults.ToolName
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "framing"),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
}

// Setup creates the exporter and installs the provider globally. Call
// Shutdown on the result before exit to flush spans.
func Setup(ctx context.Context, opts Options) (*sdktrace.TracerProvider, error) {
	exp, err := NewExporter(ctx, opts)
	if err != nil {
		return nil, err
	}
	tp := NewProvider(exp, opts.ServiceName)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Shutdown flushes and stops tp within duration.TraceShutdown.
func Shutdown(tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), duration.TraceShutdown)
	defer cancel()
	return tp.Shutdown(ctx)
}
