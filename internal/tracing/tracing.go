package tracing

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Tracer is the global tracer instance
	Tracer trace.Tracer

	// tracerProvider holds the tracer provider for shutdown
	tracerProvider *tracesdk.TracerProvider
)

// Init initializes OpenTelemetry tracing with a Jaeger collector exporter
// endpoint: collector HTTP endpoint (e.g., "http://jaeger:14268/api/traces")
func Init(serviceName, serviceVersion, endpoint string) error {
	if endpoint == "" {
		// Tracing disabled if no endpoint provided
		return nil
	}

	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	if err != nil {
		return fmt.Errorf("failed to create jaeger exporter: %w", err)
	}

	// Build resource attributes following OTel Semantic Conventions
	attrs := []attribute.KeyValue{
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	}

	// Add K8s attributes if available (downward API)
	if podName := os.Getenv("POD_NAME"); podName != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(podName))
	}
	if podNamespace := os.Getenv("POD_NAMESPACE"); podNamespace != "" {
		attrs = append(attrs, semconv.ServiceNamespace(podNamespace))
	}
	if nodeName := os.Getenv("NODE_NAME"); nodeName != "" {
		attrs = append(attrs, semconv.K8SNodeName(nodeName))
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
	if err != nil {
		// Fallback to simple resource
		res = resource.NewWithAttributes(semconv.SchemaURL, attrs...)
	}

	// Create tracer provider with batching for performance
	tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(tracesdk.ParentBased(tracesdk.AlwaysSample())),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, // W3C Trace Context
		propagation.Baggage{},      // W3C Baggage
	))

	Tracer = otel.Tracer(serviceName)
	return nil
}

// StartSpan starts a new span; it is a no-op until Init configured a tracer
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if Tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return Tracer.Start(ctx, name, opts...)
}

// Shutdown gracefully shuts down the tracer provider
func Shutdown(ctx context.Context) error {
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}
