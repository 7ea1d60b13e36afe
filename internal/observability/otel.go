package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
)

// toolCallCounter counts tool dispatches by tool name and outcome
// status, set up once InitOTel installs the meter provider.
var toolCallCounter metric.Int64Counter

// InitOTel configures the tracer and meter providers used for turn/tool
// spans and the tool-call counter. When no collector endpoint is
// configured it still installs both providers (with an in-memory-only
// batcher/reader that drops data) so callers never need a nil check
// before calling Tracer() or RecordToolCall().
func InitOTel(ctx context.Context, otlpEndpoint string) (func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName("evidentia-agentd"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build resource: %w", err)
	}

	traceOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if otlpEndpoint != "" {
		traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpoint(otlpEndpoint), otlptracehttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("observability: init trace exporter: %w", err)
		}
		traceOpts = append(traceOpts, sdktrace.WithBatcher(traceExp, sdktrace.WithBatchTimeout(2*time.Second)))

		metricExp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(otlpEndpoint), otlpmetrichttp.WithInsecure())
		if err != nil {
			return nil, fmt.Errorf("observability: init metric exporter: %w", err)
		}
		metricOpts = append(metricOpts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))))
	}

	tp := sdktrace.NewTracerProvider(traceOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	mp := sdkmetric.NewMeterProvider(metricOpts...)
	otel.SetMeterProvider(mp)
	toolCallCounter, err = mp.Meter("evidentia").Int64Counter(
		"evidentia.tool_calls",
		metric.WithDescription("Number of tool dispatches by tool name and outcome status"),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: build tool_calls counter: %w", err)
	}

	return func(shutdownCtx context.Context) error {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return mp.Shutdown(shutdownCtx)
	}, nil
}

// Tracer returns the "evidentia" tracer, used for turn/tool spans.
func Tracer() trace.Tracer { return otel.Tracer("evidentia") }

// SpanAttr is a tiny convenience wrapper so call sites don't need to
// import the attribute package just to tag a span with a string.
func SpanAttr(key, value string) attribute.KeyValue { return attribute.String(key, value) }

// RecordToolCall increments the tool-call counter. Safe to call before
// InitOTel runs (e.g. in tests) - it's a no-op until the counter exists.
func RecordToolCall(ctx context.Context, toolName, status string) {
	if toolCallCounter == nil {
		return
	}
	toolCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool_name", toolName),
		attribute.String("status", status),
	))
}
