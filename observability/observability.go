// Package observability wires OpenTelemetry tracing and log export plus
// Prometheus metrics for the simulator. The zero-value Config disables
// everything; Setup is then a no-op and every helper degrades to noop
// behavior, so callers never need to guard their instrumentation.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects which observability features are active.
type Config struct {
	// Service names this process in exported telemetry.
	Service string

	// TraceAddr is the OTLP gRPC endpoint for traces. Empty disables
	// tracing.
	TraceAddr string

	// LogAddr is the OTLP gRPC endpoint for logs. Empty leaves slog on
	// its default handler.
	LogAddr string

	// Metrics enables the Prometheus recorders.
	Metrics bool
}

var state struct {
	mu             sync.Mutex
	tracerProvider *sdktrace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	metrics        bool
}

// Setup initializes the configured exporters. Safe to call with a zero
// config; everything stays disabled.
func Setup(ctx context.Context, cfg Config) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.metrics = cfg.Metrics

	res := resource.NewSchemaless(attribute.String("service.name", cfg.Service))

	if cfg.TraceAddr != "" {
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.TraceAddr),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return err
		}
		state.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(state.tracerProvider)
	}

	if cfg.LogAddr != "" {
		exp, err := otlploggrpc.New(ctx,
			otlploggrpc.WithEndpoint(cfg.LogAddr),
			otlploggrpc.WithInsecure(),
		)
		if err != nil {
			return err
		}
		state.loggerProvider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
			sdklog.WithResource(res),
		)
		slog.SetDefault(otelslog.NewLogger(cfg.Service,
			otelslog.WithLoggerProvider(state.loggerProvider)))
	}

	return nil
}

// Shutdown flushes and stops the active exporters.
func Shutdown(ctx context.Context) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	var errs []error
	if state.tracerProvider != nil {
		errs = append(errs, state.tracerProvider.Shutdown(ctx))
		state.tracerProvider = nil
	}
	if state.loggerProvider != nil {
		errs = append(errs, state.loggerProvider.Shutdown(ctx))
		state.loggerProvider = nil
	}
	state.metrics = false
	return errors.Join(errs...)
}

// Enabled reports whether tracing is active.
func Enabled() bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.tracerProvider != nil
}

// MetricsEnabled reports whether the Prometheus recorders are active.
func MetricsEnabled() bool {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.metrics
}

// Tracer returns the process tracer, a noop one when tracing is disabled.
func Tracer() trace.Tracer {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.tracerProvider == nil {
		return noop.NewTracerProvider().Tracer("warp")
	}
	return state.tracerProvider.Tracer("warp")
}
