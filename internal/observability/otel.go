// Package observability wires zap and OpenTelemetry export.
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	ServiceName    = "tix-reserve"
	ServiceVersion = "1.0.0"

	tracesPath    = "/v1/traces"
	logsPath      = "/v1/logs"
	exportTimeout = 10 * time.Second
	maxQueueSize  = 2048
)

type Config struct {
	Endpoint   string
	AuthHeader string
}

func newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
}

func headers(cfg Config) map[string]string {
	if cfg.AuthHeader == "" {
		return nil
	}
	return map[string]string{"Authorization": cfg.AuthHeader}
}

// SetupTracing installs a global batching tracer provider exporting over
// OTLP/HTTP, and the W3C propagators.
func SetupTracing(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	const op = "observability.SetupTracing"

	res, err := newResource()
	if err != nil {
		return nil, fmt.Errorf("%s: resource: %w", op, err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	exp, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithURLPath(tracesPath),
		otlptracehttp.WithHeaders(headers(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: exporter: %w", op, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(exp,
			sdktrace.WithExportTimeout(exportTimeout),
			sdktrace.WithMaxQueueSize(maxQueueSize),
		)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// SetupLogging installs a global OTLP/HTTP logger provider for the otelzap
// bridge.
func SetupLogging(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	const op = "observability.SetupLogging"

	res, err := newResource()
	if err != nil {
		return nil, fmt.Errorf("%s: resource: %w", op, err)
	}

	exp, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(cfg.Endpoint),
		otlploghttp.WithURLPath(logsPath),
		otlploghttp.WithHeaders(headers(cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: exporter: %w", op, err)
	}

	lp := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp,
			sdklog.WithExportTimeout(exportTimeout),
			sdklog.WithMaxQueueSize(maxQueueSize),
		)),
	)
	global.SetLoggerProvider(lp)

	return lp.Shutdown, nil
}

// Setup starts trace and log export. The returned shutdown flushes both and
// is safe to call when setup partly failed.
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	var fns []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var err error
		for _, fn := range fns {
			err = errors.Join(err, fn(ctx))
		}
		fns = nil
		return err
	}

	traceShutdown, terr := SetupTracing(ctx, cfg)
	if terr == nil {
		fns = append(fns, traceShutdown)
	}

	logShutdown, lerr := SetupLogging(ctx, cfg)
	if lerr == nil {
		fns = append(fns, logShutdown)
	}

	return shutdown, errors.Join(terr, lerr)
}
