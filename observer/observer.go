// Package observer provides OTEL-based observability for jcl runs.
//
// It wraps jcl.Runner and jcl.Transpiler with instrumented versions that
// emit traces, metrics, and logs via OpenTelemetry, and adapts OTEL tracing
// to jcl.Tracer for the pipeline. Users export to any OTEL-compatible
// backend by setting standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/jcl/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// Counters
	Runs            metric.Int64Counter
	TranspileErrors metric.Int64Counter

	// Histograms
	RunDuration       metric.Float64Histogram
	TranspileDuration metric.Float64Histogram
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context, serviceName string) (*Instruments, func(context.Context) error, error) {
	if serviceName == "" {
		serviceName = "jcl"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments(tp, mp, lp)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

// NewInstruments builds instruments on the global OTEL providers, for
// processes that configure OTEL themselves.
func NewInstruments() (*Instruments, error) {
	return newInstruments(otel.GetTracerProvider(), otel.GetMeterProvider(), global.GetLoggerProvider())
}

func newInstruments(tp trace.TracerProvider, mp metric.MeterProvider, lp otellog.LoggerProvider) (*Instruments, error) {
	meter := mp.Meter(scopeName)

	runs, err := meter.Int64Counter("jcl.runs",
		metric.WithDescription("Pipeline run count by stage and result"),
		metric.WithUnit("{run}"))
	if err != nil {
		return nil, err
	}

	transpileErrors, err := meter.Int64Counter("jcl.transpile.errors",
		metric.WithDescription("Transpilations that failed"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram("jcl.run.duration",
		metric.WithDescription("Compile and execute duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	transpileDuration, err := meter.Float64Histogram("jcl.transpile.duration",
		metric.WithDescription("Transpilation duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:            tp.Tracer(scopeName),
		Meter:             meter,
		Logger:            lp.Logger(scopeName),
		Runs:              runs,
		TranspileErrors:   transpileErrors,
		RunDuration:       runDuration,
		TranspileDuration: transpileDuration,
	}, nil
}
