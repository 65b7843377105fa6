package observer

import (
	"context"
	"time"

	"github.com/nevindra/jcl"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedRunner wraps a jcl.Runner with OTEL instrumentation.
type ObservedRunner struct {
	inner jcl.Runner
	inst  *Instruments
}

var _ jcl.Runner = (*ObservedRunner)(nil)

// WrapRunner returns an instrumented runner.
func WrapRunner(inner jcl.Runner, inst *Instruments) *ObservedRunner {
	return &ObservedRunner{inner: inner, inst: inst}
}

func (o *ObservedRunner) Run(ctx context.Context, target string, stdin []string) jcl.Outcome {
	ctx, span := o.inst.Tracer.Start(ctx, "jcl.sandbox", trace.WithAttributes(
		AttrTargetBytes.Int(len(target)),
		AttrStdinLines.Int(len(stdin)),
	))
	defer span.End()
	start := time.Now()

	out := o.inner.Run(ctx, target, stdin)

	durationMs := float64(time.Since(start).Milliseconds())
	span.SetAttributes(
		AttrRunStage.String(string(out.Stage)),
		AttrRunOK.Bool(out.OK),
		AttrRunState.String(out.State.String()),
		AttrRunExitCode.Int(out.ExitCode),
	)
	if out.Stage == jcl.StageError {
		span.SetStatus(codes.Error, out.Stderr)
	}

	attrs := metric.WithAttributes(
		attribute.String("stage", string(out.Stage)),
		attribute.Bool("ok", out.OK),
	)
	o.inst.Runs.Add(ctx, 1, attrs)
	o.inst.RunDuration.Record(ctx, durationMs, attrs)

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(severity(out))
	rec.SetBody(otellog.StringValue("run finished"))
	rec.AddAttributes(
		otellog.String("run.stage", string(out.Stage)),
		otellog.String("run.state", out.State.String()),
		otellog.Bool("run.ok", out.OK),
		otellog.Int("run.exit_code", out.ExitCode),
		otellog.Float64("run.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return out
}

func severity(out jcl.Outcome) otellog.Severity {
	switch {
	case out.Stage == jcl.StageError:
		return otellog.SeverityError
	case !out.OK:
		return otellog.SeverityWarn
	}
	return otellog.SeverityInfo
}

// ObservedTranspiler wraps a jcl.Transpiler with OTEL metrics. Transpile
// carries no context, so it records no span; the pipeline's jcl.transpile
// span covers it.
type ObservedTranspiler struct {
	inner jcl.Transpiler
	inst  *Instruments
}

var _ jcl.Transpiler = (*ObservedTranspiler)(nil)

// WrapTranspiler returns an instrumented transpiler.
func WrapTranspiler(inner jcl.Transpiler, inst *Instruments) *ObservedTranspiler {
	return &ObservedTranspiler{inner: inner, inst: inst}
}

func (o *ObservedTranspiler) Transpile(source string) (string, error) {
	ctx := context.Background()
	start := time.Now()

	target, err := o.inner.Transpile(source)

	status := "ok"
	if err != nil {
		status = "error"
		o.inst.TranspileErrors.Add(ctx, 1)

		var rec otellog.Record
		rec.SetSeverity(otellog.SeverityWarn)
		rec.SetBody(otellog.StringValue("transpile failed"))
		rec.AddAttributes(
			otellog.String("error", err.Error()),
			otellog.Int("source.bytes", len(source)),
		)
		o.inst.Logger.Emit(ctx, rec)
	}
	o.inst.TranspileDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000,
		metric.WithAttributes(attribute.String("status", status)))

	return target, err
}
