package jcl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Pipeline ties a Transpiler and a Runner into the transpile-compile-execute
// call and reports every finished run to the optional history and artifact
// stores. A Pipeline holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	transpiler Transpiler
	runner     Runner
	history    HistoryStore
	artifacts  ArtifactStore
	tracer     Tracer
	logger     *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithHistory records every run in s.
func WithHistory(s HistoryStore) PipelineOption {
	return func(p *Pipeline) { p.history = s }
}

// WithArtifacts archives the generated C text and the outcome of every run.
func WithArtifacts(s ArtifactStore) PipelineOption {
	return func(p *Pipeline) { p.artifacts = s }
}

// WithTracer enables span creation for runs and transpilations.
func WithTracer(t Tracer) PipelineOption {
	return func(p *Pipeline) { p.tracer = t }
}

// WithLogger sets the structured logger. Without it nothing is logged.
func WithLogger(l *slog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline returns a Pipeline using t for conversion and r for execution.
func NewPipeline(t Transpiler, r Runner, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{transpiler: t, runner: r}
	for _, o := range opts {
		o(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	return p
}

// Transpile is the standalone conversion call.
func (p *Pipeline) Transpile(ctx context.Context, code string) (string, error) {
	_, span := startSpan(ctx, p.tracer, "jcl.transpile", IntAttr("source.bytes", len(code)))
	defer span.End()

	target, err := p.transpiler.Transpile(code)
	if err != nil {
		span.Error(err)
		return "", err
	}
	span.SetAttr(IntAttr("target.bytes", len(target)))
	return target, nil
}

// Run executes req and returns its outcome.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) Outcome {
	return p.Execute(ctx, req).Outcome
}

// Execute executes req and returns the full record, including the run id
// under which it was stored.
func (p *Pipeline) Execute(ctx context.Context, req RunRequest) RunRecord {
	rec := RunRecord{ID: NewID(), CreatedAt: NowUnix(), Source: req.Code}
	start := time.Now()
	logger := p.logger.With("run_id", rec.ID)

	ctx, span := startSpan(ctx, p.tracer, "jcl.run",
		StringAttr("run.id", rec.ID),
		IntAttr("run.stdin_lines", len(req.InputData)),
	)
	defer span.End()

	target, err := p.Transpile(ctx, req.Code)
	if err != nil {
		// The caller still gets a run-stage record explaining the fault.
		logger.Warn("jcl: transpile failed, running fallback program", "error", err)
		span.Event("transpile.fallback", StringAttr("error", err.Error()))
		target = FallbackProgram(err)
	}
	rec.Target = target

	rec.Outcome = p.runner.Run(ctx, target, req.InputData)
	rec.DurationMs = time.Since(start).Milliseconds()

	span.SetAttr(
		StringAttr("run.stage", string(rec.Stage)),
		StringAttr("run.state", rec.State.String()),
		BoolAttr("run.ok", rec.OK),
	)
	logger.Debug("jcl: run finished",
		"stage", rec.Stage,
		"state", rec.State.String(),
		"ok", rec.OK,
		"duration_ms", rec.DurationMs,
	)

	p.record(ctx, logger, rec)
	return rec
}

// record hands rec to the configured stores. Store failures never change
// the outcome already computed.
func (p *Pipeline) record(ctx context.Context, logger *slog.Logger, rec RunRecord) {
	if p.history != nil {
		if err := p.history.SaveRun(ctx, rec); err != nil {
			logger.Error("jcl: save run history", "error", err)
		}
	}
	if p.artifacts == nil {
		return
	}
	if err := p.artifacts.PutArtifact(ctx, rec.ID, "out.c", []byte(rec.Target)); err != nil {
		logger.Error("jcl: archive target", "error", err)
	}
	data, err := json.Marshal(rec.Outcome)
	if err != nil {
		logger.Error("jcl: encode outcome", "error", err)
		return
	}
	if err := p.artifacts.PutArtifact(ctx, rec.ID, "outcome.json", data); err != nil {
		logger.Error("jcl: archive outcome", "error", err)
	}
}

// FallbackProgram returns a C program that prints the transpile error and
// exits with status 1.
func FallbackProgram(err error) string {
	var b strings.Builder
	b.WriteString("#include <stdio.h>\n")
	b.WriteString("int main(void) {\n")
	fmt.Fprintf(&b, "    printf(\"%%s\\n\", %s);\n", CQuote("transpile error: "+err.Error()))
	b.WriteString("    return 1;\n")
	b.WriteString("}\n")
	return b.String()
}

// CQuote renders s as a C string literal.
func CQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\%03o`, c)
				continue
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
