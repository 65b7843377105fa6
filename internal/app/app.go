// Package app assembles the jcl pipeline and its optional stores from a
// loaded configuration. It is shared by the jcl and jclserver commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/nevindra/jcl"
	"github.com/nevindra/jcl/internal/config"
	"github.com/nevindra/jcl/observer"
	"github.com/nevindra/jcl/sandbox"
	"github.com/nevindra/jcl/store/objectstore"
	"github.com/nevindra/jcl/store/postgres"
	"github.com/nevindra/jcl/store/sqlite"
	"github.com/nevindra/jcl/transpile"
)

// App is a wired pipeline plus everything that must be closed with it.
type App struct {
	Pipeline *jcl.Pipeline
	// History is nil when history.driver is empty.
	History jcl.HistoryStore

	closers []func(context.Context) error
}

// New builds the transpiler, sandbox, stores and telemetry described by cfg.
// On error everything opened so far is closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	var inst *observer.Instruments
	if cfg.Observer.Enabled {
		var shutdown func(context.Context) error
		inst, shutdown, err = observer.Init(ctx, cfg.Observer.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("observer: %w", err)
		}
		a.closers = append(a.closers, shutdown)
	}

	tr, err := buildTranspiler(cfg.Transpiler, logger)
	if err != nil {
		return nil, err
	}
	runner, err := buildRunner(ctx, cfg.Sandbox, logger)
	if err != nil {
		return nil, err
	}

	opts := []jcl.PipelineOption{jcl.WithLogger(logger)}
	if inst != nil {
		tr = observer.WrapTranspiler(tr, inst)
		runner = observer.WrapRunner(runner, inst)
		opts = append(opts, jcl.WithTracer(inst.JCLTracer()))
	}

	if a.History, err = a.openHistory(ctx, cfg.History, logger); err != nil {
		return nil, err
	}
	if a.History != nil {
		opts = append(opts, jcl.WithHistory(a.History))
	}

	if cfg.Artifacts.Enabled {
		store, err := objectstore.New(objectstore.Config{
			Endpoint:  cfg.Artifacts.Endpoint,
			Region:    cfg.Artifacts.Region,
			AccessKey: cfg.Artifacts.AccessKey,
			SecretKey: cfg.Artifacts.SecretKey,
			Bucket:    cfg.Artifacts.Bucket,
			UseSSL:    cfg.Artifacts.UseSSL,
			Prefix:    cfg.Artifacts.Prefix,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, jcl.WithArtifacts(store))
	}

	a.Pipeline = jcl.NewPipeline(tr, runner, opts...)
	return a, nil
}

// Close releases stores and flushes telemetry, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildTranspiler(cfg config.TranspilerConfig, logger *slog.Logger) (jcl.Transpiler, error) {
	base := transpile.New(nil, transpile.WithLogger(logger))
	if cfg.CacheSize <= 0 {
		return base, nil
	}
	cached, err := transpile.NewCached(base, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("transpile cache: %w", err)
	}
	return cached, nil
}

func buildRunner(ctx context.Context, cfg config.SandboxConfig, logger *slog.Logger) (jcl.Runner, error) {
	opts := []sandbox.Option{
		sandbox.WithCompiler(cfg.Compiler),
		sandbox.WithCompileFlags(cfg.CompileFlags...),
		sandbox.WithCompileTimeout(cfg.CompileTimeout.Duration),
		sandbox.WithRunTimeout(cfg.RunTimeout.Duration),
		sandbox.WithWorkspaceRoot(cfg.WorkspaceRoot),
		sandbox.WithMaxOutput(cfg.MaxOutput),
		sandbox.WithMemoryLimit(cfg.MemoryLimitMB),
		sandbox.WithLogger(logger),
	}
	if cfg.Backend == "docker" {
		tc, err := sandbox.NewDockerToolchain(cfg.DockerImage,
			sandbox.WithDockerCompiler(cfg.Compiler, cfg.CompileFlags...),
			sandbox.WithDockerLimits(cfg.MaxOutput, cfg.MemoryLimitMB, cfg.DockerPids),
			sandbox.WithDockerLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		if cfg.DockerPull {
			if err := tc.Pull(ctx); err != nil {
				return nil, err
			}
		}
		opts = append(opts, sandbox.WithToolchain(tc))
	}
	return sandbox.New(opts...), nil
}

func (a *App) openHistory(ctx context.Context, cfg config.HistoryConfig, logger *slog.Logger) (jcl.HistoryStore, error) {
	var store jcl.HistoryStore
	switch cfg.Driver {
	case "":
		return nil, nil
	case "sqlite":
		s := sqlite.New(cfg.Path, sqlite.WithLogger(logger))
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		store = s
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		store = postgres.New(pool, postgres.WithTable(cfg.Table), postgres.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("history init: %w", err)
	}
	return store, nil
}

// NewLogger builds the process logger from the [log] section.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
