package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nevindra/jcl"
)

// Supervisor compiles and executes target C text, one exclusive workspace
// per call. It holds no per-request state and is safe for concurrent use.
type Supervisor struct {
	cfg config
}

var _ jcl.Runner = (*Supervisor)(nil)

// New returns a Supervisor. Without WithToolchain it uses the host compiler.
func New(opts ...Option) *Supervisor {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxOutput <= 0 {
		cfg.maxOutput = defaultConfig().maxOutput
	}
	if cfg.toolchain == nil {
		cfg.toolchain = NewLocalToolchain(cfg.compiler, cfg.compileFlags, cfg.maxOutput, cfg.memoryLimitMB)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{cfg: cfg}
}

// compileResult is what the compile stage hands to the supervisor.
type compileResult struct {
	proc ProcessResult
	err  error
}

// outcome returns the final Outcome when compilation ends the request.
func (r compileResult) outcome(budget time.Duration) (jcl.Outcome, bool) {
	switch {
	case r.err != nil:
		return jcl.Errored(r.err), true
	case r.proc.TimedOut:
		return jcl.CompileTimedOut(budget), true
	case r.proc.ExitCode != 0:
		return jcl.CompileFailed(r.proc.Stdout, r.proc.Stderr, r.proc.ExitCode), true
	}
	return jcl.Outcome{}, false
}

// execResult is what the run stage hands to the supervisor.
type execResult struct {
	proc ProcessResult
	err  error
}

func (r execResult) outcome(budget time.Duration) jcl.Outcome {
	switch {
	case r.err != nil:
		return jcl.Errored(r.err)
	case r.proc.TimedOut:
		return jcl.RunTimedOut(budget)
	}
	return jcl.RunFinished(r.proc.Stdout, r.proc.Stderr, r.proc.ExitCode)
}

// Run compiles target and, if that succeeds, executes the binary with stdin
// fed from the given lines. The workspace is removed on every path.
func (s *Supervisor) Run(ctx context.Context, target string, stdin []string) (out jcl.Outcome) {
	logger := s.cfg.logger
	state := jcl.StateCreated
	advance := func(next jcl.State) {
		logger.Debug("sandbox: transition", "from", state.String(), "to", next.String())
		state = next
	}

	ws, err := newWorkspace(s.cfg.workspaceRoot)
	if err != nil {
		advance(jcl.StateErrored)
		return jcl.Errored(err)
	}
	defer func() {
		if err := ws.release(); err != nil {
			logger.Warn("sandbox: release workspace", "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			advance(jcl.StateErrored)
			out = jcl.Errored(fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ws.writeSource(target); err != nil {
		advance(jcl.StateErrored)
		return jcl.Errored(err)
	}

	advance(jcl.StateCompiling)
	start := time.Now()
	proc, err := s.cfg.toolchain.Compile(ctx, ws.dir, s.cfg.compileTimeout)
	cr := compileResult{proc: proc, err: err}
	logger.Debug("sandbox: compiled", "exit_code", proc.ExitCode, "timed_out", proc.TimedOut, "duration", time.Since(start))
	if o, done := cr.outcome(s.cfg.compileTimeout); done {
		advance(o.State)
		return o
	}
	advance(jcl.StateCompiled)

	advance(jcl.StateRunning)
	start = time.Now()
	proc, err = s.cfg.toolchain.Execute(ctx, ws.dir, joinInput(stdin), s.cfg.runTimeout)
	er := execResult{proc: proc, err: err}
	logger.Debug("sandbox: executed", "exit_code", proc.ExitCode, "timed_out", proc.TimedOut, "duration", time.Since(start))
	o := er.outcome(s.cfg.runTimeout)
	advance(o.State)
	return o
}

// joinInput renders stdin lines as the program sees them: newline separated
// with a final newline. No lines means no stdin at all.
func joinInput(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}
