// Package sandbox compiles and executes generated C programs in throwaway
// workspaces under strict time budgets.
package sandbox

import (
	"log/slog"
	"time"
)

// Option configures a Supervisor.
type Option func(*config)

type config struct {
	compiler       string
	compileFlags   []string
	compileTimeout time.Duration
	runTimeout     time.Duration
	workspaceRoot  string // "" means os.TempDir()
	maxOutput      int
	memoryLimitMB  int // run stage only, 0 = unlimited
	toolchain      Toolchain
	logger         *slog.Logger
}

func defaultConfig() config {
	return config{
		compiler:       "gcc",
		compileTimeout: 15 * time.Second,
		runTimeout:     2 * time.Second,
		maxOutput:      64 * 1024, // 64KB
	}
}

// WithCompiler sets the C compiler binary. Default: "gcc".
func WithCompiler(bin string) Option {
	return func(c *config) { c.compiler = bin }
}

// WithCompileFlags appends flags to every compiler invocation, e.g.
// "-finput-charset=UTF-8".
func WithCompileFlags(flags ...string) Option {
	return func(c *config) { c.compileFlags = append(c.compileFlags, flags...) }
}

// WithCompileTimeout sets the compile budget. Default: 15s.
func WithCompileTimeout(d time.Duration) Option {
	return func(c *config) { c.compileTimeout = d }
}

// WithRunTimeout sets the execution budget. Default: 2s.
func WithRunTimeout(d time.Duration) Option {
	return func(c *config) { c.runTimeout = d }
}

// WithWorkspaceRoot sets the directory under which per-request workspaces
// are created. Default: the system temp directory.
func WithWorkspaceRoot(dir string) Option {
	return func(c *config) { c.workspaceRoot = dir }
}

// WithMaxOutput caps the bytes captured from each of stdout and stderr.
// Output beyond the cap is dropped. Default: 64KB.
func WithMaxOutput(bytes int) Option {
	return func(c *config) { c.maxOutput = bytes }
}

// WithMemoryLimit caps the address space of the executed program in
// megabytes. Only honoured on Linux. Default: unlimited.
func WithMemoryLimit(mb int) Option {
	return func(c *config) { c.memoryLimitMB = mb }
}

// WithToolchain replaces the local compiler toolchain, for example with a
// DockerToolchain.
func WithToolchain(t Toolchain) Option {
	return func(c *config) { c.toolchain = t }
}

// WithLogger sets the structured logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}
