package sandbox

import (
	"bytes"
	"context"
	"io"
	"time"
)

// Toolchain compiles out.c into a.out inside a workspace directory and runs
// the result. An error return means the toolchain itself failed; compiler
// diagnostics and program failures are reported in the ProcessResult.
type Toolchain interface {
	Compile(ctx context.Context, dir string, timeout time.Duration) (ProcessResult, error)
	Execute(ctx context.Context, dir string, stdin []byte, timeout time.Duration) (ProcessResult, error)
}

// LocalToolchain runs the host C compiler and executes the binary directly.
type LocalToolchain struct {
	compiler      string
	flags         []string
	maxOutput     int
	memoryLimitMB int
}

var _ Toolchain = (*LocalToolchain)(nil)

// NewLocalToolchain returns a toolchain invoking compiler as
// "compiler out.c -o a.out flags...".
func NewLocalToolchain(compiler string, flags []string, maxOutput, memoryLimitMB int) *LocalToolchain {
	return &LocalToolchain{
		compiler:      compiler,
		flags:         flags,
		maxOutput:     maxOutput,
		memoryLimitMB: memoryLimitMB,
	}
}

func (t *LocalToolchain) Compile(ctx context.Context, dir string, timeout time.Duration) (ProcessResult, error) {
	args := append([]string{sourceFile, "-o", binaryFile}, t.flags...)
	return spawn(ctx, command{
		name:      t.compiler,
		args:      args,
		dir:       dir,
		timeout:   timeout,
		maxOutput: t.maxOutput,
	})
}

func (t *LocalToolchain) Execute(ctx context.Context, dir string, stdin []byte, timeout time.Duration) (ProcessResult, error) {
	var in io.Reader
	if stdin != nil {
		in = bytes.NewReader(stdin)
	}
	ws := workspace{dir: dir}
	return spawn(ctx, command{
		name:        ws.binary(),
		dir:         dir,
		stdin:       in,
		timeout:     timeout,
		maxOutput:   t.maxOutput,
		memoryLimit: uint64(t.memoryLimitMB) << 20,
	})
}
