package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes after the process
// has been killed.
const waitDelay = 500 * time.Millisecond

// ProcessResult is what one external process left behind.
type ProcessResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// TimedOut is set when the budget expired and the process was killed.
	// Stdout and Stderr then hold whatever was captured before the kill.
	TimedOut bool
}

// command describes one spawn-with-deadline call.
type command struct {
	name      string
	args      []string
	dir       string
	stdin     io.Reader
	timeout   time.Duration
	maxOutput int
	// memoryLimit is the address space cap in bytes, 0 = unlimited.
	memoryLimit uint64
}

// spawn runs c to completion or until its deadline, whichever comes first.
// On expiry the whole process group is killed. A non-nil error means the
// process could not be started or waited for; a nonzero exit is not an error.
func spawn(ctx context.Context, c command) (ProcessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Dir = c.dir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"LANG=C.UTF-8",
	}
	cmd.Stdin = c.stdin
	cmd.WaitDelay = waitDelay

	stdout := &limitedWriter{limit: c.maxOutput}
	stderr := &limitedWriter{limit: c.maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	configureProcess(cmd)

	if err := cmd.Start(); err != nil {
		return ProcessResult{ExitCode: -1}, fmt.Errorf("start %s: %w", c.name, err)
	}
	if err := limitProcess(cmd.Process.Pid, c.memoryLimit); err != nil {
		_ = cmd.Cancel()
		_ = cmd.Wait()
		return ProcessResult{ExitCode: -1}, fmt.Errorf("limit %s: %w", c.name, err)
	}

	waitErr := cmd.Wait()
	res := ProcessResult{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitCode = -1
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("%s: %w", c.name, ctx.Err())
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("wait %s: %w", c.name, waitErr)
	}
	return res, nil
}

// limitedWriter captures up to limit bytes and discards the rest.
type limitedWriter struct {
	buf   strings.Builder
	limit int
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if remaining := w.limit - w.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		w.buf.Write(p)
	}
	return n, nil
}

func (w *limitedWriter) String() string { return w.buf.String() }
