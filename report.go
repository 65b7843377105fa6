package jcl

import (
	"fmt"
	"strconv"
	"time"
)

// The constructors below are the only way the supervisor builds an Outcome,
// so every record carries a stage and terminal state that agree.

// CompileFailed reports a compiler that exited nonzero.
func CompileFailed(stdout, stderr string, exitCode int) Outcome {
	return Outcome{
		Stage:    StageCompile,
		Stdout:   stdout,
		Stderr:   stderr,
		State:    StateCompileFailed,
		ExitCode: exitCode,
	}
}

// CompileTimedOut reports a compiler that exceeded its budget.
func CompileTimedOut(budget time.Duration) Outcome {
	return Outcome{
		Stage:    StageCompile,
		Stderr:   fmt.Sprintf("Compilation timed out (%s)", FormatBudget(budget)),
		State:    StateCompileFailed,
		ExitCode: -1,
	}
}

// RunFinished reports a binary that exited on its own.
func RunFinished(stdout, stderr string, exitCode int) Outcome {
	state := StateRunOK
	if exitCode != 0 {
		state = StateRunFailed
	}
	return Outcome{
		OK:       exitCode == 0,
		Stage:    StageRun,
		Stdout:   stdout,
		Stderr:   stderr,
		State:    state,
		ExitCode: exitCode,
	}
}

// RunTimedOut reports a binary killed after exceeding its budget. Partial
// output is discarded.
func RunTimedOut(budget time.Duration) Outcome {
	return Outcome{
		Stage:    StageRun,
		Stderr:   fmt.Sprintf("Execution timed out (%s)", FormatBudget(budget)),
		State:    StateRunTimedOut,
		ExitCode: -1,
	}
}

// Errored reports an unanticipated supervisor fault.
func Errored(err error) Outcome {
	return Outcome{
		Stage:    StageError,
		Stderr:   "Error: " + err.Error(),
		State:    StateErrored,
		ExitCode: -1,
	}
}

// FormatBudget renders a duration the way timeout messages show it,
// e.g. "2 seconds", "1 second", "1.5 seconds".
func FormatBudget(d time.Duration) string {
	secs := d.Seconds()
	if secs == 1 {
		return "1 second"
	}
	return strconv.FormatFloat(secs, 'f', -1, 64) + " seconds"
}
