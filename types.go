package jcl

import "context"

// Stage identifies the pipeline phase at which an outcome was determined.
type Stage string

const (
	StageCompile Stage = "compile"
	StageRun     Stage = "run"
	StageError   Stage = "error"
)

// State is a node of the per-request execution state machine:
//
//	Created → Compiling → CompileFailed
//	                    → Compiled → Running → RunOK | RunFailed | RunTimedOut
//	        → Errored
//
// Each request walks the machine once and never re-enters a state.
type State int

const (
	StateCreated State = iota
	StateCompiling
	StateCompileFailed
	StateCompiled
	StateRunning
	StateRunOK
	StateRunFailed
	StateRunTimedOut
	StateErrored
)

var stateNames = [...]string{
	StateCreated:       "created",
	StateCompiling:     "compiling",
	StateCompileFailed: "compile_failed",
	StateCompiled:      "compiled",
	StateRunning:       "running",
	StateRunOK:         "run_ok",
	StateRunFailed:     "run_failed",
	StateRunTimedOut:   "run_timed_out",
	StateErrored:       "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ParseState returns the State whose String is name, or StateCreated when
// name matches none.
func ParseState(name string) State {
	for i, n := range stateNames {
		if n == name {
			return State(i)
		}
	}
	return StateCreated
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	switch s {
	case StateCompileFailed, StateRunOK, StateRunFailed, StateRunTimedOut, StateErrored:
		return true
	}
	return false
}

// Outcome is the stage-tagged record returned for every pipeline call.
// Only ok, stage, stdout and stderr cross the wire.
type Outcome struct {
	OK     bool   `json:"ok"`
	Stage  Stage  `json:"stage"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`

	// State is the terminal state the request reached.
	State State `json:"-"`
	// ExitCode is the exit status of the last external process, -1 when
	// none finished normally.
	ExitCode int `json:"-"`
}

// RunRequest is the input of a pipeline call.
type RunRequest struct {
	Code      string   `json:"code"`
	InputData []string `json:"input_data,omitempty"`
}

// RunRecord is one finished pipeline call as kept by a HistoryStore.
type RunRecord struct {
	ID         string `json:"id"`
	CreatedAt  int64  `json:"created_at"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	DurationMs int64  `json:"duration_ms"`
	Outcome
}

// Transpiler converts source text into target C text. Implementations must
// be deterministic and free of side effects.
type Transpiler interface {
	Transpile(source string) (string, error)
}

// Runner compiles and executes target C text. Run never returns an error:
// every failure is reported through the Outcome.
type Runner interface {
	Run(ctx context.Context, target string, stdin []string) Outcome
}

// HistoryStore persists finished runs.
type HistoryStore interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, rec RunRecord) error
	// GetRun returns ErrNotFound when no run has the given id.
	GetRun(ctx context.Context, id string) (RunRecord, error)
	// ListRuns returns up to limit runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// ArtifactStore archives files produced by a run.
type ArtifactStore interface {
	PutArtifact(ctx context.Context, runID, name string, data []byte) error
}
