package sandbox

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevindra/jcl"
)

type fakeToolchain struct {
	compile     ProcessResult
	compileErr  error
	execute     ProcessResult
	executeErr  error
	panicOnExec bool

	executed  bool
	gotStdin  []byte
	gotSource string
}

func (f *fakeToolchain) Compile(_ context.Context, dir string, _ time.Duration) (ProcessResult, error) {
	src, err := os.ReadFile(dir + "/" + sourceFile)
	if err != nil {
		return ProcessResult{}, err
	}
	f.gotSource = string(src)
	return f.compile, f.compileErr
}

func (f *fakeToolchain) Execute(_ context.Context, _ string, stdin []byte, _ time.Duration) (ProcessResult, error) {
	if f.panicOnExec {
		panic("toolchain exploded")
	}
	f.executed = true
	f.gotStdin = stdin
	return f.execute, f.executeErr
}

func newTestSupervisor(t *testing.T, tc Toolchain) (*Supervisor, string) {
	t.Helper()
	root := t.TempDir()
	return New(WithToolchain(tc), WithWorkspaceRoot(root)), root
}

func assertNoWorkspaces(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace not released")
}

func TestSupervisorRunOK(t *testing.T) {
	tc := &fakeToolchain{execute: ProcessResult{Stdout: "Hello\n"}}
	sup, root := newTestSupervisor(t, tc)

	out := sup.Run(context.Background(), "int main(){}", nil)

	assert.True(t, out.OK)
	assert.Equal(t, jcl.StageRun, out.Stage)
	assert.Equal(t, "Hello\n", out.Stdout)
	assert.Equal(t, jcl.StateRunOK, out.State)
	assert.Equal(t, "int main(){}", tc.gotSource)
	assert.Nil(t, tc.gotStdin)
	assertNoWorkspaces(t, root)
}

func TestSupervisorStdin(t *testing.T) {
	tc := &fakeToolchain{}
	sup, _ := newTestSupervisor(t, tc)

	sup.Run(context.Background(), "x", []string{"3", "4"})
	assert.Equal(t, "3\n4\n", string(tc.gotStdin))
}

func TestSupervisorRunFailed(t *testing.T) {
	tc := &fakeToolchain{execute: ProcessResult{Stdout: "partial", Stderr: "boom", ExitCode: 2}}
	sup, root := newTestSupervisor(t, tc)

	out := sup.Run(context.Background(), "x", nil)

	assert.False(t, out.OK)
	assert.Equal(t, jcl.StageRun, out.Stage)
	assert.Equal(t, "partial", out.Stdout)
	assert.Equal(t, "boom", out.Stderr)
	assert.Equal(t, jcl.StateRunFailed, out.State)
	assertNoWorkspaces(t, root)
}

func TestSupervisorCompileFailed(t *testing.T) {
	tc := &fakeToolchain{compile: ProcessResult{Stderr: "out.c:1: error: expected '}'", ExitCode: 1}}
	sup, root := newTestSupervisor(t, tc)

	out := sup.Run(context.Background(), "int main() {", nil)

	assert.False(t, out.OK)
	assert.Equal(t, jcl.StageCompile, out.Stage)
	assert.Contains(t, out.Stderr, "expected '}'")
	assert.False(t, tc.executed)
	assertNoWorkspaces(t, root)
}

func TestSupervisorCompileTimeout(t *testing.T) {
	tc := &fakeToolchain{compile: ProcessResult{TimedOut: true, ExitCode: -1}}
	sup, _ := newTestSupervisor(t, tc)

	out := sup.Run(context.Background(), "x", nil)

	assert.Equal(t, jcl.StageCompile, out.Stage)
	assert.Equal(t, "Compilation timed out (15 seconds)", out.Stderr)
}

func TestSupervisorRunTimeout(t *testing.T) {
	tc := &fakeToolchain{execute: ProcessResult{Stdout: "spam", TimedOut: true, ExitCode: -1}}
	sup, root := newTestSupervisor(t, tc)

	out := sup.Run(context.Background(), "x", nil)

	assert.False(t, out.OK)
	assert.Equal(t, jcl.StageRun, out.Stage)
	assert.Empty(t, out.Stdout)
	assert.Equal(t, "Execution timed out (2 seconds)", out.Stderr)
	assert.Equal(t, jcl.StateRunTimedOut, out.State)
	assertNoWorkspaces(t, root)
}

func TestSupervisorFaults(t *testing.T) {
	tests := []struct {
		name string
		tc   *fakeToolchain
	}{
		{"compile", &fakeToolchain{compileErr: errors.New("gcc: not found")}},
		{"execute", &fakeToolchain{executeErr: errors.New("exec format error")}},
		{"panic", &fakeToolchain{panicOnExec: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sup, root := newTestSupervisor(t, tt.tc)
			out := sup.Run(context.Background(), "x", nil)

			assert.False(t, out.OK)
			assert.Equal(t, jcl.StageError, out.Stage)
			assert.Empty(t, out.Stdout)
			assert.Contains(t, out.Stderr, "Error: ")
			assert.Equal(t, jcl.StateErrored, out.State)
			assertNoWorkspaces(t, root)
		})
	}
}

func TestSupervisorWorkspaceFault(t *testing.T) {
	file := t.TempDir() + "/file"
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	sup := New(WithToolchain(&fakeToolchain{}), WithWorkspaceRoot(file))
	out := sup.Run(context.Background(), "x", nil)
	assert.Equal(t, jcl.StageError, out.Stage)
}

func TestSupervisorCustomBudgets(t *testing.T) {
	tc := &fakeToolchain{execute: ProcessResult{TimedOut: true}}
	sup := New(WithToolchain(tc), WithWorkspaceRoot(t.TempDir()), WithRunTimeout(1500*time.Millisecond))

	out := sup.Run(context.Background(), "x", nil)
	assert.Equal(t, "Execution timed out (1.5 seconds)", out.Stderr)
}

func TestJoinInput(t *testing.T) {
	assert.Nil(t, joinInput(nil))
	assert.Equal(t, "a\n", string(joinInput([]string{"a"})))
	assert.Equal(t, "a\n\nb\n", string(joinInput([]string{"a", "", "b"})))
}
