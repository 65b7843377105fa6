package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevindra/jcl"
)

func cli(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := runCLI(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUsage(t *testing.T) {
	code, _, stderr := cli(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage:")

	code, _, stderr = cli(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, stderr = cli(t, "transpile")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "expected exactly one source file")

	code, stdout, _ := cli(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "jcl transpile")
}

func TestTranspileStdout(t *testing.T) {
	src := writeFile(t, "hello.jcl", "主関数() {\n    表示(\"こんにちは改行\");\n}\n")
	code, stdout, _ := cli(t, "transpile", src)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "#include <stdio.h>")
	assert.Contains(t, stdout, "int main() {")
	assert.Contains(t, stdout, `printf("こんにちは\n");`)
}

func TestTranspileToFile(t *testing.T) {
	src := writeFile(t, "hello.jcl", "主関数() { 戻る 0; }")
	out := filepath.Join(t.TempDir(), "out.c")
	code, stdout, stderr := cli(t, "transpile", "-o", out, src)
	require.Equal(t, 0, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "wrote "+out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "return 0;")
}

func TestTranspileMissingFile(t *testing.T) {
	code, _, stderr := cli(t, "transpile", filepath.Join(t.TempDir(), "missing.jcl"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "missing.jcl")
}

func TestRunRemote(t *testing.T) {
	var got jcl.RunRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		ok := got.Code != "fail"
		json.NewEncoder(w).Encode(map[string]any{"ok": ok, "stage": "run", "stdout": "42\n", "stderr": "warn"})
	}))
	defer srv.Close()

	src := writeFile(t, "mul.jcl", "program")
	input := writeFile(t, "in.txt", "6\r\n7\n")
	code, stdout, stderr := cli(t, "run", "-remote", srv.URL, "-input", input, src)
	assert.Equal(t, 0, code)
	assert.Equal(t, "42\n", stdout)
	assert.Equal(t, "warn\n", stderr)
	assert.Equal(t, []string{"6", "7"}, got.InputData)

	failing := writeFile(t, "fail.jcl", "fail")
	code, _, stderr = cli(t, "run", "-remote", srv.URL, failing)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "run stage failed")
}

func TestRunsRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]jcl.RunRecord{{ID: "r1", DurationMs: 12, Outcome: jcl.Outcome{OK: true, Stage: jcl.StageRun}}})
	}))
	defer srv.Close()

	code, stdout, _ := cli(t, "runs", "-remote", srv.URL, "-limit", "1")
	require.Equal(t, 0, code)
	assert.Equal(t, "r1\trun\tok=true\t12ms\n", stdout)
}

func TestRunsWithoutHistory(t *testing.T) {
	t.Chdir(t.TempDir())
	code, _, stderr := cli(t, "runs")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not enabled")
}

func TestRunLocal(t *testing.T) {
	if _, err := exec.LookPath("gcc"); err != nil {
		t.Skip("gcc not found")
	}
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("JCL_WORKSPACE", filepath.Join(dir, "ws"))

	src := writeFile(t, "hello.jcl", "主関数() {\n    表示(\"Hello改行\");\n    戻る 0;\n}\n")
	code, stdout, stderr := cli(t, "run", src)
	assert.Equal(t, 0, code, stderr)
	assert.Equal(t, "Hello\n", stdout)
}

func TestInputLines(t *testing.T) {
	assert.Nil(t, inputLines(""))
	assert.Nil(t, inputLines("\n"))
	assert.Equal(t, []string{"a"}, inputLines("a"))
	assert.Equal(t, []string{"a", "", "b"}, inputLines("a\r\n\r\nb\n"))
}
