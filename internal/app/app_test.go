package app

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nevindra/jcl"
	"github.com/nevindra/jcl/internal/config"
	"github.com/nevindra/jcl/transpile"
)

func TestNewDefaults(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.WorkspaceRoot = t.TempDir()

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	assert.NotNil(t, a.Pipeline)
	assert.Nil(t, a.History)

	target, err := a.Pipeline.Transpile(context.Background(), "主関数() {")
	require.NoError(t, err)
	assert.Contains(t, target, "int main() {")
}

func TestNewSQLiteHistory(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.WorkspaceRoot = t.TempDir()
	cfg.History.Driver = "sqlite"
	cfg.History.Path = filepath.Join(t.TempDir(), "runs.db")

	ctx := context.Background()
	a, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, a.History)

	require.NoError(t, a.History.SaveRun(ctx, jcl.RunRecord{ID: "r1", CreatedAt: 1, Outcome: jcl.RunFinished("", "", 0)}))
	recs, err := a.History.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	require.NoError(t, a.Close(ctx))
	assert.NoError(t, a.Close(ctx))
}

func TestNewArtifactsMisconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.WorkspaceRoot = t.TempDir()
	cfg.Artifacts.Enabled = true

	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuildTranspilerCache(t *testing.T) {
	tr, err := buildTranspiler(config.TranspilerConfig{CacheSize: 4}, nil)
	require.NoError(t, err)
	_, ok := tr.(*transpile.Cached)
	assert.True(t, ok)

	tr, err = buildTranspiler(config.TranspilerConfig{}, nil)
	require.NoError(t, err)
	_, ok = tr.(*transpile.Transpiler)
	assert.True(t, ok)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	l = NewLogger(config.LogConfig{Level: "debug"}, &buf)
	l.Debug("dbg")
	assert.Contains(t, buf.String(), "msg=dbg")
}
