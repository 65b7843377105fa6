package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves the test into an empty directory so no stray .env is read.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "gcc", cfg.Sandbox.Compiler)
	assert.Equal(t, 15*time.Second, cfg.Sandbox.CompileTimeout.Duration)
	assert.Equal(t, 2*time.Second, cfg.Sandbox.RunTimeout.Duration)
	assert.Equal(t, 64*1024, cfg.Sandbox.MaxOutput)
	assert.Equal(t, "local", cfg.Sandbox.Backend)
	assert.Empty(t, cfg.History.Driver)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromTOML(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "test.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9000"
max_concurrent = 4

[sandbox]
compile_flags = ["-O2", "-Wall"]
run_timeout = "1500ms"

[history]
driver = "sqlite"
path = "runs.db"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 4, cfg.Server.MaxConcurrent)
	assert.Equal(t, []string{"-O2", "-Wall"}, cfg.Sandbox.CompileFlags)
	assert.Equal(t, 1500*time.Millisecond, cfg.Sandbox.RunTimeout.Duration)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, "runs.db", cfg.History.Path)
	// Defaults preserved
	assert.Equal(t, 15*time.Second, cfg.Sandbox.CompileTimeout.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t)
	cfg, err := Load("/nonexistent/path.toml")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr = "), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	chdir(t)
	t.Setenv("JCL_ADDR", ":7000")
	t.Setenv("JCL_MAX_CONCURRENT", "8")
	t.Setenv("JCL_COMPILE_FLAGS", "-O1  -g")
	t.Setenv("JCL_RUN_TIMEOUT", "3s")
	t.Setenv("JCL_COMPILE_TIMEOUT", "not-a-duration")
	t.Setenv("JCL_OBSERVER_ENABLED", "true")

	cfg, err := Load("/nonexistent/path.toml")
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.MaxConcurrent)
	assert.Equal(t, []string{"-O1", "-g"}, cfg.Sandbox.CompileFlags)
	assert.Equal(t, 3*time.Second, cfg.Sandbox.RunTimeout.Duration)
	assert.Equal(t, 15*time.Second, cfg.Sandbox.CompileTimeout.Duration)
	assert.True(t, cfg.Observer.Enabled)
}

func TestDotEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JCL_SANDBOX_BACKEND=docker\nJCL_DOCKER_IMAGE=gcc:13\n"), 0o644))
	// godotenv sets these process-wide; register cleanup through t.Setenv.
	t.Setenv("JCL_SANDBOX_BACKEND", "")
	t.Setenv("JCL_DOCKER_IMAGE", "")
	require.NoError(t, os.Unsetenv("JCL_SANDBOX_BACKEND"))
	require.NoError(t, os.Unsetenv("JCL_DOCKER_IMAGE"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "docker", cfg.Sandbox.Backend)
	assert.Equal(t, "gcc:13", cfg.Sandbox.DockerImage)
}

func TestLoadSeesEnvChanges(t *testing.T) {
	chdir(t)
	t.Setenv("JCL_COMPILER", "gcc-13")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gcc-13", cfg.Sandbox.Compiler)

	t.Setenv("JCL_COMPILER", "clang")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "clang", cfg.Sandbox.Compiler)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Sandbox.Backend = "wasm" }},
		{"driver", func(c *Config) { c.History.Driver = "mysql" }},
		{"postgres dsn", func(c *Config) { c.History.Driver = "postgres" }},
		{"timeout", func(c *Config) { c.Sandbox.RunTimeout = Duration{} }},
		{"negative", func(c *Config) { c.Server.MaxConcurrent = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte(" 250ms ")))
	assert.Equal(t, 250*time.Millisecond, d.Duration)
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "250ms", string(text))
	assert.Error(t, d.UnmarshalText([]byte("soon")))
}
