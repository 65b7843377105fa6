// Package config loads jcl settings: defaults, then a TOML file, then a
// .env file, then JCL_* environment variables (env wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/xyproto/env/v2"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Sandbox    SandboxConfig    `toml:"sandbox"`
	Transpiler TranspilerConfig `toml:"transpiler"`
	History    HistoryConfig    `toml:"history"`
	Artifacts  ArtifactsConfig  `toml:"artifacts"`
	Observer   ObserverConfig   `toml:"observer"`
	Log        LogConfig        `toml:"log"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
	// MaxConcurrent caps in-flight /run requests, 0 = unlimited.
	MaxConcurrent int `toml:"max_concurrent"`
	// MaxConnections caps accepted connections, 0 = unlimited.
	MaxConnections  int      `toml:"max_connections"`
	MaxBodyBytes    int64    `toml:"max_body_bytes"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
}

type SandboxConfig struct {
	// Backend is "local" or "docker".
	Backend        string   `toml:"backend"`
	Compiler       string   `toml:"compiler"`
	CompileFlags   []string `toml:"compile_flags"`
	CompileTimeout Duration `toml:"compile_timeout"`
	RunTimeout     Duration `toml:"run_timeout"`
	WorkspaceRoot  string   `toml:"workspace_root"`
	MaxOutput      int      `toml:"max_output"`
	MemoryLimitMB  int      `toml:"memory_limit_mb"`
	DockerImage    string   `toml:"docker_image"`
	DockerPull     bool     `toml:"docker_pull"`
	DockerPids     int64    `toml:"docker_pids"`
}

type TranspilerConfig struct {
	// CacheSize is the number of memoized transpilations, 0 disables.
	CacheSize int `toml:"cache_size"`
}

type HistoryConfig struct {
	// Driver is "", "sqlite" or "postgres".
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	DSN    string `toml:"dsn"`
	Table  string `toml:"table"`
}

type ArtifactsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	Prefix    string `toml:"prefix"`
}

type ObserverConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Duration is a time.Duration written as text ("15s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			MaxBodyBytes:    1 << 20,
			ShutdownTimeout: Duration{30 * time.Second},
		},
		Sandbox: SandboxConfig{
			Backend:        "local",
			Compiler:       "gcc",
			CompileTimeout: Duration{15 * time.Second},
			RunTimeout:     Duration{2 * time.Second},
			WorkspaceRoot:  filepath.Join(os.TempDir(), "jcl"),
			MaxOutput:      64 * 1024,
			DockerImage:    "gcc:14",
			DockerPids:     64,
		},
		Transpiler: TranspilerConfig{CacheSize: 256},
		History:    HistoryConfig{Path: "jcl.db", Table: "runs"},
		Artifacts:  ArtifactsConfig{Region: "us-east-1", Bucket: "jcl-artifacts", Prefix: "runs"},
		Observer:   ObserverConfig{ServiceName: "jcl"},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads config: defaults -> TOML file -> .env -> env vars (env wins).
// A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = "jcl.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	// Variables already set in the environment are not overwritten.
	_ = godotenv.Load()
	// env caches os.Environ on first use; pick up .env and later changes.
	env.Load()

	applyEnv(&cfg)
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = env.Str("JCL_ADDR", cfg.Server.Addr)
	cfg.Server.MaxConcurrent = env.Int("JCL_MAX_CONCURRENT", cfg.Server.MaxConcurrent)
	cfg.Server.MaxConnections = env.Int("JCL_MAX_CONNECTIONS", cfg.Server.MaxConnections)

	cfg.Sandbox.Backend = env.Str("JCL_SANDBOX_BACKEND", cfg.Sandbox.Backend)
	cfg.Sandbox.Compiler = env.Str("JCL_COMPILER", cfg.Sandbox.Compiler)
	if env.Has("JCL_COMPILE_FLAGS") {
		cfg.Sandbox.CompileFlags = strings.Fields(env.Str("JCL_COMPILE_FLAGS"))
	}
	envDuration("JCL_COMPILE_TIMEOUT", &cfg.Sandbox.CompileTimeout)
	envDuration("JCL_RUN_TIMEOUT", &cfg.Sandbox.RunTimeout)
	cfg.Sandbox.WorkspaceRoot = env.Str("JCL_WORKSPACE", cfg.Sandbox.WorkspaceRoot)
	cfg.Sandbox.MaxOutput = env.Int("JCL_MAX_OUTPUT", cfg.Sandbox.MaxOutput)
	cfg.Sandbox.MemoryLimitMB = env.Int("JCL_MEMORY_LIMIT_MB", cfg.Sandbox.MemoryLimitMB)
	cfg.Sandbox.DockerImage = env.Str("JCL_DOCKER_IMAGE", cfg.Sandbox.DockerImage)

	cfg.Transpiler.CacheSize = env.Int("JCL_CACHE_SIZE", cfg.Transpiler.CacheSize)

	cfg.History.Driver = env.Str("JCL_HISTORY_DRIVER", cfg.History.Driver)
	cfg.History.Path = env.Str("JCL_HISTORY_PATH", cfg.History.Path)
	cfg.History.DSN = env.Str("JCL_HISTORY_DSN", cfg.History.DSN)

	if env.Has("JCL_ARTIFACTS_ENABLED") {
		cfg.Artifacts.Enabled = env.Bool("JCL_ARTIFACTS_ENABLED")
	}
	cfg.Artifacts.Endpoint = env.Str("JCL_S3_ENDPOINT", cfg.Artifacts.Endpoint)
	cfg.Artifacts.Region = env.Str("JCL_S3_REGION", cfg.Artifacts.Region)
	cfg.Artifacts.AccessKey = env.Str("JCL_S3_ACCESS_KEY", cfg.Artifacts.AccessKey)
	cfg.Artifacts.SecretKey = env.Str("JCL_S3_SECRET_KEY", cfg.Artifacts.SecretKey)
	cfg.Artifacts.Bucket = env.Str("JCL_S3_BUCKET", cfg.Artifacts.Bucket)
	if env.Has("JCL_S3_USE_SSL") {
		cfg.Artifacts.UseSSL = env.Bool("JCL_S3_USE_SSL")
	}

	if env.Has("JCL_OBSERVER_ENABLED") {
		cfg.Observer.Enabled = env.Bool("JCL_OBSERVER_ENABLED")
	}
	cfg.Log.Level = env.Str("JCL_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env.Str("JCL_LOG_FORMAT", cfg.Log.Format)
}

// envDuration overwrites d when name holds a valid duration.
func envDuration(name string, d *Duration) {
	if !env.Has(name) {
		return
	}
	var v Duration
	if err := v.UnmarshalText([]byte(env.Str(name))); err == nil {
		*d = v
	}
}

// Validate rejects settings no component can work with.
func (c Config) Validate() error {
	switch c.Sandbox.Backend {
	case "local", "docker":
	default:
		return fmt.Errorf("config: unknown sandbox backend %q", c.Sandbox.Backend)
	}
	switch c.History.Driver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown history driver %q", c.History.Driver)
	}
	if c.History.Driver == "postgres" && c.History.DSN == "" {
		return fmt.Errorf("config: history.dsn is required for postgres")
	}
	if c.Sandbox.CompileTimeout.Duration <= 0 || c.Sandbox.RunTimeout.Duration <= 0 {
		return fmt.Errorf("config: sandbox timeouts must be positive")
	}
	if c.Server.MaxConcurrent < 0 || c.Server.MaxConnections < 0 || c.Transpiler.CacheSize < 0 {
		return fmt.Errorf("config: limits must not be negative")
	}
	return nil
}
