// Package postgres implements jcl.HistoryStore using PostgreSQL.
//
// Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nevindra/jcl"
)

// Store implements jcl.HistoryStore backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	cfg    pgConfig
	logger *slog.Logger
}

// pgConfig holds store configuration set via Option functions.
type pgConfig struct {
	table  string
	logger *slog.Logger
}

// Option configures a PostgreSQL Store.
type Option func(*pgConfig)

// WithTable sets the table name. Default: "jcl_runs".
func WithTable(name string) Option {
	return func(c *pgConfig) { c.table = name }
}

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(c *pgConfig) { c.logger = l }
}

var _ jcl.HistoryStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
// The caller owns the pool and is responsible for closing it.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	cfg := pgConfig{table: "jcl_runs"}
	for _, o := range opts {
		o(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{pool: pool, cfg: cfg, logger: logger}
}

// Connect opens a pool for dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func (s *Store) table() string {
	return pgx.Identifier{s.cfg.table}.Sanitize()
}

// Init creates the runs table and index.
// Safe to call multiple times (all statements are idempotent).
func (s *Store) Init(ctx context.Context) error {
	t := s.table()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + t + ` (
			id TEXT PRIMARY KEY,
			created_at BIGINT NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			ok BOOLEAN NOT NULL,
			stage TEXT NOT NULL,
			state TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			stdout TEXT NOT NULL,
			stderr TEXT NOT NULL,
			duration_ms BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{s.cfg.table + "_created_idx"}.Sanitize() +
			` ON ` + t + ` (created_at DESC, id DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: init: %w", err)
		}
	}
	s.logger.Debug("postgres: init done", "table", s.cfg.table)
	return nil
}

// SaveRun upserts rec.
func (s *Store) SaveRun(ctx context.Context, rec jcl.RunRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+`
			(id, created_at, source, target, ok, stage, state, exit_code, stdout, stderr, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			created_at = EXCLUDED.created_at, source = EXCLUDED.source, target = EXCLUDED.target,
			ok = EXCLUDED.ok, stage = EXCLUDED.stage, state = EXCLUDED.state,
			exit_code = EXCLUDED.exit_code, stdout = EXCLUDED.stdout, stderr = EXCLUDED.stderr,
			duration_ms = EXCLUDED.duration_ms`,
		rec.ID, rec.CreatedAt, rec.Source, rec.Target, rec.OK, string(rec.Stage),
		rec.State.String(), rec.ExitCode, rec.Stdout, rec.Stderr, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("postgres: save run: %w", err)
	}
	s.logger.Debug("postgres: run saved", "id", rec.ID)
	return nil
}

const runColumns = `id, created_at, source, target, ok, stage, state, exit_code, stdout, stderr, duration_ms`

// GetRun returns the run with the given id or jcl.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (jcl.RunRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM `+s.table()+` WHERE id = $1`, id)
	rec, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return jcl.RunRecord{}, fmt.Errorf("postgres: get run %s: %w", id, jcl.ErrNotFound)
	}
	if err != nil {
		return jcl.RunRecord{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]jcl.RunRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+runColumns+` FROM `+s.table()+` ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	defer rows.Close()

	var runs []jcl.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: list runs: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list runs: %w", err)
	}
	return runs, nil
}

func scanRun(row pgx.Row) (jcl.RunRecord, error) {
	var (
		rec   jcl.RunRecord
		stage string
		state string
	)
	err := row.Scan(&rec.ID, &rec.CreatedAt, &rec.Source, &rec.Target, &rec.OK, &stage, &state,
		&rec.ExitCode, &rec.Stdout, &rec.Stderr, &rec.DurationMs)
	if err != nil {
		return jcl.RunRecord{}, err
	}
	rec.Stage = jcl.Stage(stage)
	rec.State = jcl.ParseState(state)
	return rec, nil
}
