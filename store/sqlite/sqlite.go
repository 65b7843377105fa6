// Package sqlite implements jcl.HistoryStore using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nevindra/jcl"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
// When set, the store emits debug logs for every operation including
// timing and row counts. If not set, no logs are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements jcl.HistoryStore backed by a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ jcl.HistoryStore = (*Store)(nil)

// New creates a Store using a local SQLite file at dbPath.
// It opens a single shared connection pool with SetMaxOpenConns(1) so that
// all goroutines serialize through one connection, eliminating SQLITE_BUSY
// errors caused by concurrent writers opening independent connections.
func New(dbPath string, opts ...StoreOption) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(s)
	}
	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s
}

// Init creates the runs table and its index.
func (s *Store) Init(ctx context.Context) error {
	start := time.Now()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			ok INTEGER NOT NULL,
			stage TEXT NOT NULL,
			state TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			stdout TEXT NOT NULL,
			stderr TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at DESC, id DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	s.logger.Debug("sqlite: init done", "duration", time.Since(start))
	return nil
}

// SaveRun inserts rec, replacing any run with the same id.
func (s *Store) SaveRun(ctx context.Context, rec jcl.RunRecord) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs
			(id, created_at, source, target, ok, stage, state, exit_code, stdout, stderr, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt, rec.Source, rec.Target, boolToInt(rec.OK), string(rec.Stage),
		rec.State.String(), rec.ExitCode, rec.Stdout, rec.Stderr, rec.DurationMs)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	s.logger.Debug("sqlite: run saved", "id", rec.ID, "stage", rec.Stage, "duration", time.Since(start))
	return nil
}

const runColumns = `id, created_at, source, target, ok, stage, state, exit_code, stdout, stderr, duration_ms`

// GetRun returns the run with the given id or jcl.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (jcl.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return jcl.RunRecord{}, fmt.Errorf("get run %s: %w", id, jcl.ErrNotFound)
	}
	if err != nil {
		return jcl.RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]jcl.RunRecord, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []jcl.RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	s.logger.Debug("sqlite: runs listed", "count", len(runs), "duration", time.Since(start))
	return runs, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (jcl.RunRecord, error) {
	var (
		rec   jcl.RunRecord
		ok    int
		stage string
		state string
	)
	err := sc.Scan(&rec.ID, &rec.CreatedAt, &rec.Source, &rec.Target, &ok, &stage, &state,
		&rec.ExitCode, &rec.Stdout, &rec.Stderr, &rec.DurationMs)
	if err != nil {
		return jcl.RunRecord{}, err
	}
	rec.OK = ok != 0
	rec.Stage = jcl.Stage(stage)
	rec.State = jcl.ParseState(state)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
