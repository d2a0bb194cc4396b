// Package sqlite stores crawl-run history in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/scu-nlp/scu-crawler/internal/crawler"
)

const dbFileName = "scu-crawler.db"

const schema = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id TEXT PRIMARY KEY,
	target TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	success INTEGER,
	total_documents INTEGER NOT NULL DEFAULT 0,
	total_articles INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_target
	ON crawl_runs(target, started_at);
`

// Run is one row of crawl-run history. FinishedAt and Success are nil while
// the run is still in flight.
type Run struct {
	ID             string     `json:"id"`
	Target         string     `json:"target"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Success        *bool      `json:"success,omitempty"`
	TotalDocuments int        `json:"total_documents"`
	TotalArticles  int        `json:"total_articles"`
	Error          string     `json:"error,omitempty"`
}

// RunStore persists crawl runs. SQLite supports a single writer, which
// matches the one-crawl-at-a-time service contract.
type RunStore struct {
	db *sql.DB
}

// Open opens or creates the run database under dir.
func Open(dir string) (*RunStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create db dir %s: %w", dir, err)
	}
	dsn := filepath.Join(dir, dbFileName) + "?mode=rwc"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &RunStore{db: db}, nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// RecordStart inserts a new in-flight run row.
func (s *RunStore) RecordStart(ctx context.Context, id, target string, startedAt time.Time) error {
	const query = `INSERT INTO crawl_runs (id, target, started_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, id, target, startedAt.UTC()); err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// RecordFinish marks a run as terminal with its final result.
func (s *RunStore) RecordFinish(ctx context.Context, id string, finishedAt time.Time, result crawler.Result) error {
	const query = `
		UPDATE crawl_runs
		SET finished_at = ?, success = ?, total_documents = ?, total_articles = ?, error = ?
		WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query,
		finishedAt.UTC(),
		result.Success,
		result.TotalDocuments,
		result.TotalArticles,
		result.Error,
		id,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("record run finish: run %s not found", id)
	}
	return nil
}

// LatestRun returns the most recent run for target, or nil when the target
// has never run.
func (s *RunStore) LatestRun(ctx context.Context, target string) (*Run, error) {
	const query = `
		SELECT id, target, started_at, finished_at, success,
			total_documents, total_articles, error
		FROM crawl_runs
		WHERE target = ?
		ORDER BY started_at DESC
		LIMIT 1`

	var (
		run        Run
		finishedAt sql.NullTime
		success    sql.NullBool
	)
	err := s.db.QueryRowContext(ctx, query, target).Scan(
		&run.ID,
		&run.Target,
		&run.StartedAt,
		&finishedAt,
		&success,
		&run.TotalDocuments,
		&run.TotalArticles,
		&run.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	if success.Valid {
		run.Success = &success.Bool
	}
	return &run, nil
}
