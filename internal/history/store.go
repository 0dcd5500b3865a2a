// Package history persists a record of code executions to SQLite so past
// runs can be inspected from the CLI.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"runcell/pkg/db"
	"runcell/pkg/migration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Run is one recorded execution.
type Run struct {
	ID        string
	SessionID string
	Language  string
	Code      string
	Status    string
	Duration  time.Duration
	StartedAt time.Time
}

// Run statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusStopped = "stopped"
)

// Store reads and writes run records.
type Store struct {
	db *db.DB
}

// NewStore wraps database. Call Migrate before first use.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Migrate applies pending schema migrations.
func (s *Store) Migrate() error {
	fsys, err := fs.Sub(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	return migration.NewRunner(s.db.Write(), fsys).Run()
}

// Record inserts one run.
func (s *Store) Record(ctx context.Context, run Run) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, session_id, language, code, status, duration_ms, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, run.SessionID, run.Language, run.Code, run.Status,
			run.Duration.Milliseconds(), run.StartedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		return nil
	})
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Read().QueryContext(ctx, `
		SELECT id, session_id, language, code, status, duration_ms, started_at
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// BySession returns all runs for one session, oldest first.
func (s *Store) BySession(ctx context.Context, sessionID string) ([]Run, error) {
	rows, err := s.db.Read().QueryContext(ctx, `
		SELECT id, session_id, language, code, status, duration_ms, started_at
		FROM runs
		WHERE session_id = ?
		ORDER BY started_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// Purge deletes runs started before cutoff, returning the number removed.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM runs WHERE started_at < ?
		`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to purge runs: %w", err)
		}
		removed, _ = res.RowsAffected()
		return nil
	})
	return removed, err
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			run        Run
			durationMS int64
		)
		if err := rows.Scan(&run.ID, &run.SessionID, &run.Language, &run.Code,
			&run.Status, &durationMS, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
