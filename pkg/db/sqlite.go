package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite"
)

// DB wraps separate read and write connection pools over one SQLite file.
// The write pool is capped at a single connection to serialize writers; the
// read pool scales with the CPU count.
type DB struct {
	read  *sql.DB
	write *sql.DB
}

// sqliteDBString constructs a connection string with recommended PRAGMA settings
func sqliteDBString(file string, readonly bool) string {
	connectionParams := make(url.Values)
	connectionParams.Add("_journal_mode", "WAL")
	connectionParams.Add("_busy_timeout", "5000")
	connectionParams.Add("_synchronous", "NORMAL")
	connectionParams.Add("_cache_size", "-20000") // 20MB cache
	connectionParams.Add("_foreign_keys", "true")

	if readonly {
		connectionParams.Add("mode", "ro")
	} else {
		connectionParams.Add("_txlock", "immediate")
		connectionParams.Add("mode", "rwc")
	}

	return "file:" + file + "?" + connectionParams.Encode()
}

func openPool(file string, readonly bool) (*sql.DB, error) {
	pool, err := sql.Open("sqlite", sqliteDBString(file, readonly))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// PRAGMAs that can't be set via the connection string
	pragmas := []string{
		"temp_store=memory",
		"busy_timeout=10000",
	}
	for _, pragma := range pragmas {
		if _, err := pool.Exec("PRAGMA " + pragma + ";"); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to set PRAGMA %s: %w", pragma, err)
		}
	}

	if readonly {
		maxConns := max(4, runtime.NumCPU())
		pool.SetMaxOpenConns(maxConns)
		pool.SetMaxIdleConns(maxConns)
	} else {
		pool.SetMaxOpenConns(1)
		pool.SetMaxIdleConns(1)
	}

	return pool, nil
}

// Open creates the database file if needed and returns read and write pools
// over it. Callers own the returned DB and must Close it.
func Open(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	write, err := openPool(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}

	read, err := openPool(dbPath, true)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("failed to open read database: %w", err)
	}

	return &DB{read: read, write: write}, nil
}

// Read returns the read-only connection pool.
func (d *DB) Read() *sql.DB { return d.read }

// Write returns the single-connection write pool.
func (d *DB) Write() *sql.DB { return d.write }

// WithTx executes fn within an immediate write transaction, rolling back on
// error.
func (d *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.write.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes both connection pools.
func (d *DB) Close() error {
	var errs []error

	if d.read != nil {
		if err := d.read.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close read database: %w", err))
		}
	}
	if d.write != nil {
		if err := d.write.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close write database: %w", err))
		}
	}

	return errors.Join(errs...)
}
