// Package sqlite stores the known listings of every source in one SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fwojciec/flatfinder"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// SchemaVersion is stored in PRAGMA user_version of every database this
// package creates.
const SchemaVersion = 1

// migrations[i] upgrades a database from user_version i to i+1.
var migrations = []string{
	// seq records append order; the unique constraint makes recording idempotent.
	`CREATE TABLE IF NOT EXISTS known_listings (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (source, listing_id)
	);
	CREATE INDEX IF NOT EXISTS idx_known_listings_source ON known_listings(source, seq);`,
}

// pragma is a connection setting applied on Open.
type pragma struct {
	stmt     string
	fileOnly bool
}

var pragmas = []pragma{
	// Wait on lock contention, e.g. while "flatfinder known" reads the
	// database of a running watcher.
	{stmt: "PRAGMA busy_timeout = 5000"},
	// WAL lets inspection commands read while a watcher writes.
	{stmt: "PRAGMA journal_mode = WAL", fileOnly: true},
	// A crash may lose the last recorded batch but never corrupts the file.
	{stmt: "PRAGMA synchronous = NORMAL", fileOnly: true},
}

// DB is the database holding known listings.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB returns a DB for the file at path. Use ":memory:" for a database
// that lives only as long as the process.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) inMemory() bool {
	return db.path == ":memory:"
}

// Open connects to the database, creating the file and its parent
// directory when missing, and migrates the schema to SchemaVersion.
// A database written by a newer version is rejected with ECONFLICT.
func (db *DB) Open() error {
	if !db.inMemory() {
		if err := os.MkdirAll(filepath.Dir(db.path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; an in-memory database also exists per connection.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, p := range pragmas {
		if p.fileOnly && db.inMemory() {
			continue
		}
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return fmt.Errorf("failed to apply %q: %w", p.stmt, err)
		}
	}

	db.db = conn
	if err := db.migrate(); err != nil {
		conn.Close()
		db.db = nil
		return err
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// QueryRowContext executes a query that returns a single row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

// QueryContext executes a query that returns rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// BeginTx starts a transaction.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// ExecContext executes a statement that doesn't return rows.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// Version returns the schema version stored in the database.
func (db *DB) Version(ctx context.Context) (int, error) {
	var v int
	if err := db.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// migrate applies the pending migrations, each in its own transaction
// together with the version bump.
func (db *DB) migrate() error {
	ctx := context.Background()
	v, err := db.Version(ctx)
	if err != nil {
		return err
	}
	if v > SchemaVersion {
		return flatfinder.Errorf(flatfinder.ECONFLICT,
			"database %s has schema version %d, newer than supported version %d", db.path, v, SchemaVersion)
	}

	for ; v < SchemaVersion; v++ {
		tx, err := db.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to migrate schema to version %d: %w", v+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", v+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration: %w", err)
		}
	}
	return nil
}
