// Package store provides the relational persistence layer for SpectreWeave.
//
// The store runs on one of three drivers selected by DSN:
//   - sqlite3 (embedded, WAL mode) for local single-node deployments
//   - libsql for a remote Turso replica (libsql:// DSNs)
//   - pgx for Supabase/Postgres (postgres:// DSNs)
//
// Queries are written with ? placeholders and rebound to $n for Postgres.
// Timestamps are stored as RFC3339 text so the same schema works everywhere.
//
// Every query is scoped by the owning subject (the authenticated user id);
// this is the server-side analogue of the row-level security the hosted
// database enforces.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	_ "github.com/tursodatabase/go-libsql"
)

// Sentinel errors mapped to HTTP statuses at the API layer.
var (
	// ErrNotFound indicates the requested row does not exist or is not
	// visible to the requesting owner.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation (HTTP 409).
	ErrConflict = errors.New("conflict")
)

// Store wraps the database connection.
type Store struct {
	conn     *sql.DB
	postgres bool
}

// Open connects to the database named by dsn.
//
// DSN forms:
//   - "postgres://..." or "postgresql://..." opens Postgres via pgx
//   - "libsql://..." opens a remote libSQL/Turso database
//   - anything else is a local SQLite file path
//
// The caller MUST call Close() when done.
func Open(dsn string) (*Store, error) {
	var (
		conn     *sql.DB
		err      error
		postgres bool
	)

	switch {
	case strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://"):
		conn, err = sql.Open("pgx", dsn)
		postgres = true
	case strings.HasPrefix(dsn, "libsql://"):
		conn, err = sql.Open("libsql", dsn)
	default:
		if mkErr := os.MkdirAll(filepath.Dir(dsn), 0755); mkErr != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", mkErr)
		}
		conn, err = sql.Open("sqlite3", "file:"+dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, postgres: postgres}

	if !postgres {
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA foreign_keys=ON",
		} {
			if _, err := conn.Exec(pragma); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
			}
		}
	}

	return s, nil
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if !s.postgres {
		if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
		}
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// Ping verifies the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

// InitSchema creates all tables and indexes if they don't exist.
// Idempotent - safe to call multiple times.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		project_type TEXT NOT NULL DEFAULT 'manuscript',
		target_age TEXT NOT NULL DEFAULT '',
		book_theme TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deadline TEXT
	);

	CREATE TABLE IF NOT EXISTS chapters (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		framework TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL,
		word_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS characters (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		traits TEXT NOT NULL DEFAULT '[]',
		relationships TEXT NOT NULL DEFAULT '{}',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS book_pages (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		page_number INTEGER NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		illustration_prompt TEXT NOT NULL DEFAULT '',
		illustration_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (project_id, page_number),
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS agents (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		system_prompt TEXT NOT NULL DEFAULT '',
		temperature REAL NOT NULL DEFAULT 0.7,
		enabled INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (owner, name)
	);

	CREATE TABLE IF NOT EXISTS pipelines (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		steps TEXT NOT NULL DEFAULT '[]',
		edges TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner);
	CREATE INDEX IF NOT EXISTS idx_chapters_project ON chapters(project_id);
	CREATE INDEX IF NOT EXISTS idx_chapters_position ON chapters(project_id, position);
	CREATE INDEX IF NOT EXISTS idx_characters_project ON characters(project_id);
	CREATE INDEX IF NOT EXISTS idx_pages_project ON book_pages(project_id);
	CREATE INDEX IF NOT EXISTS idx_agents_owner ON agents(owner);
	CREATE INDEX IF NOT EXISTS idx_pipelines_owner ON pipelines(owner);
	`

	if _, err := s.conn.ExecContext(ctx, s.rebind(schema)); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// rebind converts ? placeholders to $n for Postgres. SQLite and libSQL
// accept ? natively.
func (s *Store) rebind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// exec runs a write query with placeholder rebinding and constraint mapping.
func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	res, err := s.conn.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, mapConstraint(err)
	}
	return res, nil
}

// query runs a read query with placeholder rebinding.
func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.conn.QueryContext(ctx, s.rebind(query), args...)
}

// queryRow runs a single-row read query with placeholder rebinding.
func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.conn.QueryRowContext(ctx, s.rebind(query), args...)
}

// mapConstraint translates driver-specific uniqueness violations to
// ErrConflict so handlers can answer 409.
func mapConstraint(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// parseTime parses an RFC3339 timestamp, returning the zero time on failure.
func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
