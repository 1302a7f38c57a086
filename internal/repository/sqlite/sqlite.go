// Package sqlite implements the Credential Store on an embedded SQLite file.
//
// WHY SQLITE?
// Production keeps identities and signups in Supabase (see the postgres
// package). For local runs that means a network database just to sign in
// once. SQLite lives inside the binary as a single file, so:
//   - DATABASE_DRIVER=sqlite (the default) works with zero setup
//   - tests use ":memory:" and need no container
//   - the schema is the same two tables as the Postgres migrations
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means a C compiler at build time and
// painful cross-compilation. modernc.org/sqlite is a pure Go translation of
// the SQLite C code, so the server still builds with plain `go build`.
//
// DATABASE/SQL OVERVIEW:
// Both backends sit behind repository.Store, but this one talks to the
// generic database/sql API rather than pgx:
//   - sql.DB   is a connection pool, NOT a single connection
//   - sql.Row  is a single result row (GetByEmail)
//   - Exec     is used for the upsert and the signup insert
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// BLANK IMPORT:
	// The package's init() registers a database/sql driver named "sqlite".
	// Nothing else from it is used directly.
	_ "modernc.org/sqlite"

	"github.com/sakif/repochat/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and implements repository.Store.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/repochat.db" → file-based database
//   - ":memory:"         → in-memory database, used by tests
//
// CONNECTION POOL:
// sql.Open() does not open a connection; it only creates the pool. Ping
// forces the first connection so a bad path or missing permission fails here
// at startup instead of on the first sign-in.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a brand-new empty database, and
	// SQLite serialises writers anyway.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode lets the health check and session reads proceed while a
	// sign-in upsert is writing.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate brings the schema up to date.
//
// MIGRATIONS HERE VS GOOSE:
// The Postgres store uses goose with versioned files because it is shared
// by deployments. This file belongs to one developer, so CREATE TABLE IF NOT
// EXISTS plus addColumnIfNotExists is enough, and every statement runs on
// each start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS user_identities (
			email             TEXT PRIMARY KEY,
			name              TEXT NOT NULL DEFAULT '',
			provider          TEXT NOT NULL,
			provider_username TEXT NOT NULL DEFAULT '',
			avatar_url        TEXT NOT NULL DEFAULT '',
			access_token      TEXT NOT NULL DEFAULT '',
			created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating user_identities table: %w", err)
	}

	// Refresh tokens arrived with GitLab sign-in; older files lack the columns.
	if err := db.addColumnIfNotExists("user_identities", "refresh_token",
		"TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding refresh_token to user_identities: %w", err)
	}
	if err := db.addColumnIfNotExists("user_identities", "token_expiry",
		"DATETIME"); err != nil {
		return fmt.Errorf("adding token_expiry to user_identities: %w", err)
	}

	// users mirrors the Supabase signup table; no uniqueness on email.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			name         TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL,
			username     TEXT NOT NULL DEFAULT '',
			organization TEXT NOT NULL DEFAULT '',
			purpose      TEXT NOT NULL DEFAULT '',
			signup_date  TEXT NOT NULL DEFAULT '',
			signup_time  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}
