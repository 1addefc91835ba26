// Package sqlite stores patients, users and sessions in a single SQLite
// file using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id             TEXT PRIMARY KEY,
    email          TEXT NOT NULL UNIQUE,
    name           TEXT NOT NULL DEFAULT '',
    password_hash  TEXT NOT NULL,
    created_at     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    token_hash  TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    created_at  INTEGER NOT NULL,
    expires_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS patients (
    id                       TEXT PRIMARY KEY,
    patient_name             TEXT NOT NULL,
    age                      INTEGER NOT NULL CHECK (age BETWEEN 1 AND 150),
    visit_date               TEXT,
    diagnosis                TEXT NOT NULL,
    surgical_procedure       TEXT NOT NULL DEFAULT '',
    hospital                 TEXT NOT NULL,
    expectations             TEXT NOT NULL DEFAULT '',
    follow_up_parameters     TEXT NOT NULL DEFAULT '',
    k_wire_removal           TEXT NOT NULL DEFAULT '',
    splint_change_removal    TEXT NOT NULL DEFAULT '',
    type_and_suture_removal  TEXT NOT NULL DEFAULT '',
    follow_up_first          TEXT NOT NULL DEFAULT '',
    follow_up_second         TEXT NOT NULL DEFAULT '',
    follow_up_third          TEXT NOT NULL DEFAULT '',
    created_at               INTEGER NOT NULL,
    updated_at               INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_patients_visit_date ON patients (visit_date DESC, created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions (expires_at);
`

// DB is a SQLite-backed patients.Store and auth.Store.
type DB struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string, log zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection: SQLite has a single writer, and an in-memory
	// database exists per connection.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA journal_mode = WAL`,
	} {
		if _, err := sqldb.ExecContext(ctx, pragma); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := sqldb.ExecContext(ctx, schema); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite store opened")
	return &DB{db: sqldb, now: time.Now, log: log}, nil
}

// HealthCheck pings the database.
func (d *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.db.PingContext(ctx)
}

func (d *DB) Close() {
	d.log.Info().Msg("closing sqlite store")
	d.db.Close()
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
