// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of the SQLite C code: no CGo, no C compiler,
// cross-compiles like any other Go package. The driver registers itself with
// database/sql under the name "sqlite".
//
// CONCURRENCY MODEL:
// SQLite allows one writer at a time. Rather than fight SQLITE_BUSY from
// several pooled connections, the pool is capped at a single connection and
// every multi-statement write runs inside one transaction. Concurrent creator
// syncs therefore queue on the connection, and each batch commits (or rolls
// back) as a unit.
//
// Because there is only one connection, code holding a *sql.Tx must issue
// every statement through the tx. Calling db.conn while a tx is open would
// wait forever for the connection the tx already holds.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/creator-outliers/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/creators.db"  → file-based database (persistent)
//   - ":memory:"          → in-memory database (tests; lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: see the package comment. It also keeps ":memory:"
	// databases alive, since every new connection would get its own empty DB.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode: other processes (backups, the sqlite3 shell) can read while a
	// sync transaction is writing.
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

// dsn appends the per-connection pragmas to dbPath.
//
// Foreign keys are OFF by default in SQLite. Setting them through the DSN
// (instead of a one-off PRAGMA) means any reconnect gets them too, which the
// ON DELETE CASCADE from creators → posts → remixes depends on.
func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep +
		"_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS makes it safe to run
// on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS creators (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			platform       TEXT NOT NULL,
			username       TEXT NOT NULL,
			canonical_url  TEXT NOT NULL DEFAULT '',
			display_name   TEXT NOT NULL DEFAULT '',
			added_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_synced_at DATETIME,
			UNIQUE (platform, username)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating creators table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS posts (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			creator_id       INTEGER NOT NULL REFERENCES creators(id) ON DELETE CASCADE,
			platform_post_id TEXT NOT NULL,
			title            TEXT NOT NULL DEFAULT '',
			url              TEXT NOT NULL DEFAULT '',
			view_count       INTEGER NOT NULL DEFAULT 0,
			like_count       INTEGER NOT NULL DEFAULT 0,
			comment_count    INTEGER NOT NULL DEFAULT 0,
			duration_seconds INTEGER,
			published_date   TEXT NOT NULL DEFAULT '',
			thumbnail_url    TEXT NOT NULL DEFAULT '',
			metric           TEXT NOT NULL DEFAULT 'views',
			outlier_score    REAL NOT NULL DEFAULT 0,
			transcript       TEXT,
			synced_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (creator_id, platform_post_id)
		);
		CREATE INDEX IF NOT EXISTS idx_posts_outlier_score ON posts(outlier_score);
	`)
	if err != nil {
		return fmt.Errorf("creating posts table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS remixes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id    INTEGER NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			content    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_remixes_post_id ON remixes(post_id);
	`)
	if err != nil {
		return fmt.Errorf("creating remixes table: %w", err)
	}

	// Databases created before the metric column existed scored on views only.
	if err := db.addColumnIfNotExists("posts", "metric",
		"TEXT NOT NULL DEFAULT 'views'"); err != nil {
		return fmt.Errorf("adding metric to posts: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent, so it can run on every start.
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
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// sqliteCode returns the extended result code of an SQLite error.
func sqliteCode(err error) (int, bool) {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return 0, false
	}
	return sqliteErr.Code(), true
}

// isForeignKeyViolation reports whether a REFERENCES clause rejected the row.
func isForeignKeyViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

// isConstraintViolation reports any constraint failure (NOT NULL, CHECK,
// UNIQUE, trigger aborts and foreign keys). The primary result code is the
// low byte of the extended code.
func isConstraintViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && code&0xff == sqlite3.SQLITE_CONSTRAINT
}

// Aggregates such as MAX(synced_at) have no declared column type, so the
// driver hands them back as text instead of time.Time.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("sqlite: unrecognised time %q", s)
}

func clampLimit(opts repository.ListOptions, def, max int) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
