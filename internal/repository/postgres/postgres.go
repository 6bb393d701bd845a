// Package postgres implements repository.Store on PostgreSQL through a pgx
// connection pool. It mirrors the sqlite backend table for table; pick it with
// STORE_DRIVER=postgres when several engine instances share one database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/creator-outliers/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// foreignKeyViolation is the SQLSTATE raised when a post or remix points at
// a row that no longer exists.
const foreignKeyViolation = "23503"

// integrityConstraintClass is the SQLSTATE class shared by every
// constraint failure (not null, check, unique, foreign key).
const integrityConstraintClass = "23"

// DB wraps a pgx pool and provides repository methods.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and runs migrations.
func New(ctx context.Context, databaseURL string, maxConns int32) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connecting: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}

	return db, nil
}

// Close releases every pooled connection.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// Ping checks a pooled connection is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS creators (
			id             BIGSERIAL PRIMARY KEY,
			platform       TEXT NOT NULL,
			username       TEXT NOT NULL,
			canonical_url  TEXT NOT NULL DEFAULT '',
			display_name   TEXT NOT NULL DEFAULT '',
			added_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_synced_at TIMESTAMPTZ,
			UNIQUE (platform, username)
		);

		CREATE TABLE IF NOT EXISTS posts (
			id               BIGSERIAL PRIMARY KEY,
			creator_id       BIGINT NOT NULL REFERENCES creators(id) ON DELETE CASCADE,
			platform_post_id TEXT NOT NULL,
			title            TEXT NOT NULL DEFAULT '',
			url              TEXT NOT NULL DEFAULT '',
			view_count       BIGINT NOT NULL DEFAULT 0,
			like_count       BIGINT NOT NULL DEFAULT 0,
			comment_count    BIGINT NOT NULL DEFAULT 0,
			duration_seconds INTEGER,
			published_date   TEXT NOT NULL DEFAULT '',
			thumbnail_url    TEXT NOT NULL DEFAULT '',
			metric           TEXT NOT NULL DEFAULT 'views',
			outlier_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
			transcript       TEXT,
			synced_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (creator_id, platform_post_id)
		);
		CREATE INDEX IF NOT EXISTS idx_posts_outlier_score ON posts(outlier_score);

		CREATE TABLE IF NOT EXISTS remixes (
			id         BIGSERIAL PRIMARY KEY,
			post_id    BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
			content    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_remixes_post_id ON remixes(post_id);
	`)
	return err
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
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
