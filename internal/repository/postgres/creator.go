package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

const creatorColumns = `id, platform, username, canonical_url, display_name, added_at, last_synced_at`

// AddCreator inserts a creator or loads the existing (platform, username) row.
func (db *DB) AddCreator(ctx context.Context, c *model.Creator) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO creators (platform, username, canonical_url, display_name, added_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (platform, username) DO NOTHING`,
		c.Platform, c.Username, c.CanonicalURL, c.DisplayName, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("postgres: adding creator: %w", err)
	}

	stored, err := scanCreator(db.pool.QueryRow(ctx,
		`SELECT `+creatorColumns+` FROM creators WHERE platform = $1 AND username = $2`,
		c.Platform, c.Username,
	))
	if err != nil {
		return false, fmt.Errorf("postgres: loading creator %s/%s: %w", c.Platform, c.Username, err)
	}

	*c = *stored
	return tag.RowsAffected() == 1, nil
}

func (db *DB) GetCreator(ctx context.Context, id int64) (*model.Creator, error) {
	c, err := scanCreator(db.pool.QueryRow(ctx,
		`SELECT `+creatorColumns+` FROM creators WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("creator", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: getting creator %d: %w", id, err)
	}
	return c, nil
}

func (db *DB) ListCreators(ctx context.Context) ([]model.CreatorSummary, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT c.id, c.platform, c.username, c.canonical_url, c.display_name,
		        c.added_at, c.last_synced_at,
		        COUNT(p.id), MAX(p.synced_at)
		 FROM creators c
		 LEFT JOIN posts p ON p.creator_id = c.id
		 GROUP BY c.id
		 ORDER BY c.added_at DESC, c.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing creators: %w", err)
	}
	defer rows.Close()

	creators := make([]model.CreatorSummary, 0)
	for rows.Next() {
		var (
			s         model.CreatorSummary
			postCount int64
		)
		if err := rows.Scan(
			&s.ID, &s.Platform, &s.Username, &s.CanonicalURL, &s.DisplayName,
			&s.AddedAt, &s.LastSyncedAt,
			&postCount, &s.LatestPostSync,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning creator row: %w", err)
		}
		s.PostCount = int(postCount)
		creators = append(creators, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating creators: %w", err)
	}

	return creators, nil
}

func (db *DB) RemoveCreator(ctx context.Context, id int64) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM creators WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: removing creator %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("creator", strconv.FormatInt(id, 10))
	}
	return nil
}

func scanCreator(row pgx.Row) (*model.Creator, error) {
	var c model.Creator
	if err := row.Scan(
		&c.ID, &c.Platform, &c.Username, &c.CanonicalURL, &c.DisplayName,
		&c.AddedAt, &c.LastSyncedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
