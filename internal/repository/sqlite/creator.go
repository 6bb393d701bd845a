package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

const creatorColumns = `id, platform, username, canonical_url, display_name, added_at, last_synced_at`

// AddCreator inserts a creator, or loads the existing one with the same
// (platform, username).
//
// ON CONFLICT DO NOTHING turns a duplicate add into a no-op instead of a
// constraint error. RowsAffected then tells us which case we hit, and the
// follow-up SELECT fills c with the stored row either way, so callers always
// see the surviving identity.
func (db *DB) AddCreator(ctx context.Context, c *model.Creator) (bool, error) {
	addedAt := time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO creators (platform, username, canonical_url, display_name, added_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(platform, username) DO NOTHING`,
		c.Platform,
		c.Username,
		c.CanonicalURL,
		c.DisplayName,
		addedAt,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: adding creator: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	stored, err := scanCreator(db.conn.QueryRowContext(ctx,
		`SELECT `+creatorColumns+` FROM creators WHERE platform = ? AND username = ?`,
		c.Platform, c.Username,
	))
	if err != nil {
		return false, fmt.Errorf("sqlite: loading creator %s/%s: %w", c.Platform, c.Username, err)
	}

	*c = *stored
	return rowsAffected == 1, nil
}

// GetCreator retrieves a single creator by id.
func (db *DB) GetCreator(ctx context.Context, id int64) (*model.Creator, error) {
	c, err := scanCreator(db.conn.QueryRowContext(ctx,
		`SELECT `+creatorColumns+` FROM creators WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("creator", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting creator %d: %w", id, err)
	}
	return c, nil
}

// ListCreators returns the whole watchlist, newest first, with each
// creator's post count and the most recent post sync time.
func (db *DB) ListCreators(ctx context.Context) ([]model.CreatorSummary, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.platform, c.username, c.canonical_url, c.display_name,
		        c.added_at, c.last_synced_at,
		        COUNT(p.id), MAX(p.synced_at)
		 FROM creators c
		 LEFT JOIN posts p ON p.creator_id = c.id
		 GROUP BY c.id
		 ORDER BY c.added_at DESC, c.id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing creators: %w", err)
	}
	defer rows.Close()

	creators := make([]model.CreatorSummary, 0)

	for rows.Next() {
		var (
			s          model.CreatorSummary
			lastSynced sql.NullTime
			latestPost sql.NullString
		)
		if err := rows.Scan(
			&s.ID, &s.Platform, &s.Username, &s.CanonicalURL, &s.DisplayName,
			&s.AddedAt, &lastSynced,
			&s.PostCount, &latestPost,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning creator row: %w", err)
		}
		if lastSynced.Valid {
			t := lastSynced.Time
			s.LastSyncedAt = &t
		}
		if latestPost.Valid {
			t, err := parseTime(latestPost.String)
			if err != nil {
				return nil, err
			}
			s.LatestPostSync = &t
		}
		creators = append(creators, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating creators: %w", err)
	}

	return creators, nil
}

// RemoveCreator deletes a creator. Posts and remixes go with it through
// ON DELETE CASCADE.
func (db *DB) RemoveCreator(ctx context.Context, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM creators WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: removing creator %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("creator", strconv.FormatInt(id, 10))
	}

	return nil
}

func scanCreator(row *sql.Row) (*model.Creator, error) {
	var (
		c          model.Creator
		lastSynced sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &c.Platform, &c.Username, &c.CanonicalURL, &c.DisplayName,
		&c.AddedAt, &lastSynced,
	); err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		c.LastSyncedAt = &t
	}
	return &c, nil
}
