package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

func (db *DB) AppendRemix(ctx context.Context, r *model.Remix) error {
	r.CreatedAt = time.Now().UTC()

	err := db.pool.QueryRow(ctx,
		`INSERT INTO remixes (post_id, content, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		r.PostID, r.Content, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		if pgErrorCode(err) == foreignKeyViolation {
			return apperror.NotFound("post", strconv.FormatInt(r.PostID, 10))
		}
		return fmt.Errorf("postgres: appending remix for post %d: %w", r.PostID, err)
	}
	return nil
}

func (db *DB) ListRemixes(ctx context.Context, postID int64) ([]model.Remix, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, post_id, content, created_at
		 FROM remixes
		 WHERE post_id = $1
		 ORDER BY created_at DESC, id DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing remixes for post %d: %w", postID, err)
	}
	defer rows.Close()

	remixes := make([]model.Remix, 0)
	for rows.Next() {
		var r model.Remix
		if err := rows.Scan(&r.ID, &r.PostID, &r.Content, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning remix row: %w", err)
		}
		remixes = append(remixes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating remixes: %w", err)
	}
	return remixes, nil
}
