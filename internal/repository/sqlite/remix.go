package sqlite

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

// AppendRemix stores a new remix for a post and fills in its ID and CreatedAt.
func (db *DB) AppendRemix(ctx context.Context, r *model.Remix) error {
	r.CreatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO remixes (post_id, content, created_at) VALUES (?, ?, ?)`,
		r.PostID, r.Content, r.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("post", strconv.FormatInt(r.PostID, 10))
		}
		return fmt.Errorf("sqlite: appending remix for post %d: %w", r.PostID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading remix id: %w", err)
	}
	r.ID = id

	return nil
}

// ListRemixes returns a post's remix history, newest first.
func (db *DB) ListRemixes(ctx context.Context, postID int64) ([]model.Remix, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, post_id, content, created_at
		 FROM remixes
		 WHERE post_id = ?
		 ORDER BY created_at DESC, id DESC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing remixes for post %d: %w", postID, err)
	}
	defer rows.Close()

	remixes := make([]model.Remix, 0)
	for rows.Next() {
		var r model.Remix
		if err := rows.Scan(&r.ID, &r.PostID, &r.Content, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning remix row: %w", err)
		}
		remixes = append(remixes, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating remixes: %w", err)
	}

	return remixes, nil
}
