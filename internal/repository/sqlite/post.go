package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/repository"
)

const (
	defaultPostLimit    = 50
	maxPostLimit        = 500
	defaultOutlierLimit = 100
)

const postColumns = `p.id, p.creator_id, p.platform_post_id, p.title, p.url,
	p.view_count, p.like_count, p.comment_count, p.duration_seconds,
	p.published_date, p.thumbnail_url, p.metric, p.outlier_score,
	p.transcript, p.synced_at`

// upsertPostSQL is the natural-key upsert.
//
// Only engagement counters, the metric, the score and synced_at are
// refreshed. Title, URL and thumbnail keep their first-seen values, and the
// transcript column is not mentioned at all, so a re-sync can never clear it.
const upsertPostSQL = `
	INSERT INTO posts (
		creator_id, platform_post_id, title, url,
		view_count, like_count, comment_count, duration_seconds,
		published_date, thumbnail_url, metric, outlier_score, synced_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(creator_id, platform_post_id) DO UPDATE SET
		view_count    = excluded.view_count,
		like_count    = excluded.like_count,
		comment_count = excluded.comment_count,
		metric        = excluded.metric,
		outlier_score = excluded.outlier_score,
		synced_at     = excluded.synced_at`

// UpsertPosts writes one scored batch for a creator.
//
// KEY CONCEPTS:
//
//  1. ONE TRANSACTION PER BATCH:
//     Every row plus the creator's last_synced_at commit together. If any
//     statement fails, or ctx is cancelled before Commit, the deferred
//     Rollback discards the lot and the store looks exactly as before.
//
//  2. PREPARED STATEMENT:
//     tx.PrepareContext compiles the upsert once and reuses it for each row.
//
//  3. AN EMPTY BATCH IS STILL A SYNC:
//     The loop simply does nothing and last_synced_at is stamped anyway.
func (db *DB) UpsertPosts(ctx context.Context, creatorID int64, posts []model.Post) (int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlite: beginning upsert: %w", err)
	}
	// Rollback after a successful Commit is a no-op returning sql.ErrTxDone.
	defer tx.Rollback()

	syncedAt := time.Now().UTC()

	if len(posts) > 0 {
		stmt, err := tx.PrepareContext(ctx, upsertPostSQL)
		if err != nil {
			return 0, fmt.Errorf("sqlite: preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range posts {
			metric := p.Metric
			if metric == "" {
				metric = model.MetricViews
			}
			_, err := stmt.ExecContext(ctx,
				creatorID,
				p.PlatformPostID,
				p.Title,
				p.URL,
				p.ViewCount,
				p.LikeCount,
				p.CommentCount,
				nullableInt(p.DurationSeconds),
				p.PublishedDate,
				p.ThumbnailURL,
				metric,
				p.OutlierScore,
				syncedAt,
			)
			if err != nil {
				switch {
				case isForeignKeyViolation(err):
					// The creator was removed while its sync was in flight.
					return 0, apperror.Conflict("creator", strconv.FormatInt(creatorID, 10))
				case isConstraintViolation(err):
					return 0, apperror.Conflict("post", p.PlatformPostID)
				}
				return 0, fmt.Errorf("sqlite: upserting post %s: %w", p.PlatformPostID, err)
			}
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE creators SET last_synced_at = ? WHERE id = ?`,
		syncedAt, creatorID,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: stamping creator %d: %w", creatorID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return 0, apperror.NotFound("creator", strconv.FormatInt(creatorID, 10))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlite: committing upsert: %w", err)
	}

	return len(posts), nil
}

// GetPost retrieves one post joined with its creator's identity.
func (db *DB) GetPost(ctx context.Context, id int64) (*model.PostWithCreator, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+`, c.username, c.platform, c.display_name
		 FROM posts p
		 JOIN creators c ON c.id = p.creator_id
		 WHERE p.id = ?`,
		id,
	)

	var (
		r  postRow
		pc model.PostWithCreator
	)
	dest := append(r.dest(), &pc.CreatorUsername, &pc.CreatorPlatform, &pc.CreatorDisplayName)
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("sqlite: getting post %d: %w", id, err)
	}
	pc.Post = r.finish()

	return &pc, nil
}

// ListPostsForCreator returns a creator's posts, highest outlier score first.
func (db *DB) ListPostsForCreator(ctx context.Context, creatorID int64, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := clampLimit(opts, defaultPostLimit, maxPostLimit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 WHERE p.creator_id = ?
		 ORDER BY p.outlier_score DESC, p.id ASC
		 LIMIT ? OFFSET ?`,
		creatorID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts for creator %d: %w", creatorID, err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, limit)
	for rows.Next() {
		var r postRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, r.finish())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}

	return posts, nil
}

// ListTopOutliers returns posts across all creators whose score is at least
// minScore, best first.
func (db *DB) ListTopOutliers(ctx context.Context, minScore float64, opts repository.ListOptions) ([]model.PostWithCreator, error) {
	limit, offset := clampLimit(opts, defaultOutlierLimit, maxPostLimit)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+`, c.username, c.platform, c.display_name
		 FROM posts p
		 JOIN creators c ON c.id = p.creator_id
		 WHERE p.outlier_score >= ?
		 ORDER BY p.outlier_score DESC, p.id ASC
		 LIMIT ? OFFSET ?`,
		minScore, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing outliers: %w", err)
	}
	defer rows.Close()

	outliers := make([]model.PostWithCreator, 0, limit)
	for rows.Next() {
		var (
			r  postRow
			pc model.PostWithCreator
		)
		dest := append(r.dest(), &pc.CreatorUsername, &pc.CreatorPlatform, &pc.CreatorDisplayName)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("sqlite: scanning outlier row: %w", err)
		}
		pc.Post = r.finish()
		outliers = append(outliers, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating outliers: %w", err)
	}

	return outliers, nil
}

// SaveTranscript attaches (or replaces) the transcript of a post.
func (db *DB) SaveTranscript(ctx context.Context, postID int64, transcript string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE posts SET transcript = ? WHERE id = ?`,
		transcript, postID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving transcript for post %d: %w", postID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", strconv.FormatInt(postID, 10))
	}

	return nil
}

// postRow scans a post row. The nullable columns land in sql.Null* values
// first and are copied onto the model by finish.
type postRow struct {
	post       model.Post
	duration   sql.NullInt64
	transcript sql.NullString
}

func (r *postRow) dest() []any {
	p := &r.post
	return []any{
		&p.ID, &p.CreatorID, &p.PlatformPostID, &p.Title, &p.URL,
		&p.ViewCount, &p.LikeCount, &p.CommentCount, &r.duration,
		&p.PublishedDate, &p.ThumbnailURL, &p.Metric, &p.OutlierScore,
		&r.transcript, &p.SyncedAt,
	}
}

func (r *postRow) finish() model.Post {
	if r.duration.Valid {
		d := int(r.duration.Int64)
		r.post.DurationSeconds = &d
	}
	if r.transcript.Valid {
		t := r.transcript.String
		r.post.Transcript = &t
	}
	return r.post
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}
