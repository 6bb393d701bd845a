package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

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

// Same contract as the sqlite upsert: counters, metric, score and synced_at
// only. The transcript column is never written here.
const upsertPostSQL = `
	INSERT INTO posts (
		creator_id, platform_post_id, title, url,
		view_count, like_count, comment_count, duration_seconds,
		published_date, thumbnail_url, metric, outlier_score, synced_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (creator_id, platform_post_id) DO UPDATE SET
		view_count    = excluded.view_count,
		like_count    = excluded.like_count,
		comment_count = excluded.comment_count,
		metric        = excluded.metric,
		outlier_score = excluded.outlier_score,
		synced_at     = excluded.synced_at`

// UpsertPosts queues the whole batch with pgx.Batch inside one transaction,
// so the rows travel in a single round trip and commit together with the
// creator's last_synced_at.
func (db *DB) UpsertPosts(ctx context.Context, creatorID int64, posts []model.Post) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("postgres: beginning upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	syncedAt := time.Now().UTC()

	if len(posts) > 0 {
		batch := &pgx.Batch{}
		for _, p := range posts {
			metric := p.Metric
			if metric == "" {
				metric = model.MetricViews
			}
			batch.Queue(upsertPostSQL,
				creatorID, p.PlatformPostID, p.Title, p.URL,
				p.ViewCount, p.LikeCount, p.CommentCount, p.DurationSeconds,
				p.PublishedDate, p.ThumbnailURL, metric, p.OutlierScore, syncedAt,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for _, p := range posts {
			if _, err := br.Exec(); err != nil {
				br.Close()
				code := pgErrorCode(err)
				switch {
				case code == foreignKeyViolation:
					return 0, apperror.Conflict("creator", strconv.FormatInt(creatorID, 10))
				case strings.HasPrefix(code, integrityConstraintClass):
					return 0, apperror.Conflict("post", p.PlatformPostID)
				}
				return 0, fmt.Errorf("postgres: upserting post %s: %w", p.PlatformPostID, err)
			}
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("postgres: closing upsert batch: %w", err)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE creators SET last_synced_at = $1 WHERE id = $2`,
		syncedAt, creatorID,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: stamping creator %d: %w", creatorID, err)
	}
	if tag.RowsAffected() == 0 {
		return 0, apperror.NotFound("creator", strconv.FormatInt(creatorID, 10))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("postgres: committing upsert: %w", err)
	}

	return len(posts), nil
}

func (db *DB) GetPost(ctx context.Context, id int64) (*model.PostWithCreator, error) {
	var pc model.PostWithCreator
	err := db.pool.QueryRow(ctx,
		`SELECT `+postColumns+`, c.username, c.platform, c.display_name
		 FROM posts p
		 JOIN creators c ON c.id = p.creator_id
		 WHERE p.id = $1`,
		id,
	).Scan(append(postDest(&pc.Post), &pc.CreatorUsername, &pc.CreatorPlatform, &pc.CreatorDisplayName)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("post", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("postgres: getting post %d: %w", id, err)
	}
	return &pc, nil
}

func (db *DB) ListPostsForCreator(ctx context.Context, creatorID int64, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := clampLimit(opts, defaultPostLimit, maxPostLimit)

	rows, err := db.pool.Query(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 WHERE p.creator_id = $1
		 ORDER BY p.outlier_score DESC, p.id ASC
		 LIMIT $2 OFFSET $3`,
		creatorID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing posts for creator %d: %w", creatorID, err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0, limit)
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(postDest(&p)...); err != nil {
			return nil, fmt.Errorf("postgres: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating posts: %w", err)
	}
	return posts, nil
}

func (db *DB) ListTopOutliers(ctx context.Context, minScore float64, opts repository.ListOptions) ([]model.PostWithCreator, error) {
	limit, offset := clampLimit(opts, defaultOutlierLimit, maxPostLimit)

	rows, err := db.pool.Query(ctx,
		`SELECT `+postColumns+`, c.username, c.platform, c.display_name
		 FROM posts p
		 JOIN creators c ON c.id = p.creator_id
		 WHERE p.outlier_score >= $1
		 ORDER BY p.outlier_score DESC, p.id ASC
		 LIMIT $2 OFFSET $3`,
		minScore, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing outliers: %w", err)
	}
	defer rows.Close()

	outliers := make([]model.PostWithCreator, 0, limit)
	for rows.Next() {
		var pc model.PostWithCreator
		dest := append(postDest(&pc.Post), &pc.CreatorUsername, &pc.CreatorPlatform, &pc.CreatorDisplayName)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("postgres: scanning outlier row: %w", err)
		}
		outliers = append(outliers, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating outliers: %w", err)
	}
	return outliers, nil
}

func (db *DB) SaveTranscript(ctx context.Context, postID int64, transcript string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE posts SET transcript = $1 WHERE id = $2`,
		transcript, postID,
	)
	if err != nil {
		return fmt.Errorf("postgres: saving transcript for post %d: %w", postID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("post", strconv.FormatInt(postID, 10))
	}
	return nil
}

// pgx scans NULL into a nil pointer, so the nullable columns go straight
// onto the model.
func postDest(p *model.Post) []any {
	return []any{
		&p.ID, &p.CreatorID, &p.PlatformPostID, &p.Title, &p.URL,
		&p.ViewCount, &p.LikeCount, &p.CommentCount, &p.DurationSeconds,
		&p.PublishedDate, &p.ThumbnailURL, &p.Metric, &p.OutlierScore,
		&p.Transcript, &p.SyncedAt,
	}
}
