// Package repository declares the persistence contracts of the engine.
//
// Services depend only on these interfaces. The sqlite and postgres
// sub-packages provide the concrete stores, and tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/creator-outliers/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// CreatorRepository manages the watchlist.
type CreatorRepository interface {
	// AddCreator inserts c unless (platform, username) already exists, in which
	// case c is filled from the existing row and created is false.
	AddCreator(ctx context.Context, c *model.Creator) (created bool, err error)
	GetCreator(ctx context.Context, id int64) (*model.Creator, error)
	ListCreators(ctx context.Context) ([]model.CreatorSummary, error)
	// RemoveCreator deletes the creator together with its posts and remixes.
	RemoveCreator(ctx context.Context, id int64) error
}

// PostRepository stores scored posts.
type PostRepository interface {
	// UpsertPosts writes the batch and stamps the creator's last_synced_at in
	// one transaction. Existing (creator, platform post id) rows get new
	// counters, metric and score; their transcript is left alone.
	UpsertPosts(ctx context.Context, creatorID int64, posts []model.Post) (int, error)
	GetPost(ctx context.Context, id int64) (*model.PostWithCreator, error)
	ListPostsForCreator(ctx context.Context, creatorID int64, opts ListOptions) ([]model.Post, error)
	ListTopOutliers(ctx context.Context, minScore float64, opts ListOptions) ([]model.PostWithCreator, error)
	SaveTranscript(ctx context.Context, postID int64, transcript string) error
}

// RemixRepository stores the append-only remix history.
type RemixRepository interface {
	AppendRemix(ctx context.Context, r *model.Remix) error
	ListRemixes(ctx context.Context, postID int64) ([]model.Remix, error)
}

// Store is the full persistence surface a backend has to provide.
type Store interface {
	CreatorRepository
	PostRepository
	RemixRepository
	Ping(ctx context.Context) error
	Close() error
}
