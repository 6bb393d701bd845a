package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/repository"
)

const (
	DefaultMinScore     = 2.0
	DefaultOutlierLimit = 100
	MaxOutlierLimit     = 500
	MaxTranscriptLength = 1_000_000 // runes
)

// PostService answers read queries over synced posts and owns transcripts.
type PostService struct {
	posts  repository.PostRepository
	logger *slog.Logger
}

// NewPostService creates a new PostService.
func NewPostService(posts repository.PostRepository, logger *slog.Logger) *PostService {
	return &PostService{posts: posts, logger: logger}
}

// Outliers returns posts across all creators whose score is at least
// minScore, best first. A post scoring exactly minScore is included.
func (s *PostService) Outliers(ctx context.Context, minScore float64, limit int) ([]model.PostWithCreator, error) {
	if math.IsNaN(minScore) || math.IsInf(minScore, 0) || minScore < 0 {
		return nil, apperror.ValidationFailed("minScore", "minScore must be a non-negative number")
	}
	if limit <= 0 {
		limit = DefaultOutlierLimit
	}
	if limit > MaxOutlierLimit {
		limit = MaxOutlierLimit
	}

	posts, err := s.posts.ListTopOutliers(ctx, minScore, repository.ListOptions{Limit: limit})
	if err != nil {
		s.logger.Error("failed to list outliers", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing outliers: %w", err)
	}
	return posts, nil
}

// Get returns one post with its creator's identity fields.
func (s *PostService) Get(ctx context.Context, id int64) (*model.PostWithCreator, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "post id must be positive")
	}
	return s.posts.GetPost(ctx, id)
}

// SaveTranscript stores a transcript on a post. Syncs never clear it.
func (s *PostService) SaveTranscript(ctx context.Context, id int64, transcript string) (*model.PostWithCreator, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "post id must be positive")
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, apperror.ValidationFailed("transcript", "transcript is required")
	}
	if utf8.RuneCountInString(transcript) > MaxTranscriptLength {
		return nil, apperror.ValidationFailed("transcript",
			fmt.Sprintf("transcript must be %d characters or less", MaxTranscriptLength))
	}

	if err := s.posts.SaveTranscript(ctx, id, transcript); err != nil {
		return nil, err
	}
	s.logger.Info("transcript saved",
		slog.Int64("post_id", id),
		slog.Int("length", utf8.RuneCountInString(transcript)),
	)

	return s.posts.GetPost(ctx, id)
}
