// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
// Code is organised into three layers:
//
//   Handler (HTTP layer)     → parses requests, writes responses
//   Service (Business layer) → validates, enforces rules, orchestrates
//   Repository (Data layer)  → reads/writes to the database
//
// The sync orchestrator adds a fourth collaborator on the side: platform
// adapters. A SyncService asks an adapter for raw posts, runs them through
// normalize and scoring, and hands the result to the repository. The
// scheduler and the HTTP handler both call the same SyncService, which is
// the REUSE point of having this layer at all.
//
// DEPENDENCY INJECTION:
// Every service takes repository interfaces, never *sqlite.DB or
// *postgres.DB. Tests pass an in-memory SQLite store or a hand-written fake;
// production passes whichever backend STORE_DRIVER selects.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/repository"
)

// Validation constants.
const (
	MaxUsernameLength    = 100
	MaxDisplayNameLength = 200
	DefaultPostListLimit = 50
	MaxPostListLimit     = 500
)

// CreatorService manages the watchlist.
type CreatorService struct {
	creators repository.CreatorRepository
	posts    repository.PostRepository
	logger   *slog.Logger
}

// NewCreatorService creates a new CreatorService.
func NewCreatorService(creators repository.CreatorRepository, posts repository.PostRepository, logger *slog.Logger) *CreatorService {
	return &CreatorService{
		creators: creators,
		posts:    posts,
		logger:   logger,
	}
}

// Add puts (platform, username) on the watchlist.
//
// IDEMPOTENT ADD:
// Adding a creator that already exists is not an error. The stored creator
// is returned with created=false, and its ID is the same as the first add.
//
// If username is actually a profile URL, Add behaves like AddFromURL.
func (s *CreatorService) Add(ctx context.Context, platform, username, displayName string) (*model.Creator, bool, error) {
	raw := strings.TrimSpace(username)
	if looksLikeURL(raw) {
		return s.AddFromURL(ctx, raw, displayName)
	}

	p, err := model.ParsePlatform(platform)
	if err != nil {
		return nil, false, apperror.ValidationFailed("platform",
			fmt.Sprintf("platform must be one of %v", model.Platforms))
	}

	raw = strings.TrimPrefix(raw, "@")
	normalized := model.NormalizeUsername(raw)
	if normalized == "" {
		return nil, false, apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(normalized) > MaxUsernameLength {
		return nil, false, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}
	if strings.ContainsAny(normalized, " \t\n/?#") {
		return nil, false, apperror.ValidationFailed("username", "username must not contain spaces or URL characters")
	}

	return s.add(ctx, &model.Creator{
		Platform:     p,
		Username:     normalized,
		CanonicalURL: canonicalURL(p, raw, normalized),
		DisplayName:  strings.TrimSpace(displayName),
	})
}

// AddFromURL parses a pasted profile link and adds the creator it names.
func (s *CreatorService) AddFromURL(ctx context.Context, rawURL, displayName string) (*model.Creator, bool, error) {
	profile, err := adapter.ParseProfileURL(rawURL)
	if err != nil {
		return nil, false, err
	}

	return s.add(ctx, &model.Creator{
		Platform:     profile.Platform,
		Username:     profile.Username,
		CanonicalURL: profile.CanonicalURL,
		DisplayName:  strings.TrimSpace(displayName),
	})
}

func (s *CreatorService) add(ctx context.Context, c *model.Creator) (*model.Creator, bool, error) {
	if utf8.RuneCountInString(c.DisplayName) > MaxDisplayNameLength {
		return nil, false, apperror.ValidationFailed("displayName",
			fmt.Sprintf("display name must be %d characters or less", MaxDisplayNameLength))
	}

	created, err := s.creators.AddCreator(ctx, c)
	if err != nil {
		s.logger.Error("failed to add creator",
			slog.String("platform", string(c.Platform)),
			slog.String("username", c.Username),
			slog.String("error", err.Error()),
		)
		return nil, false, fmt.Errorf("adding creator: %w", err)
	}

	if created {
		s.logger.Info("creator added",
			slog.Int64("creator_id", c.ID),
			slog.String("platform", string(c.Platform)),
			slog.String("username", c.Username),
		)
	}
	return c, created, nil
}

// Get returns one creator.
func (s *CreatorService) Get(ctx context.Context, id int64) (*model.Creator, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "creator id must be positive")
	}
	return s.creators.GetCreator(ctx, id)
}

// List returns the watchlist with per-creator post counts, newest first.
func (s *CreatorService) List(ctx context.Context) ([]model.CreatorSummary, error) {
	creators, err := s.creators.ListCreators(ctx)
	if err != nil {
		s.logger.Error("failed to list creators", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing creators: %w", err)
	}
	return creators, nil
}

// Remove deletes a creator together with its posts and their remixes.
func (s *CreatorService) Remove(ctx context.Context, id int64) error {
	if id <= 0 {
		return apperror.ValidationFailed("id", "creator id must be positive")
	}
	if err := s.creators.RemoveCreator(ctx, id); err != nil {
		return err
	}

	s.logger.Info("creator removed", slog.Int64("creator_id", id))
	return nil
}

// ListPosts returns a creator's posts, best outlier first.
// The limit is clamped to 1-500 (default 50).
func (s *CreatorService) ListPosts(ctx context.Context, creatorID int64, limit, offset int) ([]model.Post, error) {
	// Fetch the creator first so an unknown id is a 404, not an empty list.
	if _, err := s.Get(ctx, creatorID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = DefaultPostListLimit
	}
	if limit > MaxPostListLimit {
		limit = MaxPostListLimit
	}
	if offset < 0 {
		offset = 0
	}

	posts, err := s.posts.ListPostsForCreator(ctx, creatorID, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list posts",
			slog.Int64("creator_id", creatorID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	return posts, nil
}

func looksLikeURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "://") ||
		strings.Contains(lower, "youtube.com/") ||
		strings.Contains(lower, "instagram.com/")
}

// canonicalURL builds the profile link stored with a creator added by name.
// YouTube channel ids are case-sensitive, so raw (not the lower-cased
// username) is used for them.
func canonicalURL(p model.Platform, raw, normalized string) string {
	switch p {
	case model.PlatformYouTube:
		if adapter.IsChannelID(raw) {
			return "https://www.youtube.com/channel/" + raw
		}
		return "https://www.youtube.com/@" + normalized
	case model.PlatformInstagram:
		return "https://www.instagram.com/" + normalized + "/"
	}
	return ""
}
