package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/repository"
	"github.com/sakif/creator-outliers/internal/transform"
)

const (
	// MinRemixInput is the minimum number of non-whitespace characters worth
	// sending to the transformer.
	MinRemixInput = 50
	// MaxRemixInput caps the transformer input in runes.
	MaxRemixInput   = 50_000
	TruncatedSuffix = "...[Truncated]"
)

// RemixService rewrites post transcripts through a Transformer and keeps the
// append-only history of results.
type RemixService struct {
	posts       repository.PostRepository
	remixes     repository.RemixRepository
	transformer transform.Transformer
	logger      *slog.Logger
}

// NewRemixService creates a new RemixService.
func NewRemixService(posts repository.PostRepository, remixes repository.RemixRepository, transformer transform.Transformer, logger *slog.Logger) *RemixService {
	return &RemixService{
		posts:       posts,
		remixes:     remixes,
		transformer: transformer,
		logger:      logger,
	}
}

// Remix rewrites the saved transcript of a post and appends the result to
// the post's remix history.
func (s *RemixService) Remix(ctx context.Context, postID int64) (*model.Remix, error) {
	if postID <= 0 {
		return nil, apperror.ValidationFailed("id", "post id must be positive")
	}

	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Transcript == nil || strings.TrimSpace(*post.Transcript) == "" {
		return nil, apperror.ValidationFailed("transcript", "post has no transcript; save one first")
	}

	content, err := s.transform(ctx, *post.Transcript)
	if err != nil {
		s.logger.Error("failed to remix post",
			slog.Int64("post_id", postID),
			slog.String("kind", string(apperror.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("remixing post %d: %w", postID, err)
	}

	remix := &model.Remix{PostID: postID, Content: content}
	if err := s.remixes.AppendRemix(ctx, remix); err != nil {
		s.logger.Error("failed to save remix",
			slog.Int64("post_id", postID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("saving remix: %w", err)
	}

	s.logger.Info("post remixed",
		slog.Int64("post_id", postID),
		slog.Int64("remix_id", remix.ID),
	)
	return remix, nil
}

// RemixText rewrites arbitrary text. Nothing is persisted.
func (s *RemixService) RemixText(ctx context.Context, text string) (string, error) {
	content, err := s.transform(ctx, text)
	if err != nil {
		if apperror.KindOf(err) != apperror.KindValidation {
			s.logger.Error("failed to remix text",
				slog.String("kind", string(apperror.KindOf(err))),
				slog.String("error", err.Error()),
			)
		}
		return "", err
	}
	return content, nil
}

// History lists a post's remixes, newest first.
func (s *RemixService) History(ctx context.Context, postID int64) ([]model.Remix, error) {
	if postID <= 0 {
		return nil, apperror.ValidationFailed("id", "post id must be positive")
	}
	// An unknown post is a 404, not an empty history.
	if _, err := s.posts.GetPost(ctx, postID); err != nil {
		return nil, err
	}

	remixes, err := s.remixes.ListRemixes(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("listing remixes: %w", err)
	}
	return remixes, nil
}

func (s *RemixService) transform(ctx context.Context, text string) (string, error) {
	input, err := PrepareRemixInput(text)
	if err != nil {
		return "", err
	}
	return s.transformer.Transform(ctx, input)
}

// PrepareRemixInput validates and truncates text before it is sent out.
// Text with fewer than MinRemixInput non-whitespace characters is rejected.
// Text longer than MaxRemixInput runes is cut and marked with TruncatedSuffix.
func PrepareRemixInput(text string) (string, error) {
	visible := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			visible++
		}
	}
	if visible < MinRemixInput {
		return "", apperror.ValidationFailed("text",
			fmt.Sprintf("text must contain at least %d non-whitespace characters", MinRemixInput))
	}

	if utf8.RuneCountInString(text) > MaxRemixInput {
		runes := []rune(text)
		text = string(runes[:MaxRemixInput]) + TruncatedSuffix
	}
	return text, nil
}
