// Package claude implements transform.Transformer with the Anthropic
// Messages API.
package claude

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/transform"
)

const (
	DefaultModel      = "claude-3-5-sonnet-latest"
	DefaultMaxTokens  = 1024
	DefaultMaxRetries = 2
)

// DefaultSystemPrompt is used when REMIX_SYSTEM_PROMPT is not set.
const DefaultSystemPrompt = `You are a content strategist. Rewrite the transcript of a video that performed unusually well into a LinkedIn post in the author's own voice.

Keep the ideas, numbers and examples that made the original work. Write it as someone sharing their own experience with peers, not as an expert lecturing.

Structure:
- A hook of one or two lines.
- Three to five short paragraphs of flowing narrative. No bullet points unless the content is data.
- A short call to action.
- Three to five hashtags.

Output Markdown only.`

// Config holds the client settings.
type Config struct {
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int64
	MaxRetries   int
	// BaseURL overrides the API endpoint; tests point it at httptest.
	BaseURL string
}

// Transformer calls Claude with a fixed system prompt.
type Transformer struct {
	client       anthropic.Client
	configured   bool
	model        string
	systemPrompt string
	maxTokens    int64
	logger       *slog.Logger
}

var _ transform.Transformer = (*Transformer)(nil)

// New creates a Transformer. An empty APIKey is allowed: every Transform call
// then fails with AuthRequired instead of the server refusing to start.
func New(cfg Config, logger *slog.Logger) *Transformer {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Transformer{
		client:       anthropic.NewClient(opts...),
		configured:   cfg.APIKey != "",
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		logger:       logger,
	}
}

// Transform implements transform.Transformer.
func (t *Transformer) Transform(ctx context.Context, text string) (string, error) {
	if !t.configured {
		return "", apperror.AuthRequired("ANTHROPIC_API_KEY is not set", nil)
	}

	message, err := t.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: t.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: t.systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Here is the transcript to rewrite:\n\n" + text)),
		},
	})
	if err != nil {
		return "", classify(err)
	}

	var out strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", apperror.Transient("claude returned an empty response", nil)
	}

	t.logger.Debug("transform completed",
		slog.String("model", t.model),
		slog.Int64("input_tokens", message.Usage.InputTokens),
		slog.Int64("output_tokens", message.Usage.OutputTokens),
	)
	return out.String(), nil
}

func classify(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperror.AuthRequired("claude rejected the API key", err)
		}
		return apperror.Transient(fmt.Sprintf("claude request failed with status %d", apiErr.StatusCode), err)
	}
	return apperror.Transient("claude request failed", err)
}
