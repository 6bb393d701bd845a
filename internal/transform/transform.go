// Package transform defines the boundary to the text-rewriting service used
// by remixes. The engine only depends on this interface; the LLM client
// behind it lives in a subpackage and is injected at startup.
package transform

import "context"

// Transformer rewrites text. Implementations return *apperror.AppError values:
// AuthRequired when credentials are missing or rejected, Transient for
// anything a later retry may fix.
type Transformer interface {
	Transform(ctx context.Context, text string) (string, error)
}

// Func adapts an ordinary function to the Transformer interface.
type Func func(ctx context.Context, text string) (string, error)

// Transform calls f(ctx, text).
func (f Func) Transform(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}
