package apperror

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case is one struct in the slice; the assertion logic is written once
// and t.Run gives every case its own name in the test output.

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("creator", "42"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("username", "username is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "Conflict wraps ErrConflict",
			err:       Conflict("post", "abc123"),
			target:    ErrConflict,
			wantMatch: true,
		},
		{
			name:      "AuthRequired wraps ErrAuthRequired",
			err:       AuthRequired("instagram rejected the token", nil),
			target:    ErrAuthRequired,
			wantMatch: true,
		},
		{
			name:      "Transient wraps its cause",
			err:       Transient("youtube timed out", context.DeadlineExceeded),
			target:    context.DeadlineExceeded,
			wantMatch: true,
		},
		{
			name:      "Fatal wraps ErrFatal through fmt.Errorf",
			err:       fmt.Errorf("syncing: %w", Fatal("bad feed", nil)),
			target:    ErrFatal,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("creator", "42"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Transient does NOT match ErrFatal",
			err:       Transient("rate limited", nil),
			target:    ErrFatal,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("creator", "42"),
			wantMessage: "creator not found with id 42",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("url", "unrecognised profile URL"),
			wantMessage: "unrecognised profile URL",
		},
		{
			name:        "Conflict message includes resource and id",
			err:         Conflict("post", "abc123"),
			wantMessage: "post conflict with id abc123",
		},
		{
			name:        "Transient keeps its message, not the cause",
			err:         Transient("youtube: rate limited", errors.New("429")),
			wantMessage: "youtube: rate limited",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := NotFound("creator", "42")
	unwrapped := err.Unwrap()

	if len(unwrapped) != 1 || unwrapped[0] != ErrNotFound {
		t.Errorf("Unwrap() = %v, want [%v]", unwrapped, ErrNotFound)
	}

	cause := errors.New("connection reset")
	withCause := Transient("fetch failed", cause)
	if got := withCause.Unwrap(); len(got) != 2 || got[1] != cause {
		t.Errorf("Unwrap() = %v, want sentinel and cause", got)
	}
}

func TestValidationFailedField(t *testing.T) {
	err := ValidationFailed("platform", "unsupported platform")

	if err.Field != "platform" {
		t.Errorf("Field = %q, want %q", err.Field, "platform")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"auth", AuthRequired("no token", nil), KindAuthRequired},
		{"not found", NotFound("creator", "1"), KindNotFound},
		{"transient", Transient("429", nil), KindTransient},
		{"fatal", Fatal("bad payload", nil), KindFatal},
		{"conflict", Conflict("post", "x"), KindStoreConflict},
		{"validation", ValidationFailed("limit", "bad"), KindValidation},
		{"cancelled", fmt.Errorf("upserting: %w", context.Canceled), KindCancelled},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"transient carrying cancel", Transient("fetch", context.Canceled), KindTransient},
		{"plain error", errors.New("disk full"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
