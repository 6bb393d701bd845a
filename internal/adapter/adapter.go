// Package adapter defines the contract every platform integration satisfies.
//
// An adapter turns "give me the latest N posts of this creator" into raw,
// platform-shaped records. It does not normalize, score or persist anything;
// those steps belong to the normalize and scoring packages and to the sync
// service. Keeping adapters this thin means a new platform is one new type
// plus one Register call.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

// RawPost is one post as the platform reported it.
//
// Every engagement field is a pointer: nil means "the platform did not say",
// which the normalizer turns into 0. That is different from an explicit 0.
type RawPost struct {
	ID              string
	Title           string
	URL             string
	Views           *int64
	Likes           *int64
	Comments        *int64
	DurationSeconds *float64
	Published       string // any date format; normalized later
	ThumbnailURL    string
	// Metric is set to model.MetricLikes by adapters for platforms that do not
	// expose view counts. Empty means views.
	Metric model.Metric
}

// PlatformAdapter fetches the most recent posts of one creator.
//
// FetchRecent returns at most limit posts, newest first. A creator with no
// content yields an empty slice and a nil error. Failures are *apperror.AppError
// values wrapping ErrAuthRequired, ErrNotFound, ErrTransient or ErrFatal.
// Calls have no side effects and may be repeated freely.
type PlatformAdapter interface {
	Platform() model.Platform
	FetchRecent(ctx context.Context, handle string, limit int) ([]RawPost, error)
}

// Registry maps each platform to its adapter.
type Registry struct {
	adapters map[model.Platform]PlatformAdapter
}

// NewRegistry builds a registry from the given adapters.
func NewRegistry(adapters ...PlatformAdapter) *Registry {
	r := &Registry{adapters: make(map[model.Platform]PlatformAdapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Platform().
func (r *Registry) Register(a PlatformAdapter) {
	r.adapters[a.Platform()] = a
}

// Lookup returns the adapter for p. A platform without an adapter is a
// configuration problem that no retry will fix, so the error is Fatal.
func (r *Registry) Lookup(p model.Platform) (PlatformAdapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, apperror.Fatal(fmt.Sprintf("no adapter registered for platform %q", p), nil)
	}
	return a, nil
}

// Platforms lists the registered platforms in a stable order.
func (r *Registry) Platforms() []model.Platform {
	out := make([]model.Platform, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Failure builds the error an adapter returns. The message names the
// platform and handle so a sync report line is self-explanatory.
func Failure(kind apperror.Kind, platform model.Platform, handle string, cause error) *apperror.AppError {
	detail := string(kind)
	if cause != nil {
		detail = cause.Error()
	}
	msg := fmt.Sprintf("%s %s: %s", platform, handle, detail)

	switch kind {
	case apperror.KindAuthRequired:
		return apperror.AuthRequired(msg, cause)
	case apperror.KindNotFound:
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: msg, Cause: cause}
	case apperror.KindTransient:
		return apperror.Transient(msg, cause)
	default:
		return apperror.Fatal(msg, cause)
	}
}

// StatusFailure classifies an unexpected HTTP status from a platform.
func StatusFailure(platform model.Platform, handle string, status int) *apperror.AppError {
	cause := fmt.Errorf("unexpected status %d", status)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return Failure(apperror.KindAuthRequired, platform, handle, cause)
	case status == http.StatusNotFound || status == http.StatusGone:
		return Failure(apperror.KindNotFound, platform, handle, cause)
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return Failure(apperror.KindTransient, platform, handle, cause)
	default:
		return Failure(apperror.KindFatal, platform, handle, cause)
	}
}

// RequestFailure classifies an error from http.Client.Do. Network errors,
// timeouts and cancellations are all worth trying again later.
func RequestFailure(platform model.Platform, handle string, err error) *apperror.AppError {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Failure(apperror.KindTransient, platform, handle, err)
}
