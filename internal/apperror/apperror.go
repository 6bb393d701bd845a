// Package apperror defines the domain error taxonomy shared by adapters,
// the store, the sync orchestrator and the HTTP layer.
//
// Every domain error is an *AppError wrapping one sentinel. Callers test the
// category with errors.Is(err, apperror.ErrTransient) and so on; KindOf turns
// any error into the short machine-readable Kind recorded in sync reports.
package apperror

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrAuthRequired = errors.New("auth required")
	ErrTransient    = errors.New("transient")
	ErrFatal        = errors.New("fatal")
)

type AppError struct {
	Err     error  // sentinel category
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error from a driver or upstream API
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so errors.Is
// matches ErrTransient as well as context.DeadlineExceeded for a timed-out fetch.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// AuthRequired reports missing or rejected credentials. For adapters this
// means the platform refused the configured token; for the API it means the
// caller has not logged in.
func AuthRequired(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrAuthRequired,
		Message: message,
		Cause:   cause,
	}
}

// Transient reports a failure that may succeed on a later attempt
// (rate limits, timeouts, 5xx responses). The engine never retries these itself.
func Transient(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrTransient,
		Message: message,
		Cause:   cause,
	}
}

// Fatal reports a failure that will not go away by retrying, such as an
// unparseable upstream payload or a platform with no registered adapter.
func Fatal(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrFatal,
		Message: message,
		Cause:   cause,
	}
}

// Kind is the machine-readable failure category stored on sync results.
type Kind string

const (
	KindNone          Kind = ""
	KindAuthRequired  Kind = "auth_required"
	KindNotFound      Kind = "not_found"
	KindTransient     Kind = "transient"
	KindFatal         Kind = "fatal"
	KindStoreConflict Kind = "store_conflict"
	KindValidation    Kind = "validation"
	KindCancelled     Kind = "cancelled"
	KindInternal      Kind = "internal"
)

// KindOf classifies err. Sentinel categories win over the context error
// they may carry; a bare context.Canceled is KindCancelled and a bare
// deadline is KindTransient.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrFatal):
		return KindFatal
	case errors.Is(err, ErrConflict):
		return KindStoreConflict
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindInternal
	}
}
