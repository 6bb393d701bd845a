package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError, so the API has one
// success shape and one error shape:
//
//	writeJSON(w, http.StatusOK, data)
//	writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
//
//	{"error": "not_found", "message": "creator not found with id 42"}
//
// The "error" field carries the same kind strings that sync results use
// (validation, not_found, auth_required, transient, ...), so a client can
// treat a failed sync and a failed request the same way.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/creator-outliers/internal/apperror"
)

// maxBodyBytes caps request bodies. Transcripts are the largest payload.
const maxBodyBytes = 4 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable kind (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set before the body. Once Encode writes, the
// headers are on the wire and later changes are silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error kind to an HTTP status.
//
// Upstream failures get gateway statuses: a rate-limited or flaky platform
// is 503 (try later), a platform answering with garbage is 502.
func statusFor(err error) (int, apperror.Kind) {
	if errors.Is(err, apperror.ErrForbidden) {
		return http.StatusForbidden, "forbidden"
	}

	kind := apperror.KindOf(err)
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest, kind
	case apperror.KindAuthRequired:
		return http.StatusUnauthorized, kind
	case apperror.KindNotFound:
		return http.StatusNotFound, kind
	case apperror.KindStoreConflict:
		return http.StatusConflict, "conflict"
	case apperror.KindTransient:
		return http.StatusServiceUnavailable, kind
	case apperror.KindFatal:
		return http.StatusBadGateway, kind
	default:
		return http.StatusInternalServerError, apperror.KindInternal
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// The service layer returns apperror values and knows nothing about HTTP;
// this is the one place the translation happens.
//
// Only AppError messages reach the client. Anything else (a raw SQL error,
// a file path) is replaced by a generic message.
func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)

	message := "An internal error occurred"
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else if apperror.KindOf(err) == apperror.KindCancelled {
		message = "request cancelled"
	}

	writeJSON(w, status, ErrorResponse{Error: string(kind), Message: message})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched
// so endpoints with only optional fields accept a bare POST.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.ValidationFailed("body", fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%q is not a valid id", raw))
	}
	return id, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%q is not an integer", raw))
	}
	return n, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperror.ValidationFailed(name, fmt.Sprintf("%q is not a number", raw))
	}
	return f, nil
}
