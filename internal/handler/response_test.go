package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/creator-outliers/internal/apperror"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantKind    string
		wantMessage string
	}{
		{"validation", apperror.ValidationFailed("limit", "limit must be positive"), http.StatusBadRequest, "validation", "limit must be positive"},
		{"not found wrapped", fmt.Errorf("loading: %w", apperror.NotFound("creator", "7")), http.StatusNotFound, "not_found", ""},
		{"auth", apperror.AuthRequired("token rejected", nil), http.StatusUnauthorized, "auth_required", "token rejected"},
		{"forbidden", apperror.Forbidden("nope"), http.StatusForbidden, "forbidden", "nope"},
		{"conflict", apperror.Conflict("post", "9"), http.StatusConflict, "conflict", ""},
		{"transient", apperror.Transient("rate limited", nil), http.StatusServiceUnavailable, "transient", "rate limited"},
		{"fatal", apperror.Fatal("bad payload", nil), http.StatusBadGateway, "fatal", "bad payload"},
		{"raw error is hidden", errors.New("sql: near SELECT: syntax error"), http.StatusInternalServerError, "internal", "An internal error occurred"},
		{"cancelled", context.Canceled, http.StatusInternalServerError, "internal", "request cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
			assert.Equal(t, tt.wantKind, resp.Error)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp.Message)
			} else {
				assert.NotEmpty(t, resp.Message)
			}
		})
	}
}
