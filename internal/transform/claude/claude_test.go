package claude

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/creator-outliers/internal/apperror"
)

const okResponse = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-sonnet-latest",
  "content": [{"type": "text", "text": "So... here is what happened."}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 120, "output_tokens": 40}
}`

type messagesStub struct {
	status int
	body   string
	hits   atomic.Int32
	last   atomic.Value // map[string]any
}

func (s *messagesStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.last.Store(req)

	w.Header().Set("Content-Type", "application/json")
	if s.status != 0 {
		w.WriteHeader(s.status)
	}
	io.WriteString(w, s.body)
}

func newTestTransformer(t *testing.T, stub *messagesStub, apiKey string) *Transformer {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	return New(Config{
		APIKey:       apiKey,
		SystemPrompt: "Rewrite in my voice.",
		MaxRetries:   0,
		BaseURL:      srv.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTransform_Success(t *testing.T) {
	stub := &messagesStub{body: okResponse}
	tr := newTestTransformer(t, stub, "sk-test")

	out, err := tr.Transform(context.Background(), "the transcript")
	require.NoError(t, err)
	assert.Equal(t, "So... here is what happened.", out)

	req, _ := stub.last.Load().(map[string]any)
	require.NotNil(t, req)
	assert.EqualValues(t, DefaultMaxTokens, req["max_tokens"])
	assert.Equal(t, DefaultModel, req["model"])
	assert.Contains(t, string(mustJSON(t, req["system"])), "Rewrite in my voice.")
	assert.Contains(t, string(mustJSON(t, req["messages"])), "the transcript")
}

func TestTransform_NoAPIKeySkipsRequest(t *testing.T) {
	stub := &messagesStub{body: okResponse}
	tr := newTestTransformer(t, stub, "")

	_, err := tr.Transform(context.Background(), "text")
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)
	assert.Zero(t, stub.hits.Load())
}

func TestTransform_UpstreamErrors(t *testing.T) {
	errBody := `{"type":"error","error":{"type":"api_error","message":"boom"}}`
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"bad key", http.StatusUnauthorized, errBody, apperror.ErrAuthRequired},
		{"overloaded", 529, errBody, apperror.ErrTransient},
		{"rate limited", http.StatusTooManyRequests, errBody, apperror.ErrTransient},
		{"server error", http.StatusInternalServerError, errBody, apperror.ErrTransient},
		{"empty content", http.StatusOK, `{"id":"m","type":"message","role":"assistant","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`, apperror.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestTransformer(t, &messagesStub{status: tt.status, body: tt.body}, "sk-test")

			_, err := tr.Transform(context.Background(), "text")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
