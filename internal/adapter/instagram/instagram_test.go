package instagram

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
)

const discoveryBody = `{
  "business_discovery": {
    "username": "some.user",
    "media": {
      "data": [
        {"id": "1789", "caption": "Morning <3 #coffee", "like_count": 420, "comments_count": 12,
         "timestamp": "2024-03-01T12:00:00+0000", "permalink": "https://www.instagram.com/p/AbC123/",
         "media_type": "IMAGE", "media_url": "https://cdn.example/1789.jpg"},
        {"id": "1790", "caption": "", "comments_count": 3,
         "timestamp": "2024-02-28T09:30:00+0000", "permalink": "https://www.instagram.com/reel/XyZ/",
         "media_type": "VIDEO", "media_url": "https://cdn.example/1790.mp4", "thumbnail_url": "https://cdn.example/1790.jpg"},
        {"id": "1791", "caption": "third", "like_count": 10,
         "timestamp": "2024-02-27T09:30:00+0000", "permalink": "https://www.instagram.com/p/Third/",
         "media_type": "IMAGE", "media_url": "https://cdn.example/1791.jpg"}
      ]
    }
  },
  "id": "17841400000000000"
}`

type graphStub struct {
	status  int
	body    string
	hits    atomic.Int32
	gotAuth atomic.Value
	gotPath atomic.Value
	gotQ    atomic.Value
}

func (g *graphStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.hits.Add(1)
	g.gotAuth.Store(r.Header.Get("Authorization"))
	g.gotPath.Store(r.URL.Path)
	g.gotQ.Store(r.URL.Query().Get("fields"))

	w.Header().Set("Content-Type", "application/json")
	if g.status != 0 {
		w.WriteHeader(g.status)
	}
	io.WriteString(w, g.body)
}

func newTestAdapter(t *testing.T, stub *graphStub, token, businessID string) *Adapter {
	t.Helper()
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		GraphURL:    srv.URL,
		APIVersion:  "v21.0",
		AccessToken: token,
		BusinessID:  businessID,
	}, logger)
}

func TestFetchRecent_BusinessDiscovery(t *testing.T) {
	stub := &graphStub{body: discoveryBody}
	a := newTestAdapter(t, stub, "test-token", "17841400000000000")

	posts, err := a.FetchRecent(context.Background(), "https://www.instagram.com/Some.User/", 2)
	require.NoError(t, err)
	require.Len(t, posts, 2, "truncated to the limit")

	assert.Equal(t, "Bearer test-token", stub.gotAuth.Load())
	assert.Equal(t, "/v21.0/17841400000000000", stub.gotPath.Load())
	fields, _ := stub.gotQ.Load().(string)
	assert.True(t, strings.HasPrefix(fields, "business_discovery.username(some.user)"), fields)
	assert.Contains(t, fields, "media.limit(2)")

	first := posts[0]
	assert.Equal(t, "1789", first.ID)
	assert.Equal(t, "Morning <3 #coffee", first.Title)
	assert.Equal(t, "https://www.instagram.com/p/AbC123/", first.URL)
	require.NotNil(t, first.Likes)
	assert.EqualValues(t, 420, *first.Likes)
	assert.Nil(t, first.Views)
	assert.Equal(t, model.MetricLikes, first.Metric)
	assert.Equal(t, "https://cdn.example/1789.jpg", first.ThumbnailURL)

	second := posts[1]
	assert.Nil(t, second.Likes, "hidden like counts stay unknown")
	assert.Equal(t, "https://cdn.example/1790.jpg", second.ThumbnailURL)
}

func TestFetchRecent_MissingCredentialsSkipsIO(t *testing.T) {
	tests := []struct {
		name, token, business string
	}{
		{"no token", "", "1784"},
		{"no business id", "tok", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &graphStub{body: discoveryBody}
			a := newTestAdapter(t, stub, tt.token, tt.business)

			_, err := a.FetchRecent(context.Background(), "some.user", 10)
			require.Error(t, err)
			assert.Equal(t, apperror.KindAuthRequired, apperror.KindOf(err))
			assert.Zero(t, stub.hits.Load())
		})
	}
}

func TestFetchRecent_GraphErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   apperror.Kind
	}{
		{"expired token", 400, `{"error":{"message":"Session has expired","type":"OAuthException","code":190}}`, apperror.KindAuthRequired},
		{"permission", 403, `{"error":{"message":"Permissions error","code":10}}`, apperror.KindAuthRequired},
		{"rate limited", 400, `{"error":{"message":"Application request limit reached","code":4}}`, apperror.KindTransient},
		{"user rate limit", 400, `{"error":{"message":"User request limit reached","code":17}}`, apperror.KindTransient},
		{"unknown user", 400, `{"error":{"message":"Invalid user id","code":110}}`, apperror.KindNotFound},
		{"not a business account", 400, `{"error":{"message":"Cannot find User","code":100,"error_subcode":2207013}}`, apperror.KindNotFound},
		{"bad parameter", 400, `{"error":{"message":"Invalid parameter","code":100}}`, apperror.KindFatal},
		{"plain 503", 503, `upstream unavailable`, apperror.KindTransient},
		{"garbage 200", 200, `<html>not json</html>`, apperror.KindFatal},
		{"empty object", 200, `{"id":"1784"}`, apperror.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAdapter(t, &graphStub{status: tt.status, body: tt.body}, "tok", "1784")

			posts, err := a.FetchRecent(context.Background(), "some.user", 10)
			require.Error(t, err)
			assert.Nil(t, posts)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
			assert.Contains(t, err.Error(), "instagram some.user")
		})
	}
}

func TestUsernameFromHandle(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "some.user", want: "some.user"},
		{in: "@Some.User", want: "some.user"},
		{in: "instagram.com/some_user", want: "some_user"},
		{in: "https://www.youtube.com/@foo", wantErr: true},
		{in: "bad) name", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := usernameFromHandle(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
