package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/config"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/transform"
)

type emptyAdapter struct{ platform model.Platform }

func (a emptyAdapter) Platform() model.Platform { return a.platform }

func (a emptyAdapter) FetchRecent(context.Context, string, int) ([]adapter.RawPost, error) {
	return []adapter.RawPost{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 0, LogLevel: slog.LevelError},
		Storage: config.StorageConfig{Driver: "sqlite", DBPath: ":memory:"},
		Sync:    config.SyncConfig{Limit: 10, Concurrency: 2, Timeout: 5 * time.Second, Timezone: "UTC"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := OpenStore(context.Background(), cfg.Storage)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	srv, err := NewWithDeps(cfg, logger, Deps{
		Store:       store,
		Adapters:    adapter.NewRegistry(emptyAdapter{model.PlatformYouTube}, emptyAdapter{model.PlatformInstagram}),
		Transformer: transform.Func(func(context.Context, string) (string, error) { return "remixed", nil }),
	})
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	return rr
}

func TestRoutes_OpenWhenAuthDisabled(t *testing.T) {
	srv := newTestServer(t, testConfig())

	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/healthz", "", nil).Code)
	assert.Equal(t, http.StatusCreated, serve(srv, http.MethodPost, "/api/creators", `{"platform":"youtube","username":"foo"}`, nil).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodPost, "/api/sync", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodPost, "/api/login", `{"password":"x"}`, nil).Code,
		"login route only exists when auth is configured")
}

func TestRoutes_AuthGate(t *testing.T) {
	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Password: "open sesame", JWTSecret: "0123456789abcdef-test"}
	srv := newTestServer(t, cfg)

	// Reads stay public.
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/creators", "", nil).Code)
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/outliers", "", nil).Code)

	// Writes need a token.
	addBody := `{"platform":"youtube","username":"foo"}`
	assert.Equal(t, http.StatusUnauthorized, serve(srv, http.MethodPost, "/api/creators", addBody, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(srv, http.MethodPost, "/api/sync", "", nil).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(srv, http.MethodPost, "/api/login", `{"password":"wrong"}`, nil).Code)

	rr := serve(srv, http.MethodPost, "/api/login", `{"password":"open sesame"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	bearer := func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+login.Token) }
	assert.Equal(t, http.StatusCreated, serve(srv, http.MethodPost, "/api/creators", addBody, bearer).Code)

	withCookie := func(r *http.Request) { r.AddCookie(cookies[0]) }
	rr = serve(srv, http.MethodGet, "/api/me", "", withCookie)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "operator")
}

func TestScheduler_Wiring(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.Schedule = "@every 1h"
	srv := newTestServer(t, cfg)

	require.NotNil(t, srv.scheduler)
	rr := serve(srv, http.MethodGet, "/api/schedule", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), syncJobName)

	// The job body is the watchlist sync.
	require.NoError(t, srv.syncJob(context.Background()))
}

func TestManualSync_SharesSchedulerGuard(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.Schedule = "@every 1h"
	srv := newTestServer(t, cfg)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- srv.scheduler.RunNow(context.Background(), syncJobName, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	rr := serve(srv, http.MethodPost, "/api/sync", "", nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "already running")

	close(release)
	require.NoError(t, <-done)

	rr = serve(srv, http.MethodPost, "/api/sync", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func TestHealth_ListsPlatforms(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rr := serve(srv, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Status    string           `json:"status"`
		Platforms []model.Platform `json:"platforms"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []model.Platform{model.PlatformInstagram, model.PlatformYouTube}, body.Platforms)
}

func TestScheduler_BadSpec(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.Schedule = "every now and then"
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := OpenStore(context.Background(), cfg.Storage)
	require.NoError(t, err)
	defer store.Close()

	_, err = NewWithDeps(cfg, logger, Deps{Store: store, Adapters: adapter.NewRegistry()})
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "outliers.db")
	store, err := OpenStore(context.Background(), config.StorageConfig{Driver: "sqlite", DBPath: path})
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file and parent directories are created")

	_, err = OpenStore(context.Background(), config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}
