package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/repository/sqlite"
)

// =========================================================================
// SHARED TEST HELPERS
// =========================================================================

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestStore opens a fresh in-memory SQLite store. The sync and remix
// services are tested against the real store because their guarantees
// (all-or-nothing commits, transcript preservation) live in the SQL.
func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCreator(t *testing.T, db *sqlite.DB, c model.Creator) *model.Creator {
	t.Helper()
	if _, err := db.AddCreator(context.Background(), &c); err != nil {
		t.Fatalf("failed to seed creator: %v", err)
	}
	return &c
}

func views(n int64) *int64 { return &n }

// =========================================================================
// FAKE ADAPTER
// =========================================================================

// fakeAdapter serves canned posts per handle. fetch overrides everything
// when set. It records every call so tests can assert on handle and limit.
type fakeAdapter struct {
	platform model.Platform
	posts    map[string][]adapter.RawPost
	errs     map[string]error
	fetch    func(ctx context.Context, handle string, limit int) ([]adapter.RawPost, error)

	mu       sync.Mutex
	handles  []string
	limits   []int
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func newFakeAdapter(p model.Platform) *fakeAdapter {
	return &fakeAdapter{
		platform: p,
		posts:    map[string][]adapter.RawPost{},
		errs:     map[string]error{},
	}
}

func (f *fakeAdapter) Platform() model.Platform { return f.platform }

func (f *fakeAdapter) FetchRecent(ctx context.Context, handle string, limit int) ([]adapter.RawPost, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		prev := f.maxSeen.Load()
		if n <= prev || f.maxSeen.CompareAndSwap(prev, n) {
			break
		}
	}

	f.mu.Lock()
	f.handles = append(f.handles, handle)
	f.limits = append(f.limits, limit)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.fetch != nil {
		return f.fetch(ctx, handle, limit)
	}
	if err := f.errs[handle]; err != nil {
		return nil, err
	}
	posts := f.posts[handle]
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// =========================================================================
// MOCK TRANSFORMER (testify/mock)
// =========================================================================

type mockTransformer struct {
	mock.Mock
}

func (m *mockTransformer) Transform(ctx context.Context, text string) (string, error) {
	args := m.Called(ctx, text)
	return args.String(0), args.Error(1)
}
