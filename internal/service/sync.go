package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/normalize"
	"github.com/sakif/creator-outliers/internal/repository"
	"github.com/sakif/creator-outliers/internal/scoring"
)

const (
	DefaultSyncLimit       = 30
	MaxSyncLimit           = 200
	DefaultSyncConcurrency = 4
)

// SyncConfig bounds one sync run.
type SyncConfig struct {
	Limit       int           // posts requested per creator
	Concurrency int           // creators synced in parallel by SyncAll
	Timeout     time.Duration // per creator; 0 disables
}

// SyncService is the orchestrator: fetch → normalize → score → commit, once
// per creator.
//
// FAILURE ISOLATION:
// A creator whose adapter or store step fails produces a failed SyncResult,
// never an error from SyncAll. Its rows stay exactly as they were because
// nothing is written until UpsertPosts, which is all-or-nothing.
type SyncService struct {
	creators repository.CreatorRepository
	posts    repository.PostRepository
	adapters *adapter.Registry
	cfg      SyncConfig
	logger   *slog.Logger
}

// NewSyncService creates a new SyncService. Zero config fields take defaults.
func NewSyncService(creators repository.CreatorRepository, posts repository.PostRepository, adapters *adapter.Registry, cfg SyncConfig, logger *slog.Logger) *SyncService {
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSyncLimit
	}
	if cfg.Limit > MaxSyncLimit {
		cfg.Limit = MaxSyncLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultSyncConcurrency
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	return &SyncService{
		creators: creators,
		posts:    posts,
		adapters: adapters,
		cfg:      cfg,
		logger:   logger,
	}
}

// SyncCreator syncs one creator. limit <= 0 means the configured default;
// larger values are clamped to MaxSyncLimit.
//
// The returned error is only for problems finding the creator. A failed
// fetch or commit is reported in the result with OK=false.
func (s *SyncService) SyncCreator(ctx context.Context, creatorID int64, limit int) (*model.SyncResult, error) {
	if creatorID <= 0 {
		return nil, apperror.ValidationFailed("id", "creator id must be positive")
	}

	creator, err := s.creators.GetCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	result := s.syncOne(ctx, xid.New().String(), *creator, s.clampLimit(limit))
	return &result, nil
}

// SyncAll syncs every creator on the watchlist, at most cfg.Concurrency at a
// time. Results keep watchlist order. The only error is failing to read the
// watchlist itself.
func (s *SyncService) SyncAll(ctx context.Context) (*model.SyncReport, error) {
	summaries, err := s.creators.ListCreators(ctx)
	if err != nil {
		s.logger.Error("failed to load watchlist", slog.String("error", err.Error()))
		return nil, fmt.Errorf("loading watchlist: %w", err)
	}

	report := &model.SyncReport{
		RunID:      xid.New().String(),
		StartedAt:  time.Now().UTC(),
		Results:    make([]model.SyncResult, len(summaries)),
		PostCounts: make(map[int64]int, len(summaries)),
		Failures:   []model.SyncFailure{},
	}

	s.logger.Info("sync run started",
		slog.String("run_id", report.RunID),
		slog.Int("creators", len(summaries)),
		slog.Int("concurrency", s.cfg.Concurrency),
	)

	// ERRGROUP AS A BOUNDED WORKER POOL:
	// SetLimit makes g.Go block once cfg.Concurrency goroutines are running.
	// No goroutine returns an error (failures live in the result), so one
	// creator failing never cancels the others. Each goroutine writes only
	// its own index of Results, so no mutex is needed.
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i := range summaries {
		i := i
		creator := summaries[i].Creator
		g.Go(func() error {
			report.Results[i] = s.syncOne(ctx, report.RunID, creator, s.cfg.Limit)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		if r.OK {
			report.Succeeded++
			report.PostCounts[r.CreatorID] = r.PostsUpserted
			continue
		}
		report.Failed++
		report.Failures = append(report.Failures, model.SyncFailure{CreatorID: r.CreatorID, Kind: r.ErrorKind})
	}
	report.Duration = time.Since(report.StartedAt)

	s.logger.Info("sync run finished",
		slog.String("run_id", report.RunID),
		slog.Int("succeeded", report.Succeeded),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// syncOne runs the pipeline for one creator. It never panics on a failed
// step and always returns a complete result.
func (s *SyncService) syncOne(parent context.Context, runID string, creator model.Creator, limit int) model.SyncResult {
	handle := creator.CanonicalURL
	if handle == "" {
		handle = creator.Username
	}

	result := model.SyncResult{
		RunID:     runID,
		CreatorID: creator.ID,
		Platform:  creator.Platform,
		Handle:    handle,
		StartedAt: time.Now().UTC(),
	}

	ctx := parent
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.cfg.Timeout)
		defer cancel()
	}

	fail := func(step string, err error) model.SyncResult {
		result.ErrorKind = s.classify(parent, err)
		result.Error = err.Error()
		result.Duration = time.Since(result.StartedAt)
		s.logger.Warn("creator sync failed",
			slog.String("run_id", runID),
			slog.Int64("creator_id", creator.ID),
			slog.String("platform", string(creator.Platform)),
			slog.String("handle", handle),
			slog.String("step", step),
			slog.String("kind", string(result.ErrorKind)),
			slog.String("error", err.Error()),
		)
		return result
	}

	// 1. FETCH
	a, err := s.adapters.Lookup(creator.Platform)
	if err != nil {
		return fail("lookup", err)
	}
	raws, err := a.FetchRecent(ctx, handle, limit)
	if err != nil {
		return fail("fetch", err)
	}

	// 2. NORMALIZE
	// Records without an id cannot be upserted by natural key. Duplicate ids
	// within one batch keep the first (newest) occurrence.
	posts := make([]model.Post, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		p := normalize.Post(creator.Platform, raw)
		if p.PlatformPostID == "" || seen[p.PlatformPostID] {
			result.Skipped++
			continue
		}
		seen[p.PlatformPostID] = true
		posts = append(posts, p)
	}

	// 3. SCORE
	scored := scoring.ScoreBatch(posts)
	summary := scoring.Summarize(scored)

	// 4. COMMIT
	n, err := s.posts.UpsertPosts(ctx, creator.ID, scored)
	if err != nil {
		return fail("commit", err)
	}

	result.OK = true
	result.PostsUpserted = n
	result.Benchmark = summary.Benchmark
	result.Duration = time.Since(result.StartedAt)

	s.logger.Info("creator synced",
		slog.String("run_id", runID),
		slog.Int64("creator_id", creator.ID),
		slog.String("platform", string(creator.Platform)),
		slog.String("handle", handle),
		slog.Int("posts", n),
		slog.Int("skipped", result.Skipped),
		slog.Int64("benchmark", summary.Benchmark),
		slog.Float64("max_score", summary.MaxScore),
	)
	return result
}

// classify picks the failure kind. A cancelled parent context wins over
// whatever the failing step reported, because the step only failed as a
// consequence.
func (s *SyncService) classify(parent context.Context, err error) apperror.Kind {
	if errors.Is(parent.Err(), context.Canceled) {
		return apperror.KindCancelled
	}
	return apperror.KindOf(err)
}

func (s *SyncService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.Limit
	}
	if limit > MaxSyncLimit {
		return MaxSyncLimit
	}
	return limit
}
