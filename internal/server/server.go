// Package server is the composition root: it builds the store, adapters,
// services, handlers and scheduler, wires them to routes, and runs the HTTP
// server until a shutdown signal arrives.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → Store (sqlite or postgres)
//	  → adapter.Registry (youtube, instagram)
//	  → transform.Transformer (claude)
//	  → services → handlers → chi routes
//	  → scheduler (optional periodic SyncAll)
//
// Each layer only receives what it needs. Services get repository
// interfaces, handlers get services. Nothing below this package knows how
// the others are constructed.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/creator-outliers/internal/adapter"
	"github.com/sakif/creator-outliers/internal/adapter/instagram"
	"github.com/sakif/creator-outliers/internal/adapter/youtube"
	"github.com/sakif/creator-outliers/internal/apperror"
	"github.com/sakif/creator-outliers/internal/auth"
	"github.com/sakif/creator-outliers/internal/config"
	"github.com/sakif/creator-outliers/internal/handler"
	"github.com/sakif/creator-outliers/internal/middleware"
	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/repository"
	"github.com/sakif/creator-outliers/internal/scheduler"
	"github.com/sakif/creator-outliers/internal/service"
	"github.com/sakif/creator-outliers/internal/transform"
	"github.com/sakif/creator-outliers/internal/transform/claude"
)

// syncJobName is the scheduler entry for the periodic watchlist sync.
const syncJobName = "sync-all"

// Deps are the external collaborators of the server. New builds them from
// config; tests pass fakes to NewWithDeps.
type Deps struct {
	Store       repository.Store
	Adapters    *adapter.Registry
	Transformer transform.Transformer
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store and the scheduler. Start stops the scheduler
// first (so no sync starts mid-shutdown), drains HTTP, then closes the store.
type Server struct {
	router    *chi.Mux
	config    *config.Config
	logger    *slog.Logger
	store     repository.Store
	scheduler *scheduler.Scheduler
	sync      *service.SyncService
}

// New builds every dependency from cfg and returns a ready Server.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	adapters := adapter.NewRegistry(
		youtube.New(youtube.Config{
			BaseURL: cfg.YouTube.BaseURL,
			Timeout: cfg.YouTube.Timeout,
		}, logger.With(slog.String("adapter", "youtube"))),
		instagram.New(instagram.Config{
			GraphURL:    cfg.Instagram.GraphURL,
			APIVersion:  cfg.Instagram.APIVersion,
			AccessToken: cfg.Instagram.AccessToken,
			BusinessID:  cfg.Instagram.BusinessID,
			Timeout:     cfg.Instagram.Timeout,
		}, logger.With(slog.String("adapter", "instagram"))),
	)

	transformer := claude.New(claude.Config{
		APIKey:       cfg.Remix.APIKey,
		Model:        cfg.Remix.Model,
		SystemPrompt: cfg.Remix.SystemPrompt,
		MaxTokens:    int64(cfg.Remix.MaxTokens),
	}, logger.With(slog.String("component", "remix")))

	srv, err := NewWithDeps(cfg, logger, Deps{Store: store, Adapters: adapters, Transformer: transformer})
	if err != nil {
		store.Close()
		return nil, err
	}
	return srv, nil
}

// NewWithDeps wires the given dependencies into routes and the scheduler.
func NewWithDeps(cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  deps.Store,
	}

	creatorService := service.NewCreatorService(deps.Store, deps.Store, logger)
	postService := service.NewPostService(deps.Store, logger)
	remixService := service.NewRemixService(deps.Store, deps.Store, deps.Transformer, logger)
	s.sync = service.NewSyncService(deps.Store, deps.Store, deps.Adapters, service.SyncConfig{
		Limit:       cfg.Sync.Limit,
		Concurrency: cfg.Sync.Concurrency,
		Timeout:     cfg.Sync.Timeout,
	}, logger)

	if cfg.Sync.Schedule != "" {
		sched, err := scheduler.New(cfg.Sync.Timezone, cfg.Sync.JobTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("creating scheduler: %w", err)
		}
		if err := sched.AddJob(syncJobName, cfg.Sync.Schedule, s.syncJob); err != nil {
			return nil, fmt.Errorf("scheduling sync: %w", err)
		}
		s.scheduler = sched
	}

	var gate *auth.Gate
	if cfg.Auth.Enabled() {
		tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, err
		}
		gate, err = auth.NewGate(cfg.Auth.Password, auth.NewPasswordService(auth.DefaultPasswordCost), tokens, logger)
		if err != nil {
			return nil, err
		}
	}

	s.setupRoutes(routeDeps{
		creators: handler.NewCreatorHandler(creatorService, logger),
		posts:    handler.NewPostHandler(postService, logger),
		remixes:  handler.NewRemixHandler(remixService, logger),
		sync:     handler.NewSyncHandler(s.sync, watchlistRunner{s}, logger),
		system:   handler.NewSystemHandler(deps.Store, s.jobLister(), deps.Adapters.Platforms(), logger),
		gate:     gate,
	})
	return s, nil
}

// syncJob is the scheduled SyncAll. Per-creator failures are already logged
// by the service; only a failure to read the watchlist fails the job.
func (s *Server) syncJob(ctx context.Context) error {
	_, err := s.sync.SyncAll(ctx)
	return err
}

// watchlistRunner serves POST /api/sync. With a scheduler it goes through
// RunNow, so a manual sync and a cron tick never run at the same time.
type watchlistRunner struct {
	s *Server
}

func (w watchlistRunner) SyncAll(ctx context.Context) (*model.SyncReport, error) {
	if w.s.scheduler == nil {
		return w.s.sync.SyncAll(ctx)
	}

	var report *model.SyncReport
	err := w.s.scheduler.RunNow(ctx, syncJobName, func(ctx context.Context) error {
		var err error
		report, err = w.s.sync.SyncAll(ctx)
		return err
	})
	if errors.Is(err, scheduler.ErrJobRunning) {
		return nil, &apperror.AppError{Err: apperror.ErrConflict, Message: "a watchlist sync is already running"}
	}
	return report, err
}

// jobLister avoids handing a typed nil *Scheduler to an interface.
func (s *Server) jobLister() handler.JobLister {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler
}

type routeDeps struct {
	creators *handler.CreatorHandler
	posts    *handler.PostHandler
	remixes  *handler.RemixHandler
	sync     *handler.SyncHandler
	system   *handler.SystemHandler
	gate     *auth.Gate
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /healthz                        → store reachability
// POST   /api/login, /api/logout         → operator session (when auth is on)
// GET    /api/me                         → token subject         [auth]
// GET    /api/creators                   → watchlist
// POST   /api/creators                   → add creator           [auth]
// GET    /api/creators/{id}              → one creator
// DELETE /api/creators/{id}              → remove creator        [auth]
// GET    /api/creators/{id}/posts        → creator's posts
// POST   /api/creators/{id}/sync         → sync one creator      [auth]
// POST   /api/sync                       → sync the watchlist    [auth]
// GET    /api/outliers                   → outlier feed
// GET    /api/posts/{id}                 → one post
// PUT    /api/posts/{id}/transcript      → save transcript       [auth]
// POST   /api/posts/{id}/remix           → remix transcript      [auth]
// GET    /api/posts/{id}/remixes         → remix history
// POST   /api/remix                      → remix pasted text     [auth]
// GET    /api/schedule                   → scheduled jobs
//
// Reads are always public. Routes marked [auth] need a token only when
// AUTH_PASSWORD and JWT_SECRET are both set.
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID, so the logger can tag lines with it
// 2. RealIP
// 3. Logger
// 4. Recoverer turns panics into 500s
func (s *Server) setupRoutes(d routeDeps) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/healthz", d.system.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		w := r
		if d.gate != nil {
			requireAuth := auth.RequireAuth(d.gate.Tokens())
			authHandler := handler.NewAuthHandler(d.gate, s.logger)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
			w = r.With(requireAuth)
		}

		r.Get("/creators", d.creators.HandleList)
		r.Get("/creators/{id}", d.creators.HandleGet)
		r.Get("/creators/{id}/posts", d.creators.HandleListPosts)
		r.Get("/outliers", d.posts.HandleOutliers)
		r.Get("/posts/{id}", d.posts.HandleGet)
		r.Get("/posts/{id}/remixes", d.remixes.HandleHistory)
		r.Get("/schedule", d.system.HandleSchedule)

		w.Post("/creators", d.creators.HandleAdd)
		w.Delete("/creators/{id}", d.creators.HandleRemove)
		w.Post("/creators/{id}/sync", d.sync.HandleSyncCreator)
		w.Post("/sync", d.sync.HandleSyncAll)
		w.Put("/posts/{id}/transcript", d.posts.HandleSaveTranscript)
		w.Post("/posts/{id}/remix", d.remixes.HandleRemix)
		w.Post("/remix", d.remixes.HandleRemixText)
	})
}

// Handler returns the router, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and the scheduler, and blocks until SIGINT or
// SIGTERM.
//
// GRACEFUL SHUTDOWN:
// 1. Stop the scheduler and wait for a running sync to notice cancellation
// 2. Stop accepting new HTTP connections, let in-flight requests finish
// 3. Close the store
func (s *Server) Start() error {
	defer s.store.Close()

	// A full-watchlist sync over HTTP can take minutes, so the write timeout
	// is far above the usual 15s.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	if s.scheduler != nil {
		s.scheduler.Start()
		s.logger.Info("scheduled sync enabled",
			slog.String("schedule", s.config.Sync.Schedule),
			slog.String("timezone", s.config.Sync.Timezone),
		)
	}

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("store", s.config.Storage.Driver),
			slog.Bool("auth", s.config.Auth.Enabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		s.stopScheduler()
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		s.stopScheduler()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

func (s *Server) stopScheduler() {
	if s.scheduler == nil {
		return
	}
	stopped := s.scheduler.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("scheduled sync did not stop in time")
	}
}
