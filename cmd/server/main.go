// Package main is the entry point for the creator outliers server.
//
// MAIN PACKAGE IN GO:
// main stays minimal. Its job is to:
// 1. Read configuration (.env file, then environment variables)
// 2. Create the logger
// 3. Build the server and either serve or run one sync
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// Configuration is environment only. Set SYNC_SCHEDULE (for example
// "@every 6h") to have the server sync the watchlist on its own.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/creator-outliers/internal/config"
	"github.com/sakif/creator-outliers/internal/server"
)

func main() {
	// === 1. LOAD .env ===
	// godotenv copies KEY=value lines from .env into the process environment.
	// Variables already set in the environment win, so production can ignore
	// the file entirely. A missing .env is normal.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not read .env", slog.String("error", err.Error()))
	}

	// === 2. READ CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 3. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the floor; the default is info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel,
	}))
	slog.SetDefault(logger)

	if !cfg.Auth.Enabled() {
		logger.Warn("AUTH_PASSWORD or JWT_SECRET not set, mutating routes are open")
	}
	if cfg.Remix.APIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY not set, remixes will fail with auth_required")
	}
	if cfg.Instagram.AccessToken == "" {
		logger.Warn("INSTAGRAM_ACCESS_TOKEN not set, instagram creators will fail with auth_required")
	}

	// === 4. CREATE THE SERVER ===
	// The context only bounds store setup (the Postgres dial and migrations).
	// Start installs its own signal handling for the serving phase.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	srv, err := server.New(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 5. RUN ===
	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
