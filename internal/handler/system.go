package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/scheduler"
)

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// JobLister lists scheduled jobs. Nil when scheduled syncs are disabled.
type JobLister interface {
	ListJobs() []scheduler.JobInfo
}

// SystemHandler serves health and schedule information.
type SystemHandler struct {
	store     Pinger
	jobs      JobLister
	platforms []model.Platform
	logger    *slog.Logger
}

// NewSystemHandler creates a SystemHandler. jobs may be nil; platforms are
// the ones with a registered adapter.
func NewSystemHandler(store Pinger, jobs JobLister, platforms []model.Platform, logger *slog.Logger) *SystemHandler {
	if platforms == nil {
		platforms = []model.Platform{}
	}
	return &SystemHandler{store: store, jobs: jobs, platforms: platforms, logger: logger}
}

type healthResponse struct {
	Status    string           `json:"status"`
	Store     string           `json:"store"`
	Platforms []model.Platform `json:"platforms"`
}

// HandleHealth reports liveness, store reachability and the platforms that
// can be synced.
//
// HTTP: GET /healthz
func (h *SystemHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("health check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Store: "down", Platforms: h.platforms})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Store: "up", Platforms: h.platforms})
}

// HandleSchedule lists scheduled jobs with their next and previous runs.
//
// HTTP: GET /api/schedule
func (h *SystemHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	jobs := []scheduler.JobInfo{}
	if h.jobs != nil {
		jobs = h.jobs.ListJobs()
	}
	writeJSON(w, http.StatusOK, jobs)
}
