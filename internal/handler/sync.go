package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/creator-outliers/internal/model"
)

// CreatorSyncer syncs one creator. *service.SyncService implements it.
type CreatorSyncer interface {
	SyncCreator(ctx context.Context, creatorID int64, limit int) (*model.SyncResult, error)
}

// WatchlistSyncer syncs every creator. The server passes a runner that
// shares the scheduler's overlap guard when scheduled syncs are enabled.
type WatchlistSyncer interface {
	SyncAll(ctx context.Context) (*model.SyncReport, error)
}

// SyncHandler triggers syncs on demand.
//
// Both endpoints answer 200 even when creators fail: the failures are data
// in the report, not request errors. Only "creator does not exist" and bad
// input produce an error status.
type SyncHandler struct {
	creator   CreatorSyncer
	watchlist WatchlistSyncer
	logger    *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(creator CreatorSyncer, watchlist WatchlistSyncer, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{creator: creator, watchlist: watchlist, logger: logger}
}

type syncCreatorRequest struct {
	Limit int `json:"limit"`
}

// HandleSyncAll syncs the whole watchlist and returns the report. If a
// watchlist sync is already running the answer is 409.
//
// HTTP: POST /api/sync
func (h *SyncHandler) HandleSyncAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.watchlist.SyncAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleSyncCreator syncs one creator.
//
// HTTP: POST /api/creators/{id}/sync
// REQUEST BODY (optional): {"limit": 30}
func (h *SyncHandler) HandleSyncCreator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req syncCreatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.creator.SyncCreator(r.Context(), id, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
