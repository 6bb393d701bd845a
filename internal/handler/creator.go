package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/service"
)

// CreatorHandler serves the watchlist.
type CreatorHandler struct {
	creators *service.CreatorService
	logger   *slog.Logger
}

// NewCreatorHandler creates a CreatorHandler.
func NewCreatorHandler(creators *service.CreatorService, logger *slog.Logger) *CreatorHandler {
	return &CreatorHandler{creators: creators, logger: logger}
}

// addCreatorRequest accepts either a platform + username pair or a profile
// URL. When URL is set the other two fields are ignored.
type addCreatorRequest struct {
	Platform    string `json:"platform"`
	Username    string `json:"username"`
	URL         string `json:"url"`
	DisplayName string `json:"displayName"`
}

// HandleList returns the watchlist with per-creator post counts.
//
// HTTP: GET /api/creators
func (h *CreatorHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	creators, err := h.creators.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creators)
}

// HandleAdd adds a creator. Adding an existing creator is not an error: it
// answers 200 with the stored row instead of 201.
//
// HTTP: POST /api/creators
// REQUEST BODY: {"platform":"youtube","username":"@foo"} or {"url":"https://instagram.com/foo"}
func (h *CreatorHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addCreatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	var (
		creator *model.Creator
		created bool
		err     error
	)
	if req.URL != "" {
		creator, created, err = h.creators.AddFromURL(r.Context(), req.URL, req.DisplayName)
	} else {
		creator, created, err = h.creators.Add(r.Context(), req.Platform, req.Username, req.DisplayName)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, creator)
}

// HandleGet returns one creator.
//
// HTTP: GET /api/creators/{id}
func (h *CreatorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	creator, err := h.creators.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, creator)
}

// HandleRemove deletes a creator and, by cascade, its posts and remixes.
//
// HTTP: DELETE /api/creators/{id}
func (h *CreatorHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.creators.Remove(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListPosts returns a creator's posts, best score first.
//
// HTTP: GET /api/creators/{id}/posts?limit=50&offset=0
func (h *CreatorHandler) HandleListPosts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultPostListLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	posts, err := h.creators.ListPosts(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}
