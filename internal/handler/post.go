package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/creator-outliers/internal/service"
)

// PostHandler serves the outlier feed and single posts.
type PostHandler struct {
	posts  *service.PostService
	logger *slog.Logger
}

// NewPostHandler creates a PostHandler.
func NewPostHandler(posts *service.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: logger}
}

// HandleOutliers returns posts scoring at or above minScore across all
// creators, highest first.
//
// HTTP: GET /api/outliers?minScore=2.0&limit=100
func (h *PostHandler) HandleOutliers(w http.ResponseWriter, r *http.Request) {
	minScore, err := queryFloat(r, "minScore", service.DefaultMinScore)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultOutlierLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	posts, err := h.posts.Outliers(r.Context(), minScore, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// HandleGet returns one post with its creator fields and transcript.
//
// HTTP: GET /api/posts/{id}
func (h *PostHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	post, err := h.posts.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
}

// HandleSaveTranscript stores a transcript on a post, replacing any previous
// one. Sync never touches it afterwards.
//
// HTTP: PUT /api/posts/{id}/transcript
// REQUEST BODY: {"transcript": "..."}
func (h *PostHandler) HandleSaveTranscript(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req transcriptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	post, err := h.posts.SaveTranscript(r.Context(), id, req.Transcript)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
