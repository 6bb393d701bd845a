package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/creator-outliers/internal/model"
	"github.com/sakif/creator-outliers/internal/render"
	"github.com/sakif/creator-outliers/internal/service"
)

// RemixHandler serves transcript rewrites.
//
// Generated text is Markdown. Responses carry it twice: raw in "content"
// for copying, and as sanitized HTML in "contentHtml" for display.
type RemixHandler struct {
	remixes *service.RemixService
	logger  *slog.Logger
}

// NewRemixHandler creates a RemixHandler.
func NewRemixHandler(remixes *service.RemixService, logger *slog.Logger) *RemixHandler {
	return &RemixHandler{remixes: remixes, logger: logger}
}

// remixView is a stored remix plus its rendered form.
type remixView struct {
	model.Remix
	ContentHTML string `json:"contentHtml"`
}

func newRemixView(r model.Remix) remixView {
	return remixView{Remix: r, ContentHTML: render.Markdown(r.Content)}
}

// HandleRemix generates a new remix from the post's saved transcript.
//
// HTTP: POST /api/posts/{id}/remix
func (h *RemixHandler) HandleRemix(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	remix, err := h.remixes.Remix(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRemixView(*remix))
}

// HandleHistory lists a post's remixes, newest first.
//
// HTTP: GET /api/posts/{id}/remixes
func (h *RemixHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	remixes, err := h.remixes.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]remixView, len(remixes))
	for i, rm := range remixes {
		views[i] = newRemixView(rm)
	}
	writeJSON(w, http.StatusOK, views)
}

type remixTextRequest struct {
	Text string `json:"text"`
}

type remixTextResponse struct {
	Content     string `json:"content"`
	ContentHTML string `json:"contentHtml"`
}

// HandleRemixText rewrites pasted text without saving anything.
//
// HTTP: POST /api/remix
// REQUEST BODY: {"text": "..."}
func (h *RemixHandler) HandleRemixText(w http.ResponseWriter, r *http.Request) {
	var req remixTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	content, err := h.remixes.RemixText(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, remixTextResponse{Content: content, ContentHTML: render.Markdown(content)})
}
