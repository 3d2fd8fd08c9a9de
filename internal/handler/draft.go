package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/service"
)

// DraftHandler serves the caller's private drafts. Every route requires
// sign-in.
type DraftHandler struct {
	drafts *service.DraftService
	logger *slog.Logger
}

func NewDraftHandler(drafts *service.DraftService, logger *slog.Logger) *DraftHandler {
	return &DraftHandler{drafts: drafts, logger: logger}
}

type draftRequest struct {
	Title string `json:"title"`
	Body  string `json:"yaml_content"`
}

// HTTP: POST /api/v1/drafts
func (h *DraftHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	d, err := h.drafts.Create(r.Context(), req.Title, req.Body, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HTTP: GET /api/v1/drafts?page=&page_size=
func (h *DraftHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	result, err := h.drafts.List(r.Context(), userID, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HTTP: GET /api/v1/drafts/{id}
func (h *DraftHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	d, err := h.drafts.Get(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HTTP: PUT /api/v1/drafts/{id}
// Body: {"title"?, "yaml_content"?}
func (h *DraftHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.DraftPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	d, err := h.drafts.Update(r.Context(), chi.URLParam(r, "id"), patch, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// HTTP: DELETE /api/v1/drafts/{id}
func (h *DraftHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.drafts.Delete(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
