package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/service"
)

// ShareHandler issues and resolves share links. Both routes work without
// sign-in.
type ShareHandler struct {
	shares *service.ShareService
	logger *slog.Logger
}

func NewShareHandler(shares *service.ShareService, logger *slog.Logger) *ShareHandler {
	return &ShareHandler{shares: shares, logger: logger}
}

type shareRequest struct {
	Title string `json:"title"`
	Body  string `json:"yaml_content"`
}

// HTTP: POST /api/v1/share (OptionalAuth)
func (h *ShareHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ownerID, _ := auth.UserIDFromContext(r.Context())
	s, err := h.shares.Create(r.Context(), req.Title, req.Body, ownerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// HTTP: GET /api/v1/share/{hash}
func (h *ShareHandler) HandleView(w http.ResponseWriter, r *http.Request) {
	s, err := h.shares.View(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
