package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/service"
)

// CommunityHandler serves ratings, comments and recommendations.
type CommunityHandler struct {
	community       *service.CommunityService
	recommendations *service.RecommendationService
	logger          *slog.Logger
}

func NewCommunityHandler(
	community *service.CommunityService,
	recommendations *service.RecommendationService,
	logger *slog.Logger,
) *CommunityHandler {
	return &CommunityHandler{
		community:       community,
		recommendations: recommendations,
		logger:          logger,
	}
}

type rateRequest struct {
	Score int `json:"score"`
}

// HandleRate creates or replaces the caller's rating.
//
// HTTP: POST /api/v1/conventions/{id}/ratings (RequireAuth)
// Body: {"score": 1..5}
func (h *CommunityHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	rating, err := h.community.Rate(r.Context(), chi.URLParam(r, "id"), userID, req.Score)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// HandleRatingStats returns the rating summary. A signed-in caller also
// gets their own score.
//
// HTTP: GET /api/v1/conventions/{id}/ratings (OptionalAuth)
func (h *CommunityHandler) HandleRatingStats(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())
	stats, err := h.community.RatingStats(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type commentRequest struct {
	Content string `json:"content"`
}

// HTTP: POST /api/v1/conventions/{id}/comments (RequireAuth)
func (h *CommunityHandler) HandlePostComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	c, err := h.community.PostComment(r.Context(), chi.URLParam(r, "id"), userID, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HTTP: GET /api/v1/conventions/{id}/comments?page=&page_size=
func (h *CommunityHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.community.ListComments(r.Context(), chi.URLParam(r, "id"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HTTP: GET /api/v1/recommendations?limit= (OptionalAuth)
func (h *CommunityHandler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", service.DefaultRecommendationLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	viewerID, _ := auth.UserIDFromContext(r.Context())
	items, err := h.recommendations.Recommend(r.Context(), viewerID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
