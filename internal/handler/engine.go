package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/service"
)

// EngineHandler passes documents through to the validation engine.
type EngineHandler struct {
	export *service.ExportService
	logger *slog.Logger
}

func NewEngineHandler(export *service.ExportService, logger *slog.Logger) *EngineHandler {
	return &EngineHandler{export: export, logger: logger}
}

type validateRequest struct {
	Body string `json:"yaml_content"`
}

// HandleValidate returns the engine report for a document. A document with
// errors still gets 200; the report carries the errors.
//
// HTTP: POST /api/v1/validate
func (h *EngineHandler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	report, err := h.export.Validate(r.Context(), req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "report": report})
}

type exportRequest struct {
	Body string `json:"yaml_content"`
	engine.ExportOptions
}

// HandleExport renders a document and answers with the rendered bytes and
// the format's media type.
//
// HTTP: POST /api/v1/export/{format}
// Body: {"yaml_content", "locale"?, "suit_symbols"?, "n_deals"?, "seed"?}
func (h *EngineHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, contentType, err := h.export.Export(r.Context(), req.Body, chi.URLParam(r, "format"), req.ExportOptions)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(out)); err != nil {
		h.logger.Warn("failed to write export", slog.String("error", err.Error()))
	}
}

type diffRequest struct {
	A        string `json:"yaml_a"`
	B        string `json:"yaml_b"`
	NumDeals int    `json:"n_deals"`
	Seed     *int64 `json:"seed"`
}

// HandleDiff compares two documents over a set of dealt hands.
//
// HTTP: POST /api/v1/diff
// Body: {"yaml_a", "yaml_b", "n_deals"? (20), "seed"? (42)}
func (h *EngineHandler) HandleDiff(w http.ResponseWriter, r *http.Request) {
	var req diffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	opts := engine.DiffOptions{DealCount: req.NumDeals, Seed: engine.DefaultSeed}
	if req.Seed != nil {
		opts.Seed = *req.Seed
	}

	report, err := h.export.Diff(r.Context(), req.A, req.B, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
