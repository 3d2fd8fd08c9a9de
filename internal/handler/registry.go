package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/service"
)

// RegistryHandler serves conventions and namespaces.
type RegistryHandler struct {
	registry *service.RegistryService
	logger   *slog.Logger
}

func NewRegistryHandler(registry *service.RegistryService, logger *slog.Logger) *RegistryHandler {
	return &RegistryHandler{registry: registry, logger: logger}
}

// HandleCreate publishes a convention as the caller.
//
// HTTP: POST /api/v1/conventions (RequireAuth)
// Body: {"name", "namespace", "version", "description", "tags", "yaml_content"}
func (h *RegistryHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.ConventionInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	c, err := h.registry.CreateConvention(r.Context(), in, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// HandleSearch lists conventions.
//
// HTTP: GET /api/v1/conventions?q=&tag=&namespace=&author=&sort=&page=&page_size=
func (h *RegistryHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	result, err := h.registry.Search(r.Context(), model.SearchFilter{
		Query:     q.Get("q"),
		Namespace: q.Get("namespace"),
		Tag:       q.Get("tag"),
		Author:    q.Get("author"),
		Sort:      model.SortOrder(q.Get("sort")),
	}, page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HTTP: GET /api/v1/conventions/{id}
func (h *RegistryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.GetConvention(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleUpdate applies a partial update. Only the author may do this.
//
// HTTP: PUT /api/v1/conventions/{id} (RequireAuth)
func (h *RegistryHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var patch model.ConventionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	c, err := h.registry.UpdateConvention(r.Context(), chi.URLParam(r, "id"), patch, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: DELETE /api/v1/conventions/{id} (RequireAuth)
func (h *RegistryHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.registry.DeleteConvention(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDownload counts a download and returns the convention with its
// body and the new counter.
//
// HTTP: POST /api/v1/conventions/{id}/download
func (h *RegistryHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.RecordDownload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: GET /api/v1/conventions/ns/{namespace}/versions
func (h *RegistryHandler) HandleVersions(w http.ResponseWriter, r *http.Request) {
	ns := chi.URLParam(r, "namespace")
	versions, err := h.registry.ListVersions(r.Context(), ns)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"namespace": ns,
		"versions":  versions,
	})
}

// HTTP: GET /api/v1/conventions/ns/{namespace}/latest
func (h *RegistryHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.LatestConvention(r.Context(), chi.URLParam(r, "namespace"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HTTP: GET /api/v1/conventions/ns/{namespace}/{version}
func (h *RegistryHandler) HandleByVersion(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.GetConventionByVersion(r.Context(),
		chi.URLParam(r, "namespace"), chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// HandleClaimNamespace claims a prefix for the caller.
//
// HTTP: POST /api/v1/namespaces (RequireAuth)
// Body: {"prefix", "display_name", "description"}
func (h *RegistryHandler) HandleClaimNamespace(w http.ResponseWriter, r *http.Request) {
	var in model.NamespaceInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	ns, err := h.registry.ClaimNamespace(r.Context(), in, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ns)
}

// HTTP: GET /api/v1/namespaces?q=&page=&page_size=
func (h *RegistryHandler) HandleSearchNamespaces(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := h.registry.SearchNamespaces(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HTTP: GET /api/v1/namespaces/{prefix}
func (h *RegistryHandler) HandleGetNamespace(w http.ResponseWriter, r *http.Request) {
	ns, err := h.registry.GetNamespace(r.Context(), chi.URLParam(r, "prefix"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}
