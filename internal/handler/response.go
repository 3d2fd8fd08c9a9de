package handler

// Every error response has the same shape:
//
//	{"error": "not_found", "message": "convention not found with id abc123"}
//
// InvalidArgument adds "field"; ValidationFailed adds "details" carrying the
// engine report.

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// writeJSON sends data as JSON. Headers and status must be written before
// the body, so the encoder runs last.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusOf maps an error kind to its HTTP status and machine-readable code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrValidationFailed):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, apperror.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps a service error to its status and sends it. Errors
// without a kind become a generic 500 so store details never leak.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status, code := statusOf(err)
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: appErr.Message,
		Field:   appErr.Field,
		Details: appErr.Details,
	})
}

// decodeJSON reads one JSON value from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return apperror.InvalidArgument("body", fmt.Sprintf("request body must be at most %d bytes", maxErr.Limit))
		case errors.Is(err, io.EOF):
			return apperror.InvalidArgument("body", "request body is required")
		default:
			return apperror.InvalidArgument("body", "request body is not valid JSON")
		}
	}
	return nil
}

// pageRequest reads page and page_size. Missing values take the defaults;
// range checks are left to the services.
func pageRequest(r *http.Request) (model.PageRequest, error) {
	page, err := intParam(r, "page", model.DefaultPage)
	if err != nil {
		return model.PageRequest{}, err
	}
	size, err := intParam(r, "page_size", model.DefaultPageSize)
	if err != nil {
		return model.PageRequest{}, err
	}
	return model.PageRequest{Page: page, PageSize: size}, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.InvalidArgument(name, name+" must be an integer")
	}
	return n, nil
}
