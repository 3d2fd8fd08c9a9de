// Package apperror defines the error kinds shared by every layer of the registry.
//
// Services return these errors; the HTTP layer maps them to status codes.
// Each AppError wraps one of the sentinels below so callers can branch with
// errors.Is without caring about the message text.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrValidationFailed    = errors.New("validation failed")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUnauthorized        = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Details any    // Optional: structured payload, e.g. a validation report
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// InvalidArgument reports malformed caller input: a bad score, a bad prefix,
// out-of-range pagination and so on.
func InvalidArgument(field, message string) *AppError {
	return &AppError{
		Err:     ErrInvalidArgument,
		Message: message,
		Field:   field,
	}
}

// ValidationFailed carries the full engine report so it can be shown to the user.
func ValidationFailed(message string, report any) *AppError {
	return &AppError{
		Err:     ErrValidationFailed,
		Message: message,
		Details: report,
	}
}

func Conflict(resource, key string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %s already exists", resource, key),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// UpstreamUnavailable wraps a failed or timed-out call to an external collaborator.
func UpstreamUnavailable(service string, cause error) *AppError {
	msg := fmt.Sprintf("%s is unavailable", service)
	if cause != nil {
		msg = fmt.Sprintf("%s is unavailable: %v", service, cause)
	}
	return &AppError{
		Err:     ErrUpstreamUnavailable,
		Message: msg,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Kind returns the sentinel wrapped by err, or nil when err carries no known kind.
func Kind(err error) error {
	for _, k := range []error{
		ErrNotFound, ErrForbidden, ErrConflict, ErrValidationFailed,
		ErrInvalidArgument, ErrUpstreamUnavailable, ErrUnauthorized,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
