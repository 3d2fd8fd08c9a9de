// Package service holds the business rules of the registry.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → parses requests, writes responses
//	Service (rules)    → validates, checks ownership, orchestrates
//	Repository (data)  → reads and writes the store
//
// Services take repository interfaces and the engine.Engine interface, never
// concrete types, so tests can hand them in-memory fakes. They accept plain
// Go values and return apperror kinds; they know nothing about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

// validate checks the `validate` struct tags of model inputs. Field names
// in errors are the JSON names the caller sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// checkStruct runs the struct tags of in and reports the first violation
// as an InvalidArgument naming the field.
func checkStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validating input: %w", err)
	}

	fe := verrs[0]
	field := fe.Field()
	var msg string
	switch fe.Tag() {
	case "required":
		msg = field + " is required"
	case "max":
		if fe.Kind() == reflect.Slice {
			msg = fmt.Sprintf("%s must have at most %s items", field, fe.Param())
		} else {
			msg = fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
	case "min":
		msg = fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	default:
		msg = field + " is invalid"
	}
	return apperror.InvalidArgument(field, msg)
}

// checkPage enforces 1 <= page <= model.MaxPage and
// 1 <= pageSize <= model.MaxPageSize.
func checkPage(p model.PageRequest) error {
	if p.Page < 1 || p.Page > model.MaxPage {
		return apperror.InvalidArgument("page",
			fmt.Sprintf("page must be between 1 and %d", model.MaxPage))
	}
	if p.PageSize < 1 || p.PageSize > model.MaxPageSize {
		return apperror.InvalidArgument("page_size",
			fmt.Sprintf("page_size must be between 1 and %d", model.MaxPageSize))
	}
	return nil
}

// engineError maps an engine failure onto an apperror kind.
//
//   - a refused document becomes ValidationFailed carrying the engine message
//   - an unreachable or slow engine becomes UpstreamUnavailable
func engineError(err error) error {
	var inputErr *engine.InputError
	switch {
	case errors.As(err, &inputErr):
		return apperror.ValidationFailed(inputErr.Message, map[string]any{
			"error_count": 1,
			"message":     inputErr.Message,
		})
	case errors.Is(err, engine.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return apperror.UpstreamUnavailable("engine", err)
	default:
		return fmt.Errorf("calling engine: %w", err)
	}
}

// isClientError reports errors that are the caller's fault and are not
// worth an error log line.
func isClientError(err error) bool {
	return errors.Is(err, apperror.ErrNotFound) ||
		errors.Is(err, apperror.ErrForbidden) ||
		errors.Is(err, apperror.ErrConflict) ||
		errors.Is(err, apperror.ErrInvalidArgument) ||
		errors.Is(err, apperror.ErrValidationFailed)
}
