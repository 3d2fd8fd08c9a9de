// Package engine defines the external document engine that validates,
// exports and compares convention documents.
//
// The registry never interprets a document itself. It hands the text to an
// Engine and acts on the result:
//
//   - Validate returns a Report; a report with ErrorCount() > 0 blocks a
//     convention from being stored.
//   - Export renders a document in one of the native Formats.
//   - Diff simulates deals under two systems and reports where they differ.
//
// Failures come in two flavours. An *InputError means the engine ran but
// refused the document (for example it is not YAML). Any error wrapping
// ErrUnavailable means the engine could not be reached or timed out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnavailable is wrapped by every error caused by the engine itself
// rather than by the document it was given.
var ErrUnavailable = errors.New("engine unavailable")

// InputError reports a document the engine could not process.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return "engine rejected input: " + e.Message
}

// Native export formats.
const (
	FormatBML      = "bml"
	FormatBBOAlert = "bboalert"
	FormatSVG      = "svg"
	FormatHTML     = "html"
	FormatPBN      = "pbn"
)

// Formats lists the export formats the engine renders itself.
var Formats = []string{FormatBML, FormatBBOAlert, FormatSVG, FormatHTML, FormatPBN}

// IsNativeFormat reports whether the engine can export format directly.
func IsNativeFormat(format string) bool {
	return slices.Contains(Formats, format)
}

var contentTypes = map[string]string{
	FormatBML:      "text/plain; charset=utf-8",
	FormatBBOAlert: "text/plain; charset=utf-8",
	FormatSVG:      "image/svg+xml",
	FormatHTML:     "text/html; charset=utf-8",
	FormatPBN:      "text/plain; charset=utf-8",
}

// ContentType is the media type of an exported document.
func ContentType(format string) string {
	if ct, ok := contentTypes[format]; ok {
		return ct
	}
	return "text/plain; charset=utf-8"
}

// Report is a validation or diff report. Its shape belongs to the engine;
// the registry only reads the error count and otherwise passes it through.
type Report map[string]any

// ErrorCount returns the number of errors in a validation report.
// It reads "error_count" and falls back to the length of "errors".
func (r Report) ErrorCount() int {
	switch v := r["error_count"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	if errs, ok := r["errors"].([]any); ok {
		return len(errs)
	}
	return 0
}

// ExportOptions are forwarded to the exporter.
type ExportOptions struct {
	Locale      string `json:"locale,omitempty"`
	SuitSymbols bool   `json:"suit_symbols,omitempty"`
	// PBN only.
	NDeals int    `json:"n_deals,omitempty"`
	Seed   *int64 `json:"seed,omitempty"`
}

// Diff defaults.
const (
	DefaultDealCount = 20
	DefaultSeed      = 42
)

type DiffOptions struct {
	DealCount int   `json:"n_deals"`
	Seed      int64 `json:"seed"`
}

// Engine is the external document engine.
type Engine interface {
	Validate(ctx context.Context, text string) (Report, error)
	Export(ctx context.Context, text, format string, opts ExportOptions) (string, error)
	Diff(ctx context.Context, textA, textB string, opts DiffOptions) (Report, error)
}

// Unavailable is the Engine used when no real engine could be started.
// Every call fails with ErrUnavailable, so read-only parts of the registry
// keep working while publishing is refused.
type Unavailable struct {
	Reason error
}

func (u Unavailable) err() error {
	if u.Reason == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, u.Reason)
}

func (u Unavailable) Validate(context.Context, string) (Report, error) {
	return nil, u.err()
}

func (u Unavailable) Export(context.Context, string, string, ExportOptions) (string, error) {
	return "", u.err()
}

func (u Unavailable) Diff(context.Context, string, string, DiffOptions) (Report, error) {
	return nil, u.err()
}

var _ Engine = Unavailable{}
