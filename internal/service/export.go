package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/pbn"
)

// FormatLIN is exported through the PBN converter rather than the engine.
const FormatLIN = "lin"

// ExportService passes documents through to the engine for validation,
// export and comparison.
type ExportService struct {
	engine engine.Engine
	logger *slog.Logger
}

func NewExportService(eng engine.Engine, logger *slog.Logger) *ExportService {
	return &ExportService{engine: eng, logger: logger}
}

// Validate returns the engine report. A report listing errors is a normal
// result here, not a failure.
func (s *ExportService) Validate(ctx context.Context, text string) (engine.Report, error) {
	report, err := s.engine.Validate(ctx, text)
	if err != nil {
		return nil, engineError(err)
	}
	return report, nil
}

// Export renders text in format and returns the output with its media type.
//
// The engine has no LIN exporter, so "lin" is produced by exporting PBN and
// converting the result with pbn.ToLIN.
func (s *ExportService) Export(ctx context.Context, text, format string, opts engine.ExportOptions) (string, string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if strings.TrimSpace(text) == "" {
		return "", "", apperror.InvalidArgument("yaml_content", "yaml_content is required")
	}
	if opts.Locale == "" {
		opts.Locale = "en"
	}

	switch {
	case engine.IsNativeFormat(format):
		out, err := s.engine.Export(ctx, text, format, opts)
		if err != nil {
			return "", "", engineError(err)
		}
		return out, engine.ContentType(format), nil

	case format == FormatLIN:
		out, err := s.engine.Export(ctx, text, engine.FormatPBN, opts)
		if err != nil {
			return "", "", engineError(err)
		}
		s.logger.Debug("converting pbn export to lin")
		return pbn.ToLIN(out), engine.ContentType(FormatLIN), nil
	}

	return "", "", apperror.InvalidArgument("format",
		fmt.Sprintf("unsupported format %q, use one of %s", format,
			strings.Join(append(append([]string{}, engine.Formats...), FormatLIN), ", ")))
}

// Diff compares two documents. A zero DealCount means engine.DefaultDealCount.
func (s *ExportService) Diff(ctx context.Context, textA, textB string, opts engine.DiffOptions) (engine.Report, error) {
	if strings.TrimSpace(textA) == "" || strings.TrimSpace(textB) == "" {
		return nil, apperror.InvalidArgument("yaml_a", "both documents are required")
	}
	if opts.DealCount == 0 {
		opts.DealCount = engine.DefaultDealCount
	}
	if opts.DealCount < 1 || opts.DealCount > 1000 {
		return nil, apperror.InvalidArgument("n_deals", "n_deals must be between 1 and 1000")
	}

	report, err := s.engine.Diff(ctx, textA, textB, opts)
	if err != nil {
		return nil, engineError(err)
	}
	return report, nil
}
