package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
	"github.com/chrisokchen/bbdsl-platform/internal/tags"
)

// Namespace prefix rules.
const (
	MinPrefixLength = 2
	MaxPrefixLength = 128
)

var prefixPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// RegistryService publishes, changes and finds conventions and namespaces.
//
// Every document is run through the engine before it is stored; a document
// with validation errors is never written. Uniqueness of namespace prefixes
// and of (namespace, version) is left to the store's constraints, which
// report a lost race as apperror.ErrConflict.
type RegistryService struct {
	conventions repository.ConventionRepository
	namespaces  repository.NamespaceRepository
	engine      engine.Engine
	logger      *slog.Logger
}

func NewRegistryService(
	conventions repository.ConventionRepository,
	namespaces repository.NamespaceRepository,
	eng engine.Engine,
	logger *slog.Logger,
) *RegistryService {
	return &RegistryService{
		conventions: conventions,
		namespaces:  namespaces,
		engine:      eng,
		logger:      logger,
	}
}

// CreateConvention validates the document and publishes it as authorID.
//
// Errors:
//   - InvalidArgument for malformed metadata
//   - ValidationFailed (with the engine report) when the document has errors
//   - Conflict when namespace@version is already published
//   - UpstreamUnavailable when the engine cannot be reached
func (s *RegistryService) CreateConvention(ctx context.Context, in model.ConventionInput, authorID string) (*model.Convention, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Namespace = strings.TrimSpace(in.Namespace)
	in.Version = strings.TrimSpace(in.Version)
	in.Description = strings.TrimSpace(in.Description)
	if in.Version == "" {
		in.Version = model.DefaultVersion
	}
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	if err := s.checkDocument(ctx, in.Body); err != nil {
		return nil, err
	}

	c := &model.Convention{
		Name:        in.Name,
		Namespace:   in.Namespace,
		Version:     in.Version,
		Description: in.Description,
		Tags:        tags.Normalize(in.Tags),
		Body:        in.Body,
		AuthorID:    authorID,
	}
	if err := s.conventions.CreateConvention(ctx, c); err != nil {
		if !isClientError(err) {
			s.logger.Error("failed to create convention",
				slog.String("namespace", in.Namespace),
				slog.String("version", in.Version),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("creating convention: %w", err)
	}

	s.logger.Info("convention created",
		slog.String("id", c.ID),
		slog.String("namespace", c.Namespace),
		slog.String("version", c.Version),
		slog.String("author", authorID),
	)
	return s.conventions.GetConvention(ctx, c.ID)
}

// UpdateConvention applies patch on behalf of callerID, who must be the
// author. Only supplied fields change. A new body is validated exactly as
// on create.
func (s *RegistryService) UpdateConvention(ctx context.Context, id string, patch model.ConventionPatch, callerID string) (*model.Convention, error) {
	c, err := s.conventions.GetConvention(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != callerID {
		return nil, apperror.Forbidden("only the author can modify this convention")
	}
	if err := checkStruct(patch); err != nil {
		return nil, err
	}
	if patch.Empty() {
		return c, nil
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.InvalidArgument("name", "name is required")
		}
		patch.Name = &name
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}
	if patch.Tags != nil {
		normalized := tags.Normalize(*patch.Tags)
		patch.Tags = &normalized
	}
	if patch.Body != nil {
		if err := s.checkDocument(ctx, *patch.Body); err != nil {
			return nil, err
		}
	}

	if err := s.conventions.UpdateConvention(ctx, id, patch); err != nil {
		if !isClientError(err) {
			s.logger.Error("failed to update convention",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("updating convention: %w", err)
	}

	s.logger.Info("convention updated", slog.String("id", id))
	return s.conventions.GetConvention(ctx, id)
}

// DeleteConvention removes a convention. Only its author may do so.
func (s *RegistryService) DeleteConvention(ctx context.Context, id, callerID string) error {
	c, err := s.conventions.GetConvention(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != callerID {
		return apperror.Forbidden("only the author can delete this convention")
	}
	if err := s.conventions.DeleteConvention(ctx, id); err != nil {
		return fmt.Errorf("deleting convention: %w", err)
	}

	s.logger.Info("convention deleted",
		slog.String("id", id),
		slog.String("namespace", c.Namespace),
		slog.String("version", c.Version),
	)
	return nil
}

func (s *RegistryService) GetConvention(ctx context.Context, id string) (*model.Convention, error) {
	return s.conventions.GetConvention(ctx, id)
}

func (s *RegistryService) GetConventionByVersion(ctx context.Context, namespace, version string) (*model.Convention, error) {
	return s.conventions.GetConventionByVersion(ctx, namespace, version)
}

// LatestConvention returns the newest version published under namespace.
func (s *RegistryService) LatestConvention(ctx context.Context, namespace string) (*model.Convention, error) {
	return s.conventions.LatestConvention(ctx, namespace)
}

// RecordDownload counts one download and returns the convention with the
// counter value this call produced. No sign-in is needed.
func (s *RegistryService) RecordDownload(ctx context.Context, id string) (*model.Convention, error) {
	n, err := s.conventions.IncrementDownloads(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.conventions.GetConvention(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Downloads = n
	return c, nil
}

// Search returns one page of conventions matching f. No match is an empty
// page, not an error.
func (s *RegistryService) Search(ctx context.Context, f model.SearchFilter, page model.PageRequest) (model.Page[model.Convention], error) {
	if err := checkPage(page); err != nil {
		return model.Page[model.Convention]{}, err
	}
	f.Query = strings.TrimSpace(f.Query)
	f.Namespace = strings.TrimSpace(f.Namespace)
	f.Tag = strings.TrimSpace(f.Tag)
	f.Author = strings.TrimSpace(f.Author)
	f.Sort = model.ParseSort(string(f.Sort))

	items, total, err := s.conventions.SearchConventions(ctx, f, page)
	if err != nil {
		s.logger.Error("failed to search conventions", slog.String("error", err.Error()))
		return model.Page[model.Convention]{}, fmt.Errorf("searching conventions: %w", err)
	}
	return model.NewPage(items, total, page), nil
}

// ListVersions returns the version history of namespace, newest first.
func (s *RegistryService) ListVersions(ctx context.Context, namespace string) ([]model.VersionInfo, error) {
	return s.conventions.ListVersions(ctx, namespace)
}

// ClaimNamespace claims in.Prefix for callerID. The first claim wins.
func (s *RegistryService) ClaimNamespace(ctx context.Context, in model.NamespaceInput, callerID string) (*model.Namespace, error) {
	if err := checkPrefix(in.Prefix); err != nil {
		return nil, err
	}
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	ns := &model.Namespace{
		Prefix:      in.Prefix,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
		OwnerID:     callerID,
	}
	if ns.DisplayName == "" {
		ns.DisplayName = ns.Prefix
	}

	if err := s.namespaces.CreateNamespace(ctx, ns); err != nil {
		if !isClientError(err) {
			s.logger.Error("failed to claim namespace",
				slog.String("prefix", in.Prefix),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("claiming namespace: %w", err)
	}

	s.logger.Info("namespace claimed",
		slog.String("prefix", ns.Prefix),
		slog.String("owner", callerID),
	)
	return s.namespaces.GetNamespace(ctx, ns.Prefix)
}

func (s *RegistryService) GetNamespace(ctx context.Context, prefix string) (*model.Namespace, error) {
	return s.namespaces.GetNamespace(ctx, prefix)
}

func (s *RegistryService) SearchNamespaces(ctx context.Context, query string, page model.PageRequest) (model.Page[model.Namespace], error) {
	if err := checkPage(page); err != nil {
		return model.Page[model.Namespace]{}, err
	}
	items, total, err := s.namespaces.SearchNamespaces(ctx, strings.TrimSpace(query), page)
	if err != nil {
		s.logger.Error("failed to search namespaces", slog.String("error", err.Error()))
		return model.Page[model.Namespace]{}, fmt.Errorf("searching namespaces: %w", err)
	}
	return model.NewPage(items, total, page), nil
}

// checkDocument asks the engine to validate body and refuses documents
// with errors.
func (s *RegistryService) checkDocument(ctx context.Context, body string) error {
	report, err := s.engine.Validate(ctx, body)
	if err != nil {
		s.logger.Warn("engine validation failed", slog.String("error", err.Error()))
		return engineError(err)
	}
	if n := report.ErrorCount(); n > 0 {
		return apperror.ValidationFailed(fmt.Sprintf("document has %d validation error(s)", n), report)
	}
	return nil
}

func checkPrefix(prefix string) error {
	n := utf8.RuneCountInString(prefix)
	if n < MinPrefixLength || n > MaxPrefixLength {
		return apperror.InvalidArgument("prefix",
			fmt.Sprintf("prefix must be %d to %d characters", MinPrefixLength, MaxPrefixLength))
	}
	if !prefixPattern.MatchString(prefix) {
		return apperror.InvalidArgument("prefix",
			"prefix must start with a lowercase letter and contain only lowercase letters, digits, '_' or '-'")
	}
	return nil
}
