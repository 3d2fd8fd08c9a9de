package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
)

// MaxDraftTitleLength bounds draft titles.
const MaxDraftTitleLength = 200

// DraftService manages private drafts. A draft is only visible to its
// owner; for anyone else it does not exist.
type DraftService struct {
	repo   repository.DraftRepository
	logger *slog.Logger
}

func NewDraftService(repo repository.DraftRepository, logger *slog.Logger) *DraftService {
	return &DraftService{repo: repo, logger: logger}
}

func (s *DraftService) Create(ctx context.Context, title, body, ownerID string) (*model.Draft, error) {
	title, err := draftTitle(title)
	if err != nil {
		return nil, err
	}

	d := &model.Draft{Title: title, Body: body, OwnerID: ownerID}
	if err := s.repo.CreateDraft(ctx, d); err != nil {
		s.logger.Error("failed to create draft", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating draft: %w", err)
	}
	s.logger.Info("draft created", slog.String("id", d.ID))
	return d, nil
}

func (s *DraftService) Get(ctx context.Context, id, ownerID string) (*model.Draft, error) {
	return s.repo.GetDraft(ctx, id, ownerID)
}

// List returns one page of the owner's drafts, most recently edited first.
func (s *DraftService) List(ctx context.Context, ownerID string, page model.PageRequest) (model.Page[model.Draft], error) {
	if err := checkPage(page); err != nil {
		return model.Page[model.Draft]{}, err
	}
	items, total, err := s.repo.ListDrafts(ctx, ownerID, page)
	if err != nil {
		s.logger.Error("failed to list drafts", slog.String("error", err.Error()))
		return model.Page[model.Draft]{}, fmt.Errorf("listing drafts: %w", err)
	}
	return model.NewPage(items, total, page), nil
}

// Update applies patch. Only supplied fields change.
func (s *DraftService) Update(ctx context.Context, id string, patch model.DraftPatch, ownerID string) (*model.Draft, error) {
	d, err := s.repo.GetDraft(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		if d.Title, err = draftTitle(*patch.Title); err != nil {
			return nil, err
		}
	}
	if patch.Body != nil {
		d.Body = *patch.Body
	}

	if err := s.repo.UpdateDraft(ctx, d); err != nil {
		return nil, fmt.Errorf("updating draft: %w", err)
	}
	return d, nil
}

func (s *DraftService) Delete(ctx context.Context, id, ownerID string) error {
	if err := s.repo.DeleteDraft(ctx, id, ownerID); err != nil {
		return err
	}
	s.logger.Info("draft deleted", slog.String("id", id))
	return nil
}

func draftTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.DefaultDraftTitle, nil
	}
	if len([]rune(title)) > MaxDraftTitleLength {
		return "", apperror.InvalidArgument("title",
			fmt.Sprintf("title must be at most %d characters", MaxDraftTitleLength))
	}
	return title, nil
}
