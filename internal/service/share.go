package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
	"github.com/chrisokchen/bbdsl-platform/internal/sharehash"
)

// DefaultShareHashAttempts bounds hash re-draws after collisions.
const DefaultShareHashAttempts = 5

// ShareService issues and resolves share links.
type ShareService struct {
	shares      repository.ShareRepository
	users       repository.UserRepository
	hashes      sharehash.Generator
	maxAttempts int
	logger      *slog.Logger
}

// NewShareService creates a ShareService. maxAttempts <= 0 means
// DefaultShareHashAttempts.
func NewShareService(
	shares repository.ShareRepository,
	users repository.UserRepository,
	hashes sharehash.Generator,
	maxAttempts int,
	logger *slog.Logger,
) *ShareService {
	if maxAttempts <= 0 {
		maxAttempts = DefaultShareHashAttempts
	}
	return &ShareService{
		shares:      shares,
		users:       users,
		hashes:      hashes,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Create stores a snapshot of body under a fresh hash. ownerID may be empty
// for an anonymous share.
//
// A hash collision is detected by the store's UNIQUE constraint and answered
// by drawing a new hash. After maxAttempts collisions in a row the call
// fails with UpstreamUnavailable.
func (s *ShareService) Create(ctx context.Context, title, body, ownerID string) (*model.Share, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperror.InvalidArgument("yaml_content", "yaml_content is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = model.DefaultShareTitle
	}

	share := &model.Share{Title: title, Body: body, OwnerID: ownerID}
	for attempt := 1; ; attempt++ {
		hash, err := s.hashes.Generate()
		if err != nil {
			s.logger.Error("failed to generate share hash", slog.String("error", err.Error()))
			return nil, apperror.UpstreamUnavailable("share hash generator", err)
		}
		share.Hash = hash

		err = s.shares.CreateShare(ctx, share)
		if err == nil {
			break
		}
		if !errors.Is(err, apperror.ErrConflict) {
			s.logger.Error("failed to store share", slog.String("error", err.Error()))
			return nil, fmt.Errorf("creating share: %w", err)
		}

		s.logger.Warn("share hash collision",
			slog.String("hash", hash),
			slog.Int("attempt", attempt),
		)
		if attempt >= s.maxAttempts {
			return nil, apperror.UpstreamUnavailable("share hash generator",
				fmt.Errorf("%d consecutive hash collisions", attempt))
		}
	}

	if ownerID != "" {
		if u, err := s.users.GetUserByID(ctx, ownerID); err == nil {
			share.OwnerName = &u.Name
		}
	}

	s.logger.Info("share created",
		slog.String("hash", share.Hash),
		slog.Bool("anonymous", ownerID == ""),
	)
	return share, nil
}

// View resolves hash, counting one view. Hashes that cannot have been
// issued are reported as not found without touching the store.
func (s *ShareService) View(ctx context.Context, hash string) (*model.Share, error) {
	if !sharehash.Valid(hash) {
		return nil, apperror.NotFound("share", hash)
	}
	return s.shares.ViewShare(ctx, hash)
}
