package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
)

// Recommendation limits.
const (
	DefaultRecommendationLimit = 10
	MaxRecommendationLimit     = 50
)

// RecommendationService builds the recommendation feed.
type RecommendationService struct {
	repo   repository.RecommendationRepository
	logger *slog.Logger
}

func NewRecommendationService(repo repository.RecommendationRepository, logger *slog.Logger) *RecommendationService {
	return &RecommendationService{repo: repo, logger: logger}
}

// Recommend returns up to limit conventions for viewerID.
//
// Anonymous viewers (empty viewerID) get the most downloaded conventions.
// Signed-in viewers get conventions they neither wrote nor rated, the most
// rated first, then the most downloaded.
//
// KNOWN GAP: the viewer's tag and namespace affinity is gathered but does
// not filter or rank the result. The feed stays popularity-based until the
// intended use of the affinity is decided; it is only logged for now.
func (s *RecommendationService) Recommend(ctx context.Context, viewerID string, limit int) ([]model.Recommendation, error) {
	if limit < 1 || limit > MaxRecommendationLimit {
		return nil, apperror.InvalidArgument("limit",
			fmt.Sprintf("limit must be between 1 and %d", MaxRecommendationLimit))
	}

	var (
		recs []model.Recommendation
		err  error
	)
	if viewerID == "" {
		recs, err = s.repo.PopularConventions(ctx, limit)
	} else {
		affinity, affErr := s.repo.ViewerAffinity(ctx, viewerID)
		if affErr != nil {
			s.logger.Error("failed to compute viewer affinity",
				slog.String("user_id", viewerID),
				slog.String("error", affErr.Error()),
			)
			return nil, fmt.Errorf("computing affinity: %w", affErr)
		}
		s.logger.Debug("viewer affinity",
			slog.String("user_id", viewerID),
			slog.Any("tags", affinity.Tags),
			slog.Any("namespaces", affinity.Namespaces),
		)
		recs, err = s.repo.UnratedByViewer(ctx, viewerID, limit)
	}
	if err != nil {
		s.logger.Error("failed to build recommendations", slog.String("error", err.Error()))
		return nil, fmt.Errorf("building recommendations: %w", err)
	}

	if recs == nil {
		recs = []model.Recommendation{}
	}
	return recs, nil
}
