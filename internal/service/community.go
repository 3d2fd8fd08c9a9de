package service

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
)

// Rating and comment limits.
const (
	MinScore         = 1
	MaxScore         = 5
	MaxCommentLength = 2000
)

// CommunityService handles ratings and comments on conventions.
type CommunityService struct {
	conventions repository.ConventionRepository
	community   repository.CommunityRepository
	users       repository.UserRepository
	logger      *slog.Logger
}

func NewCommunityService(
	conventions repository.ConventionRepository,
	community repository.CommunityRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CommunityService {
	return &CommunityService{
		conventions: conventions,
		community:   community,
		users:       users,
		logger:      logger,
	}
}

// Rate records userID's score for a convention. Rating again overwrites
// the earlier score; there is never more than one rating per user.
func (s *CommunityService) Rate(ctx context.Context, conventionID, userID string, score int) (*model.Rating, error) {
	if score < MinScore || score > MaxScore {
		return nil, apperror.InvalidArgument("score",
			fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore))
	}
	if err := s.requireConvention(ctx, conventionID); err != nil {
		return nil, err
	}

	r := &model.Rating{ConventionID: conventionID, UserID: userID, Score: score}
	if err := s.community.UpsertRating(ctx, r); err != nil {
		if !isClientError(err) {
			s.logger.Error("failed to store rating",
				slog.String("convention_id", conventionID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("rating convention: %w", err)
	}

	s.logger.Info("rating upserted",
		slog.String("convention_id", conventionID),
		slog.String("user_id", userID),
		slog.Int("score", score),
	)
	return r, nil
}

// RatingStats returns the average (0 when unrated) and count of ratings.
// viewerID may be empty; when set, the viewer's own score is included.
func (s *CommunityService) RatingStats(ctx context.Context, conventionID, viewerID string) (*model.RatingStats, error) {
	if err := s.requireConvention(ctx, conventionID); err != nil {
		return nil, err
	}
	stats, err := s.community.RatingStats(ctx, conventionID, viewerID)
	if err != nil {
		s.logger.Error("failed to aggregate ratings",
			slog.String("convention_id", conventionID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}
	return stats, nil
}

// PostComment adds a comment by userID. The author's current display name
// is copied into the comment and never updated afterwards.
func (s *CommunityService) PostComment(ctx context.Context, conventionID, userID, content string) (*model.Comment, error) {
	if n := utf8.RuneCountInString(content); n < 1 || n > MaxCommentLength {
		return nil, apperror.InvalidArgument("content",
			fmt.Sprintf("content must be between 1 and %d characters", MaxCommentLength))
	}
	if err := s.requireConvention(ctx, conventionID); err != nil {
		return nil, err
	}

	author, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving comment author: %w", err)
	}

	c := &model.Comment{
		ConventionID: conventionID,
		UserID:       userID,
		AuthorName:   author.Name,
		Content:      content,
	}
	if err := s.community.CreateComment(ctx, c); err != nil {
		if !isClientError(err) {
			s.logger.Error("failed to store comment",
				slog.String("convention_id", conventionID),
				slog.String("error", err.Error()),
			)
		}
		return nil, fmt.Errorf("posting comment: %w", err)
	}

	s.logger.Info("comment posted",
		slog.String("id", c.ID),
		slog.String("convention_id", conventionID),
	)
	return c, nil
}

// ListComments returns one page of comments, newest first.
func (s *CommunityService) ListComments(ctx context.Context, conventionID string, page model.PageRequest) (model.Page[model.Comment], error) {
	if err := checkPage(page); err != nil {
		return model.Page[model.Comment]{}, err
	}
	if err := s.requireConvention(ctx, conventionID); err != nil {
		return model.Page[model.Comment]{}, err
	}
	items, total, err := s.community.ListComments(ctx, conventionID, page)
	if err != nil {
		s.logger.Error("failed to list comments",
			slog.String("convention_id", conventionID),
			slog.String("error", err.Error()),
		)
		return model.Page[model.Comment]{}, fmt.Errorf("listing comments: %w", err)
	}
	return model.NewPage(items, total, page), nil
}

func (s *CommunityService) requireConvention(ctx context.Context, id string) error {
	ok, err := s.conventions.ConventionExists(ctx, id)
	if err != nil {
		return fmt.Errorf("checking convention: %w", err)
	}
	if !ok {
		return apperror.NotFound("convention", id)
	}
	return nil
}
