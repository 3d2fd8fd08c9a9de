// Package repository declares the persistence interfaces of the registry.
//
// Services depend on these interfaces, never on a concrete database.
// Implementations must enforce uniqueness (namespace prefix, convention
// namespace+version, one rating per user and convention, share hash) with
// store constraints and report violations as apperror.ErrConflict. Counters
// must be incremented by the store in a single statement.
package repository

import (
	"context"

	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByProviderKey(ctx context.Context, provider, key string) (*model.User, error)
	// LinkOrCreateUser resolves an identity to exactly one account, in one
	// transaction: an existing account with the provider key is refreshed;
	// otherwise an account with the same email gets the key attached;
	// otherwise a new account is created.
	LinkOrCreateUser(ctx context.Context, id model.Identity) (*model.User, error)
}

type NamespaceRepository interface {
	CreateNamespace(ctx context.Context, ns *model.Namespace) error
	GetNamespace(ctx context.Context, prefix string) (*model.Namespace, error)
	SearchNamespaces(ctx context.Context, query string, page model.PageRequest) ([]model.Namespace, int, error)
}

type ConventionRepository interface {
	CreateConvention(ctx context.Context, c *model.Convention) error
	GetConvention(ctx context.Context, id string) (*model.Convention, error)
	GetConventionByVersion(ctx context.Context, namespace, version string) (*model.Convention, error)
	LatestConvention(ctx context.Context, namespace string) (*model.Convention, error)
	ConventionExists(ctx context.Context, id string) (bool, error)
	UpdateConvention(ctx context.Context, id string, patch model.ConventionPatch) error
	DeleteConvention(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) (int64, error)
	SearchConventions(ctx context.Context, f model.SearchFilter, page model.PageRequest) ([]model.Convention, int, error)
	ListVersions(ctx context.Context, namespace string) ([]model.VersionInfo, error)
}

type CommunityRepository interface {
	UpsertRating(ctx context.Context, r *model.Rating) error
	RatingStats(ctx context.Context, conventionID, viewerID string) (*model.RatingStats, error)
	CreateComment(ctx context.Context, c *model.Comment) error
	ListComments(ctx context.Context, conventionID string, page model.PageRequest) ([]model.Comment, int, error)
}

type RecommendationRepository interface {
	ViewerAffinity(ctx context.Context, userID string) (*model.Affinity, error)
	PopularConventions(ctx context.Context, limit int) ([]model.Recommendation, error)
	UnratedByViewer(ctx context.Context, userID string, limit int) ([]model.Recommendation, error)
}

type DraftRepository interface {
	CreateDraft(ctx context.Context, d *model.Draft) error
	GetDraft(ctx context.Context, id, ownerID string) (*model.Draft, error)
	ListDrafts(ctx context.Context, ownerID string, page model.PageRequest) ([]model.Draft, int, error)
	UpdateDraft(ctx context.Context, d *model.Draft) error
	DeleteDraft(ctx context.Context, id, ownerID string) error
}

type ShareRepository interface {
	CreateShare(ctx context.Context, s *model.Share) error
	// ViewShare increments the view counter and returns the updated share.
	ViewShare(ctx context.Context, hash string) (*model.Share, error)
}

// Store bundles every repository. The SQLite implementation satisfies it.
type Store interface {
	UserRepository
	NamespaceRepository
	ConventionRepository
	CommunityRepository
	RecommendationRepository
	DraftRepository
	ShareRepository
}
