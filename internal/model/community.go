package model

import "time"

// Rating is one user's score for one convention. There is at most one
// rating per (convention, user); re-rating overwrites the score in place.
type Rating struct {
	ID           string    `json:"id"`
	ConventionID string    `json:"convention_id"`
	UserID       string    `json:"user_id"`
	Score        int       `json:"score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RatingStats aggregates every rating of a convention.
// Average is 0 when Count is 0. UserRating is set only for a signed-in viewer
// who has rated the convention.
type RatingStats struct {
	ConventionID string  `json:"convention_id"`
	Average      float64 `json:"average"`
	Count        int     `json:"count"`
	UserRating   *int    `json:"user_rating"`
}

// Comment is a permanent remark on a convention.
//
// AuthorName is copied from the user at posting time and is never re-read
// from the users table.
type Comment struct {
	ID           string    `json:"id"`
	ConventionID string    `json:"convention_id"`
	UserID       string    `json:"user_id"`
	AuthorName   string    `json:"author_name"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recommendation is a convention surfaced by the recommendation feed.
// AvgRating is nil for conventions nobody has rated.
type Recommendation struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Namespace   string   `json:"namespace"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Downloads   int64    `json:"downloads"`
	RatingCount int      `json:"rating_count"`
	AvgRating   *float64 `json:"avg_rating"`
	AuthorName  string   `json:"author_name"`
}

// Affinity is the set of tags and namespaces a viewer has shown interest in,
// through their own conventions and the ones they rated.
type Affinity struct {
	Tags       []string
	Namespaces []string
}
