package model

import "time"

// DefaultVersion is used when a convention is published without a version.
const DefaultVersion = "1.0.0"

// Convention is a versioned document published under a namespace.
//
// (Namespace, Version) is unique across the registry. Downloads only ever
// grows, and only the author may change or delete the record.
//
// Body is left empty in search results; it is only loaded for single-record
// lookups.
type Convention struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Namespace   string    `json:"namespace"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Body        string    `json:"yaml_content,omitempty"`
	Downloads   int64     `json:"downloads"`
	AuthorID    string    `json:"author_id"`
	AuthorName  string    `json:"author_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConventionInput holds the caller-supplied fields of a new convention.
type ConventionInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Namespace   string   `json:"namespace" validate:"required,max=128"`
	Version     string   `json:"version" validate:"max=64"`
	Description string   `json:"description" validate:"max=5000"`
	Tags        []string `json:"tags" validate:"max=32,dive,max=64"`
	Body        string   `json:"yaml_content" validate:"required"`
}

// ConventionPatch is a partial update. A nil field is left untouched.
type ConventionPatch struct {
	Name        *string   `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	Tags        *[]string `json:"tags" validate:"omitempty,max=32,dive,max=64"`
	Body        *string   `json:"yaml_content" validate:"omitempty,min=1"`
}

// Empty reports whether the patch changes nothing.
func (p ConventionPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Tags == nil && p.Body == nil
}

// VersionInfo is one entry of a namespace's version history.
type VersionInfo struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Downloads int64     `json:"downloads"`
}

// SortOrder selects the ordering of a convention search.
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortOldest    SortOrder = "oldest"
	SortDownloads SortOrder = "downloads"
	SortName      SortOrder = "name"
)

// ParseSort maps a query value to a SortOrder. Unknown values fall back to newest.
func ParseSort(s string) SortOrder {
	switch SortOrder(s) {
	case SortOldest, SortDownloads, SortName:
		return SortOrder(s)
	}
	return SortNewest
}

// SearchFilter narrows a convention search. Empty fields do not filter.
//
//   - Query matches name or namespace, case-insensitive substring
//   - Namespace matches exactly
//   - Tag and Author are case-insensitive substrings
type SearchFilter struct {
	Query     string
	Namespace string
	Tag       string
	Author    string
	Sort      SortOrder
}
