package model

import "time"

// DefaultDraftTitle is used when a draft is saved without a title.
const DefaultDraftTitle = "Untitled"

// Draft is a private, unversioned work-in-progress document.
// Only its owner can see or change it.
type Draft struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"yaml_content"`
	OwnerID   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DraftPatch is a partial update. A nil field is left untouched.
type DraftPatch struct {
	Title *string `json:"title" validate:"omitempty,max=200"`
	Body  *string `json:"yaml_content"`
}
