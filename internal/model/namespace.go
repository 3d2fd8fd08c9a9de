package model

import "time"

// Namespace is a claimed prefix that conventions are published under.
// The first claim wins and ownership never changes.
type Namespace struct {
	ID          string    `json:"id"`
	Prefix      string    `json:"prefix"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	OwnerName   string    `json:"owner_name"`
	CreatedAt   time.Time `json:"created_at"`
}

// NamespaceInput holds the caller-supplied fields of a namespace claim.
type NamespaceInput struct {
	Prefix      string `json:"prefix"`
	DisplayName string `json:"display_name" validate:"max=200"`
	Description string `json:"description" validate:"max=5000"`
}
