package model

import "time"

// DefaultShareTitle is used when a share is created without a title.
const DefaultShareTitle = "Shared Convention"

// Share is a public snapshot of a document, addressed by a short hash.
//
// OwnerID is empty for anonymous shares. OwnerName is resolved on read and
// is nil when there is no owner.
type Share struct {
	ID        string    `json:"id"`
	Hash      string    `json:"hash"`
	Title     string    `json:"title"`
	Body      string    `json:"yaml_content"`
	OwnerID   string    `json:"-"`
	OwnerName *string   `json:"author_name"`
	Views     int64     `json:"views"`
	CreatedAt time.Time `json:"created_at"`
}
