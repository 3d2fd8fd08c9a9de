// Package model defines the data structures used throughout the registry.
package model

import "time"

// Identity providers a user can sign in with.
const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"
)

// User is a registered account.
//
// A user may carry one external key per identity provider. Each key is
// globally unique when set; an empty string means "not linked" and is stored
// as NULL so the UNIQUE constraint only applies to real keys.
//
// The internal ID is an xid, independent of any provider's numbering.
type User struct {
	ID        string    `json:"id"`
	GitHubID  string    `json:"-"`
	GoogleID  string    `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProviderKey returns the external key the user holds for provider, or "".
func (u *User) ProviderKey(provider string) string {
	switch provider {
	case ProviderGitHub:
		return u.GitHubID
	case ProviderGoogle:
		return u.GoogleID
	}
	return ""
}

// SetProviderKey attaches an external key for provider.
func (u *User) SetProviderKey(provider, key string) {
	switch provider {
	case ProviderGitHub:
		u.GitHubID = key
	case ProviderGoogle:
		u.GoogleID = key
	}
}

// Identity is what an identity provider reports after a successful code exchange.
type Identity struct {
	Provider   string
	ExternalID string
	Name       string
	Email      string
	AvatarURL  string
}
