package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/chrisokchen/bbdsl-platform/internal/config"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

// ErrInvalidCode means the provider refused the authorization code.
var ErrInvalidCode = errors.New("auth: authorization code rejected")

// IdentityProvider turns a provider authorization code into an identity.
type IdentityProvider interface {
	// Name is the provider key, e.g. model.ProviderGitHub.
	Name() string
	// AuthURL is where the browser is sent to sign in.
	AuthURL(state string) string
	// Exchange trades code for the signed-in user's profile.
	Exchange(ctx context.Context, code string) (*model.Identity, error)
}

// NewProviders builds one IdentityProvider per provider that has a client
// ID configured.
func NewProviders(cfg *config.Config) map[string]IdentityProvider {
	out := map[string]IdentityProvider{}
	if cfg.GitHubClientID != "" {
		out[model.ProviderGitHub] = NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL)
	}
	if cfg.GoogleClientID != "" {
		out[model.ProviderGoogle] = NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	}
	return out
}

// exchangeToken trades code for an OAuth token. A refusal by the provider
// is reported as ErrInvalidCode; transport problems are returned as is.
func exchangeToken(ctx context.Context, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCode, re.ErrorCode)
		}
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}
	return tok, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding %s response: %w", url, err)
	}
	return nil
}

// GitHubUser is the part of the GitHub /user response we read.
type GitHubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// GitHubProvider signs users in with a GitHub OAuth App.
type GitHubProvider struct {
	config    *oauth2.Config
	userURL   string
	emailsURL string
}

// NewGitHubProvider requests read:user and user:email so that a hidden
// profile email can still be read from /user/emails.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL:   "https://api.github.com/user",
		emailsURL: "https://api.github.com/user/emails",
	}
}

func (p *GitHubProvider) Name() string { return model.ProviderGitHub }

func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange returns the GitHub profile. The external id is GitHub's numeric
// user id, which survives renames. The display name falls back to the login.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*model.Identity, error) {
	tok, err := exchangeToken(ctx, p.config, code)
	if err != nil {
		return nil, err
	}
	client := p.config.Client(ctx, tok)

	var u GitHubUser
	if err := getJSON(ctx, client, p.userURL, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	email := u.Email
	if email == "" {
		// Private profile email; ask the emails endpoint. Failure is not fatal.
		var emails []githubEmail
		if err := getJSON(ctx, client, p.emailsURL, &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &model.Identity{
		Provider:   model.ProviderGitHub,
		ExternalID: strconv.FormatInt(u.ID, 10),
		Name:       name,
		Email:      email,
		AvatarURL:  u.AvatarURL,
	}, nil
}

// GoogleUser is the OpenID Connect userinfo response.
type GoogleUser struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// GoogleProvider signs users in with Google OpenID Connect.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, callbackURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
	}
}

func (p *GoogleProvider) Name() string { return model.ProviderGoogle }

func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange returns the Google profile. Unverified emails are dropped so
// they cannot be used to link into someone else's account.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.Identity, error) {
	tok, err := exchangeToken(ctx, p.config, code)
	if err != nil {
		return nil, err
	}

	var u GoogleUser
	if err := getJSON(ctx, p.config.Client(ctx, tok), p.userInfoURL, &u); err != nil {
		return nil, err
	}
	if u.Sub == "" {
		return nil, fmt.Errorf("auth: Google returned a user without a subject")
	}

	email := u.Email
	if !u.EmailVerified {
		email = ""
	}
	return &model.Identity{
		Provider:   model.ProviderGoogle,
		ExternalID: u.Sub,
		Name:       u.Name,
		Email:      email,
		AvatarURL:  u.Picture,
	}, nil
}
