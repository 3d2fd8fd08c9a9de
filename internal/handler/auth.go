package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler runs the provider sign-in flows and the session endpoints.
//
//   - HandleLogin        → redirect the browser to the provider
//   - HandleCallback     → check state, exchange the code, set the cookie
//   - HandleCodeExchange → same exchange for SPAs that obtained the code
//   - HandleLogout       → clear the cookie
//   - HandleMe           → the signed-in user's profile
type AuthHandler struct {
	auth      *service.AuthService
	cookieTTL time.Duration
	secure    bool
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secure marks cookies HTTPS-only.
func NewAuthHandler(svc *service.AuthService, cookieTTL time.Duration, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, cookieTTL: cookieTTL, secure: secure, logger: logger}
}

// HandleProviders lists the identity providers that are configured.
//
// HTTP: GET /auth/providers
func (h *AuthHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"providers": h.auth.Providers()})
}

// HandleLogin redirects to the provider's sign-in page.
//
// HTTP: GET /auth/{provider}/login
//
// A random state is stored in a short-lived HttpOnly cookie and checked on
// callback, so a callback this server did not start is refused.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	url, err := h.auth.AuthURL(chi.URLParam(r, "provider"), state)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleCallback completes the redirect flow.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("provider", provider))
		writeError(w, apperror.InvalidArgument("state", "invalid OAuth state"))
		return
	}

	// single use
	http.SetCookie(w, &http.Cookie{Name: stateCookieName, Value: "", Path: "/", MaxAge: -1})

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("provider", provider),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	res, err := h.auth.Login(r.Context(), provider, q.Get("code"))
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type codeExchangeRequest struct {
	Code string `json:"code"`
}

// HandleCodeExchange signs in with a code the client obtained itself.
//
// HTTP: POST /api/v1/auth/{provider}
// Body: {"code": "..."}
func (h *AuthHandler) HandleCodeExchange(w http.ResponseWriter, r *http.Request) {
	var req codeExchangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), chi.URLParam(r, "provider"), req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": res.Token,
		"token_type":   "bearer",
		"user":         res.User,
	})
}

// HandleLogout clears the token cookie. Tokens are stateless, so one that
// was copied elsewhere stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/v1/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
