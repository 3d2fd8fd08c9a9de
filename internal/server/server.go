// Package server wires handlers, middleware and routes into an HTTP server.
//
// It is the composition root of the API: the store, engine, token service,
// identity providers and rate limiter are built by the caller and handed in
// through Deps; New builds the services and handlers on top of them.
//
//	Deps.Store ─┬─ RegistryService ── RegistryHandler
//	            ├─ CommunityService ─┐
//	            ├─ RecommendationService ─ CommunityHandler
//	            ├─ DraftService ───── DraftHandler
//	            ├─ ShareService ───── ShareHandler
//	            └─ AuthService ────── AuthHandler
//	Deps.Engine ── ExportService ──── EngineHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/handler"
	"github.com/chrisokchen/bbdsl-platform/internal/middleware"
	"github.com/chrisokchen/bbdsl-platform/internal/ratelimit"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
	"github.com/chrisokchen/bbdsl-platform/internal/service"
	"github.com/chrisokchen/bbdsl-platform/internal/sharehash"
)

// Version is reported by /health.
const Version = "0.1.0"

// Config holds the HTTP-level settings.
type Config struct {
	Port          int
	CORSOrigins   []string
	SecureCookies bool
	// ShareHashAttempts bounds share hash re-draws; <= 0 means the default.
	ShareHashAttempts int
}

// Deps are the collaborators the server is built on.
//
// Tokens may be nil, which disables sign-in: protected routes answer 401
// and logins 503. Limiter may be nil, which disables rate limiting.
type Deps struct {
	Store     repository.Store
	Engine    engine.Engine
	Tokens    *auth.TokenService
	Providers map[string]auth.IdentityProvider
	Limiter   ratelimit.Limiter
	Hashes    sharehash.Generator
}

// Server is the registry's HTTP server.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

// New builds the services, handlers and routes.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if deps.Hashes == nil {
		deps.Hashes = sharehash.New()
	}
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes mounts every route.
//
// Middleware order: RequestID, RealIP, Logger, Recoverer, CORS, then
// OptionalAuth on everything so handlers can see a signed-in caller.
// Writes that need an account add RequireAuth; anonymous writes and
// counters add RateLimit.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(s.config.CORSOrigins))
	r.Use(auth.OptionalAuth(s.deps.Tokens))

	store := s.deps.Store
	registry := service.NewRegistryService(store, store, s.deps.Engine, s.logger)
	community := service.NewCommunityService(store, store, store, s.logger)
	recommendations := service.NewRecommendationService(store, s.logger)
	drafts := service.NewDraftService(store, s.logger)
	shares := service.NewShareService(store, store, s.deps.Hashes, s.config.ShareHashAttempts, s.logger)
	authSvc := service.NewAuthService(store, s.deps.Tokens, s.deps.Providers, s.logger)
	export := service.NewExportService(s.deps.Engine, s.logger)

	cookieTTL := auth.DefaultTTL
	if s.deps.Tokens != nil {
		cookieTTL = s.deps.Tokens.TTL()
	}

	authHandler := handler.NewAuthHandler(authSvc, cookieTTL, s.config.SecureCookies, s.logger)
	registryHandler := handler.NewRegistryHandler(registry, s.logger)
	communityHandler := handler.NewCommunityHandler(community, recommendations, s.logger)
	draftHandler := handler.NewDraftHandler(drafts, s.logger)
	shareHandler := handler.NewShareHandler(shares, s.logger)
	engineHandler := handler.NewEngineHandler(export, s.logger)

	requireAuth := auth.RequireAuth(s.deps.Tokens)
	limited := s.rateLimit()

	r.Get("/health", s.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/providers", authHandler.HandleProviders)
		r.Get("/{provider}/login", authHandler.HandleLogin)
		r.Get("/{provider}/callback", authHandler.HandleCallback)
		r.Post("/logout", authHandler.HandleLogout)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/{provider}", authHandler.HandleCodeExchange)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)

		r.Route("/conventions", func(r chi.Router) {
			r.Get("/", registryHandler.HandleSearch)
			r.With(requireAuth).Post("/", registryHandler.HandleCreate)

			r.Get("/ns/{namespace}/versions", registryHandler.HandleVersions)
			r.Get("/ns/{namespace}/latest", registryHandler.HandleLatest)
			r.Get("/ns/{namespace}/{version}", registryHandler.HandleByVersion)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", registryHandler.HandleGet)
				r.With(requireAuth).Put("/", registryHandler.HandleUpdate)
				r.With(requireAuth).Delete("/", registryHandler.HandleDelete)
				r.With(limited).Post("/download", registryHandler.HandleDownload)

				r.Get("/ratings", communityHandler.HandleRatingStats)
				r.With(requireAuth).Post("/ratings", communityHandler.HandleRate)
				r.Get("/comments", communityHandler.HandleListComments)
				r.With(requireAuth).Post("/comments", communityHandler.HandlePostComment)
			})
		})

		r.Route("/namespaces", func(r chi.Router) {
			r.Get("/", registryHandler.HandleSearchNamespaces)
			r.With(requireAuth).Post("/", registryHandler.HandleClaimNamespace)
			r.Get("/{prefix}", registryHandler.HandleGetNamespace)
		})

		r.Get("/recommendations", communityHandler.HandleRecommendations)

		r.Route("/drafts", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", draftHandler.HandleList)
			r.Post("/", draftHandler.HandleCreate)
			r.Get("/{id}", draftHandler.HandleGet)
			r.Put("/{id}", draftHandler.HandleUpdate)
			r.Delete("/{id}", draftHandler.HandleDelete)
		})

		r.Route("/share", func(r chi.Router) {
			r.Use(limited)
			r.Post("/", shareHandler.HandleCreate)
			r.Get("/{hash}", shareHandler.HandleView)
		})

		r.Post("/validate", engineHandler.HandleValidate)
		r.Post("/export/{format}", engineHandler.HandleExport)
		r.Post("/diff", engineHandler.HandleDiff)
	})
}

func (s *Server) rateLimit() func(http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.RateLimit(s.deps.Limiter, s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"status":"ok","version":%q}`+"\n", Version)
}

// Start serves until ctx is cancelled, then shuts down gracefully, giving
// in-flight requests 30 seconds to finish.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("version", Version),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
