// Package main is the entry point for the convention registry server.
//
// main only reads configuration, builds the collaborators and starts the
// server. Everything else lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chrisokchen/bbdsl-platform/internal/auth"
	"github.com/chrisokchen/bbdsl-platform/internal/config"
	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/engine/docker"
	"github.com/chrisokchen/bbdsl-platform/internal/ratelimit"
	"github.com/chrisokchen/bbdsl-platform/internal/repository/sqlite"
	"github.com/chrisokchen/bbdsl-platform/internal/server"
)

func main() {
	// === 1. CONFIGURATION ===
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	// JSON in production so log shippers can parse it, text locally.
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// === 3. DATABASE ===
	if cfg.DBPath != sqlite.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return err
		}
	}
	db, err := sqlite.New(cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// === 4. ENGINE ===
	// The engine is optional: without Docker the registry still serves reads,
	// and anything that needs validation answers 503.
	var eng engine.Engine
	dockerEngine, err := docker.New(docker.FromConfig(cfg), logger)
	if err != nil {
		logger.Warn("document engine unavailable, validation and export will return 503",
			slog.String("error", err.Error()),
		)
		eng = engine.Unavailable{Reason: err}
	} else {
		defer dockerEngine.Close()
		eng = dockerEngine
	}

	// === 5. AUTH ===
	var tokens *auth.TokenService
	if cfg.AuthEnabled() {
		tokens, err = auth.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("JWT_SECRET not set, sign-in is disabled")
	}
	providers := auth.NewProviders(cfg)

	// === 6. RATE LIMITING ===
	// Redis shares the counters between replicas; a single instance can keep
	// them in memory.
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		limiter = ratelimit.NewRedis(client, cfg.RateLimitPerMinute)
	} else {
		limiter = ratelimit.NewMemory(ctx, cfg.RateLimitPerMinute)
	}

	// === 7. SERVE ===
	srv := server.New(server.Config{
		Port:              cfg.Port,
		CORSOrigins:       cfg.CORSOrigins,
		SecureCookies:     cfg.IsProduction(),
		ShareHashAttempts: cfg.ShareHashMaxAttempts,
	}, server.Deps{
		Store:     db,
		Engine:    eng,
		Tokens:    tokens,
		Providers: providers,
		Limiter:   limiter,
	}, logger)

	return srv.Start(ctx)
}
