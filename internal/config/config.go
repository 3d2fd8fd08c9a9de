// Package config loads runtime settings from the environment.
//
// Values come from environment variables mapped onto Config with
// caarlos0/env struct tags. Outside production a local .env file is read
// first; variables already set in the environment take precedence over it.
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the registry server and CLI.
type Config struct {
	// Server
	Port     int    `env:"PORT"      envDefault:"8080"`
	AppEnv   string `env:"APP_ENV"   envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage
	DBPath string `env:"DB_PATH" envDefault:"data/bbdsl.db"`

	// Tokens. An empty secret disables sign-in; read-only routes still work.
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	// Identity providers. A provider without a client ID is not offered.
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `env:"GITHUB_CALLBACK_URL"`
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	// External validation/export/diff engine, run in Docker.
	EngineImage    string        `env:"ENGINE_IMAGE"     envDefault:"ghcr.io/chrisokchen/bbdsl:latest"`
	EngineCommand  string        `env:"ENGINE_COMMAND"   envDefault:"bbdsl-rpc"`
	EngineTimeout  time.Duration `env:"ENGINE_TIMEOUT"   envDefault:"10s"`
	EnginePoolSize int           `env:"ENGINE_POOL_SIZE" envDefault:"2"`
	EngineMemoryMB int64         `env:"ENGINE_MEMORY_MB" envDefault:"256"`

	// Rate limiting of anonymous writes. Redis is used when REDIS_URL is set,
	// an in-process limiter otherwise.
	RedisURL           string `env:"REDIS_URL"`
	RateLimitPerMinute int    `env:"RATE_LIMIT_PER_MINUTE" envDefault:"30"`

	ShareHashMaxAttempts int `env:"SHARE_HASH_MAX_ATTEMPTS" envDefault:"5"`
}

// Load reads .env (outside production) and parses the environment.
func Load() (*Config, error) {
	if !strings.EqualFold(lookupAppEnv(), "production") {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading .env: %w", err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	case c.JWTSecret != "" && len(c.JWTSecret) < 16:
		return errors.New("config: JWT_SECRET must be at least 16 characters")
	case c.RateLimitPerMinute <= 0:
		return errors.New("config: RATE_LIMIT_PER_MINUTE must be positive")
	case c.ShareHashMaxAttempts <= 0:
		return errors.New("config: SHARE_HASH_MAX_ATTEMPTS must be positive")
	case c.EnginePoolSize <= 0:
		return errors.New("config: ENGINE_POOL_SIZE must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// AuthEnabled reports whether tokens can be issued.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}

// SlogLevel maps LOG_LEVEL onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func lookupAppEnv() string {
	var early struct {
		AppEnv string `env:"APP_ENV"`
	}
	_ = env.Parse(&early)
	return early.AppEnv
}
