package docker

import (
	"strings"
	"time"

	"github.com/chrisokchen/bbdsl-platform/internal/config"
)

// Config holds the settings of the Docker-backed engine.
type Config struct {
	// Image is the engine image. It must provide Command and `sleep`.
	Image string
	// Command is run once per call inside a pre-warmed container. It reads
	// one JSON request on stdin and writes one JSON response on stdout.
	Command []string
	// MemoryLimit is the container memory cap in bytes.
	MemoryLimit int64
	// CPULimit is the number of CPUs a container may use.
	CPULimit float64
	// Timeout bounds a single engine call.
	Timeout time.Duration
	// PoolSize is the number of warm containers kept ready.
	PoolSize int
}

// DefaultConfig is used by tests and by the CLI.
func DefaultConfig() Config {
	return Config{
		Image:       "ghcr.io/chrisokchen/bbdsl:latest",
		Command:     []string{"bbdsl-rpc"},
		MemoryLimit: 256 * 1024 * 1024,
		CPULimit:    1,
		Timeout:     10 * time.Second,
		PoolSize:    2,
	}
}

// FromConfig maps the ENGINE_* settings onto a Config.
func FromConfig(c *config.Config) Config {
	cfg := DefaultConfig()
	cfg.Image = c.EngineImage
	if fields := strings.Fields(c.EngineCommand); len(fields) > 0 {
		cfg.Command = fields
	}
	cfg.MemoryLimit = c.EngineMemoryMB * 1024 * 1024
	cfg.Timeout = c.EngineTimeout
	cfg.PoolSize = c.EnginePoolSize
	return cfg
}
