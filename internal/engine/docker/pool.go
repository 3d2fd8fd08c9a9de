package docker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// containerAPI is the part of the Docker client the pool needs.
type containerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Pool keeps a number of idle engine containers running so that a call
// does not pay for container start-up. Each container serves one call and
// is then removed; the manager goroutine replaces it.
type Pool struct {
	api        containerAPI
	config     Config
	logger     *slog.Logger
	containers chan string
	done       chan struct{}
	wg         sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once

	retryDelay time.Duration
	idleDelay  time.Duration
}

func NewPool(api containerAPI, cfg Config, logger *slog.Logger) *Pool {
	return &Pool{
		api:        api,
		config:     cfg,
		logger:     logger,
		containers: make(chan string, cfg.PoolSize),
		done:       make(chan struct{}),
		retryDelay: time.Second,
		idleDelay:  100 * time.Millisecond,
	}
}

// Start launches the manager. Calling it again is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("starting engine container pool", slog.Int("pool_size", p.config.PoolSize))
		p.wg.Add(1)
		go p.manager()
	})
}

// Stop ends the manager and removes every idle container.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("stopping engine container pool")
		close(p.done)
		p.wg.Wait()

		for {
			select {
			case id := <-p.containers:
				p.Remove(id)
			default:
				return
			}
		}
	})
}

// Acquire takes a warm container out of the pool, waiting until one is
// ready or ctx ends. The caller owns the container and must Remove it.
func (p *Pool) Acquire(ctx context.Context) (string, error) {
	select {
	case id := <-p.containers:
		return id, nil
	case <-p.done:
		return "", fmt.Errorf("engine pool stopped")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Idle reports how many warm containers are waiting.
func (p *Pool) Idle() int {
	return len(p.containers)
}

func (p *Pool) manager() {
	defer p.wg.Done()

	for {
		delay := p.idleDelay
		if len(p.containers) < cap(p.containers) {
			id, err := p.create()
			if err != nil {
				p.logger.Error("failed to create engine container", slog.String("error", err.Error()))
				delay = p.retryDelay
			} else {
				select {
				case p.containers <- id:
					continue
				case <-p.done:
					p.Remove(id)
					return
				}
			}
		}

		select {
		case <-p.done:
			return
		case <-time.After(delay):
		}
	}
}

// create starts an idle container running `sleep infinity` with no network
// and a read-only root filesystem.
func (p *Pool) create() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hostConfig := &container.HostConfig{
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:   p.config.MemoryLimit,
			NanoCPUs: int64(p.config.CPULimit * 1e9),
		},
		ReadonlyRootfs: true,
	}

	resp, err := p.api.ContainerCreate(ctx, &container.Config{
		Image:     p.config.Image,
		Cmd:       []string{"sleep", "infinity"},
		User:      "nobody",
		Labels:    map[string]string{"app": "bbdsl-engine"},
		OpenStdin: false,
	}, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("ContainerCreate failed: %w", err)
	}

	if err := p.api.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.Remove(resp.ID)
		return "", fmt.Errorf("ContainerStart failed: %w", err)
	}
	return resp.ID, nil
}

// Remove force-removes a container, logging but otherwise ignoring failures.
func (p *Pool) Remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		p.logger.Warn("failed to remove engine container", slog.String("id", id), slog.String("error", err.Error()))
	}
}
