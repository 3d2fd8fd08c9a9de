// Package ratelimit throttles anonymous writes per client key.
//
// Two Limiter implementations exist. Redis shares one fixed window per key
// across every server process; Memory keeps a token bucket per key inside
// one process and is used when no Redis URL is configured.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether one more request for key is allowed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Memory idle-entry settings.
const (
	memoryCleanupInterval = time.Minute
	memoryClientTTL       = 3 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Memory is an in-process Limiter allowing perMinute requests per key with
// a burst of the same size.
type Memory struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	perMinute int
	now       func() time.Time
}

var _ Limiter = (*Memory)(nil)

// NewMemory creates a Memory limiter. Idle keys are dropped in the
// background until ctx is cancelled.
func NewMemory(ctx context.Context, perMinute int) *Memory {
	perMinute = max(perMinute, 1)
	m := &Memory{
		buckets:   make(map[string]*bucket),
		perMinute: perMinute,
		now:       time.Now,
	}
	go m.cleanup(ctx)
	return m
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.perMinute)), m.perMinute),
		}
		m.buckets[key] = b
	}
	now := m.now()
	b.lastSeen = now
	return b.limiter.AllowN(now, 1), nil
}

func (m *Memory) cleanup(ctx context.Context) {
	ticker := time.NewTicker(memoryCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Memory) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-memoryClientTTL)
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
