package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis connection timeouts.
const (
	dialTimeout  = 3 * time.Second
	readTimeout  = 2 * time.Second
	writeTimeout = 2 * time.Second
	pingTimeout  = 2 * time.Second
)

const keyPrefix = "bbdsl:ratelimit:"

// NewRedisClient parses redisURL, connects and pings.
func NewRedisClient(ctx context.Context, redisURL string, logger *slog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid redis URL: %w", err)
	}
	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.DialTimeout = dialTimeout
	opts.ReadTimeout = readTimeout
	opts.WriteTimeout = writeTimeout

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: redis ping failed: %w", err)
	}

	logger.Info("redis client connected", slog.String("addr", opts.Addr))
	return client, nil
}

// Redis is a fixed-window Limiter shared by every process using the same
// Redis server. Each key gets one counter per window; the increment that
// opens a window sets its expiry.
type Redis struct {
	client redis.Cmdable
	limit  int64
	window time.Duration
}

var _ Limiter = (*Redis)(nil)

// NewRedis allows perMinute requests per key per minute.
func NewRedis(client redis.Cmdable, perMinute int) *Redis {
	return &Redis{client: client, limit: int64(perMinute), window: time.Minute}
}

func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := keyPrefix + key

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: counting %s: %w", key, err)
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("ratelimit: expiring %s: %w", key, err)
		}
	}
	return n <= l.limit, nil
}
