package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/wonny/argus/backend/pkg/config"
)

// Client wraps the Redis connection shared by the cache, the distributed
// rate limiter, and health checks.
// ⭐ SSOT: Redis 연결은 여기서만 관리
//
// Redis is optional infrastructure: with REDIS_ENABLED=false the wrapper
// stays usable and every consumer degrades to its local behavior. The
// decision pipeline itself never requires Redis.
type Client struct {
	rdb     *redis.Client
	enabled bool
}

// New connects to Redis, or returns a disabled wrapper when turned off
func New(cfg *config.Config) (*Client, error) {
	if !cfg.Redis.Enabled {
		return &Client{enabled: false}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 기동 시점에 연결을 확인한다: 잘못된 주소로 조용히 뜨지 않게
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &Client{
		rdb:     rdb,
		enabled: true,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Enabled returns whether Redis is configured for this process
func (c *Client) Enabled() bool {
	return c.enabled
}

// Healthy pings the server. A disabled client is healthy by definition.
func (c *Client) Healthy(ctx context.Context) error {
	if !c.enabled {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}

// Redis returns the underlying client for advanced usage
func (c *Client) Redis() *redis.Client {
	return c.rdb
}
