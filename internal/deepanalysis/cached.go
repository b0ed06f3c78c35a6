package deepanalysis

import (
	"context"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/redis"
)

// Cached decorates an analyzer with a verdict cache keyed by article ID.
// An article's text never changes, so a cached verdict is as good as a
// fresh call until the TTL turns it over. Requests without an article ID
// pass straight through.
type Cached struct {
	inner  contracts.DeepAnalyzer
	cache  *redis.Cache
	logger *logger.Logger
}

// NewCached wraps an analyzer with the shared verdict cache
func NewCached(inner contracts.DeepAnalyzer, cache *redis.Cache, log *logger.Logger) *Cached {
	return &Cached{
		inner:  inner,
		cache:  cache,
		logger: log,
	}
}

// Enabled delegates to the wrapped analyzer
func (c *Cached) Enabled() bool {
	return c.inner.Enabled()
}

// Analyze serves from cache when possible. Cache failures fall through to
// the service; a cache must never make the analyzer less available.
func (c *Cached) Analyze(ctx context.Context, req contracts.DeepRequest) (*contracts.DeepResult, error) {
	if req.ArticleID == "" {
		return c.inner.Analyze(ctx, req)
	}

	key := redis.DeepResultKey(req.ArticleID)

	var cached contracts.DeepResult
	found, err := c.cache.Get(ctx, key, &cached)
	if err == nil && found {
		return &cached, nil
	}

	result, err := c.inner.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, result, redis.TTLMedium); err != nil {
		c.logger.WithError(err).Debug("Failed to cache deep-analysis verdict")
	}
	return result, nil
}
