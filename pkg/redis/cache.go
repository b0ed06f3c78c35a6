package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is a JSON read-through cache over the shared Redis client.
// ⭐ SSOT: 캐시 헬퍼는 여기서만
//
// Every method is a no-op when Redis is disabled, so callers never need
// their own enabled checks. The pipeline itself never reads through this
// cache; only serving paths (API, deep-analysis verdicts) do.
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

func (c *Cache) key(key string) string {
	return fmt.Sprintf("%s:cache:%s", c.prefix, key)
}

// Get retrieves a cached value into dest. A missing key is (false, nil).
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if err != nil {
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return true, nil
}

// Set stores a value with TTL
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
}

// Delete removes a cached value
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}
	return c.client.Redis().Del(ctx, c.key(key)).Err()
}

// GetOrSet reads through the cache: on a miss fn supplies the value,
// which is stored and unmarshalled into dest. A failed store is not an
// error; the caller still gets the fresh value.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, fn func() (interface{}, error)) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	value, err := fn()
	if err != nil {
		return err
	}

	// 캐시 실패는 응답을 막지 않는다
	_ = c.Set(ctx, key, value, ttl)

	data, _ := json.Marshal(value)
	return json.Unmarshal(data, dest)
}

// TTLs per cached entity
const (
	TTLMedium = 10 * time.Minute // 심층 분석 결과 (기사 본문은 불변이지만 모델은 바뀐다)
	TTLDaily  = 24 * time.Hour   // 일별 목표 비중 뷰
)

// DeepResultKey is the cache key for one article's deep-analysis verdict
func DeepResultKey(articleID string) string {
	return fmt.Sprintf("deep:%s", articleID)
}

// WeightsKey is the cache key for one strategy-date weights view
func WeightsKey(strategyID string, decisionDate string) string {
	return fmt.Sprintf("weights:%s:%s", strategyID, decisionDate)
}
