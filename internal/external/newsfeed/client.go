package newsfeed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/argus/backend/pkg/config"
	"github.com/wonny/argus/backend/pkg/httputil"
	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/redis"
)

// Client fetches code-tagged headlines from the configured HTML feed
// ⭐ SSOT: 뉴스 피드 호출은 이 클라이언트에서만
type Client struct {
	http    *httputil.Client
	logger  *logger.Logger
	baseURL string
}

// NewClient wires the news feed client from process configuration.
// limiter may be nil when Redis is disabled; the feed is then fetched
// without a distributed rate limit.
func NewClient(cfg *config.Config, limiter *redis.RateLimiter, log *logger.Logger) *Client {
	httpClient := httputil.New(log).
		WithHeader("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	if limiter != nil {
		httpClient = httpClient.WithRateLimiter(limiter, redis.RateLimitConfig{
			Key:    "newsfeed",
			Limit:  cfg.NewsFeed.RatePerS,
			Window: 1 * time.Second,
		})
	}

	return &Client{
		http:    httpClient,
		logger:  log,
		baseURL: strings.TrimRight(cfg.NewsFeed.BaseURL, "/"),
	}
}

// Enabled reports whether a feed URL is configured
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// fetchHTML fetches an HTML page from the feed
func (c *Client) fetchHTML(ctx context.Context, path string) (string, error) {
	resp, err := c.http.Get(ctx, c.baseURL+path)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}
