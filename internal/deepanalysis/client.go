package deepanalysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/config"
	"github.com/wonny/argus/backend/pkg/httputil"
	"github.com/wonny/argus/backend/pkg/logger"
	"github.com/wonny/argus/backend/pkg/metrics"
)

// Client calls the external deep-analysis service over HTTP.
// ⭐ SSOT: 심층 분석 서비스 호출은 이 클라이언트에서만
//
// The service is best-effort by contract: any failure here (timeout,
// open breaker, bad payload) surfaces as an error that callers log and
// absorb. The client never retries on its own beyond what the shared
// HTTP client does.
type Client struct {
	http    *httputil.Client
	logger  *logger.Logger
	metrics *metrics.Recorder
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	baseURL string
}

// NewClient wires the deep-analysis client from process configuration.
// Returns a disabled Null analyzer when no base URL is configured.
func NewClient(cfg *config.Config, log *logger.Logger, rec *metrics.Recorder) contracts.DeepAnalyzer {
	if !cfg.DeepEnabled() {
		return NewNull()
	}

	httpClient := httputil.New(log).WithRetry(1, 200*time.Millisecond)
	if cfg.Deep.APIKey != "" {
		httpClient = httpClient.WithHeader("Authorization", "Bearer "+cfg.Deep.APIKey)
	}

	c := &Client{
		http:    httpClient,
		logger:  log,
		metrics: rec,
		limiter: rate.NewLimiter(rate.Limit(cfg.Deep.RatePerS), cfg.Deep.RatePerS),
		baseURL: cfg.Deep.BaseURL,
	}

	if cfg.Deep.BreakerOn {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "deepanalysis",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(map[string]interface{}{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("Deep-analysis circuit breaker state changed")
			},
		})
	}

	return c
}

// Enabled reports whether the client can accept requests
func (c *Client) Enabled() bool {
	return true
}

// Analyze sends one article to the deep-analysis service.
// Rate limiting waits within ctx; the breaker short-circuits after
// repeated failures so a dead service costs one error, not a timeout.
func (c *Client) Analyze(ctx context.Context, req contracts.DeepRequest) (*contracts.DeepResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordDeepRequest("rate_limited")
		return nil, fmt.Errorf("deep-analysis rate wait: %w", err)
	}

	if c.breaker == nil {
		return c.analyze(ctx, req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.analyze(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			c.metrics.RecordDeepRequest("breaker_open")
			return nil, fmt.Errorf("deep-analysis unavailable: %w", err)
		}
		return nil, err
	}
	return result.(*contracts.DeepResult), nil
}

func (c *Client) analyze(ctx context.Context, req contracts.DeepRequest) (*contracts.DeepResult, error) {
	resp, err := c.http.PostJSON(ctx, c.baseURL+"/v1/analyze", req)
	if err != nil {
		c.metrics.RecordDeepRequest("error")
		return nil, fmt.Errorf("deep-analysis request: %w", err)
	}

	var result contracts.DeepResult
	if err := httputil.DecodeJSON(resp, &result); err != nil {
		c.metrics.RecordDeepRequest("bad_response")
		return nil, fmt.Errorf("deep-analysis response: %w", err)
	}

	if result.Sentiment < -1 || result.Sentiment > 1 {
		c.metrics.RecordDeepRequest("bad_response")
		return nil, fmt.Errorf("deep-analysis sentiment out of range: %f", result.Sentiment)
	}

	c.metrics.RecordDeepRequest("ok")
	return &result, nil
}
