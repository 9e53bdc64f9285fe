package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/elevated-systems/green-region-router/pkg/greenrouter/config"
	"github.com/elevated-systems/green-region-router/pkg/greenrouter/region"
)

const (
	regionsPath = "/regions"
	routePath   = "/route"

	maxBackoff = time.Minute
)

// HTTPClient interface allows mocking http.Client in tests
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CacheInterface is the subset of the measurement cache the client needs
type CacheInterface interface {
	Get(key string) ([]region.RawMeasurement, bool)
	Set(key string, batch []region.RawMeasurement)
}

// Client handles interactions with the region measurements backend
type Client struct {
	apiConfig   config.APIConfig
	httpClient  HTTPClient
	rateLimiter *time.Ticker
	cache       CacheInterface
}

// RouteDecision is the backend's answer to a route request. Its shape is
// owned by the backend, so it is kept as a generic JSON object.
type RouteDecision map[string]interface{}

type routeRequest struct {
	TaskType string `json:"taskType"`
}

// statusError is returned for non-2xx responses.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code %d from %s", e.code, e.url)
}

// retryable reports whether a request that failed with err is worth repeating.
func retryable(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return true
	}
	return se.code == http.StatusTooManyRequests || se.code >= 500
}

// ClientOption allows customizing the client
type ClientOption func(*Client)

// WithHTTPClient allows injecting a custom HTTP client
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithCache adds a measurement cache to the client
func WithCache(cache CacheInterface) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// NewClient creates a new API client
func NewClient(apiCfg config.APIConfig, opts ...ClientOption) *Client {
	apiCfg.BaseURL = strings.TrimSuffix(apiCfg.BaseURL, "/")

	rate := apiCfg.RateLimit
	if rate <= 0 {
		rate = 1
	}

	client := &Client{
		apiConfig: apiCfg,
		httpClient: &http.Client{
			Timeout: apiCfg.Timeout,
		},
		rateLimiter: time.NewTicker(time.Second / time.Duration(rate)),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// FetchRegions fetches the raw per-region measurements. A body that is not a
// JSON array yields an empty batch rather than an error.
func (c *Client) FetchRegions(ctx context.Context) ([]region.RawMeasurement, error) {
	if c.cache != nil {
		if batch, fresh := c.cache.Get(regionsPath); fresh {
			klog.V(3).InfoS("Using cached region measurements", "regions", len(batch))
			return batch, nil
		}
	}

	body, err := c.withRetries(ctx, http.MethodGet, regionsPath, nil)
	if err != nil {
		return nil, err
	}

	batch := region.DecodeMeasurements(body)
	if c.cache != nil {
		c.cache.Set(regionsPath, batch)
	}
	klog.V(2).InfoS("Fetched region measurements", "regions", len(batch))
	return batch, nil
}

// GetRouteDecision asks the backend to route a task of the given type
func (c *Client) GetRouteDecision(ctx context.Context, taskType string) (RouteDecision, error) {
	payload, err := json.Marshal(routeRequest{TaskType: taskType})
	if err != nil {
		return nil, fmt.Errorf("failed to encode route request: %w", err)
	}

	body, err := c.withRetries(ctx, http.MethodPost, routePath, payload)
	if err != nil {
		return nil, err
	}

	var decision RouteDecision
	if err := json.Unmarshal(body, &decision); err != nil {
		return nil, fmt.Errorf("failed to decode route decision: %w", err)
	}
	return decision, nil
}

func (c *Client) withRetries(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.apiConfig.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-c.rateLimiter.C:
		}

		body, err := c.doRequest(ctx, method, path, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable(err) || attempt == c.apiConfig.MaxRetries {
			break
		}

		backoff := c.getBackoffDuration(attempt)
		klog.V(2).InfoS("API request failed, retrying",
			"path", path,
			"attempt", attempt+1,
			"maxRetries", c.apiConfig.MaxRetries,
			"backoff", backoff,
			"error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%s %s failed: %w", method, path, lastErr)
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiConfig.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	klog.V(4).InfoS("Making backend request", "method", method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{code: resp.StatusCode, url: req.URL.String()}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

func (c *Client) getBackoffDuration(attempt int) time.Duration {
	backoff := backoffBase(c.apiConfig.RetryDelay, attempt)

	// Jitter ±20%
	return time.Duration(float64(backoff) * (0.8 + 0.4*rand.Float64()))
}

// backoffBase is the exponential backoff before jitter, capped at maxBackoff
func backoffBase(delay time.Duration, attempt int) time.Duration {
	if delay <= 0 {
		return 0
	}
	if attempt >= 32 || delay > maxBackoff>>uint(attempt) {
		return maxBackoff
	}
	return delay << uint(attempt)
}

// MaxFetchDuration is the longest one FetchRegions or GetRouteDecision call
// can take under cfg: every attempt running to its timeout, a rate limiter
// wait per attempt and the largest jittered backoff between attempts.
func MaxFetchDuration(cfg config.APIConfig) time.Duration {
	rate := cfg.RateLimit
	if rate <= 0 {
		rate = 1
	}
	retries := max(cfg.MaxRetries, 0)

	total := time.Duration(retries+1) * (cfg.Timeout + time.Second/time.Duration(rate))
	for attempt := 0; attempt < retries; attempt++ {
		total += time.Duration(float64(backoffBase(cfg.RetryDelay, attempt)) * 1.2)
	}
	return total
}

// GetURL returns the base URL used for API requests
func (c *Client) GetURL() string {
	return c.apiConfig.BaseURL
}

// Close cleans up client resources
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}
