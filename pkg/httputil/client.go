package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/aegis-longterm/pkg/logger"
	"github.com/wonny/aegis-longterm/pkg/redis"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "aegis-longterm/1.0"
)

// ErrRateLimitWait is returned when the shared budget could not grant a slot
var ErrRateLimitWait = errors.New("rate limit wait failed")

// Options configures a Client
type Options struct {
	Timeout time.Duration
	Headers map[string]string
	// Limiter is consulted before every request when set and enabled
	Limiter *redis.RateLimiter
	Budget  redis.Budget
}

// Client sends each request exactly once. Retries belong to pkg/retry.
// ⭐ SSOT: 외부 HTTP 호출은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	headers    http.Header
	limiter    *redis.RateLimiter
	budget     redis.Budget
}

// NewClient creates a client from explicit options
func NewClient(opts Options, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	headers := http.Header{}
	headers.Set("User-Agent", defaultUserAgent)
	headers.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     log,
		headers:    headers,
	}
	if opts.Limiter.Enabled() {
		c.limiter = opts.Limiter
		c.budget = opts.Budget
	}
	return c
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	return c.do(req)
}

// PostJSON encodes body as JSON and POSTs it
func (c *Client) PostJSON(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context(), c.budget); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRateLimitWait, err)
		}
	}

	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)

	fields := map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"duration": time.Since(start),
	}
	if err != nil {
		fields["error"] = err.Error()
		c.logger.WithFields(fields).Warn("HTTP request failed")
		return nil, err
	}

	fields["status_code"] = resp.StatusCode
	c.logger.WithFields(fields).Debug("HTTP request completed")
	return resp, nil
}
