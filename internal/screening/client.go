package screening

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/pkg/config"
	"github.com/wonny/aegis-longterm/pkg/httputil"
	"github.com/wonny/aegis-longterm/pkg/logger"
	"github.com/wonny/aegis-longterm/pkg/redis"
)

const (
	screenPath  = "/screen"
	healthPath  = "/health"
	apiKeyHdr   = "X-API-Key"
	maxBodySize = 10 << 20

	pingTimeout = 3 * time.Second

	// statusAuthTimeout is the non-standard "Authentication Timeout" some gateways use
	statusAuthTimeout = 419
)

// Options configures a screening client
type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	Burst             int
	Timeout           time.Duration

	// Distributed is the optional Redis limiter shared across replicas
	Distributed *redis.RateLimiter
}

// Client adapts the external screening provider
// ⭐ SSOT: 모든 제공자 호출은 하나의 레이트 리미터를 통과
type Client struct {
	baseURL string
	http    *httputil.Client
	pinger  *httputil.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logger.Logger
}

// New creates a screening client
func New(opts Options, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("screening")

	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var headers map[string]string
	if opts.APIKey != "" {
		headers = map[string]string{apiKeyHdr: opts.APIKey}
	}
	httpClient := httputil.NewClient(httputil.Options{
		Timeout: timeout,
		Headers: headers,
		Limiter: opts.Distributed,
		Budget:  redis.ScreenerBudget(rpm),
	}, log)
	pinger := httputil.NewClient(httputil.Options{Timeout: pingTimeout, Headers: headers}, log)

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		pinger:  pinger,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		timeout: timeout,
		logger:  log,
	}
}

// NewFromConfig wires a client from application config
func NewFromConfig(cfg *config.Config, rdb *redis.Client, log *logger.Logger) *Client {
	opts := Options{
		BaseURL:           cfg.Screener.BaseURL,
		APIKey:            cfg.Screener.APIKey,
		RequestsPerMinute: cfg.Screener.RequestsPerMinute,
		Burst:             cfg.Screener.Burst,
		Timeout:           cfg.Screener.Timeout,
	}
	if rdb != nil && rdb.Enabled() {
		opts.Distributed = redis.NewRateLimiter(rdb, "longterm")
	}
	return New(opts, log)
}

type screenRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type screenResponse struct {
	Rows *[]wireRow `json:"rows"`
}

type wireRow struct {
	Symbol string           `json:"symbol"`
	Price  *decimal.Decimal `json:"price"`
	Volume contracts.Volume `json:"volume"`
	Score  *float64         `json:"score"`
}

// Fetch returns at most limitPerQuery rows for one variant. Never retries.
func (c *Client) Fetch(ctx context.Context, spec contracts.VariantSpec, limitPerQuery int) ([]contracts.RawStockRow, error) {
	key := spec.Key
	start := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// rate.Wait fails immediately when the slot lies beyond the deadline
	if err := c.limiter.Wait(callCtx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, newError(KindRateLimited, key, 0, err)
	}

	resp, err := c.http.PostJSON(callCtx, c.baseURL+screenPath, screenRequest{
		Query: spec.Query,
		Limit: limitPerQuery,
	})
	if err != nil {
		return nil, c.transportError(ctx, callCtx, key, err)
	}
	defer resp.Body.Close()

	if kind, ok := statusKind(resp.StatusCode); ok {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, newError(kind, key, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.transportError(ctx, callCtx, key, err)
	}

	rows, err := decodeRows(body, limitPerQuery)
	if err != nil {
		return nil, newError(KindMalformed, key, resp.StatusCode, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"variant":  key.String(),
		"rows":     len(rows),
		"limit":    limitPerQuery,
		"duration": time.Since(start),
	}).Debug("screening fetch completed")

	return rows, nil
}

// Ping checks provider reachability without consuming the request budget
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.pinger.Get(ctx, c.baseURL+healthPath)
	if err != nil {
		return fmt.Errorf("screening provider unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("screening provider unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) transportError(ctx, callCtx context.Context, key contracts.VariantKey, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return ctx.Err()
	case errors.Is(err, httputil.ErrRateLimitWait):
		return newError(KindRateLimited, key, 0, err)
	case callCtx.Err() != nil || isTimeout(err):
		return newError(KindTimeout, key, 0, err)
	default:
		return newError(KindUnavailable, key, 0, err)
	}
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// statusKind maps non-success statuses to failure kinds
func statusKind(status int) (Kind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusTooManyRequests:
		return KindRateLimited, true
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == statusAuthTimeout:
		return KindAuthExpired, true
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return KindTimeout, true
	default:
		return KindUnavailable, true
	}
}

// decodeRows validates the provider payload and normalizes scores
func decodeRows(body []byte, limit int) ([]contracts.RawStockRow, error) {
	var payload screenResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if payload.Rows == nil {
		return nil, errors.New(`missing "rows"`)
	}

	wire := *payload.Rows
	if limit > 0 && len(wire) > limit {
		wire = wire[:limit]
	}

	n := len(wire)
	rows := make([]contracts.RawStockRow, 0, n)
	for i, w := range wire {
		symbol := strings.TrimSpace(w.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("row %d: empty symbol", i)
		}
		if w.Price == nil {
			return nil, fmt.Errorf("row %d (%s): missing price", i, symbol)
		}

		// missing score falls back to rank position
		score := 1 - float64(i)/float64(n)
		if w.Score != nil {
			score = *w.Score
		}

		rows = append(rows, contracts.RawStockRow{
			Symbol: symbol,
			Price:  *w.Price,
			Volume: w.Volume,
			Score:  clamp01(score),
		})
	}

	return rows, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
