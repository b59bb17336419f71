package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-longterm/internal/aggregator"
	"github.com/wonny/aegis-longterm/internal/cache"
	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/recommend"
	"github.com/wonny/aegis-longterm/internal/scheduler"
	"github.com/wonny/aegis-longterm/internal/screening"
	"github.com/wonny/aegis-longterm/internal/variants"
	"github.com/wonny/aegis-longterm/pkg/logger"
	"github.com/wonny/aegis-longterm/pkg/retry"
)

// stubProvider serves fixed rows per category
type stubProvider struct {
	mu      sync.Mutex
	failed  map[contracts.Category]bool
	pingErr error
}

func rows(from, to int, score float64) []contracts.RawStockRow {
	out := make([]contracts.RawStockRow, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, contracts.RawStockRow{
			Symbol: fmt.Sprintf("S%02d", i),
			Price:  decimal.NewFromInt(int64(100 + i)),
			Volume: contracts.VolumeOf(int64(1000 * (i + 1))),
			Score:  score,
		})
	}
	return out
}

var stubRows = map[contracts.Category][]contracts.RawStockRow{
	contracts.CategoryFundamental: rows(0, 10, 0.9),
	contracts.CategoryMomentum:    rows(5, 15, 0.8),
	contracts.CategoryValue:       rows(20, 30, 0.7),
	contracts.CategoryQuality:     rows(0, 5, 0.95),
}

func (p *stubProvider) Fetch(ctx context.Context, spec contracts.VariantSpec, limit int) ([]contracts.RawStockRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failed[spec.Key.Category] {
		return nil, &screening.ProviderError{Kind: screening.KindUnavailable, Variant: spec.Key, StatusCode: 503}
	}
	out := append([]contracts.RawStockRow(nil), stubRows[spec.Key.Category]...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (p *stubProvider) Ping(ctx context.Context) error { return p.pingErr }

func newTestHandler(t *testing.T, p *stubProvider) (*LongtermHandler, *cache.ResultCache) {
	t.Helper()

	registry := variants.Default()
	rc := cache.New(cache.Options{Cooldown: time.Minute, EvictAfter: 4}, logger.Nop())
	agg := aggregator.New(registry, p, rc, aggregator.Options{
		TTL:   time.Minute,
		Retry: retry.Policy{MaxAttempts: 1},
	}, logger.Nop())

	engine, err := recommend.NewEngine(registry, agg, recommend.Options{}, logger.Nop())
	require.NoError(t, err)

	return NewLongtermHandler(engine, recommend.NewTester(engine), logger.Nop()), rc
}

func post(t *testing.T, h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "error", resp.Status)
	return resp
}

func TestGetRecommendations_Success(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	w := post(t, h.GetRecommendations, "/api/longterm/long-buy-recommendations",
		`{"min_score": 0, "top_recommendations": 5}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp RecommendationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, contracts.Combination{Fundamental: "v2.0", Momentum: "v2.0", Value: "v1.2", Quality: "v1.2"}, resp.Combination)
	require.Len(t, resp.Recommendations, 5)
	assert.Equal(t, 5, resp.TotalRecommendations)
	assert.Empty(t, resp.Warnings)

	// S05..S09 appear in fundamental and momentum and tie on score
	first := resp.Recommendations[0]
	assert.Equal(t, 1, first.Rank)
	assert.Equal(t, "S05", first.Symbol)
	assert.Equal(t, 2, first.Appearances)
	assert.Equal(t, []contracts.Category{contracts.CategoryFundamental, contracts.CategoryMomentum}, first.Categories)
	assert.InDelta(t, 0.30*0.9+0.25*0.8+0.10, first.Score, 1e-9)
	assert.InDelta(t, 105.0, first.Price, 1e-9)
	vol, known := first.Volume.Value()
	assert.True(t, known)
	assert.Equal(t, int64(6000), vol)

	for i := 1; i < len(resp.Recommendations); i++ {
		assert.GreaterOrEqual(t, resp.Recommendations[i-1].Score, resp.Recommendations[i].Score)
	}

	assert.Equal(t, 25, resp.Metrics.UniqueStocks)
	assert.Equal(t, 35, resp.Metrics.TotalStocksFound)
	assert.Equal(t, 10, resp.Metrics.MultiCategoryStocks)
	assert.InDelta(t, 40.0, resp.Metrics.DiversityScore, 1e-9)
}

func TestGetRecommendations_EmptyBodyUsesDefaults(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodPost, "/api/longterm/long-buy-recommendations", http.NoBody)
	w := httptest.NewRecorder()
	h.GetRecommendations(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp RecommendationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	// nothing reaches the default 0.6 threshold in this fixture
	assert.NotNil(t, resp.Recommendations)
	assert.Empty(t, resp.Recommendations)
	assert.Equal(t, 0, resp.TotalRecommendations)
	assert.Equal(t, 25, resp.Metrics.UniqueStocks)
}

func TestGetRecommendations_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"unknown version", `{"combination": {"fundamental": "v9.9"}}`, ErrCodeUnknownVariant, ""},
		{"limit too large", `{"limit_per_query": 501}`, ErrCodeValidation, "limit_per_query"},
		{"negative limit", `{"limit_per_query": -1}`, ErrCodeValidation, "limit_per_query"},
		{"negative min score", `{"min_score": -0.1}`, ErrCodeValidation, "min_score"},
		{"top too large", `{"top_recommendations": 201}`, ErrCodeValidation, "top_recommendations"},
		{"malformed json", `{"limit_per_query":`, ErrCodeInvalidBody, ""},
		{"unknown field", `{"limit": 10}`, ErrCodeInvalidBody, ""},
		{"wrong type", `{"min_score": "high"}`, ErrCodeInvalidBody, ""},
	}

	h, _ := newTestHandler(t, &stubProvider{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h.GetRecommendations, "/api/longterm/long-buy-recommendations", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
			if tt.field != "" {
				require.Len(t, resp.Error.Fields, 1)
				assert.Equal(t, tt.field, resp.Error.Fields[0].Field)
			}
		})
	}
}

func TestGetRecommendations_PartialDegradation(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{failed: map[contracts.Category]bool{contracts.CategoryQuality: true}})

	w := post(t, h.GetRecommendations, "/api/longterm/long-buy-recommendations", `{"min_score": 0}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp RecommendationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	require.Len(t, resp.Warnings, 1)
	assert.Contains(t, resp.Warnings[0], "quality")
	require.Len(t, resp.FailedCategories, 1)
	assert.Equal(t, contracts.CategoryQuality, resp.FailedCategories[0].Category)
	for _, s := range resp.Recommendations {
		assert.NotContains(t, s.Categories, contracts.CategoryQuality)
	}
}

func TestGetRecommendations_AllCategoriesFailed(t *testing.T) {
	failed := map[contracts.Category]bool{}
	for _, c := range contracts.AllCategories {
		failed[c] = true
	}
	h, _ := newTestHandler(t, &stubProvider{failed: failed})

	w := post(t, h.GetRecommendations, "/api/longterm/long-buy-recommendations", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)

	resp := decodeError(t, w)
	assert.Equal(t, ErrCodeServiceUnavailable, resp.Error.Code)
}

func TestGetAvailableVariants(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/longterm/available-variants", nil)
	w := httptest.NewRecorder()
	h.GetAvailableVariants(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp VariantsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, 4, resp.TotalCategories)
	assert.Equal(t, 81, resp.TotalCombinations)
	assert.Equal(t, "v2.0", resp.DefaultCombination.Fundamental)
	require.Len(t, resp.Variants, 4)
	for _, cat := range contracts.AllCategories {
		assert.Len(t, resp.Variants[cat], 3, cat)
	}

	fundamental := resp.Variants[contracts.CategoryFundamental]
	assert.Equal(t, "v1.0", fundamental[0].Version)
	n, fixed := fundamental[0].ExpectedResults.Value()
	assert.True(t, fixed)
	assert.Equal(t, 50, n)
	assert.True(t, fundamental[2].ExpectedResults.IsVariable())
}

func TestAvailableVariants_DoesNotLeakQueries(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/longterm/available-variants", nil)
	w := httptest.NewRecorder()
	h.GetAvailableVariants(w, req)

	assert.NotContains(t, w.Body.String(), "query")
}

func TestTestCombination_Success(t *testing.T) {
	h, _ := newTestHandler(t, &stubProvider{})

	body := `{"fundamental_version":"v1.0","momentum_version":"v1.1","value_version":"v1.0","quality_version":"v1.2","min_score":0}`
	w := post(t, h.TestCombination, "/api/longterm/test-combination", body)
	require.Equal(t, http.StatusOK, w.Code)

	var resp TestCombinationResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))

	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.TestID)
	assert.Equal(t, recommend.StateCompleted, resp.State)
	assert.Equal(t, contracts.Combination{Fundamental: "v1.0", Momentum: "v1.1", Value: "v1.0", Quality: "v1.2"}, resp.Combination)
	assert.Len(t, resp.SampleStocks, recommend.DefaultSampleSize)
	assert.Equal(t, recommend.DefaultTopRecommendations, resp.TotalRecommendations)
	assert.Equal(t, 25, resp.Metrics.UniqueStocks)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestTestCombination_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		code  string
		field string
	}{
		{"missing quality", `{"fundamental_version":"v1.0","momentum_version":"v1.0","value_version":"v1.0"}`, ErrCodeValidation, "quality_version"},
		{"unknown version", `{"fundamental_version":"v1.0","momentum_version":"v1.0","value_version":"v9","quality_version":"v1.0"}`, ErrCodeUnknownVariant, ""},
		{"limit too large", `{"fundamental_version":"v1.0","momentum_version":"v1.0","value_version":"v1.0","quality_version":"v1.0","limit_per_query":1000}`, ErrCodeValidation, "limit_per_query"},
		{"malformed json", `[`, ErrCodeInvalidBody, ""},
	}

	h, _ := newTestHandler(t, &stubProvider{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, h.TestCombination, "/api/longterm/test-combination", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			resp := decodeError(t, w)
			assert.Equal(t, tt.code, resp.Error.Code)
			if tt.field != "" {
				require.NotEmpty(t, resp.Error.Fields)
				assert.Equal(t, tt.field, resp.Error.Fields[0].Field)
			}
		})
	}
}

func TestRespondEngineError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unknown variant", &contracts.UnknownVariantError{Category: "value", Version: "v9"}, http.StatusBadRequest, ErrCodeUnknownVariant},
		{"invalid request", fmt.Errorf("%w: limit", contracts.ErrInvalidRequest), http.StatusBadRequest, ErrCodeValidation},
		{"all failed", &aggregator.AllCategoriesFailedError{RetryAfter: 1500 * time.Millisecond}, http.StatusServiceUnavailable, ErrCodeServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError, ErrCodeInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			respondEngineError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Error.Code)
		})
	}

	w := httptest.NewRecorder()
	respondEngineError(w, &aggregator.AllCategoriesFailedError{RetryAfter: 1500 * time.Millisecond})
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestHealthCheck(t *testing.T) {
	p := &stubProvider{}
	h, rc := newTestHandler(t, p)

	// warm the cache so stats are non-zero
	post(t, h.GetRecommendations, "/api/longterm/long-buy-recommendations", `{}`)

	health := NewHealthHandler("aegis-longterm", p, nil, rc)
	w := httptest.NewRecorder()
	health.Check(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "aegis-longterm", resp.Service)
	assert.True(t, resp.ScreeningProvider.Connected)
	assert.Nil(t, resp.Redis)
	assert.Equal(t, 4, resp.Cache.Entries)
	assert.Equal(t, int64(4), resp.Cache.Fetches)

	p.pingErr = errors.New("connection refused")
	w = httptest.NewRecorder()
	health.Check(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	resp = HealthResponse{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.ScreeningProvider.Connected)
	assert.Equal(t, "connection refused", resp.ScreeningProvider.Error)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHealthCheck_RedisDown(t *testing.T) {
	rc := cache.New(cache.Options{Cooldown: time.Minute}, logger.Nop())
	health := NewHealthHandler("aegis-longterm", &stubProvider{}, stubPinger{err: errors.New("i/o timeout")}, rc)

	w := httptest.NewRecorder()
	health.Check(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.True(t, resp.ScreeningProvider.Connected)
	require.NotNil(t, resp.Redis)
	assert.False(t, resp.Redis.Connected)
	assert.Equal(t, "i/o timeout", resp.Redis.Error)
}

type stubJobs []scheduler.JobStats

func (s stubJobs) Stats() []scheduler.JobStats { return s }

func TestHealthCheck_JobStats(t *testing.T) {
	rc := cache.New(cache.Options{Cooldown: time.Minute}, logger.Nop())
	last := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	health := NewHealthHandler("aegis-longterm", &stubProvider{}, nil, rc).WithJobs(stubJobs{
		{JobName: "cache_sweep", Schedule: "0 * * * * *", TotalRuns: 3, SuccessRate: 1},
		{JobName: "warm_default", Schedule: "0 */4 * * * *", TotalRuns: 2, FailureCount: 1,
			SuccessRate: 0.5, LastRun: &last, LastError: "all categories failed"},
	})

	w := httptest.NewRecorder()
	health.Check(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "warm_default", resp.Jobs[1].JobName)
	assert.Equal(t, 1, resp.Jobs[1].FailureCount)
	require.NotNil(t, resp.Jobs[1].LastRun)
	assert.True(t, last.Equal(*resp.Jobs[1].LastRun))
	assert.Equal(t, "all categories failed", resp.Jobs[1].LastError)
}

func TestHealthCheck_NoJobsOmitted(t *testing.T) {
	rc := cache.New(cache.Options{Cooldown: time.Minute}, logger.Nop())
	health := NewHealthHandler("aegis-longterm", &stubProvider{}, nil, rc)

	w := httptest.NewRecorder()
	health.Check(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotContains(t, w.Body.String(), `"jobs"`)
}
