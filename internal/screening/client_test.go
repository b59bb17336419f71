package screening

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/pkg/logger"
)

var testSpec = contracts.VariantSpec{
	Key:    contracts.VariantKey{Category: contracts.CategoryValue, Version: "v1.2"},
	Query:  "pe < 18",
	Weight: 0.25,
}

func newTestClient(url string, timeout time.Duration) *Client {
	return New(Options{
		BaseURL:           url,
		APIKey:            "test-key",
		RequestsPerMinute: 6000,
		Burst:             10,
		Timeout:           timeout,
	}, logger.Nop())
}

func providerServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestFetch_Success(t *testing.T) {
	var gotReq screenRequest
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/screen", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"rows":[
			{"symbol":"AAPL","price":"189.50","volume":1200000,"score":0.9},
			{"symbol":"MSFT","price":412.1,"volume":"N/A","score":1.7},
			{"symbol":"KO","price":"61","score":-0.2}
		]}`))
	}))
	defer srv.Close()

	rows, err := newTestClient(srv.URL, time.Second).Fetch(context.Background(), testSpec, 30)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "pe < 18", gotReq.Query)
	assert.Equal(t, 30, gotReq.Limit)
	assert.Equal(t, "test-key", gotKey)

	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.True(t, rows[0].Price.Equal(decimal.RequireFromString("189.50")))
	vol, known := rows[0].Volume.Value()
	assert.True(t, known)
	assert.Equal(t, int64(1200000), vol)

	_, known = rows[1].Volume.Value()
	assert.False(t, known)
	assert.Equal(t, 1.0, rows[1].Score, "score clamped to 1")
	assert.Equal(t, 0.0, rows[2].Score, "score clamped to 0")
}

func TestFetch_DerivesMissingScoreAndTruncates(t *testing.T) {
	srv, _ := providerServer(t, http.StatusOK, `{"rows":[
		{"symbol":"A","price":"1"},
		{"symbol":"B","price":"2"},
		{"symbol":"C","price":"3"},
		{"symbol":"D","price":"4"},
		{"symbol":"E","price":"5"}
	]}`)

	rows, err := newTestClient(srv.URL, time.Second).Fetch(context.Background(), testSpec, 4)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.InDelta(t, 1.0, rows[0].Score, 1e-9)
	assert.InDelta(t, 0.75, rows[1].Score, 1e-9)
	assert.InDelta(t, 0.25, rows[3].Score, 1e-9)
}

func TestFetch_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		kind   Kind
		target error
	}{
		{http.StatusTooManyRequests, KindRateLimited, ErrRateLimited},
		{http.StatusUnauthorized, KindAuthExpired, ErrAuthExpired},
		{http.StatusForbidden, KindAuthExpired, ErrAuthExpired},
		{419, KindAuthExpired, ErrAuthExpired},
		{http.StatusGatewayTimeout, KindTimeout, ErrTimeout},
		{http.StatusInternalServerError, KindUnavailable, ErrUnavailable},
		{http.StatusServiceUnavailable, KindUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, calls := providerServer(t, tt.status, `{}`)

			_, err := newTestClient(srv.URL, time.Second).Fetch(context.Background(), testSpec, 10)
			require.Error(t, err)

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, testSpec.Key, pe.Variant)
			assert.True(t, errors.Is(err, tt.target))
			assert.Equal(t, int32(1), atomic.LoadInt32(calls), "client must not retry")
		})
	}
}

func TestFetch_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"rows":[`},
		{"missing rows", `{"data":[]}`},
		{"empty symbol", `{"rows":[{"symbol":" ","price":"1"}]}`},
		{"missing price", `{"rows":[{"symbol":"AAPL"}]}`},
		{"unparsable price", `{"rows":[{"symbol":"AAPL","price":"abc"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := providerServer(t, http.StatusOK, tt.body)

			_, err := newTestClient(srv.URL, time.Second).Fetch(context.Background(), testSpec, 10)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
			assert.Equal(t, KindMalformed, KindOf(err))
		})
	}
}

func TestFetch_EmptyRowsIsSuccess(t *testing.T) {
	srv, _ := providerServer(t, http.StatusOK, `{"rows":[]}`)

	rows, err := newTestClient(srv.URL, time.Second).Fetch(context.Background(), testSpec, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 50*time.Millisecond).Fetch(context.Background(), testSpec, 10)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.True(t, IsRetryable(err))
}

func TestFetch_Unreachable(t *testing.T) {
	srv, _ := providerServer(t, http.StatusOK, `{"rows":[]}`)
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, time.Second).Fetch(context.Background(), testSpec, 10)
	assert.True(t, errors.Is(err, ErrUnavailable), "got %v", err)
}

func TestFetch_SharedLimiterAcrossVariants(t *testing.T) {
	srv, calls := providerServer(t, http.StatusOK, `{"rows":[]}`)

	client := New(Options{
		BaseURL:           srv.URL,
		RequestsPerMinute: 1,
		Burst:             1,
		Timeout:           100 * time.Millisecond,
	}, logger.Nop())

	_, err := client.Fetch(context.Background(), testSpec, 10)
	require.NoError(t, err)

	other := testSpec
	other.Key = contracts.VariantKey{Category: contracts.CategoryMomentum, Version: "v2.0"}

	_, err = client.Fetch(context.Background(), other, 10)
	assert.True(t, errors.Is(err, ErrRateLimited), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestFetch_CallerCancelled(t *testing.T) {
	srv, _ := providerServer(t, http.StatusOK, `{"rows":[]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(srv.URL, time.Second).Fetch(ctx, testSpec, 10)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.False(t, IsRetryable(err))
}

func TestPing(t *testing.T) {
	srv, _ := providerServer(t, http.StatusOK, `{"status":"ok"}`)
	assert.NoError(t, newTestClient(srv.URL, time.Second).Ping(context.Background()))

	down, _ := providerServer(t, http.StatusServiceUnavailable, ``)
	assert.Error(t, newTestClient(down.URL, time.Second).Ping(context.Background()))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("other")))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindAuthExpired, KindOf(newError(KindAuthExpired, testSpec.Key, 401, nil)))
}
