package httputil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wonny/aegis-longterm/pkg/config"
	"github.com/wonny/aegis-longterm/pkg/logger"
	"github.com/wonny/aegis-longterm/pkg/redis"
)

func TestNewClient(t *testing.T) {
	client := NewClient(Options{Timeout: 7 * time.Second}, logger.Nop())
	if client == nil {
		t.Fatal("Expected client to be created")
	}
	if client.httpClient.Timeout != 7*time.Second {
		t.Errorf("Expected timeout=7s, got %v", client.httpClient.Timeout)
	}
}

func TestNewClient_DefaultTimeout(t *testing.T) {
	client := NewClient(Options{}, nil)
	if client.httpClient.Timeout != defaultTimeout {
		t.Errorf("Expected default timeout, got %v", client.httpClient.Timeout)
	}
	if client.logger == nil {
		t.Error("Expected nil logger to be replaced")
	}
}

func TestPostJSON_SendsBodyAndHeaders(t *testing.T) {
	var gotKey, gotType, gotAgent string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotType = r.Header.Get("Content-Type")
		gotAgent = r.Header.Get("User-Agent")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(Options{
		Timeout: time.Second,
		Headers: map[string]string{"X-API-Key": "secret"},
	}, logger.Nop())

	resp, err := client.PostJSON(context.Background(), server.URL, map[string]interface{}{"query": "q", "limit": 3})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	defer resp.Body.Close()

	if gotKey != "secret" {
		t.Errorf("Expected API key header, got %q", gotKey)
	}
	if gotAgent != defaultUserAgent {
		t.Errorf("Expected default user agent, got %q", gotAgent)
	}
	if gotType != "application/json" {
		t.Errorf("Expected JSON content type, got %q", gotType)
	}
	if gotBody["query"] != "q" {
		t.Errorf("Expected query=q, got %v", gotBody["query"])
	}
}

func TestDo_NoSilentRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(Options{Timeout: time.Second}, logger.Nop())
	resp, err := client.Get(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
	if calls != 1 {
		t.Errorf("Expected exactly one call, got %d", calls)
	}
}

func TestDo_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Options{Timeout: time.Second}, logger.Nop())
	if _, err := client.Get(ctx, server.URL); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestWithRateLimiter_DisabledRedisPassesThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rc, err := redis.New(&config.Config{})
	if err != nil {
		t.Fatalf("redis.New() error = %v", err)
	}

	client := NewClient(Options{
		Timeout: time.Second,
		Limiter: redis.NewRateLimiter(rc, "test"),
		Budget:  redis.ScreenerBudget(1),
	}, logger.Nop())
	if client.limiter != nil {
		t.Error("Expected disabled limiter to be dropped")
	}

	for i := 0; i < 3; i++ {
		resp, err := client.Get(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("Get() #%d error = %v", i, err)
		}
		resp.Body.Close()
	}
}
