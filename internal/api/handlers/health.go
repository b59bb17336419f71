package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/aegis-longterm/internal/cache"
	"github.com/wonny/aegis-longterm/internal/scheduler"
)

const pingTimeout = 3 * time.Second

// Pinger reports dependency reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsSource exposes result cache counters
type StatsSource interface {
	Stats() cache.Stats
}

// JobStatsSource exposes background job history
type JobStatsSource interface {
	Stats() []scheduler.JobStats
}

// HealthHandler reports process and dependency health
type HealthHandler struct {
	service  string
	provider Pinger
	redis    Pinger // optional
	cache    StatsSource
	jobs     JobStatsSource // optional
	now      func() time.Time
}

// NewHealthHandler creates a health handler. redis may be nil.
func NewHealthHandler(service string, provider Pinger, redis Pinger, rc StatsSource) *HealthHandler {
	return &HealthHandler{
		service:  service,
		provider: provider,
		redis:    redis,
		cache:    rc,
		now:      time.Now,
	}
}

// WithJobs adds background job statistics to the health report
func (h *HealthHandler) WithJobs(src JobStatsSource) *HealthHandler {
	h.jobs = src
	return h
}

// DependencyStatus is one dependency reachability result
type DependencyStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status            string               `json:"status"`
	Service           string               `json:"service"`
	Timestamp         time.Time            `json:"timestamp"`
	ScreeningProvider DependencyStatus     `json:"screening_provider"`
	Redis             *DependencyStatus    `json:"redis,omitempty"`
	Cache             cache.Stats          `json:"cache"`
	Jobs              []scheduler.JobStats `json:"jobs,omitempty"`
}

// Check always answers 200 while the process lives; status is "degraded"
// when the screening provider or a configured Redis is unreachable.
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:            "ok",
		Service:           h.service,
		Timestamp:         h.now().UTC(),
		ScreeningProvider: ping(r.Context(), h.provider),
	}
	if !resp.ScreeningProvider.Connected {
		resp.Status = "degraded"
	}
	if h.redis != nil {
		st := ping(r.Context(), h.redis)
		resp.Redis = &st
		if !st.Connected {
			resp.Status = "degraded"
		}
	}
	if h.cache != nil {
		resp.Cache = h.cache.Stats()
	}
	if h.jobs != nil {
		resp.Jobs = h.jobs.Stats()
	}

	respondJSON(w, http.StatusOK, resp)
}

func ping(ctx context.Context, p Pinger) DependencyStatus {
	if p == nil {
		return DependencyStatus{Error: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return DependencyStatus{Error: err.Error()}
	}
	return DependencyStatus{Connected: true}
}
