package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-longterm/internal/api/handlers"
	"github.com/wonny/aegis-longterm/internal/metrics"
	"github.com/wonny/aegis-longterm/pkg/logger"
)

const apiPrefix = "/api/longterm"

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Longterm *handlers.LongtermHandler
	Health   *handlers.HealthHandler
}

// NewRouter creates and configures the HTTP router.
// /metrics is mounted only when rec is non-nil.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, rec *metrics.Recorder, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", h.Health.Check).Methods("GET")

	// Monitoring
	if rec != nil {
		r.Handle("/metrics", rec.Handler()).Methods("GET")
	}

	// Long-term recommendation endpoints
	r.HandleFunc(apiPrefix+"/long-buy-recommendations", h.Longterm.GetRecommendations).Methods("POST")
	r.HandleFunc(apiPrefix+"/available-variants", h.Longterm.GetAvailableVariants).Methods("GET")
	r.HandleFunc(apiPrefix+"/test-combination", h.Longterm.TestCombination).Methods("POST")

	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	// Apply middleware
	r.Use(requestIDMiddleware())
	r.Use(loggingMiddleware(log, rec))
	r.Use(recoveryMiddleware(log))

	return r
}
