package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-longterm/internal/api"
	"github.com/wonny/aegis-longterm/internal/api/handlers"
	"github.com/wonny/aegis-longterm/internal/scheduler"
	"github.com/wonny/aegis-longterm/internal/scheduler/jobs"
	"github.com/wonny/aegis-longterm/pkg/retry"
)

const serviceName = "aegis-longterm"

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET  /health                                    - Health check
  GET  /metrics                                   - Prometheus metrics (METRICS_ENABLED)
  POST /api/longterm/long-buy-recommendations     - 장기 매수 추천
  GET  /api/longterm/available-variants           - 등록된 variant 목록
  POST /api/longterm/test-combination             - 조합 테스트

Example:
  go run ./cmd/longterm api
  go run ./cmd/longterm api --port 8089`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Aegis Long-Term API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	// Background cache warm-up and sweep
	var sched *scheduler.Scheduler
	if a.cfg.Scheduler.Enabled {
		if sched, err = newScheduler(a); err != nil {
			return err
		}
	}

	// Handlers and router
	var redisPinger handlers.Pinger
	if a.redis.Enabled() {
		redisPinger = a.redis
	}
	health := handlers.NewHealthHandler(serviceName, a.client, redisPinger, a.cache)
	if sched != nil {
		health.WithJobs(sched)
		sched.Start()
		defer sched.Stop()
	}
	router := api.NewRouter(api.Handlers{
		Longterm: handlers.NewLongtermHandler(a.engine, a.tester, a.log),
		Health:   health,
	}, a.recorder, a.log)

	server := api.New(a.cfg, a.log, router)

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	a.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	if a.recorder != nil {
		fmt.Println("  GET  /metrics")
	}
	fmt.Println("  POST /api/longterm/long-buy-recommendations")
	fmt.Println("  GET  /api/longterm/available-variants")
	fmt.Println("  POST /api/longterm/test-combination")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal or a failed listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}

// newScheduler registers the background jobs
func newScheduler(a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.New(retry.Policy{
		MaxAttempts:  2,
		InitialDelay: a.cfg.Engine.RetryDelay,
		MaxDelay:     a.cfg.Engine.RetryMaxDelay,
	}, a.log)

	// refetch anything that would expire before the next warm run
	interval, err := scheduler.Interval(a.cfg.Scheduler.WarmSchedule, time.Now())
	if err != nil {
		return nil, fmt.Errorf("warm schedule: %w", err)
	}
	if interval >= a.cfg.Engine.CacheTTL {
		a.log.WithFields(map[string]interface{}{
			"interval":  interval,
			"cache_ttl": a.cfg.Engine.CacheTTL,
		}).Warn("Warm interval is not shorter than the cache TTL; entries expire between runs")
	}

	if err := sched.AddJob(jobs.NewWarmDefaultJob(a.engine, a.cfg.Scheduler.WarmSchedule, interval, a.log)); err != nil {
		return nil, fmt.Errorf("add warm job: %w", err)
	}
	if err := sched.AddJob(jobs.NewCacheSweepJob(a.cache, a.cfg.Scheduler.SweepSchedule, a.log)); err != nil {
		return nil, fmt.Errorf("add sweep job: %w", err)
	}
	return sched, nil
}
