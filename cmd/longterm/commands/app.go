package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wonny/aegis-longterm/internal/aggregator"
	"github.com/wonny/aegis-longterm/internal/cache"
	"github.com/wonny/aegis-longterm/internal/metrics"
	"github.com/wonny/aegis-longterm/internal/recommend"
	"github.com/wonny/aegis-longterm/internal/screening"
	"github.com/wonny/aegis-longterm/internal/variants"
	"github.com/wonny/aegis-longterm/pkg/config"
	"github.com/wonny/aegis-longterm/pkg/logger"
	"github.com/wonny/aegis-longterm/pkg/redis"
	"github.com/wonny/aegis-longterm/pkg/retry"
)

// app holds the wired engine shared by every command
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	redis    *redis.Client
	registry *variants.Registry
	client   *screening.Client
	cache    *cache.ResultCache
	engine   *recommend.Engine
	tester   *recommend.Tester
	recorder *metrics.Recorder
}

// newApp loads config and wires the pipeline in dependency order
func newApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if variantsFile != "" {
		cfg.VariantsFile = variantsFile
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Optional Redis (L2 cache + shared provider budget)
	rdb, err := redis.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 4. Variant catalog
	registry, err := variants.LoadOrDefault(cfg.VariantsFile)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("load variants: %w", err)
	}

	// 5. Metrics
	var rec *metrics.Recorder
	if cfg.MetricsEnabled {
		rec = metrics.New(prometheus.NewRegistry())
	}

	// 6. Screening client behind the shared result cache
	client := screening.NewFromConfig(cfg, rdb, log)

	var l2 *redis.Cache
	if rdb.Enabled() {
		l2 = redis.NewCache(rdb, "longterm")
	}
	rc := cache.New(cache.Options{
		Cooldown:   cfg.Engine.FailureCooldown,
		EvictAfter: cfg.Engine.EvictAfter,
		L2:         l2,
		Observer:   rec,
	}, log)

	// 7. Aggregator and engine
	agg := aggregator.New(registry, client, rc, aggregator.Options{
		TTL: cfg.Engine.CacheTTL,
		Retry: retry.Policy{
			MaxAttempts:  cfg.Engine.RetryAttempts,
			InitialDelay: cfg.Engine.RetryDelay,
			MaxDelay:     cfg.Engine.RetryMaxDelay,
			Multiplier:   2,
		},
		RetryAfter: cfg.Engine.FailureCooldown,
		Recorder:   rec,
	}, log)

	engine, err := recommend.NewEngine(registry, agg, recommend.Options{
		RequestTimeout: cfg.Engine.RequestTimeout,
		Recorder:       rec,
	}, log)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"variants_hash": registry.Hash(),
		"combinations":  registry.TotalCombinations(),
		"redis":         rdb.Enabled(),
		"metrics":       cfg.MetricsEnabled,
	}).Info("Engine initialized")

	return &app{
		cfg:      cfg,
		log:      log,
		redis:    rdb,
		registry: registry,
		client:   client,
		cache:    rc,
		engine:   engine,
		tester:   recommend.NewTester(engine),
		recorder: rec,
	}, nil
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close redis")
	}
}
