package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-longterm/internal/cache"
	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/recommend"
	"github.com/wonny/aegis-longterm/pkg/logger"
)

// Recommender runs one recommendation
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*contracts.Recommendation, error)
}

// WarmDefaultJob refreshes the default combination before its cached rows expire
type WarmDefaultJob struct {
	engine       Recommender
	schedule     string
	refreshAhead time.Duration
	logger       *logger.Logger
}

// NewWarmDefaultJob creates a cache warm-up job. Entries with at most
// refreshAhead of freshness left are refetched; pass the schedule interval
// so nothing expires before the next run.
func NewWarmDefaultJob(engine Recommender, schedule string, refreshAhead time.Duration, log *logger.Logger) *WarmDefaultJob {
	return &WarmDefaultJob{
		engine:       engine,
		schedule:     schedule,
		refreshAhead: refreshAhead,
		logger:       log,
	}
}

// Name returns the job name
func (j *WarmDefaultJob) Name() string {
	return "warm_default_combination"
}

// Schedule returns the cron schedule
func (j *WarmDefaultJob) Schedule() string {
	return j.schedule
}

// Run fetches every category of the default combination through the cache.
// Partial degradation is logged, total outage is an error.
func (j *WarmDefaultJob) Run(ctx context.Context) error {
	if j.refreshAhead > 0 {
		ctx = cache.WithRefreshAhead(ctx, j.refreshAhead)
	}

	rec, err := j.engine.Recommend(ctx, recommend.Request{})
	if err != nil {
		return fmt.Errorf("warm default combination: %w", err)
	}

	if rec.Degraded() {
		j.logger.WithFields(map[string]interface{}{
			"failed":   len(rec.FailedCategories),
			"warnings": rec.Warnings,
		}).Warn("Cache warm-up degraded")
		return nil
	}

	j.logger.WithField("unique_stocks", rec.Metrics.UniqueStocks).Debug("Cache warm-up completed")
	return nil
}
