package jobs

import (
	"context"

	"github.com/wonny/aegis-longterm/pkg/logger"
)

// Sweeper evicts idle cache entries
type Sweeper interface {
	Sweep() int
}

// CacheSweepJob purges result cache entries nobody asked for recently
type CacheSweepJob struct {
	cache    Sweeper
	schedule string
	logger   *logger.Logger
}

// NewCacheSweepJob creates a new cache sweep job
func NewCacheSweepJob(cache Sweeper, schedule string, log *logger.Logger) *CacheSweepJob {
	return &CacheSweepJob{
		cache:    cache,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *CacheSweepJob) Name() string {
	return "cache_sweep"
}

// Schedule returns the cron schedule
func (j *CacheSweepJob) Schedule() string {
	return j.schedule
}

// Run executes the cache sweep
func (j *CacheSweepJob) Run(ctx context.Context) error {
	if count := j.cache.Sweep(); count > 0 {
		j.logger.WithField("removed", count).Info("Cache sweep completed")
	}
	return nil
}
