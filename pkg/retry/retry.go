package retry

import (
	"context"
	"time"
)

// Policy is a bounded retry schedule with exponential backoff
// ⭐ SSOT: 재시도 정책은 여기서만 정의
type Policy struct {
	MaxAttempts  int           // total attempts including the first (min 1)
	InitialDelay time.Duration // delay before the 2nd attempt
	MaxDelay     time.Duration // backoff cap (0 = uncapped)
	Multiplier   float64       // backoff growth (< 1 treated as 2)

	// OnRetry is called before each backoff sleep
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Retryable decides whether an error deserves another attempt
type Retryable func(err error) bool

// Always retries every error
func Always(error) bool { return true }

// Backoff returns the delay after the given failed attempt (1-based)
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}

	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * mult)
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn until it succeeds, a non-retryable error occurs, attempts run out
// or ctx is done. Returns the number of attempts made and the last error.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error, retryable Retryable) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if retryable == nil {
		retryable = Always
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if attempt == maxAttempts || !retryable(err) {
			return attempt, err
		}

		delay := p.Backoff(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if !sleep(ctx, delay) {
			return attempt, err
		}
	}

	return maxAttempts, err
}

// sleep waits for d or until ctx is done; false means ctx ended first
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
