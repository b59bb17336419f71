package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/pkg/logger"
	"github.com/wonny/aegis-longterm/pkg/redis"
)

// Key identifies one cached variant fetch
type Key struct {
	Variant contracts.VariantKey
	Params  string // stable encoding of fetch parameters
}

// NewKey builds the cache key for a variant fetched with limitPerQuery
func NewKey(variant contracts.VariantKey, limitPerQuery int) Key {
	return Key{Variant: variant, Params: fmt.Sprintf("limit=%d", limitPerQuery)}
}

func (k Key) String() string {
	return k.Variant.String() + "?" + k.Params
}

// FetchFunc loads fresh rows for a key
type FetchFunc func(ctx context.Context) ([]contracts.RawStockRow, error)

// CooldownError is returned while a key is cooling down after a failed fetch
type CooldownError struct {
	Key   Key
	Until time.Time
	Err   error // the failure that started the cooldown
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s cooling down until %s: %v", e.Key, e.Until.Format(time.RFC3339), e.Err)
}

func (e *CooldownError) Unwrap() error {
	return e.Err
}

// RetryAfter returns the remaining cooldown from now
func (e *CooldownError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Observer receives cache events (implemented by internal/metrics)
type Observer interface {
	CacheEvent(event string)
}

// Options configures a ResultCache
type Options struct {
	Cooldown   time.Duration // failure cooldown (0 disables)
	EvictAfter int           // purge entries unused for EvictAfter*ttl (min 1)
	L2         *redis.Cache  // optional shared cache
	Observer   Observer
	Now        func() time.Time
}

// Stats is a point-in-time snapshot for health reporting
type Stats struct {
	Entries   int   `json:"entries"`
	InFlight  int   `json:"in_flight"`
	Cooling   int   `json:"cooling_down"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Fetches   int64 `json:"fetches"`
	Failures  int64 `json:"failures"`
	Cooldowns int64 `json:"cooldown_rejections"`
	L2Hits    int64 `json:"l2_hits"`
	Evictions int64 `json:"evictions"`
}

type entry struct {
	rows      []contracts.RawStockRow
	fetchedAt time.Time
	lastUsed  time.Time
	ttl       time.Duration
}

type failure struct {
	err   error
	until time.Time
}

// ResultCache is a TTL cache with at most one in-flight fetch per key
// ⭐ SSOT: 요청 간 공유되는 유일한 가변 상태
type ResultCache struct {
	mu       sync.Mutex
	entries  map[Key]*entry
	failures map[Key]failure
	inflight map[Key]bool
	stats    Stats

	group  singleflight.Group
	opts   Options
	logger *logger.Logger
}

// New creates an empty cache
func New(opts Options, log *logger.Logger) *ResultCache {
	if opts.EvictAfter < 1 {
		opts.EvictAfter = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}

	return &ResultCache{
		entries:  make(map[Key]*entry),
		failures: make(map[Key]failure),
		inflight: make(map[Key]bool),
		opts:     opts,
		logger:   log.WithComponent("result_cache"),
	}
}

type refreshAheadKey struct{}

// WithRefreshAhead makes GetOrFetch treat entries with at most d of freshness
// left as misses, so a periodic warmer renews them before they expire.
func WithRefreshAhead(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, refreshAheadKey{}, d)
}

func refreshAhead(ctx context.Context) time.Duration {
	d, _ := ctx.Value(refreshAheadKey{}).(time.Duration)
	return d
}

// fresh reports whether more than ahead of the ttl is left at now
func (e *entry) fresh(now time.Time, ttl, ahead time.Duration) bool {
	return ttl-now.Sub(e.fetchedAt) > ahead
}

// GetOrFetch returns fresh cached rows or joins/starts the single fetch for key.
// The shared fetch is detached from ctx; ctx only bounds this caller's wait.
func (c *ResultCache) GetOrFetch(ctx context.Context, key Key, fetch FetchFunc, ttl time.Duration) ([]contracts.RawStockRow, error) {
	if rows, done, err := c.lookup(key, ttl, refreshAhead(ctx)); done {
		return rows, err
	}

	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (interface{}, error) {
		return c.load(shared, key, fetch, ttl)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return copyRows(res.Val.([]contracts.RawStockRow)), nil
	}
}

// lookup serves fresh hits and cooldown rejections (done=true) without fetching
func (c *ResultCache) lookup(key Key, ttl, ahead time.Duration) ([]contracts.RawStockRow, bool, error) {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.fresh(now, ttl, ahead) {
		e.lastUsed = now
		c.stats.Hits++
		c.event("hit")
		return copyRows(e.rows), true, nil
	}

	if f, ok := c.failures[key]; ok && now.Before(f.until) {
		c.stats.Cooldowns++
		c.event("cooldown")
		return nil, true, &CooldownError{Key: key, Until: f.until, Err: f.err}
	}

	c.stats.Misses++
	c.event("miss")
	return nil, false, nil
}

// load runs inside the single flight
func (c *ResultCache) load(ctx context.Context, key Key, fetch FetchFunc, ttl time.Duration) ([]contracts.RawStockRow, error) {
	// a flight that finished between lookup and DoChan may already have refreshed key
	if rows, done, err := c.recheck(key, ttl, refreshAhead(ctx)); done {
		return rows, err
	}
	defer c.clearInflight(key)

	if rows, ok := c.loadL2(ctx, key, ttl); ok {
		return rows, nil
	}

	c.mu.Lock()
	c.stats.Fetches++
	c.event("fetch")
	c.mu.Unlock()

	rows, err := fetch(ctx)
	now := c.opts.Now()

	if err != nil {
		c.mu.Lock()
		c.stats.Failures++
		c.event("failure")
		if c.opts.Cooldown > 0 {
			c.failures[key] = failure{err: err, until: now.Add(c.opts.Cooldown)}
		}
		c.mu.Unlock()

		c.logger.WithFields(map[string]interface{}{
			"key":      key.String(),
			"cooldown": c.opts.Cooldown,
			"error":    err.Error(),
		}).Warn("result cache fetch failed")
		return nil, err
	}

	stored := copyRows(rows)
	c.store(key, stored, now, now, ttl)

	if c.opts.L2.Enabled() {
		if err := c.opts.L2.Set(ctx, l2Key(key), stored, ttl); err != nil {
			c.logger.WithError(err).WithField("key", key.String()).Warn("result cache L2 write failed")
		}
	}

	return stored, nil
}

func (c *ResultCache) recheck(key Key, ttl, ahead time.Duration) ([]contracts.RawStockRow, bool, error) {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && e.fresh(now, ttl, ahead) {
		e.lastUsed = now
		return e.rows, true, nil
	}
	if f, ok := c.failures[key]; ok && now.Before(f.until) {
		return nil, true, &CooldownError{Key: key, Until: f.until, Err: f.err}
	}

	c.inflight[key] = true
	return nil, false, nil
}

func (c *ResultCache) clearInflight(key Key) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

// loadL2 consults the shared cache; errors are logged and treated as a miss
func (c *ResultCache) loadL2(ctx context.Context, key Key, ttl time.Duration) ([]contracts.RawStockRow, bool) {
	if !c.opts.L2.Enabled() {
		return nil, false
	}

	var rows []contracts.RawStockRow
	found, err := c.opts.L2.Get(ctx, l2Key(key), &rows)
	if err != nil {
		c.logger.WithError(err).WithField("key", key.String()).Warn("result cache L2 read failed")
		return nil, false
	}
	if !found {
		return nil, false
	}

	// age the local entry by what L2 has already used of the ttl
	now := c.opts.Now()
	fetchedAt := now
	if remaining, err := c.opts.L2.TTL(ctx, l2Key(key)); err == nil && remaining > 0 {
		if remaining <= refreshAhead(ctx) {
			return nil, false
		}
		if remaining < ttl {
			fetchedAt = now.Add(remaining - ttl)
		}
	}

	c.mu.Lock()
	c.stats.L2Hits++
	c.event("l2_hit")
	c.mu.Unlock()

	c.store(key, rows, fetchedAt, now, ttl)
	return rows, true
}

// store replaces the whole entry for key and lazily evicts idle ones
func (c *ResultCache) store(key Key, rows []contracts.RawStockRow, fetchedAt, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{rows: rows, fetchedAt: fetchedAt, lastUsed: now, ttl: ttl}
	delete(c.failures, key)
	c.evictLocked(now)
}

// evictLocked purges idle entries and expired cooldowns. Keys in flight are kept.
func (c *ResultCache) evictLocked(now time.Time) int {
	evicted := 0
	for k, e := range c.entries {
		if c.inflight[k] {
			continue
		}
		if now.Sub(e.lastUsed) > time.Duration(c.opts.EvictAfter)*e.ttl {
			delete(c.entries, k)
			c.stats.Evictions++
			evicted++
		}
	}
	for k, f := range c.failures {
		if !now.Before(f.until) {
			delete(c.failures, k)
		}
	}
	return evicted
}

// Sweep evicts idle entries without waiting for the next store
func (c *ResultCache) Sweep() int {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictLocked(now)
}

// Stats returns a snapshot of cache counters
func (c *ResultCache) Stats() Stats {
	now := c.opts.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = len(c.entries)
	s.InFlight = len(c.inflight)
	for _, f := range c.failures {
		if now.Before(f.until) {
			s.Cooling++
		}
	}
	return s
}

func (c *ResultCache) event(name string) {
	if c.opts.Observer != nil {
		c.opts.Observer.CacheEvent(name)
	}
}

func l2Key(key Key) string {
	return redis.ScreeningRowsKey(string(key.Variant.Category), key.Variant.Version, key.Params)
}

func copyRows(rows []contracts.RawStockRow) []contracts.RawStockRow {
	if rows == nil {
		return nil
	}
	out := make([]contracts.RawStockRow, len(rows))
	copy(out, rows)
	return out
}
