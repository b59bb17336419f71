package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/aegis-longterm/internal/cache"
	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/metrics"
	"github.com/wonny/aegis-longterm/internal/screening"
	"github.com/wonny/aegis-longterm/pkg/logger"
	"github.com/wonny/aegis-longterm/pkg/retry"
)

// SpecSource resolves a complete combination to its four specs
type SpecSource interface {
	Specs(c contracts.Combination) (map[contracts.Category]contracts.VariantSpec, error)
}

// Options configures an Aggregator
type Options struct {
	TTL         time.Duration // result cache freshness
	Retry       retry.Policy  // per-category retry inside the cached fetch
	Concurrency int           // parallel category fetches (default 4)
	RetryAfter  time.Duration // hint when no cooldown deadline is known
	Recorder    *metrics.Recorder
}

// Aggregator fetches one variant per category and merges rows by symbol
// ⭐ SSOT: 카테고리 fan-out/fan-in 및 부분 실패 처리
type Aggregator struct {
	specs  SpecSource
	client contracts.ScreeningClient
	cache  *cache.ResultCache
	opts   Options
	logger *logger.Logger
}

// New creates an aggregator
func New(specs SpecSource, client contracts.ScreeningClient, rc *cache.ResultCache, opts Options, log *logger.Logger) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(contracts.AllCategories)
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Aggregator{
		specs:  specs,
		client: client,
		cache:  rc,
		opts:   opts,
		logger: log.WithComponent("aggregator"),
	}
}

// Aggregation is the merged candidate pool of one request
type Aggregation struct {
	Combination contracts.Combination
	Stocks      map[string]*contracts.AggregatedStock
	RowCounts   map[contracts.Category]int // accepted rows per successful category
	Succeeded   []contracts.Category       // canonical order
	Failures    []contracts.CategoryFailure
	Specs       map[contracts.Category]contracts.VariantSpec
}

// TotalRows sums raw row counts across successful categories
func (a *Aggregation) TotalRows() int {
	total := 0
	for _, n := range a.RowCounts {
		total += n
	}
	return total
}

// AllCategoriesFailedError is returned when no category produced rows
type AllCategoriesFailedError struct {
	Failures   []contracts.CategoryFailure
	RetryAfter time.Duration
}

func (e *AllCategoriesFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s/%s: %s", f.Category, f.Version, f.Kind))
	}
	return fmt.Sprintf("%s (%s)", contracts.ErrAllCategoriesFailed, strings.Join(parts, ", "))
}

// Is matches contracts.ErrAllCategoriesFailed
func (e *AllCategoriesFailedError) Is(target error) bool {
	return target == contracts.ErrAllCategoriesFailed
}

type categoryResult struct {
	rows     []contracts.RawStockRow
	attempts int
	err      error
}

// Aggregate fetches all four categories in parallel and merges the successes.
// Failed categories are recorded, not fatal, unless every category failed.
func (a *Aggregator) Aggregate(ctx context.Context, combination contracts.Combination, limitPerQuery int) (*Aggregation, error) {
	specs, err := a.specs.Specs(combination)
	if err != nil {
		return nil, err
	}

	results := make([]categoryResult, len(contracts.AllCategories))

	var g errgroup.Group
	g.SetLimit(a.opts.Concurrency)
	for i, cat := range contracts.AllCategories {
		i, spec := i, specs[cat]
		g.Go(func() error {
			results[i] = a.fetchCategory(ctx, spec, limitPerQuery)
			return nil
		})
	}
	_ = g.Wait()

	agg := &Aggregation{
		Combination: combination,
		Stocks:      make(map[string]*contracts.AggregatedStock),
		RowCounts:   make(map[contracts.Category]int),
		Specs:       specs,
	}

	// merge in canonical order so the first category wins price/volume
	for i, cat := range contracts.AllCategories {
		res := results[i]
		if res.err != nil {
			agg.Failures = append(agg.Failures, a.failure(specs[cat], res))
			continue
		}
		a.merge(agg, cat, res.rows)
	}

	if len(agg.Succeeded) == 0 {
		return nil, &AllCategoriesFailedError{
			Failures:   agg.Failures,
			RetryAfter: a.retryAfter(results),
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"combination": combination.String(),
		"unique":      len(agg.Stocks),
		"rows":        agg.TotalRows(),
		"failed":      len(agg.Failures),
	}).Debug("aggregation completed")

	return agg, nil
}

// fetchCategory goes through the shared cache; retries run inside the flight
func (a *Aggregator) fetchCategory(ctx context.Context, spec contracts.VariantSpec, limit int) categoryResult {
	// written by the flight goroutine, which may outlive this call
	var attempts atomic.Int32

	policy := a.opts.Retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		a.logger.WithFields(map[string]interface{}{
			"variant": spec.Key.String(),
			"attempt": attempt,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("retrying screening fetch")
	}

	fetch := func(fctx context.Context) ([]contracts.RawStockRow, error) {
		var rows []contracts.RawStockRow
		n, err := policy.Do(fctx, func(actx context.Context) error {
			start := time.Now()
			var ferr error
			rows, ferr = a.client.Fetch(actx, spec, limit)
			a.opts.Recorder.ProviderFetch(string(spec.Key.Category), outcome(ferr), time.Since(start).Seconds())
			return ferr
		}, screening.IsRetryable)
		attempts.Store(int32(n))
		return rows, err
	}

	rows, err := a.cache.GetOrFetch(ctx, cache.NewKey(spec.Key, limit), fetch, a.opts.TTL)
	return categoryResult{rows: rows, attempts: int(attempts.Load()), err: err}
}

func (a *Aggregator) merge(agg *Aggregation, cat contracts.Category, rows []contracts.RawStockRow) {
	agg.Succeeded = append(agg.Succeeded, cat)

	accepted := 0
	for _, row := range rows {
		stock, ok := agg.Stocks[row.Symbol]
		if !ok {
			stock = contracts.NewAggregatedStock(row)
			agg.Stocks[row.Symbol] = stock
		}
		if !stock.AddCategory(cat, row.Score) {
			a.logger.WithFields(map[string]interface{}{
				"category": string(cat),
				"symbol":   row.Symbol,
			}).Warn("duplicate symbol within one category, keeping first row")
			continue
		}
		accepted++
	}
	agg.RowCounts[cat] = accepted
}

func (a *Aggregator) failure(spec contracts.VariantSpec, res categoryResult) contracts.CategoryFailure {
	kind := string(screening.KindOf(res.err))
	if kind == "" {
		switch {
		case errors.Is(res.err, context.Canceled):
			kind = "canceled"
		default:
			kind = "unknown"
		}
	}

	a.opts.Recorder.CategoryFailure(string(spec.Key.Category), kind)
	a.logger.WithFields(map[string]interface{}{
		"variant":  spec.Key.String(),
		"kind":     kind,
		"attempts": res.attempts,
		"error":    res.err.Error(),
	}).Warn("category skipped")

	return contracts.CategoryFailure{
		Category: spec.Key.Category,
		Version:  spec.Key.Version,
		Kind:     kind,
		Reason:   res.err.Error(),
		Attempts: res.attempts,
	}
}

// retryAfter is the longest remaining cooldown, or the configured default
func (a *Aggregator) retryAfter(results []categoryResult) time.Duration {
	now := time.Now()
	var longest time.Duration
	for _, res := range results {
		var cd *cache.CooldownError
		if errors.As(res.err, &cd) {
			if d := cd.RetryAfter(now); d > longest {
				longest = d
			}
		}
	}
	if longest > 0 {
		return longest
	}
	return a.opts.RetryAfter
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := screening.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
