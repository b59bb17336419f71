package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis-longterm/internal/aggregator"
	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/metrics"
	"github.com/wonny/aegis-longterm/internal/selection"
	"github.com/wonny/aegis-longterm/internal/variants"
	"github.com/wonny/aegis-longterm/pkg/logger"
)

// Request defaults and bounds
const (
	DefaultLimitPerQuery      = 30
	DefaultMinScore           = 0.6
	DefaultTopRecommendations = 20
	DefaultRequestTimeout     = 30 * time.Second

	MaxLimitPerQuery      = 500
	MaxTopRecommendations = 200
)

// Request is one recommendation request. Empty combination fields use registry defaults.
// A nil MinScore means DefaultMinScore; an explicit 0 admits every stock.
type Request struct {
	Combination        contracts.Combination
	LimitPerQuery      int
	MinScore           *float64
	TopRecommendations int
}

// Score returns a pointer for Request.MinScore
func Score(v float64) *float64 {
	return &v
}

// Normalize fills zero limits and a nil min score with defaults and checks bounds
func (r Request) Normalize() (Request, error) {
	if r.MinScore == nil {
		r.MinScore = Score(DefaultMinScore)
	}
	if r.LimitPerQuery == 0 {
		r.LimitPerQuery = DefaultLimitPerQuery
	}
	if r.TopRecommendations == 0 {
		r.TopRecommendations = DefaultTopRecommendations
	}

	if r.LimitPerQuery < 1 || r.LimitPerQuery > MaxLimitPerQuery {
		return r, fmt.Errorf("%w: limit_per_query must be in [1, %d]", contracts.ErrInvalidRequest, MaxLimitPerQuery)
	}
	if r.TopRecommendations < 1 || r.TopRecommendations > MaxTopRecommendations {
		return r, fmt.Errorf("%w: top_recommendations must be in [1, %d]", contracts.ErrInvalidRequest, MaxTopRecommendations)
	}
	if *r.MinScore < 0 {
		return r, fmt.Errorf("%w: min_score must be >= 0", contracts.ErrInvalidRequest)
	}
	return r, nil
}

// Options configures an Engine
type Options struct {
	RequestTimeout time.Duration
	Bonus          selection.BonusPolicy
	Blend          selection.MetricsPolicy
	Enricher       contracts.PriceEnricher // optional
	Recorder       *metrics.Recorder
	Now            func() time.Time
}

// Engine runs aggregate → score → metrics → rank for one combination
// ⭐ SSOT: 추천 파이프라인 조립은 여기서만
type Engine struct {
	registry   *variants.Registry
	aggregator *aggregator.Aggregator
	scorer     *selection.Scorer
	calculator *selection.MetricsCalculator
	ranker     *selection.Ranker
	opts       Options
	logger     *logger.Logger
}

// NewEngine creates an engine. A zero Bonus or Blend uses the defaults.
func NewEngine(registry *variants.Registry, agg *aggregator.Aggregator, opts Options, log *logger.Logger) (*Engine, error) {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Bonus == (selection.BonusPolicy{}) {
		opts.Bonus = selection.DefaultBonusPolicy()
	}
	if err := opts.Bonus.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bonus policy: %w", err)
	}
	if opts.Blend == (selection.MetricsPolicy{}) {
		opts.Blend = selection.DefaultMetricsPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Engine{
		registry:   registry,
		aggregator: agg,
		scorer:     selection.NewScorer(opts.Bonus),
		calculator: selection.NewMetricsCalculator(opts.Blend),
		ranker:     selection.NewRanker(log),
		opts:       opts,
		logger:     log.WithComponent("engine"),
	}, nil
}

// Registry returns the variant catalog
func (e *Engine) Registry() *variants.Registry {
	return e.registry
}

// Recommend produces a ranked recommendation. Only unknown variants, invalid
// requests and total provider outage are errors; partial failures become warnings.
func (e *Engine) Recommend(ctx context.Context, req Request) (*contracts.Recommendation, error) {
	req, err := req.Normalize()
	if err != nil {
		e.opts.Recorder.Recommendation("rejected")
		return nil, err
	}

	combination, err := e.registry.Resolve(req.Combination)
	if err != nil {
		e.opts.Recorder.Recommendation("rejected")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()

	start := time.Now()
	agg, err := e.aggregator.Aggregate(ctx, combination, req.LimitPerQuery)
	if err != nil {
		e.opts.Recorder.Recommendation("unavailable")
		return nil, err
	}

	e.scorer.ScoreAll(agg.Stocks, agg.Specs)
	maxAchievable := e.scorer.MaxAchievable(agg.Specs, agg.Succeeded)
	poolMetrics := e.calculator.Calculate(agg.Stocks, agg.TotalRows(), maxAchievable)
	ranked := e.ranker.Rank(agg.Stocks, *req.MinScore, req.TopRecommendations)

	warnings := make([]string, 0, len(agg.Failures))
	for _, f := range agg.Failures {
		warnings = append(warnings, fmt.Sprintf("category %s (%s) skipped: %s", f.Category, f.Version, f.Kind))
	}

	if e.opts.Enricher != nil && len(ranked) > 0 {
		enriched, err := e.opts.Enricher.Enrich(ctx, ranked)
		if err != nil {
			e.logger.WithError(err).Warn("price enrichment failed")
			warnings = append(warnings, "price enrichment failed: "+err.Error())
		} else {
			ranked = enriched
		}
	}

	rec := &contracts.Recommendation{
		Stocks:           ranked,
		Combination:      combination,
		FailedCategories: agg.Failures,
		Metrics:          poolMetrics,
		GeneratedAt:      e.opts.Now().UTC(),
	}
	if len(warnings) > 0 {
		rec.Warnings = warnings
	}

	outcome := "ok"
	if rec.Degraded() {
		outcome = "degraded"
	}
	e.opts.Recorder.Recommendation(outcome)

	e.logger.WithFields(map[string]interface{}{
		"combination":    combination.String(),
		"unique_stocks":  poolMetrics.UniqueStocks,
		"multi_category": poolMetrics.MultiCategoryStocks,
		"returned":       len(ranked),
		"failed":         len(agg.Failures),
		"duration":       time.Since(start),
	}).Info("Recommendation completed")

	return rec, nil
}
