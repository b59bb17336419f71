package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// State is the lifecycle of one combination test
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// DefaultSampleSize is the number of top stocks kept on a test run
const DefaultSampleSize = 5

// ErrInvalidTransition is returned for an illegal state change
var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State][]State{
	StateIdle:    {StateRunning},
	StateRunning: {StateCompleted, StateFailed},
}

// TestRun is the result of testing one combination
type TestRun struct {
	ID                   string                      `json:"test_id"`
	State                State                       `json:"state"`
	Combination          contracts.Combination       `json:"combination"`
	Metrics              contracts.Metrics           `json:"performance_metrics"`
	SampleStocks         []contracts.RankedStock     `json:"sample_stocks"`
	TotalRecommendations int                         `json:"total_recommendations"`
	FailedCategories     []contracts.CategoryFailure `json:"failed_categories,omitempty"`
	Warnings             []string                    `json:"warnings,omitempty"`
	StartedAt            time.Time                   `json:"started_at"`
	FinishedAt           time.Time                   `json:"finished_at"`
	Error                string                      `json:"error,omitempty"`
}

// NewTestRun creates an idle run
func NewTestRun(c contracts.Combination) *TestRun {
	return &TestRun{
		ID:          uuid.NewString(),
		State:       StateIdle,
		Combination: c,
	}
}

func (r *TestRun) transition(to State) error {
	for _, allowed := range transitions[r.State] {
		if allowed == to {
			r.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, r.State, to)
}

// Start moves Idle → Running
func (r *TestRun) Start(now time.Time) error {
	if err := r.transition(StateRunning); err != nil {
		return err
	}
	r.StartedAt = now
	return nil
}

// Complete moves Running → Completed with the pipeline result
func (r *TestRun) Complete(now time.Time, rec *contracts.Recommendation, sampleSize int) error {
	if err := r.transition(StateCompleted); err != nil {
		return err
	}
	r.FinishedAt = now
	r.Metrics = rec.Metrics
	r.TotalRecommendations = len(rec.Stocks)
	r.FailedCategories = rec.FailedCategories
	r.Warnings = rec.Warnings

	sample := rec.Stocks
	if len(sample) > sampleSize {
		sample = sample[:sampleSize]
	}
	r.SampleStocks = append([]contracts.RankedStock(nil), sample...)
	return nil
}

// Fail moves Running → Failed
func (r *TestRun) Fail(now time.Time, err error) error {
	if terr := r.transition(StateFailed); terr != nil {
		return terr
	}
	r.FinishedAt = now
	r.Error = err.Error()
	return nil
}

// TestRequest names all four versions explicitly
type TestRequest struct {
	Combination   contracts.Combination
	LimitPerQuery int
	MinScore      *float64 // nil means DefaultMinScore
	SampleSize    int
}

// Tester runs arbitrary combinations through the engine pipeline.
// It never touches the registry and shares only the result cache.
type Tester struct {
	engine *Engine
	now    func() time.Time
}

// NewTester creates a tester over engine
func NewTester(engine *Engine) *Tester {
	return &Tester{engine: engine, now: engine.opts.Now}
}

// Test runs one combination. Invalid combinations fail before a run exists.
// A run whose pipeline fails is returned in StateFailed together with the error.
func (t *Tester) Test(ctx context.Context, req TestRequest) (*TestRun, error) {
	for _, cat := range contracts.AllCategories {
		if req.Combination.Get(cat) == "" {
			return nil, fmt.Errorf("%w: %s_version is required", contracts.ErrInvalidRequest, cat)
		}
	}
	if _, err := t.engine.Registry().Specs(req.Combination); err != nil {
		return nil, err
	}
	if _, err := (Request{LimitPerQuery: req.LimitPerQuery, MinScore: req.MinScore}).Normalize(); err != nil {
		return nil, err
	}

	sampleSize := req.SampleSize
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	run := NewTestRun(req.Combination)
	if err := run.Start(t.now().UTC()); err != nil {
		return nil, err
	}

	rec, err := t.engine.Recommend(ctx, Request{
		Combination:        req.Combination,
		LimitPerQuery:      req.LimitPerQuery,
		MinScore:           req.MinScore,
		TopRecommendations: DefaultTopRecommendations,
	})
	if err != nil {
		_ = run.Fail(t.now().UTC(), err)
		return run, err
	}

	if err := run.Complete(t.now().UTC(), rec, sampleSize); err != nil {
		return nil, err
	}
	return run, nil
}

// Explore tests every registered combination in canonical order and hands
// each run to fn. Failed runs are reported, not fatal; fn's error stops the walk.
func (t *Tester) Explore(ctx context.Context, limitPerQuery int, minScore *float64, fn func(*TestRun) error) error {
	for _, c := range t.engine.Registry().Combinations() {
		if err := ctx.Err(); err != nil {
			return err
		}

		run, err := t.Test(ctx, TestRequest{Combination: c, LimitPerQuery: limitPerQuery, MinScore: minScore})
		if run == nil {
			return err
		}
		if err := fn(run); err != nil {
			return err
		}
	}
	return nil
}
