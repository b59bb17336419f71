package selection

import (
	"fmt"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// BonusPolicy is the multi-category bonus indexed by appearances (0..4)
type BonusPolicy [5]float64

// DefaultBonusPolicy returns the production bonus steps
func DefaultBonusPolicy() BonusPolicy {
	return BonusPolicy{
		0,    // unused
		0,    // 1 category
		0.10, // 2 categories
		0.20, // 3 categories
		0.35, // all four
	}
}

// Bonus returns the bonus for n appearances (clamped to 0..4)
func (b BonusPolicy) Bonus(n int) float64 {
	if n < 0 {
		n = 0
	}
	if n >= len(b) {
		n = len(b) - 1
	}
	return b[n]
}

// Max is the bonus for appearing in every category
func (b BonusPolicy) Max() float64 {
	return b[len(b)-1]
}

// Validate enforces non-negative, non-decreasing steps
func (b BonusPolicy) Validate() error {
	for n := 1; n < len(b); n++ {
		if b[n] < 0 {
			return fmt.Errorf("bonus(%d) must be >= 0, got %v", n, b[n])
		}
		if b[n] < b[n-1] {
			return fmt.Errorf("bonus must be non-decreasing: bonus(%d)=%v < bonus(%d)=%v", n, b[n], n-1, b[n-1])
		}
	}
	return nil
}

// Scorer computes combined scores from per-request variant weights
// ⭐ SSOT: combined_score 계산은 여기서만
type Scorer struct {
	bonus BonusPolicy
}

// NewScorer creates a scorer; the policy must already be valid
func NewScorer(bonus BonusPolicy) *Scorer {
	return &Scorer{bonus: bonus}
}

// Score = Σ weight(c)·score[c] + bonus(appearances)
func (s *Scorer) Score(stock *contracts.AggregatedStock, specs map[contracts.Category]contracts.VariantSpec) float64 {
	total := 0.0
	// Categories is kept in canonical order, so the sum is reproducible
	for _, cat := range stock.Categories {
		total += specs[cat].Weight * stock.CategoryScores[cat]
	}
	return total + s.bonus.Bonus(stock.Appearances)
}

// ScoreAll sets CombinedScore on every stock
func (s *Scorer) ScoreAll(stocks map[string]*contracts.AggregatedStock, specs map[contracts.Category]contracts.VariantSpec) {
	for _, stock := range stocks {
		stock.CombinedScore = s.Score(stock, specs)
	}
}

// MaxAchievable is the score of a stock scoring 1.0 in each of cats
func (s *Scorer) MaxAchievable(specs map[contracts.Category]contracts.VariantSpec, cats []contracts.Category) float64 {
	total := 0.0
	for _, cat := range cats {
		total += specs[cat].Weight
	}
	return total + s.bonus.Bonus(len(cats))
}
