package selection

import (
	"sort"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// MetricsPolicy is the performance_score blend
type MetricsPolicy struct {
	DiversityWeight float64
	ScoreWeight     float64
}

// DefaultMetricsPolicy returns 0.4 diversity / 0.6 mean score
func DefaultMetricsPolicy() MetricsPolicy {
	return MetricsPolicy{DiversityWeight: 0.4, ScoreWeight: 0.6}
}

// MetricsCalculator summarizes the full merged set (before ranking)
type MetricsCalculator struct {
	policy MetricsPolicy
}

// NewMetricsCalculator creates a calculator
func NewMetricsCalculator(policy MetricsPolicy) *MetricsCalculator {
	return &MetricsCalculator{policy: policy}
}

// Calculate derives pool metrics. totalRows counts every raw row of the
// successful categories; maxAchievable scales the mean score to 0..100.
func (m *MetricsCalculator) Calculate(stocks map[string]*contracts.AggregatedStock, totalRows int, maxAchievable float64) contracts.Metrics {
	out := contracts.Metrics{
		UniqueStocks:     len(stocks),
		TotalStocksFound: totalRows,
	}
	if len(stocks) == 0 {
		return out
	}

	// sum in symbol order so the mean is reproducible
	symbols := make([]string, 0, len(stocks))
	for sym := range stocks {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	sum := 0.0
	for _, sym := range symbols {
		s := stocks[sym]
		if s.Appearances >= 2 {
			out.MultiCategoryStocks++
		}
		sum += s.CombinedScore
	}

	out.DiversityScore = Diversity(out.MultiCategoryStocks, out.UniqueStocks)
	out.PerformanceScore = m.Performance(out.DiversityScore, sum/float64(len(stocks)), maxAchievable)
	return out
}

// Diversity = multi / unique × 100 (0 when unique is 0)
func Diversity(multi, unique int) float64 {
	if unique == 0 {
		return 0
	}
	return float64(multi) / float64(unique) * 100
}

// Performance blends diversity (0..100) and the mean score scaled to 0..100.
// Increasing in both inputs; clamped to [0, 100].
func (m *MetricsCalculator) Performance(diversity, meanScore, maxAchievable float64) float64 {
	scorePct := 0.0
	if maxAchievable > 0 {
		scorePct = clamp(meanScore/maxAchievable*100, 0, 100)
	}
	return clamp(m.policy.DiversityWeight*diversity+m.policy.ScoreWeight*scorePct, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
