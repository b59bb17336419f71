package contracts

import "time"

// Metrics summarizes the full merged candidate pool
type Metrics struct {
	UniqueStocks        int     `json:"unique_stocks"`
	TotalStocksFound    int     `json:"total_stocks_found"`
	MultiCategoryStocks int     `json:"multi_category_stocks"`
	DiversityScore      float64 `json:"diversity_score"`
	PerformanceScore    float64 `json:"performance_score"`
}

// CategoryFailure records a category skipped after retries
type CategoryFailure struct {
	Category Category `json:"category"`
	Version  string   `json:"version"`
	Kind     string   `json:"kind"`
	Reason   string   `json:"reason"`
	Attempts int      `json:"attempts"`
}

// Recommendation is the ranked result of one request
// len(Stocks) <= requested top N, every stock scores >= min score
type Recommendation struct {
	Stocks           []RankedStock     `json:"stocks"`
	Combination      Combination       `json:"combination_used"`
	FailedCategories []CategoryFailure `json:"failed_categories,omitempty"`
	Metrics          Metrics           `json:"performance_metrics"`
	GeneratedAt      time.Time         `json:"generated_at"`
	Warnings         []string          `json:"warnings,omitempty"`
}

// Degraded reports whether some categories were skipped
func (r *Recommendation) Degraded() bool {
	return len(r.FailedCategories) > 0
}
