package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/recommend"
	"github.com/wonny/aegis-longterm/pkg/logger"
)

// LongtermHandler handles long-term recommendation endpoints
// ⭐ SSOT: 장기 추천 API 핸들러는 이 구조체에서만
type LongtermHandler struct {
	engine *recommend.Engine
	tester *recommend.Tester
	logger *logger.Logger
}

// NewLongtermHandler creates a new long-term handler
func NewLongtermHandler(engine *recommend.Engine, tester *recommend.Tester, log *logger.Logger) *LongtermHandler {
	return &LongtermHandler{
		engine: engine,
		tester: tester,
		logger: log.WithComponent("longterm_handler"),
	}
}

// StockResponse is one recommended stock on the wire
type StockResponse struct {
	Rank        int                  `json:"rank"`
	Symbol      string               `json:"symbol"`
	Price       float64              `json:"price"`
	Score       float64              `json:"score"`
	Categories  []contracts.Category `json:"categories"`
	Appearances int                  `json:"appearances"`
	Volume      contracts.Volume     `json:"volume"`
}

// RecommendationResponse is the body of a successful recommendation
type RecommendationResponse struct {
	Status               string                      `json:"status"`
	Recommendations      []StockResponse             `json:"long_buy_recommendations"`
	Combination          contracts.Combination       `json:"combination_used"`
	Metrics              contracts.Metrics           `json:"performance_metrics"`
	TotalRecommendations int                         `json:"total_recommendations"`
	Timestamp            time.Time                   `json:"timestamp"`
	Warnings             []string                    `json:"warnings,omitempty"`
	FailedCategories     []contracts.CategoryFailure `json:"failed_categories,omitempty"`
}

// VariantResponse describes one registered version
type VariantResponse struct {
	Version         string                  `json:"version"`
	Weight          float64                 `json:"weight"`
	ExpectedResults contracts.ExpectedCount `json:"expected_results"`
	Description     string                  `json:"description"`
}

// VariantsResponse is the body of GET /api/longterm/available-variants
type VariantsResponse struct {
	Status             string                                   `json:"status"`
	Variants           map[contracts.Category][]VariantResponse `json:"variants"`
	DefaultCombination contracts.Combination                    `json:"default_combination"`
	TotalCategories    int                                      `json:"total_categories"`
	TotalCombinations  int                                      `json:"total_combinations"`
}

// TestCombinationResponse is the body of a completed combination test
type TestCombinationResponse struct {
	Status               string                      `json:"status"`
	TestID               string                      `json:"test_id"`
	State                recommend.State             `json:"state"`
	Combination          contracts.Combination       `json:"combination"`
	Metrics              contracts.Metrics           `json:"performance_metrics"`
	SampleStocks         []StockResponse             `json:"sample_stocks"`
	TotalRecommendations int                         `json:"total_recommendations"`
	Warnings             []string                    `json:"warnings,omitempty"`
	FailedCategories     []contracts.CategoryFailure `json:"failed_categories,omitempty"`
	Timestamp            time.Time                   `json:"timestamp"`
}

// GetRecommendations returns ranked long-term buy candidates
// POST /api/longterm/long-buy-recommendations
func (h *LongtermHandler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	if bErr := bindRequest(r, &req); bErr != nil {
		bErr.respond(w)
		return
	}

	rec, err := h.engine.Recommend(r.Context(), req.ToRequest())
	if err != nil {
		h.logger.FromContext(r.Context()).WithError(err).Warn("Recommendation failed")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, RecommendationResponse{
		Status:               "success",
		Recommendations:      toStockResponses(rec.Stocks),
		Combination:          rec.Combination,
		Metrics:              rec.Metrics,
		TotalRecommendations: len(rec.Stocks),
		Timestamp:            rec.GeneratedAt,
		Warnings:             rec.Warnings,
		FailedCategories:     rec.FailedCategories,
	})
}

// GetAvailableVariants lists every registered variant grouped by category
// GET /api/longterm/available-variants
func (h *LongtermHandler) GetAvailableVariants(w http.ResponseWriter, r *http.Request) {
	registry := h.engine.Registry()

	grouped := make(map[contracts.Category][]VariantResponse, len(contracts.AllCategories))
	for cat, specs := range registry.ByCategory() {
		list := make([]VariantResponse, 0, len(specs))
		for _, spec := range specs {
			list = append(list, VariantResponse{
				Version:         spec.Key.Version,
				Weight:          spec.Weight,
				ExpectedResults: spec.ExpectedResults,
				Description:     spec.Description,
			})
		}
		grouped[cat] = list
	}

	respondJSON(w, http.StatusOK, VariantsResponse{
		Status:             "success",
		Variants:           grouped,
		DefaultCombination: registry.DefaultCombination(),
		TotalCategories:    len(contracts.AllCategories),
		TotalCombinations:  registry.TotalCombinations(),
	})
}

// TestCombination scores one explicit combination for comparison
// POST /api/longterm/test-combination
func (h *LongtermHandler) TestCombination(w http.ResponseWriter, r *http.Request) {
	var req TestCombinationRequest
	if bErr := bindRequest(r, &req); bErr != nil {
		bErr.respond(w)
		return
	}

	run, err := h.tester.Test(r.Context(), req.ToRequest())
	if err != nil {
		fields := map[string]interface{}{"combination": req.ToRequest().Combination.String()}
		if run != nil {
			fields["test_id"] = run.ID
		}
		h.logger.FromContext(r.Context()).WithFields(fields).WithError(err).Warn("Combination test failed")
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, TestCombinationResponse{
		Status:               "success",
		TestID:               run.ID,
		State:                run.State,
		Combination:          run.Combination,
		Metrics:              run.Metrics,
		SampleStocks:         toStockResponses(run.SampleStocks),
		TotalRecommendations: run.TotalRecommendations,
		Warnings:             run.Warnings,
		FailedCategories:     run.FailedCategories,
		Timestamp:            run.FinishedAt,
	})
}

func toStockResponses(stocks []contracts.RankedStock) []StockResponse {
	out := make([]StockResponse, 0, len(stocks))
	for _, s := range stocks {
		out = append(out, StockResponse{
			Rank:        s.Rank,
			Symbol:      s.Symbol,
			Price:       s.Price.InexactFloat64(),
			Score:       s.CombinedScore,
			Categories:  s.Categories,
			Appearances: s.Appearances,
			Volume:      s.Volume,
		})
	}
	return out
}
