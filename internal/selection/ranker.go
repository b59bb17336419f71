package selection

import (
	"sort"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/pkg/logger"
)

// Ranker filters, orders and truncates scored stocks
// ⭐ SSOT: 랭킹 로직은 여기서만
type Ranker struct {
	logger *logger.Logger
}

// NewRanker creates a new ranker
func NewRanker(log *logger.Logger) *Ranker {
	if log == nil {
		log = logger.Nop()
	}
	return &Ranker{logger: log.WithComponent("ranker")}
}

// Rank drops stocks below minScore, sorts by score desc, appearances desc,
// symbol asc, and keeps the first topN. The input set is not modified.
func (r *Ranker) Rank(stocks map[string]*contracts.AggregatedStock, minScore float64, topN int) []contracts.RankedStock {
	ranked := make([]contracts.RankedStock, 0, len(stocks))
	for _, stock := range stocks {
		if stock.CombinedScore < minScore {
			continue
		}
		ranked = append(ranked, contracts.RankedStock{AggregatedStock: stock.Clone()})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(&ranked[i].AggregatedStock, &ranked[j].AggregatedStock)
	})

	eligible := len(ranked)
	if topN < 0 {
		topN = 0
	}
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	// Assign ranks
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	fields := map[string]interface{}{
		"candidates": len(stocks),
		"eligible":   eligible,
		"returned":   len(ranked),
		"min_score":  minScore,
	}
	if len(ranked) > 0 {
		fields["top_symbol"] = ranked[0].Symbol
		fields["top_score"] = ranked[0].CombinedScore
	}
	r.logger.WithFields(fields).Debug("Ranking completed")

	return ranked
}

func less(a, b *contracts.AggregatedStock) bool {
	if a.CombinedScore != b.CombinedScore {
		return a.CombinedScore > b.CombinedScore
	}
	if a.Appearances != b.Appearances {
		return a.Appearances > b.Appearances
	}
	return a.Symbol < b.Symbol
}
