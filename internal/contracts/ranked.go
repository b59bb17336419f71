package contracts

// RankedStock is an aggregated stock with its position in the output
// ⭐ SSOT: Ranker → 응답 조립 전달
type RankedStock struct {
	Rank int `json:"rank"` // 1-based ranking
	AggregatedStock
}
