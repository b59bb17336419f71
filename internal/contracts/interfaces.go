package contracts

import "context"

// ScreeningClient fetches raw candidate rows for one variant
// ⭐ SSOT: 외부 스크리닝 제공자 인터페이스
type ScreeningClient interface {
	Fetch(ctx context.Context, spec VariantSpec, limitPerQuery int) ([]RawStockRow, error)
	Ping(ctx context.Context) error
}

// PriceEnricher refreshes prices on ranked output (optional collaborator)
type PriceEnricher interface {
	Enrich(ctx context.Context, stocks []RankedStock) ([]RankedStock, error)
}
