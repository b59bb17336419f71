package contracts

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// RawStockRow is one candidate row returned for a variant fetch
type RawStockRow struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Volume Volume          `json:"volume"`
	Score  float64         `json:"score"` // category raw score in [0,1]
}

// Volume is a share count or unknown ("N/A")
type Volume struct {
	n     int64
	known bool
}

const volumeUnknown = "N/A"

// VolumeOf returns a known volume
func VolumeOf(n int64) Volume {
	return Volume{n: n, known: true}
}

// UnknownVolume returns the "N/A" volume
func UnknownVolume() Volume {
	return Volume{}
}

// Value returns the volume and whether it is known
func (v Volume) Value() (int64, bool) {
	return v.n, v.known
}

func (v Volume) String() string {
	if !v.known {
		return volumeUnknown
	}
	return strconv.FormatInt(v.n, 10)
}

// MarshalJSON encodes a number or "N/A"
func (v Volume) MarshalJSON() ([]byte, error) {
	if !v.known {
		return json.Marshal(volumeUnknown)
	}
	return json.Marshal(v.n)
}

// UnmarshalJSON accepts a number, a numeric string, "N/A" or null
func (v *Volume) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = UnknownVolume()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == volumeUnknown {
			*v = UnknownVolume()
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid volume %q", s)
		}
		*v = VolumeOf(n)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid volume: %w", err)
	}
	*v = VolumeOf(int64(f))
	return nil
}

// AggregatedStock merges one symbol's rows across categories for a request
type AggregatedStock struct {
	Symbol         string               `json:"symbol"`
	Price          decimal.Decimal      `json:"price"`
	Volume         Volume               `json:"volume"`
	Categories     []Category           `json:"categories"`
	CategoryScores map[Category]float64 `json:"category_scores"`
	Appearances    int                  `json:"appearances"`
	CombinedScore  float64              `json:"score"`
}

// NewAggregatedStock starts an aggregate from the first row seen for a symbol
func NewAggregatedStock(row RawStockRow) *AggregatedStock {
	return &AggregatedStock{
		Symbol:         row.Symbol,
		Price:          row.Price,
		Volume:         row.Volume,
		CategoryScores: make(map[Category]float64, len(AllCategories)),
	}
}

// AddCategory records membership in c with its raw score.
// Categories stay in canonical order and Appearances tracks len(Categories).
// Returns false (keeping the first value) if c was already recorded.
func (s *AggregatedStock) AddCategory(c Category, score float64) bool {
	if s.HasCategory(c) {
		return false
	}
	if s.CategoryScores == nil {
		s.CategoryScores = make(map[Category]float64, len(AllCategories))
	}

	idx := len(s.Categories)
	for i, existing := range s.Categories {
		if c.Index() < existing.Index() {
			idx = i
			break
		}
	}
	s.Categories = append(s.Categories, "")
	copy(s.Categories[idx+1:], s.Categories[idx:])
	s.Categories[idx] = c

	s.CategoryScores[c] = score
	s.Appearances = len(s.Categories)
	return true
}

// HasCategory reports membership in c
func (s *AggregatedStock) HasCategory(c Category) bool {
	for _, existing := range s.Categories {
		if existing == c {
			return true
		}
	}
	return false
}

// Clone returns a deep copy
func (s *AggregatedStock) Clone() AggregatedStock {
	out := *s
	out.Categories = append([]Category(nil), s.Categories...)
	out.CategoryScores = make(map[Category]float64, len(s.CategoryScores))
	for k, v := range s.CategoryScores {
		out.CategoryScores[k] = v
	}
	return out
}
