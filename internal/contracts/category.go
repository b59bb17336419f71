package contracts

import "fmt"

// Category is one of the four analytical screening dimensions
// ⭐ SSOT: 카테고리 정의는 여기서만
type Category string

const (
	CategoryFundamental Category = "fundamental"
	CategoryMomentum    Category = "momentum"
	CategoryValue       Category = "value"
	CategoryQuality     Category = "quality"
)

// AllCategories is the canonical order used for every deterministic iteration
var AllCategories = []Category{
	CategoryFundamental,
	CategoryMomentum,
	CategoryValue,
	CategoryQuality,
}

// ParseCategory converts a string to a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrUnknownVariant, s)
	}
	return c, nil
}

// Valid reports whether c is one of the four categories
func (c Category) Valid() bool {
	return c.Index() >= 0
}

// Index returns the canonical position of c (-1 if invalid)
func (c Category) Index() int {
	for i, cat := range AllCategories {
		if cat == c {
			return i
		}
	}
	return -1
}

// String returns string representation
func (c Category) String() string {
	return string(c)
}

// VariantKey identifies one registry entry
type VariantKey struct {
	Category Category `json:"category"`
	Version  string   `json:"version"`
}

// String returns "<category>/<version>"
func (k VariantKey) String() string {
	return fmt.Sprintf("%s/%s", k.Category, k.Version)
}

// Combination is one version choice per category
type Combination struct {
	Fundamental string `json:"fundamental"`
	Momentum    string `json:"momentum"`
	Value       string `json:"value"`
	Quality     string `json:"quality"`
}

// Get returns the version chosen for c
func (c Combination) Get(cat Category) string {
	switch cat {
	case CategoryFundamental:
		return c.Fundamental
	case CategoryMomentum:
		return c.Momentum
	case CategoryValue:
		return c.Value
	case CategoryQuality:
		return c.Quality
	}
	return ""
}

// Set returns a copy of c with version chosen for cat
func (c Combination) Set(cat Category, version string) Combination {
	switch cat {
	case CategoryFundamental:
		c.Fundamental = version
	case CategoryMomentum:
		c.Momentum = version
	case CategoryValue:
		c.Value = version
	case CategoryQuality:
		c.Quality = version
	}
	return c
}

// Key returns the VariantKey selected for cat
func (c Combination) Key(cat Category) VariantKey {
	return VariantKey{Category: cat, Version: c.Get(cat)}
}

// Keys returns the four keys in canonical order
func (c Combination) Keys() []VariantKey {
	keys := make([]VariantKey, 0, len(AllCategories))
	for _, cat := range AllCategories {
		keys = append(keys, c.Key(cat))
	}
	return keys
}

// String returns a compact representation for logs
func (c Combination) String() string {
	return fmt.Sprintf("fundamental=%s momentum=%s value=%s quality=%s",
		c.Fundamental, c.Momentum, c.Value, c.Quality)
}
