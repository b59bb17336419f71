package variants

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

// Registry is the static (category, version) → VariantSpec catalog
// ⭐ SSOT: 생성 후 읽기 전용, 동시 접근 안전
type Registry struct {
	specs    map[contracts.VariantKey]contracts.VariantSpec
	versions map[contracts.Category][]string // registration order
	defaults contracts.Combination
	hash     string
}

// New builds a registry from a validated catalog file
func New(file *File) (*Registry, error) {
	if err := Validate(file); err != nil {
		return nil, err
	}

	r := &Registry{
		specs:    make(map[contracts.VariantKey]contracts.VariantSpec),
		versions: make(map[contracts.Category][]string),
	}

	for _, cat := range contracts.AllCategories {
		for _, e := range file.Variants[string(cat)] {
			key := contracts.VariantKey{Category: cat, Version: e.Version}
			r.specs[key] = contracts.VariantSpec{
				Key:             key,
				Query:           e.Query,
				Weight:          e.Weight,
				ExpectedResults: e.ExpectedResults,
				Description:     e.Description,
			}
			r.versions[cat] = append(r.versions[cat], e.Version)
		}
		r.defaults = r.defaults.Set(cat, file.Defaults[string(cat)])
	}

	hash, err := Hash(file)
	if err != nil {
		return nil, fmt.Errorf("failed to hash catalog: %w", err)
	}
	r.hash = hash

	return r, nil
}

// Lookup resolves one key or fails with ErrUnknownVariant
func (r *Registry) Lookup(key contracts.VariantKey) (contracts.VariantSpec, error) {
	spec, ok := r.specs[key]
	if !ok {
		return contracts.VariantSpec{}, &contracts.UnknownVariantError{Category: key.Category, Version: key.Version}
	}
	return spec, nil
}

// Versions returns the registered versions of a category
func (r *Registry) Versions(cat contracts.Category) []string {
	return append([]string(nil), r.versions[cat]...)
}

// ByCategory returns every spec grouped by category, in registration order
func (r *Registry) ByCategory() map[contracts.Category][]contracts.VariantSpec {
	out := make(map[contracts.Category][]contracts.VariantSpec, len(contracts.AllCategories))
	for _, cat := range contracts.AllCategories {
		for _, v := range r.versions[cat] {
			out[cat] = append(out[cat], r.specs[contracts.VariantKey{Category: cat, Version: v}])
		}
	}
	return out
}

// DefaultCombination returns the production default combination
func (r *Registry) DefaultCombination() contracts.Combination {
	return r.defaults
}

// Resolve fills empty categories with defaults and validates the rest
func (r *Registry) Resolve(partial contracts.Combination) (contracts.Combination, error) {
	resolved := partial
	for _, cat := range contracts.AllCategories {
		version := partial.Get(cat)
		if version == "" {
			resolved = resolved.Set(cat, r.defaults.Get(cat))
			continue
		}
		if _, err := r.Lookup(contracts.VariantKey{Category: cat, Version: version}); err != nil {
			return contracts.Combination{}, err
		}
	}
	return resolved, nil
}

// Specs resolves all four keys of a complete combination
func (r *Registry) Specs(c contracts.Combination) (map[contracts.Category]contracts.VariantSpec, error) {
	specs := make(map[contracts.Category]contracts.VariantSpec, len(contracts.AllCategories))
	for _, key := range c.Keys() {
		spec, err := r.Lookup(key)
		if err != nil {
			return nil, err
		}
		specs[key.Category] = spec
	}
	return specs, nil
}

// TotalCombinations is the product of per-category version counts
func (r *Registry) TotalCombinations() int {
	total := 1
	for _, cat := range contracts.AllCategories {
		total *= len(r.versions[cat])
	}
	return total
}

// Combinations enumerates every combination in canonical order
// (fundamental varies slowest, quality fastest)
func (r *Registry) Combinations() []contracts.Combination {
	out := []contracts.Combination{{}}
	for _, cat := range contracts.AllCategories {
		next := make([]contracts.Combination, 0, len(out)*len(r.versions[cat]))
		for _, partial := range out {
			for _, v := range r.versions[cat] {
				next = append(next, partial.Set(cat, v))
			}
		}
		out = next
	}
	return out
}

// Hash returns the catalog fingerprint
func (r *Registry) Hash() string {
	return r.hash
}

// Hash generates SHA256 hash from a catalog file (canonical JSON)
// 주의: json.Marshal은 map 키를 정렬하므로 해시가 재현 가능
func Hash(file *File) (string, error) {
	canonical := *file
	canonical.Variants = make(map[string][]Entry, len(file.Variants))
	for cat, entries := range file.Variants {
		sorted := append([]Entry(nil), entries...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
		canonical.Variants[cat] = sorted
	}

	jsonBytes, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}
