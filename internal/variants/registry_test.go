package variants

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-longterm/internal/contracts"
)

func TestDefault_Catalog(t *testing.T) {
	r := Default()

	assert.Equal(t, 81, r.TotalCombinations())
	assert.Equal(t, []string{"v1.0", "v1.1", "v2.0"}, r.Versions(contracts.CategoryFundamental))
	assert.Equal(t, []string{"v1.0", "v1.1", "v1.2"}, r.Versions(contracts.CategoryQuality))

	def := r.DefaultCombination()
	assert.Equal(t, contracts.Combination{Fundamental: "v2.0", Momentum: "v2.0", Value: "v1.2", Quality: "v1.2"}, def)

	grouped := r.ByCategory()
	require.Len(t, grouped, 4)
	for _, cat := range contracts.AllCategories {
		for _, spec := range grouped[cat] {
			assert.Equal(t, cat, spec.Key.Category)
			assert.NotEmpty(t, spec.Query)
			assert.GreaterOrEqual(t, spec.Weight, 0.0)
			assert.LessOrEqual(t, spec.Weight, 1.0)
		}
	}
}

func TestLookup(t *testing.T) {
	r := Default()

	spec, err := r.Lookup(contracts.VariantKey{Category: contracts.CategoryValue, Version: "v1.2"})
	require.NoError(t, err)
	assert.Equal(t, 0.25, spec.Weight)

	_, err = r.Lookup(contracts.VariantKey{Category: contracts.CategoryValue, Version: "v9.9"})
	assert.True(t, errors.Is(err, contracts.ErrUnknownVariant))

	var uv *contracts.UnknownVariantError
	require.True(t, errors.As(err, &uv))
	assert.Equal(t, contracts.CategoryValue, uv.Category)
	assert.Equal(t, "v9.9", uv.Version)
}

func TestResolve(t *testing.T) {
	r := Default()

	tests := []struct {
		name    string
		partial contracts.Combination
		want    contracts.Combination
		wantErr bool
	}{
		{
			name:    "empty uses defaults",
			partial: contracts.Combination{},
			want:    r.DefaultCombination(),
		},
		{
			name:    "partial override",
			partial: contracts.Combination{Momentum: "v1.0"},
			want:    contracts.Combination{Fundamental: "v2.0", Momentum: "v1.0", Value: "v1.2", Quality: "v1.2"},
		},
		{
			name:    "unknown version",
			partial: contracts.Combination{Quality: "v3.0"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.partial)
			if tt.wantErr {
				assert.True(t, errors.Is(err, contracts.ErrUnknownVariant))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCombinations(t *testing.T) {
	r := Default()

	all := r.Combinations()
	require.Len(t, all, 81)

	assert.Equal(t, contracts.Combination{Fundamental: "v1.0", Momentum: "v1.0", Value: "v1.0", Quality: "v1.0"}, all[0])
	assert.Equal(t, contracts.Combination{Fundamental: "v1.0", Momentum: "v1.0", Value: "v1.0", Quality: "v1.1"}, all[1])
	assert.Equal(t, contracts.Combination{Fundamental: "v2.0", Momentum: "v2.0", Value: "v1.2", Quality: "v1.2"}, all[80])

	seen := make(map[contracts.Combination]bool)
	for _, c := range all {
		assert.False(t, seen[c], "duplicate combination %s", c)
		seen[c] = true

		_, err := r.Specs(c)
		assert.NoError(t, err)
	}
}

func TestParse_MatchesDefault(t *testing.T) {
	r, err := Load("../../configs/variants.yaml")
	require.NoError(t, err)

	assert.Equal(t, Default().Hash(), r.Hash())
	assert.Equal(t, Default().ByCategory(), r.ByCategory())
}

func TestParse_UnknownFieldFails(t *testing.T) {
	data := []byte(`
defaults:
  fundamental: v1.0
variants:
  fundamental:
    - version: v1.0
      query: "roe > 10"
      wieght: 0.5
`)
	_, err := Parse(data)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *File {
		f := defaultFile()
		return f
	}

	tests := []struct {
		name   string
		mutate func(f *File)
		field  string
	}{
		{"missing category", func(f *File) { delete(f.Variants, "quality") }, "variants.quality"},
		{"unknown category", func(f *File) { f.Variants["growth"] = f.Variants["value"] }, "variants.growth"},
		{"weight out of range", func(f *File) { f.Variants["value"][0].Weight = 1.5 }, "variants.value[0].weight"},
		{"empty query", func(f *File) { f.Variants["momentum"][1].Query = "" }, "variants.momentum[1].query"},
		{"duplicate version", func(f *File) { f.Variants["value"][1].Version = "v1.0" }, "variants.value[1].version"},
		{"default not registered", func(f *File) { f.Defaults["value"] = "v5.0" }, "defaults.value"},
		{"default missing", func(f *File) { delete(f.Defaults, "fundamental") }, "defaults.fundamental"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid()
			tt.mutate(f)

			err := Validate(f)
			var ve ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, Validate(valid()))
}

func TestExpectedResults_Variable(t *testing.T) {
	spec, err := Default().Lookup(contracts.VariantKey{Category: contracts.CategoryFundamental, Version: "v2.0"})
	require.NoError(t, err)
	assert.True(t, spec.ExpectedResults.IsVariable())
}

func TestRegistry_ConcurrentReads(t *testing.T) {
	r := Default()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, c := range r.Combinations() {
				_, _ = r.Specs(c)
			}
		}()
	}
	wg.Wait()
}
