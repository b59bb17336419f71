package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/variants"
	"github.com/wonny/aegis-longterm/pkg/config"
)

// variantsCmd represents the variants command
var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "등록된 variant 카탈로그 출력",
	Long: `variant 카탈로그를 검증하고 카테고리별로 출력합니다.
외부 provider나 Redis에 연결하지 않습니다.

Example:
  go run ./cmd/longterm variants
  go run ./cmd/longterm variants --variants configs/variants.yaml`,
	RunE: runVariants,
}

func init() {
	rootCmd.AddCommand(variantsCmd)
}

func runVariants(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if variantsFile != "" {
		cfg.VariantsFile = variantsFile
	}

	registry, err := variants.LoadOrDefault(cfg.VariantsFile)
	if err != nil {
		PrintError(err.Error())
		return fmt.Errorf("load variants: %w", err)
	}

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Println("  Variant Catalog")
	PrintSeparator()
	PrintKeyValue("hash", registry.Hash()[:12], 12)
	PrintKeyValue("combos", fmt.Sprintf("%d", registry.TotalCombinations()), 12)
	PrintSeparator()

	widths := []int{12, 8, 7, 9, 50}
	PrintTableHeader([]string{"CATEGORY", "VERSION", "WEIGHT", "EXPECTED", "DESCRIPTION"}, widths)

	defaults := registry.DefaultCombination()
	byCategory := registry.ByCategory()
	for _, cat := range contracts.AllCategories {
		for _, spec := range byCategory[cat] {
			version := spec.Key.Version
			if defaults.Get(cat) == version {
				version += "*"
			}
			PrintTableRow([]string{
				string(cat),
				version,
				fmt.Sprintf("%.2f", spec.Weight),
				spec.ExpectedResults.String(),
				spec.Description,
			}, widths)
		}
	}
	PrintSeparator()
	fmt.Println("   * default version")
	return nil
}
