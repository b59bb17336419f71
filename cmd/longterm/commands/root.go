package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	variantsFile string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "longterm",
	Short: "Aegis Long-Term - 장기 매수 추천 엔진",
	Long: `Aegis Long-Term CLI

4개 카테고리(fundamental, momentum, value, quality)의 스크리닝 결과를
종목별로 병합하고 점수화해서 장기 매수 후보를 추천합니다.

Usage:
  go run ./cmd/longterm [command]

Examples:
  go run ./cmd/longterm api
  go run ./cmd/longterm variants
  go run ./cmd/longterm recommend --top 10
  go run ./cmd/longterm test-combination --fundamental v1.0 --momentum v1.1 --value v1.2 --quality v1.0
  go run ./cmd/longterm explore`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&variantsFile, "variants", "", "variant catalog YAML (default: VARIANTS_FILE or built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
