package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-longterm/internal/recommend"
)

// exploreCmd represents the explore command
var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "전체 조합 탐색",
	Long: `등록된 모든 조합을 순서대로 테스트하고 performance 기준 상위 조합을 출력합니다.
variant별 결과는 result cache로 공유되므로 provider 호출은 variant 수만큼만 발생합니다.

Example:
  go run ./cmd/longterm explore
  go run ./cmd/longterm explore --best 5`,
	RunE: runExplore,
}

var (
	exploreLimit    int
	exploreMinScore float64
	exploreBest     int
)

func init() {
	rootCmd.AddCommand(exploreCmd)

	exploreCmd.Flags().IntVar(&exploreLimit, "limit", recommend.DefaultLimitPerQuery, "variant별 최대 row 수")
	exploreCmd.Flags().Float64Var(&exploreMinScore, "min-score", recommend.DefaultMinScore, "최소 종합 점수")
	exploreCmd.Flags().IntVar(&exploreBest, "best", 10, "출력할 상위 조합 수")
}

func runExplore(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	total := a.registry.TotalCombinations()
	runs := make([]*recommend.TestRun, 0, total)
	failed := 0

	err = a.tester.Explore(ctx, exploreLimit, &exploreMinScore, func(run *recommend.TestRun) error {
		runs = append(runs, run)
		if run.State == recommend.StateFailed {
			failed++
		}
		fmt.Printf("[Explore] %s %s perf=%.2f [%d/%d]\n",
			run.Combination, run.State, run.Metrics.PerformanceScore, len(runs), total)
		return nil
	})
	if err != nil {
		PrintError(err.Error())
		return fmt.Errorf("explore: %w", err)
	}

	best := rankRuns(runs, exploreBest)

	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Top %d of %d combinations\n", len(best), len(runs))
	PrintSeparator()
	widths := []int{4, 8, 8, 8, 8, 9, 6, 6}
	PrintTableHeader([]string{"#", "FUND", "MOM", "VALUE", "QUAL", "PERF", "DIV", "UNIQ"}, widths)
	for i, run := range best {
		PrintTableRow([]string{
			fmt.Sprintf("%d", i+1),
			run.Combination.Fundamental,
			run.Combination.Momentum,
			run.Combination.Value,
			run.Combination.Quality,
			fmt.Sprintf("%.2f", run.Metrics.PerformanceScore),
			fmt.Sprintf("%.1f", run.Metrics.DiversityScore),
			fmt.Sprintf("%d", run.Metrics.UniqueStocks),
		}, widths)
	}
	PrintSeparator()

	if failed > 0 {
		PrintWarning(fmt.Sprintf("%d combinations failed", failed))
	}
	stats := a.cache.Stats()
	PrintSuccess(fmt.Sprintf("Explored %d combinations with %d provider fetches", len(runs), stats.Fetches))
	return nil
}

// rankRuns keeps completed runs ordered by performance, best first
func rankRuns(runs []*recommend.TestRun, n int) []*recommend.TestRun {
	completed := make([]*recommend.TestRun, 0, len(runs))
	for _, run := range runs {
		if run.State == recommend.StateCompleted {
			completed = append(completed, run)
		}
	}

	// stable so ties keep canonical combination order
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].Metrics.PerformanceScore > completed[j].Metrics.PerformanceScore
	})

	if n > 0 && len(completed) > n {
		completed = completed[:n]
	}
	return completed
}
