package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/recommend"
)

// testCombinationCmd represents the test-combination command
var testCombinationCmd = &cobra.Command{
	Use:   "test-combination",
	Short: "조합 1개 테스트",
	Long: `4개 카테고리 버전을 모두 지정해서 조합의 성능 지표를 확인합니다.
registry 기본값은 변경되지 않습니다.

Example:
  go run ./cmd/longterm test-combination --fundamental v1.0 --momentum v1.1 --value v1.2 --quality v1.0`,
	RunE: runTestCombination,
}

var (
	testCombination contracts.Combination
	testLimit       int
	testMinScore    float64
	testJSON        bool
)

func init() {
	rootCmd.AddCommand(testCombinationCmd)

	addCombinationFlags(testCombinationCmd, &testCombination)
	for _, cat := range contracts.AllCategories {
		_ = testCombinationCmd.MarkFlagRequired(string(cat))
	}
	testCombinationCmd.Flags().IntVar(&testLimit, "limit", recommend.DefaultLimitPerQuery, "variant별 최대 row 수")
	testCombinationCmd.Flags().Float64Var(&testMinScore, "min-score", recommend.DefaultMinScore, "최소 종합 점수")
	testCombinationCmd.Flags().BoolVar(&testJSON, "json", false, "JSON 출력")
}

func runTestCombination(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	run, err := a.tester.Test(ctx, recommend.TestRequest{
		Combination:   testCombination,
		LimitPerQuery: testLimit,
		MinScore:      &testMinScore,
	})
	if run == nil {
		PrintError(err.Error())
		return fmt.Errorf("test combination: %w", err)
	}

	if testJSON {
		if jerr := PrintJSON(run); jerr != nil {
			return jerr
		}
		return err
	}

	PrintHeader(fmt.Sprintf("Combination Test %s", run.ID), run.Combination)
	PrintKeyValue("state", string(run.State), 12)
	if run.State == recommend.StateFailed {
		PrintError(run.Error)
		return err
	}
	PrintMetrics(run.Metrics)
	PrintKeyValue("total", fmt.Sprintf("%d", run.TotalRecommendations), 12)
	PrintSeparator()
	PrintStocks(run.SampleStocks)
	PrintSeparator()
	for _, w := range run.Warnings {
		PrintWarning(w)
	}
	PrintSuccess(fmt.Sprintf("Completed in %s", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)))
	return nil
}
