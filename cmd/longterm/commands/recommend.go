package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-longterm/internal/contracts"
	"github.com/wonny/aegis-longterm/internal/recommend"
)

// recommendCmd represents the recommend command
var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "장기 매수 추천 1회 실행",
	Long: `선택한 조합(미지정 카테고리는 기본값)으로 추천을 실행하고 결과를 출력합니다.

Example:
  go run ./cmd/longterm recommend
  go run ./cmd/longterm recommend --fundamental v1.1 --top 10 --min-score 0.4
  go run ./cmd/longterm recommend --json`,
	RunE: runRecommend,
}

var (
	recCombination contracts.Combination
	recLimit       int
	recMinScore    float64
	recTop         int
	recJSON        bool
)

func init() {
	rootCmd.AddCommand(recommendCmd)

	addCombinationFlags(recommendCmd, &recCombination)
	recommendCmd.Flags().IntVar(&recLimit, "limit", recommend.DefaultLimitPerQuery, "variant별 최대 row 수")
	recommendCmd.Flags().Float64Var(&recMinScore, "min-score", recommend.DefaultMinScore, "최소 종합 점수")
	recommendCmd.Flags().IntVar(&recTop, "top", recommend.DefaultTopRecommendations, "추천 종목 수")
	recommendCmd.Flags().BoolVar(&recJSON, "json", false, "JSON 출력")
}

// addCombinationFlags binds one version flag per category
func addCombinationFlags(cmd *cobra.Command, c *contracts.Combination) {
	cmd.Flags().StringVar(&c.Fundamental, "fundamental", "", "fundamental version")
	cmd.Flags().StringVar(&c.Momentum, "momentum", "", "momentum version")
	cmd.Flags().StringVar(&c.Value, "value", "", "value version")
	cmd.Flags().StringVar(&c.Quality, "quality", "", "quality version")
}

// signalContext is cancelled on Ctrl+C
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRecommend(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()

	rec, err := a.engine.Recommend(ctx, recommend.Request{
		Combination:        recCombination,
		LimitPerQuery:      recLimit,
		MinScore:           &recMinScore,
		TopRecommendations: recTop,
	})
	if err != nil {
		PrintError(err.Error())
		return fmt.Errorf("recommend: %w", err)
	}

	if recJSON {
		return PrintJSON(rec)
	}

	PrintHeader("Long-Term Buy Recommendations", rec.Combination)
	PrintMetrics(rec.Metrics)
	PrintSeparator()
	PrintStocks(rec.Stocks)
	PrintSeparator()
	for _, w := range rec.Warnings {
		PrintWarning(w)
	}
	PrintSuccess(fmt.Sprintf("%d recommendations generated at %s", len(rec.Stocks), rec.GeneratedAt.Format("2006-01-02 15:04:05")))
	return nil
}
