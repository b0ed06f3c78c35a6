package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/backtest"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "백테스트 실행",
	Long: `과거 구간에 대해 파이프라인을 재생합니다.

백테스트는 라이브 실행과 같은 오케스트레이터를 날짜마다 호출하므로
실행 패리티가 구조적으로 보장됩니다. 산출 지표:
- 수익률 (Total, CAGR)
- 리스크 (Volatility, Sharpe, Sortino, MDD)
- 회전율, 현금 회피 일수

Flags:
  --from       시작일 (YYYY-MM-DD, 필수)
  --to         종료일 (YYYY-MM-DD, 기본: 오늘)
  --rebalance  리밸런싱 주기 (거래일, 기본: 전략 설정)
  --cost-bps   편도 거래 비용 (bps, 기본: 전략 설정)
  --verify     같은 구간을 두 번 돌려 해시 일치 검증

Example:
  go run ./cmd/argus backtest --from 2024-01-02 --to 2024-12-30
  go run ./cmd/argus backtest --from 2024-01-02 --verify`,
	RunE: runBacktest,
}

var (
	backtestFrom      string
	backtestTo        string
	backtestRebalance int
	backtestCostBps   float64
	backtestVerify    bool
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&backtestFrom, "from", "", "시작일 (YYYY-MM-DD, 필수)")
	backtestCmd.Flags().StringVar(&backtestTo, "to", "", "종료일 (YYYY-MM-DD, 기본: 오늘)")
	backtestCmd.Flags().IntVar(&backtestRebalance, "rebalance", 0, "리밸런싱 주기 (거래일, 0이면 전략 설정)")
	backtestCmd.Flags().Float64Var(&backtestCostBps, "cost-bps", -1, "편도 거래 비용 (bps, 음수면 전략 설정)")
	backtestCmd.Flags().BoolVar(&backtestVerify, "verify", false, "결정성 검증 (두 번 실행해 해시 비교)")

	backtestCmd.MarkFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Backtest ===")

	// Parse dates
	startDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	endDate := time.Now().UTC()
	if backtestTo != "" {
		endDate, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	}

	ctx := cmd.Context()

	// Initialize runtime
	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Flag overrides fall back to strategy config
	rebalanceDays := rt.strategy.Backtest.RebalanceDays
	if backtestRebalance > 0 {
		rebalanceDays = backtestRebalance
	}
	costBps := rt.strategy.Backtest.CostBps
	if backtestCostBps >= 0 {
		costBps = backtestCostBps
	}

	backtestConfig := backtest.Config{
		StartDate:     startDate,
		EndDate:       endDate,
		RebalanceDays: rebalanceDays,
		CostBps:       costBps,
	}

	fmt.Printf("\n📅 Period: %s ~ %s\n", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	fmt.Printf("🔄 Rebalance: every %d trading days\n", rebalanceDays)
	fmt.Printf("💸 Cost: %.1f bps one-way\n", costBps)

	engine := backtest.NewEngine(rt.orchestrator, rt.prices, rt.log)

	if backtestVerify {
		fmt.Println("\n🔁 Verifying determinism (two passes)...")
		if err := engine.VerifyDeterminism(ctx, backtestConfig); err != nil {
			return fmt.Errorf("determinism verification failed: %w", err)
		}
		fmt.Println("✅ Both passes produced identical weight hashes")
		return nil
	}

	fmt.Println("\n🚀 Starting backtest...")

	result, err := engine.Run(ctx, backtestConfig)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	printBacktestResult(result)
	return nil
}

func printBacktestResult(result *backtest.Result) {
	fmt.Println("\n✅ Backtest Completed")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Println("\n📊 Summary")
	fmt.Printf("Period: %s ~ %s (%d trading days)\n",
		result.StartDate.Format("2006-01-02"),
		result.EndDate.Format("2006-01-02"),
		result.TradingDays)
	fmt.Printf("Rebalances:    %d\n", result.RebalanceCount)
	fmt.Printf("Cash-out days: %d\n", result.CashOutDays)
	fmt.Printf("Duration:      %.2fs\n", result.Duration.Seconds())

	fmt.Println("\n💰 Performance")
	fmt.Printf("Total Return:  %+.2f%%\n", result.TotalReturn*100)
	fmt.Printf("CAGR:          %+.2f%%\n", result.CAGR*100)
	fmt.Printf("Volatility:    %.2f%% (annualized)\n", result.Volatility*100)

	fmt.Println("\n📉 Risk")
	fmt.Printf("Sharpe Ratio:  %.2f\n", result.SharpeRatio)
	fmt.Printf("Sortino Ratio: %.2f\n", result.SortinoRatio)
	fmt.Printf("Max Drawdown:  %.2f%%\n", result.MaxDrawdown*100)
	fmt.Printf("Daily Win Rate: %.1f%%\n", result.DailyWinRate*100)
	fmt.Printf("Turnover:      %.2f\n", result.Turnover)
}
