package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "파이프라인 1회 실행",
	Long: `지정한 결정일에 대해 전체 파이프라인을 1회 실행합니다.

S1 레짐 → S2 기술 스코어 → S3 감성/전파 → S4 결합 →
S5 정책 게이트 → S6 포트폴리오

결정일 D의 실행은 D-1까지의 데이터만 사용합니다.
live 모드는 결과를 저장하고, simulation 모드는 계산만 합니다.

Example:
  go run ./cmd/argus run --date 2025-06-12
  go run ./cmd/argus run --date 2025-06-12 --mode live`,
	RunE: runPipeline,
}

var (
	runDate string
	runMode string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "결정일 (YYYY-MM-DD, 기본: 오늘)")
	runCmd.Flags().StringVar(&runMode, "mode", string(contracts.ModeSimulation), "실행 모드 (simulation|live)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Pipeline ===")

	// Parse date
	date := time.Now().UTC()
	if runDate != "" {
		parsed, err := time.Parse("2006-01-02", runDate)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", runDate, err)
		}
		date = parsed
	}

	mode := contracts.Mode(runMode)
	if mode != contracts.ModeSimulation && mode != contracts.ModeLive {
		return fmt.Errorf("invalid mode %q (simulation|live)", runMode)
	}

	ctx := cmd.Context()

	// Initialize runtime
	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Printf("\n📅 Decision date: %s\n", date.Format("2006-01-02"))
	fmt.Printf("⚙️  Mode: %s\n\n", mode)

	// Run pipeline
	result, err := rt.orchestrator.Run(ctx, brain.RunConfig{
		DecisionDate: date,
		Mode:         mode,
	})
	if err != nil {
		printRunFailure(result, err)
		return fmt.Errorf("pipeline failed: %w", err)
	}

	printRunResult(result)
	return nil
}

func printRunFailure(result *brain.RunResult, err error) {
	fmt.Println("\n❌ Pipeline failed")
	if result != nil && len(result.CompletedStages) > 0 {
		fmt.Printf("Completed stages: %s\n", strings.Join(result.CompletedStages, " → "))
	}
	fmt.Printf("Error: %v\n", err)
}

func printRunResult(result *brain.RunResult) {
	fmt.Println("✅ Pipeline completed")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Run ID:   %s\n", result.RunID)
	fmt.Printf("Duration: %.2fs\n", result.Duration.Seconds())
	fmt.Printf("Stages:   %s\n", strings.Join(result.CompletedStages, " → "))

	if result.Regime != nil {
		fmt.Printf("\n🌡️  Regime: %s (confidence %.2f, source %s)\n",
			result.Regime.Label, result.Regime.Confidence, result.Regime.Source)
	}

	if result.Weights == nil {
		fmt.Println("\nNo target weights produced")
		return
	}

	fmt.Printf("\n💼 Target weights (hash %s)\n", result.WeightsHash)
	if result.Weights.CashOut {
		fmt.Println("  CASH OUT - no positions")
	}

	// 비중 내림차순, 동률이면 코드 순
	type position struct {
		code   string
		weight float64
	}
	positions := make([]position, 0, len(result.Weights.Weights))
	for code, weight := range result.Weights.Weights {
		positions = append(positions, position{code, weight})
	}
	sort.Slice(positions, func(i, j int) bool {
		if positions[i].weight != positions[j].weight {
			return positions[i].weight > positions[j].weight
		}
		return positions[i].code < positions[j].code
	})

	for _, p := range positions {
		fmt.Printf("  %-8s %6.2f%%\n", p.code, p.weight*100)
	}
	fmt.Printf("  %-8s %6.2f%%\n", "(total)", result.Weights.TotalWeight()*100)

	printDiagnostics(result.Diagnostics)
}

func printDiagnostics(diag contracts.Diagnostics) {
	fmt.Printf("\n📋 Instruments: %d computed, %d degraded, %d skipped\n",
		diag.Computed, diag.Degraded, diag.Skipped)
	if diag.DroppedMentions > 0 || diag.CandidateEdges > 0 {
		fmt.Printf("   Graph: %d candidate edges, %d unresolved mentions\n",
			diag.CandidateEdges, diag.DroppedMentions)
	}
	for _, tr := range diag.Traces {
		fmt.Printf("   %-8s %-12s %-9s %s\n", tr.Code, tr.Stage, tr.Status, tr.Reason)
	}
}
