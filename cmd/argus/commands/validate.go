package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/strategyconfig"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "전략 설정 검증",
	Long: `전략 YAML을 로드해 가중치 합, 윈도우, 게이트 설정을 검증하고
설정 해시를 출력합니다.

DB 연결 없이 동작하므로 배포 전 체크에 사용할 수 있습니다.

Example:
  go run ./cmd/argus validate
  go run ./cmd/argus validate --strategy config/strategy/argus_core_v1.yaml`,
	RunE: validateStrategy,
}

var validatePath string

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validatePath, "strategy", "config/strategy/argus_core_v1.yaml", "전략 설정 파일 경로")
}

func validateStrategy(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Strategy Validation ===")

	cfg, yamlData, err := strategyconfig.Load(validatePath)
	if err != nil {
		fmt.Printf("\n❌ Invalid strategy config: %v\n", err)
		return err
	}

	snapshot, err := strategyconfig.NewDecisionSnapshot(cfg, yamlData, "", "", "")
	if err != nil {
		return fmt.Errorf("hash config: %w", err)
	}

	fmt.Printf("\n✅ %s is valid\n\n", validatePath)
	fmt.Printf("Strategy:    %s (version %s)\n", cfg.Meta.StrategyID, cfg.Meta.Version)
	fmt.Printf("Config hash: %s\n", snapshot.ConfigHash)
	fmt.Printf("Benchmark:   %s\n", cfg.Universe.Benchmark)

	if len(cfg.Universe.Instruments) > 0 {
		fmt.Printf("Instruments: %d (explicit list)\n", len(cfg.Universe.Instruments))
	} else {
		fmt.Println("Instruments: full instruments table")
	}

	fmt.Printf("Blend:       %.2f sentiment / %.2f technical\n",
		cfg.Sentiment.BlendWeight, 1-cfg.Sentiment.BlendWeight)
	fmt.Printf("Gates:       cash_out_mode=%s\n", cfg.Gates.CashOutMode)
	fmt.Printf("Portfolio:   top_n=%d\n", cfg.Portfolio.TopN)

	if warnings := strategyconfig.Warn(cfg); len(warnings) > 0 {
		fmt.Println()
		for _, w := range warnings {
			fmt.Printf("⚠️  [%s] %s\n", w.Code, w.Message)
		}
	}

	return nil
}
