package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "argus",
	Short: "Argus - 시그널 기반 포트폴리오 의사결정 엔진",
	Long: `Argus Unified CLI

뉴스 감성과 기술적 시그널을 결합해 일별 목표 비중을 산출하는
의사결정 파이프라인.

S1 레짐 → S2 기술 스코어 → S3 감성/전파 → S4 결합 →
S5 정책 게이트 → S6 포트폴리오

Usage:
  go run ./cmd/argus [command]

Examples:
  go run ./cmd/argus run --date 2025-06-12
  go run ./cmd/argus backtest --from 2024-01-02 --to 2024-12-30
  go run ./cmd/argus api
  go run ./cmd/argus scheduler start`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
