package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/audit"
)

var (
	auditRuns   int
	auditStrict bool
)

// auditCmd represents the audit command
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "실행-재현 일치 검증",
	Long: `저장된 의사결정을 시뮬레이션 모드로 재실행하여 기록된 가중치
해시와 비교합니다.

라이브 런과 그 재현은 같은 해시를 내야 합니다. 불일치는 런 이후
데이터가 바뀌었거나 (뉴스 소급, 가격 정정, 그래프 수정) 전략 설정이
바뀌었다는 신호입니다.

Example:
  go run ./cmd/argus audit
  go run ./cmd/argus audit --runs 30 --strict`,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntVar(&auditRuns, "runs", 10, "재현할 최근 런 개수")
	auditCmd.Flags().BoolVar(&auditStrict, "strict", false, "불일치가 있으면 오류로 종료")
}

func runAudit(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Parity Audit ===")

	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	auditor := audit.New(rt.orchestrator, rt.runRepo, rt.log)

	report, err := auditor.VerifyParity(ctx, auditRuns)
	if err != nil {
		return fmt.Errorf("parity audit: %w", err)
	}

	if report.CheckedRuns == 0 {
		fmt.Println("\nNo successful runs to replay")
		return nil
	}

	fmt.Printf("\nReplayed %d runs: %d match, %d drifted, %d failed\n",
		report.CheckedRuns, report.Matches, report.Mismatches, report.Failures)

	for _, check := range report.Checks {
		mark := "✅"
		if !check.Match {
			mark = "⚠️"
		}
		fmt.Printf("  %s %s", mark, check.DecisionDate.Format("2006-01-02"))
		if check.Match {
			fmt.Printf("  %s\n", shortHashLabel(check.StoredHash))
		} else {
			fmt.Printf("  stored=%s replay=%s  %s\n",
				shortHashLabel(check.StoredHash), shortHashLabel(check.ReplayHash), check.Note)
		}
	}

	if !report.Clean() {
		fmt.Println("\n⚠️  Drift detected. Check data backfills and strategy config history.")
		if auditStrict {
			return fmt.Errorf("parity audit found %d drifted and %d failed replays",
				report.Mismatches, report.Failures)
		}
		return nil
	}

	fmt.Println("\n✅ All replays reproduced their stored weights")
	return nil
}

func shortHashLabel(h string) string {
	if h == "" {
		return "(none)"
	}
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
