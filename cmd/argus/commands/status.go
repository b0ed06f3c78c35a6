package commands

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "시스템 상태 점검",
	Long: `연결 상태와 최신 의사결정을 한 번에 확인합니다.

표시 정보:
- Database: 연결 상태와 커넥션 풀
- Redis: 캐시 활성 여부
- Graph: 로드된 관계 그래프 크기
- Latest run: 마지막 파이프라인 실행 요약

Example:
  go run ./cmd/argus status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Status ===")

	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	// Database
	health, err := rt.db.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("\n❌ Database: %v\n", err)
	} else {
		fmt.Printf("\n✅ Database: healthy (%.0fms, %d/%d conns)\n",
			float64(health.ResponseTime.Milliseconds()), health.TotalConns, health.MaxConns)
	}

	// Redis
	if !rt.redis.Enabled() {
		fmt.Println("➖ Redis: disabled")
	} else if err := rt.redis.Healthy(ctx); err != nil {
		fmt.Printf("❌ Redis: %v\n", err)
	} else {
		fmt.Println("✅ Redis: connected")
	}

	// Graph
	fmt.Printf("✅ Graph: %d edges, %d targets\n", rt.graph.Size(), len(rt.graph.Targets()))

	// Latest run
	run, err := rt.runRepo.GetLatestRun(ctx)
	if errors.Is(err, pgx.ErrNoRows) {
		fmt.Println("➖ Latest run: none recorded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load latest run: %w", err)
	}

	outcome := "✅"
	if !run.Success {
		outcome = "❌"
	}
	fmt.Printf("%s Latest run: %s on %s (%s, regime %s, hash %s)\n",
		outcome, run.RunID, run.DecisionDate.Format("2006-01-02"),
		run.Mode, run.Regime, run.WeightsHash)

	return nil
}
