package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/contracts"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "관계 그래프 관리",
	Long: `공급망 관계 그래프를 조회하고 큐레이션합니다.

후보 엣지는 딥 분석이 발견하지만 정적 그래프 승격은 항상
이 명령을 통한 명시적 운영 행위입니다.

Subcommands:
  status  - 저장된 그래프 요약
  promote - 후보 엣지를 정적 그래프로 승격

Example:
  go run ./cmd/argus graph status
  go run ./cmd/argus graph promote --source 000660 --target 005930 --kind supplier --tier 1 --weight 0.8`,
}

var (
	graphStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "저장된 그래프 요약",
		RunE:  showGraphStatus,
	}

	graphPromoteCmd = &cobra.Command{
		Use:   "promote",
		Short: "후보 엣지를 정적 그래프로 승격",
		RunE:  promoteEdge,
	}

	promoteSource string
	promoteTarget string
	promoteKind   string
	promoteTier   int
	promoteWeight float64
)

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.AddCommand(graphStatusCmd)
	graphCmd.AddCommand(graphPromoteCmd)

	graphPromoteCmd.Flags().StringVar(&promoteSource, "source", "", "소스 종목 코드 (필수)")
	graphPromoteCmd.Flags().StringVar(&promoteTarget, "target", "", "타깃 종목 코드 (필수)")
	graphPromoteCmd.Flags().StringVar(&promoteKind, "kind", "", "관계 종류 (supplier|customer|competitor)")
	graphPromoteCmd.Flags().IntVar(&promoteTier, "tier", 1, "티어 (1|2)")
	graphPromoteCmd.Flags().Float64Var(&promoteWeight, "weight", 0.5, "엣지 가중치 (0, 1]")

	graphPromoteCmd.MarkFlagRequired("source")
	graphPromoteCmd.MarkFlagRequired("target")
	graphPromoteCmd.MarkFlagRequired("kind")
}

func showGraphStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	fmt.Println("Relationship graph:")
	fmt.Printf("  Edges:       %d\n", rt.graph.Size())
	fmt.Printf("  Targets:     %d\n", len(rt.graph.Targets()))
	fmt.Printf("  Fingerprint: %s\n", rt.graph.Fingerprint())

	return nil
}

func promoteEdge(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Graph Promote ===")

	ctx := cmd.Context()

	rt, err := initRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	edge := contracts.CandidateEdge{
		Mention:      promoteSource,
		ResolvedCode: promoteSource,
		Target:       promoteTarget,
		Kind:         contracts.RelationKind(promoteKind),
		Weight:       promoteWeight,
	}

	if err := rt.graphRepo.PromoteCandidate(ctx, edge, promoteTier); err != nil {
		return fmt.Errorf("promote edge: %w", err)
	}

	fmt.Printf("\n✅ Promoted %s -[%s]-> %s (tier %d, weight %.2f)\n",
		promoteSource, promoteKind, promoteTarget, promoteTier, promoteWeight)
	fmt.Println("실행 중인 프로세스는 재시작해야 새 그래프를 읽습니다")
	return nil
}
