package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/argus/backend/internal/external/newsfeed"
	"github.com/wonny/argus/backend/internal/scheduler"
	"github.com/wonny/argus/backend/internal/scheduler/jobs"
	"github.com/wonny/argus/backend/pkg/redis"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

등록되는 작업:
- daily_decision: 평일 07:30 (라이브 파이프라인 실행)
- news_ingest:    매시 정각 (뉴스 피드 수집, 피드 설정 시)
- graph_guard:    매시 15분 (저장 그래프 드리프트 감지)

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행
  status  - 작업 실행 상태 조회

Example:
  go run ./cmd/argus scheduler start
  go run ./cmd/argus scheduler run daily_decision`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "작업 실행 상태 조회",
		RunE:  showStatus,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Argus Scheduler ===")

	sched, rt, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	sched.Start()

	fmt.Println("\n✅ Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		if next, err := sched.NextRun(jobName); err == nil && !next.IsZero() {
			fmt.Printf("  - %s (next: %s)\n", jobName, next.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Printf("  - %s\n", jobName)
		}
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	sched, rt, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	fmt.Printf("Running job: %s\n", jobName)

	sched, rt, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	// 실행은 비동기: 이력에 결과가 기록될 때까지 기다린다
	for {
		history, err := sched.GetJobHistory(jobName)
		if err != nil {
			return err
		}
		if last := history.LastResult(); last != nil {
			if !last.Success {
				return fmt.Errorf("job %s failed after %d attempts: %s", jobName, last.Attempts, last.Error)
			}
			fmt.Printf("✅ Job completed in %.2fs (%d attempts)\n", last.Duration.Seconds(), last.Attempts)
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}

func showStatus(cmd *cobra.Command, args []string) error {
	sched, rt, err := initScheduler(cmd)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer rt.Close()

	fmt.Println("Job Statistics:")
	fmt.Println()

	for jobName, stat := range sched.GetJobStats() {
		fmt.Printf("📊 %s\n", jobName)
		fmt.Printf("   Schedule: %s\n", stat.Schedule)
		fmt.Printf("   Total Runs: %d\n", stat.TotalRuns)
		fmt.Printf("   Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("   Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("   Last Run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		if stat.LastSuccess != nil {
			fmt.Printf("   Last Success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}
		if stat.LastFailure != nil {
			fmt.Printf("   Last Failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}

		fmt.Println()
	}

	return nil
}

func initScheduler(cmd *cobra.Command) (*scheduler.Scheduler, *runtime, error) {
	// 1. Initialize runtime
	rt, err := initRuntime(cmd.Context())
	if err != nil {
		return nil, nil, err
	}

	// 2. Create scheduler
	sched := scheduler.New(rt.log)

	// 3. Register jobs
	jobList := []scheduler.Job{
		jobs.NewDecisionJob(rt.orchestrator, nil, rt.log),
		jobs.NewGraphGuardJob(rt.graphRepo, rt.graph, rt.log),
	}

	if rt.cfg.NewsFeedEnabled() {
		limiter := redis.NewRateLimiter(rt.redis, "argus")
		feed := newsfeed.NewClient(rt.cfg, limiter, rt.log)
		jobList = append(jobList, jobs.NewNewsIngestJob(feed, rt.news, rt.log))
	} else {
		rt.log.Info("News feed not configured; news_ingest job skipped")
	}

	for _, job := range jobList {
		if err := sched.AddJob(job); err != nil {
			rt.Close()
			return nil, nil, fmt.Errorf("register %s: %w", job.Name(), err)
		}
	}

	return sched, rt, nil
}
