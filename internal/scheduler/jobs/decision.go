package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/internal/realtime"
	"github.com/wonny/argus/backend/pkg/logger"
)

// PipelineRunner runs the decision pipeline for one date
type PipelineRunner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// DecisionJob runs the live pipeline every trading morning
// ⭐ SSOT: 일일 결정 스케줄은 이 Job에서만
type DecisionJob struct {
	runner PipelineRunner
	hub    *realtime.Hub
	logger *logger.Logger
}

// NewDecisionJob creates a new daily decision job. hub may be nil.
func NewDecisionJob(runner PipelineRunner, hub *realtime.Hub, log *logger.Logger) *DecisionJob {
	return &DecisionJob{
		runner: runner,
		hub:    hub,
		logger: log,
	}
}

// Name returns the job name
func (j *DecisionJob) Name() string {
	return "daily_decision"
}

// Schedule returns the cron schedule (weekday mornings before the open,
// when settled data through the previous session is available)
func (j *DecisionJob) Schedule() string {
	return "0 30 7 * * 1-5" // 07:30 weekdays (with seconds)
}

// Run executes one live decision for today
func (j *DecisionJob) Run(ctx context.Context) error {
	// 로컬 달력 날짜를 UTC 자정으로 고정: 파이프라인은 전일까지의 데이터만 본다
	now := time.Now()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	j.logger.WithField("date", date.Format("2006-01-02")).Info("Starting scheduled decision run")

	result, err := j.runner.Run(ctx, brain.RunConfig{
		DecisionDate: date,
		Mode:         contracts.ModeLive,
	})
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	if result.Weights != nil {
		j.hub.Broadcast(realtime.NewWeightsUpdate(result.RunID, regimeOf(result), result.Weights, result.WeightsHash))
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id": result.RunID,
		"hash":   result.WeightsHash,
	}).Info("Scheduled decision run completed")

	return nil
}

func regimeOf(result *brain.RunResult) contracts.RegimeLabel {
	if result.Regime == nil {
		return contracts.RegimeUnknown
	}
	return result.Regime.Label
}
