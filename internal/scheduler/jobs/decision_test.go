package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

type fakeRunner struct {
	got    brain.RunConfig
	result *brain.RunResult
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error) {
	f.got = config
	return f.result, f.err
}

func TestDecisionJob_RunsLiveForTodayUTC(t *testing.T) {
	runner := &fakeRunner{
		result: &brain.RunResult{
			RunID:       "run_sched",
			Success:     true,
			Regime:      &contracts.RegimeState{Label: contracts.RegimeBull},
			Weights:     &contracts.TargetWeights{Weights: map[string]float64{"005930": 1.0}},
			WeightsHash: "hash-sched",
		},
	}
	job := NewDecisionJob(runner, nil, logger.Nop())

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, contracts.ModeLive, runner.got.Mode)
	assert.Empty(t, runner.got.RunID)

	// 오늘의 로컬 달력 날짜, UTC 자정
	now := time.Now()
	want := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	assert.True(t, runner.got.DecisionDate.Equal(want),
		"decision date %s should be local calendar date at UTC midnight", runner.got.DecisionDate)
	assert.Equal(t, time.UTC, runner.got.DecisionDate.Location())
}

func TestDecisionJob_WrapsRunnerError(t *testing.T) {
	runner := &fakeRunner{err: assert.AnError}
	job := NewDecisionJob(runner, nil, logger.Nop())

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "pipeline run")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDecisionJob_NoWeightsNoBroadcast(t *testing.T) {
	// 실패한 파이프라인도 결과 객체는 돌려준다: 가중치가 없으면 방송할 것도 없다
	runner := &fakeRunner{
		result: &brain.RunResult{RunID: "run_failed", Success: false},
	}
	job := NewDecisionJob(runner, nil, logger.Nop())

	assert.NoError(t, job.Run(context.Background()))
}

func TestDecisionJob_Identity(t *testing.T) {
	job := NewDecisionJob(&fakeRunner{}, nil, logger.Nop())

	assert.Equal(t, "daily_decision", job.Name())
	assert.Equal(t, "0 30 7 * * 1-5", job.Schedule())
}
