package audit

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
	hashes   map[string]string // date → replay hash
	err      error
	runErr   error // result.Error with Success=false
	calls    int
	lastMode contracts.Mode
}

func (f *fakeRunner) Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error) {
	f.calls++
	f.lastMode = config.Mode
	if f.err != nil {
		return nil, f.err
	}
	if f.runErr != nil {
		return &brain.RunResult{Success: false, Error: f.runErr}, nil
	}
	return &brain.RunResult{
		Success:     true,
		WeightsHash: f.hashes[config.DecisionDate.Format("2006-01-02")],
	}, nil
}

type fakeRunSource struct {
	records []brain.RunRecord
	err     error
}

func (f *fakeRunSource) ListRecentRuns(ctx context.Context, limit int) ([]brain.RunRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func storedRun(date string, hash string, success bool) brain.RunRecord {
	d, _ := time.Parse("2006-01-02", date)
	return brain.RunRecord{
		RunID:        "run-" + date,
		DecisionDate: d,
		Mode:         contracts.ModeLive,
		Success:      success,
		WeightsHash:  hash,
	}
}

func TestVerifyParity_AllMatch(t *testing.T) {
	runner := &fakeRunner{hashes: map[string]string{
		"2024-03-04": "aaa111",
		"2024-03-05": "bbb222",
	}}
	source := &fakeRunSource{records: []brain.RunRecord{
		storedRun("2024-03-05", "bbb222", true),
		storedRun("2024-03-04", "aaa111", true),
	}}

	report, err := New(runner, source, logger.Nop()).VerifyParity(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 2, report.CheckedRuns)
	assert.Equal(t, 2, report.Matches)
	assert.True(t, report.Clean())
	// 재현은 항상 시뮬레이션 모드: 저장소를 건드리면 안 된다
	assert.Equal(t, contracts.ModeSimulation, runner.lastMode)
}

func TestVerifyParity_Mismatch(t *testing.T) {
	runner := &fakeRunner{hashes: map[string]string{"2024-03-05": "different"}}
	source := &fakeRunSource{records: []brain.RunRecord{
		storedRun("2024-03-05", "original", true),
	}}

	report, err := New(runner, source, logger.Nop()).VerifyParity(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Mismatches)
	assert.False(t, report.Clean())
	require.Len(t, report.Checks, 1)
	assert.False(t, report.Checks[0].Match)
	assert.NotEmpty(t, report.Checks[0].Note)
}

func TestVerifyParity_SkipsFailedRuns(t *testing.T) {
	runner := &fakeRunner{hashes: map[string]string{"2024-03-05": "aaa111"}}
	source := &fakeRunSource{records: []brain.RunRecord{
		storedRun("2024-03-05", "aaa111", true),
		storedRun("2024-03-04", "", false),
	}}

	report, err := New(runner, source, logger.Nop()).VerifyParity(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, report.CheckedRuns)
	assert.Equal(t, 1, runner.calls)
}

func TestVerifyParity_ReplayError(t *testing.T) {
	runner := &fakeRunner{err: assert.AnError}
	source := &fakeRunSource{records: []brain.RunRecord{
		storedRun("2024-03-05", "aaa111", true),
	}}

	report, err := New(runner, source, logger.Nop()).VerifyParity(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failures)
	assert.Zero(t, report.Matches)
	require.Len(t, report.Checks, 1)
	assert.Contains(t, report.Checks[0].Note, "replay error")
}

func TestVerifyParity_ReplayUnsuccessful(t *testing.T) {
	runner := &fakeRunner{runErr: assert.AnError}
	source := &fakeRunSource{records: []brain.RunRecord{
		storedRun("2024-03-05", "aaa111", true),
	}}

	report, err := New(runner, source, logger.Nop()).VerifyParity(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failures)
	assert.Contains(t, report.Checks[0].Note, "replay failed")
}

func TestVerifyParity_ListError(t *testing.T) {
	source := &fakeRunSource{err: assert.AnError}

	_, err := New(&fakeRunner{}, source, logger.Nop()).VerifyParity(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list runs")
}
