package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/argus/backend/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	failures int32 // 처음 N회 실패 후 성공
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	call := j.calls.Add(1)
	if call <= j.failures {
		return errors.New("transient failure")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	s := New(logger.Nop())
	s.retryDelay = time.Millisecond
	return s
}

func waitForHistory(t *testing.T, s *Scheduler, jobName string, results int) *JobHistory {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		history, err := s.GetJobHistory(jobName)
		require.NoError(t, err)

		s.mu.RLock()
		n := len(history.Results)
		s.mu.RUnlock()
		if n >= results {
			return history
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never recorded %d results", jobName, results)
	return nil
}

func TestScheduler_AddJobRejectsDuplicates(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "dup", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))

	err := s.AddJob(&countingJob{name: "dup", schedule: "@hourly"})
	assert.ErrorContains(t, err, "already exists")
	assert.Equal(t, []string{"dup"}, s.GetAllJobs())
}

func TestScheduler_AddJobRejectsBadSchedule(t *testing.T) {
	s := newTestScheduler()

	err := s.AddJob(&countingJob{name: "bad", schedule: "not a cron spec"})
	assert.ErrorContains(t, err, "failed to schedule")
	assert.Empty(t, s.GetAllJobs())
}

func TestScheduler_RunJobRecordsSuccess(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "ok", schedule: "@hourly"}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("ok"))

	history := waitForHistory(t, s, "ok", 1)
	last := history.LastResult()
	require.NotNil(t, last)
	assert.True(t, last.Success)
	assert.Equal(t, 1, last.Attempts)
	assert.Equal(t, int32(1), job.calls.Load())
}

func TestScheduler_RunJobRetriesUntilSuccess(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "flaky", schedule: "@hourly", failures: 2}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("flaky"))

	history := waitForHistory(t, s, "flaky", 1)
	last := history.LastResult()
	require.NotNil(t, last)
	assert.True(t, last.Success)
	assert.Equal(t, 3, last.Attempts)
}

func TestScheduler_RunJobExhaustsRetries(t *testing.T) {
	s := newTestScheduler()

	// maxRetries 3 → 총 4회 시도 후 실패로 기록
	job := &countingJob{name: "doomed", schedule: "@hourly", failures: 100}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("doomed"))

	history := waitForHistory(t, s, "doomed", 1)
	last := history.LastResult()
	require.NotNil(t, last)
	assert.False(t, last.Success)
	assert.Equal(t, 4, last.Attempts)
	assert.Equal(t, "transient failure", last.Error)
}

func TestScheduler_RunJobUnknownName(t *testing.T) {
	s := newTestScheduler()

	assert.ErrorContains(t, s.RunJob("ghost"), "not found")
}

func TestScheduler_RemoveJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "gone", schedule: "@hourly"}))
	require.NoError(t, s.RemoveJob("gone"))

	assert.Empty(t, s.GetAllJobs())
	assert.ErrorContains(t, s.RemoveJob("gone"), "not found")
}

func TestScheduler_GetJobStats(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "stats", schedule: "@daily", failures: 100}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("stats"))
	waitForHistory(t, s, "stats", 1)

	stats := s.GetJobStats()
	st, ok := stats["stats"]
	require.True(t, ok)
	assert.Equal(t, "@daily", st.Schedule)
	assert.Equal(t, 1, st.TotalRuns)
	assert.Equal(t, 0, st.SuccessCount)
	assert.Equal(t, 1, st.FailureCount)
	assert.NotNil(t, st.LastFailure)
	assert.Nil(t, st.LastSuccess)
}

func TestJobHistory_CapsResults(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < historyCap+20; i++ {
		h.AddResult(JobResult{JobName: "x", Success: i%2 == 0})
	}

	assert.Len(t, h.Results, historyCap)
}

func TestJobHistory_SuccessRate(t *testing.T) {
	h := &JobHistory{}
	assert.Zero(t, h.SuccessRate())

	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: true})
	h.AddResult(JobResult{Success: false})

	assert.Equal(t, 2, h.SuccessCount())
	assert.InDelta(t, 2.0/3.0, h.SuccessRate(), 1e-12)
}

func TestScheduler_GetJobStats_TracksLastSuccessAcrossHistory(t *testing.T) {
	s := newTestScheduler()

	// 첫 실행은 모든 재시도를 소진하고 실패, 두 번째부터 성공
	job := &countingJob{name: "mixed", schedule: "@daily", failures: 4}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("mixed"))
	waitForHistory(t, s, "mixed", 1)
	require.NoError(t, s.RunJob("mixed"))
	waitForHistory(t, s, "mixed", 2)

	st := s.GetJobStats()["mixed"]
	assert.Equal(t, 2, st.TotalRuns)
	assert.Equal(t, 1, st.SuccessCount)
	assert.Equal(t, 1, st.FailureCount)
	require.NotNil(t, st.LastSuccess)
	require.NotNil(t, st.LastFailure)
	assert.True(t, st.LastFailure.Before(*st.LastSuccess))
}

func TestScheduler_GetJobStats_SkipsRemovedJobs(t *testing.T) {
	s := newTestScheduler()

	job := &countingJob{name: "gone", schedule: "@daily"}
	require.NoError(t, s.AddJob(job))
	require.NoError(t, s.RunJob("gone"))
	waitForHistory(t, s, "gone", 1)

	require.NoError(t, s.RemoveJob("gone"))

	_, ok := s.GetJobStats()["gone"]
	assert.False(t, ok)
}

func TestScheduler_NextRun(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "tick", schedule: "@hourly"}))

	// Start 전에는 다음 실행 시각이 없다
	next, err := s.NextRun("tick")
	require.NoError(t, err)
	assert.True(t, next.IsZero())

	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		next, err = s.NextRun("tick")
		require.NoError(t, err)
		if !next.IsZero() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, next.IsZero())
	assert.True(t, next.After(time.Now().Add(-time.Minute)))

	_, err = s.NextRun("unknown")
	assert.ErrorContains(t, err, "not found")
}
