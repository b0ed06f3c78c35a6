package scheduler

import (
	"context"
	"time"
)

// historyCap bounds the per-job result history
const historyCap = 100

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron schedule expression (with seconds)
	// Examples: "0 30 7 * * 1-5" (weekdays at 07:30)
	//           "@hourly"
	Schedule() string
}

// JobResult represents the result of one job execution, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory stores recent job execution results
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, keeping only the most recent entries
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	if len(h.Results) > historyCap {
		h.Results = h.Results[len(h.Results)-historyCap:]
	}
}

// LastResult returns the most recent result, or nil when nothing ran yet
func (h *JobHistory) LastResult() *JobResult {
	if len(h.Results) == 0 {
		return nil
	}
	return &h.Results[len(h.Results)-1]
}

// SuccessCount returns the number of successful runs in the history window
func (h *JobHistory) SuccessCount() int {
	count := 0
	for _, result := range h.Results {
		if result.Success {
			count++
		}
	}
	return count
}

// SuccessRate returns the success rate (0.0 - 1.0) over the history window
func (h *JobHistory) SuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}
	return float64(h.SuccessCount()) / float64(len(h.Results))
}
