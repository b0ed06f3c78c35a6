// Package audit replays stored decisions through the current pipeline and
// reports where the replay diverges from what was recorded. A live run and
// its simulation replay must produce the same weights hash; a mismatch
// means the stored inputs drifted (backfilled news, restated prices, edited
// graph) or the strategy config changed since the run.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/argus/backend/internal/brain"
	"github.com/wonny/argus/backend/internal/contracts"
	"github.com/wonny/argus/backend/pkg/logger"
)

// PipelineRunner runs the decision pipeline for one date
type PipelineRunner interface {
	Run(ctx context.Context, config brain.RunConfig) (*brain.RunResult, error)
}

// RunSource lists stored run summaries
type RunSource interface {
	ListRecentRuns(ctx context.Context, limit int) ([]brain.RunRecord, error)
}

// ParityCheck is the replay outcome for one stored run
type ParityCheck struct {
	RunID        string    `json:"run_id"`
	DecisionDate time.Time `json:"decision_date"`
	StoredHash   string    `json:"stored_hash"`
	ReplayHash   string    `json:"replay_hash"`
	Match        bool      `json:"match"`
	Note         string    `json:"note,omitempty"`
}

// ParityReport summarizes one audit pass
type ParityReport struct {
	CheckedRuns int           `json:"checked_runs"`
	Matches     int           `json:"matches"`
	Mismatches  int           `json:"mismatches"`
	Failures    int           `json:"failures"`
	Checks      []ParityCheck `json:"checks"`
}

// Clean reports whether every replay matched
func (r *ParityReport) Clean() bool {
	return r.Mismatches == 0 && r.Failures == 0
}

// Auditor replays stored decision dates in simulation mode
// ⭐ SSOT: 실행-재현 일치 검증은 여기서만
type Auditor struct {
	runner PipelineRunner
	runs   RunSource
	logger *logger.Logger
}

// New creates an auditor
func New(runner PipelineRunner, runs RunSource, log *logger.Logger) *Auditor {
	return &Auditor{
		runner: runner,
		runs:   runs,
		logger: log,
	}
}

// VerifyParity replays up to limit recent successful runs and compares each
// replay hash against the stored one. Replays run in simulation mode, so
// nothing is persisted. Mismatches are drift signals, not errors: the
// report carries them and the caller decides how loudly to complain.
func (a *Auditor) VerifyParity(ctx context.Context, limit int) (*ParityReport, error) {
	records, err := a.runs.ListRecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	report := &ParityReport{}
	for _, rec := range records {
		if !rec.Success {
			continue // 실패한 런은 해시가 없으니 재현 대상이 아니다
		}

		check := a.replay(ctx, rec)
		report.Checks = append(report.Checks, check)
		report.CheckedRuns++

		switch {
		case check.Note != "" && check.ReplayHash == "":
			report.Failures++
		case check.Match:
			report.Matches++
		default:
			report.Mismatches++
			a.logger.WithFields(map[string]interface{}{
				"run_id":        rec.RunID,
				"decision_date": rec.DecisionDate.Format("2006-01-02"),
				"stored_hash":   shortHash(rec.WeightsHash),
				"replay_hash":   shortHash(check.ReplayHash),
			}).Warn("Replay hash diverged from stored run")
		}
	}

	a.logger.WithFields(map[string]interface{}{
		"checked":    report.CheckedRuns,
		"matches":    report.Matches,
		"mismatches": report.Mismatches,
		"failures":   report.Failures,
	}).Info("Parity audit completed")

	return report, nil
}

func (a *Auditor) replay(ctx context.Context, rec brain.RunRecord) ParityCheck {
	check := ParityCheck{
		RunID:        rec.RunID,
		DecisionDate: rec.DecisionDate,
		StoredHash:   rec.WeightsHash,
	}

	result, err := a.runner.Run(ctx, brain.RunConfig{
		DecisionDate: rec.DecisionDate,
		Mode:         contracts.ModeSimulation,
	})
	if err != nil {
		check.Note = fmt.Sprintf("replay error: %v", err)
		return check
	}
	if !result.Success {
		check.Note = fmt.Sprintf("replay failed: %v", result.Error)
		return check
	}

	check.ReplayHash = result.WeightsHash
	check.Match = result.WeightsHash == rec.WeightsHash
	if !check.Match {
		check.Note = "stored inputs or strategy config changed since the run"
	}
	return check
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
