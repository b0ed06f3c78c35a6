package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/argus/backend/internal/contracts"
)

// Repository persists run summaries and per-instrument composite scores
// ⭐ SSOT: 실행 이력 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new run repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RunRecord is the stored summary of one pipeline run
type RunRecord struct {
	RunID            string                 `json:"run_id"`
	DecisionDate     time.Time              `json:"decision_date"`
	Mode             contracts.Mode         `json:"mode"`
	Success          bool                   `json:"success"`
	Regime           contracts.RegimeLabel  `json:"regime"`
	RegimeSource     contracts.RegimeSource `json:"regime_source"`
	RegimeConfidence float64                `json:"regime_confidence"`
	CashOut          bool                   `json:"cash_out"`
	WeightsHash      string                 `json:"weights_hash"`
	Diagnostics      contracts.Diagnostics  `json:"diagnostics"`
	DurationMS       int64                  `json:"duration_ms"`
	CreatedAt        time.Time              `json:"created_at"`
}

// SaveRun stores the run summary and replaces the date's composite scores.
// Scores follow delete-then-insert so a rerun of the same date never leaves
// stale rows behind.
func (r *Repository) SaveRun(ctx context.Context, result *RunResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.saveSummary(ctx, tx, result); err != nil {
		return err
	}
	if err := r.saveScores(ctx, tx, result); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *Repository) saveSummary(ctx context.Context, tx pgx.Tx, result *RunResult) error {
	diagnostics, err := json.Marshal(result.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	regimeLabel := contracts.RegimeUnknown
	regimeSource := contracts.RegimeSource("")
	regimeConfidence := 0.0
	if result.Regime != nil {
		regimeLabel = result.Regime.Label
		regimeSource = result.Regime.Source
		regimeConfidence = result.Regime.Confidence
	}
	cashOut := false
	if result.Weights != nil {
		cashOut = result.Weights.CashOut
	}

	query := `
		INSERT INTO analytics.pipeline_runs (
			run_id, decision_date, mode, success,
			regime_label, regime_source, regime_confidence,
			cash_out, weights_hash, diagnostics, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (run_id) DO UPDATE SET
			success = EXCLUDED.success,
			regime_label = EXCLUDED.regime_label,
			regime_source = EXCLUDED.regime_source,
			regime_confidence = EXCLUDED.regime_confidence,
			cash_out = EXCLUDED.cash_out,
			weights_hash = EXCLUDED.weights_hash,
			diagnostics = EXCLUDED.diagnostics,
			duration_ms = EXCLUDED.duration_ms
	`
	_, err = tx.Exec(ctx, query,
		result.RunID, result.DecisionDate, string(result.Mode), result.Success,
		string(regimeLabel), string(regimeSource), regimeConfidence,
		cashOut, result.WeightsHash, diagnostics, result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to save run summary: %w", err)
	}
	return nil
}

func (r *Repository) saveScores(ctx context.Context, tx pgx.Tx, result *RunResult) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM analytics.composite_scores WHERE decision_date = $1 AND mode = $2`,
		result.DecisionDate, string(result.Mode),
	)
	if err != nil {
		return fmt.Errorf("failed to clear composite scores: %w", err)
	}

	batch := &pgx.Batch{}
	for _, cs := range result.Scores {
		batch.Queue(`
			INSERT INTO analytics.composite_scores (
				decision_date, mode, run_id, stock_code,
				technical, sentiment, blended, status, reasons
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			result.DecisionDate, string(result.Mode), result.RunID, cs.Code,
			cs.Technical, cs.Sentiment, cs.Blended, string(cs.Status), cs.Reasons,
		)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range result.Scores {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert composite score: %w", err)
		}
	}
	return nil
}

// GetLatestRun retrieves the most recent run summary
func (r *Repository) GetLatestRun(ctx context.Context) (*RunRecord, error) {
	return r.getRun(ctx, `
		SELECT run_id, decision_date, mode, success,
		       regime_label, regime_source, regime_confidence,
		       cash_out, weights_hash, diagnostics, duration_ms, created_at
		FROM analytics.pipeline_runs
		ORDER BY decision_date DESC, created_at DESC
		LIMIT 1
	`)
}

// GetRunByDate retrieves the most recent run summary for one decision date
func (r *Repository) GetRunByDate(ctx context.Context, date time.Time) (*RunRecord, error) {
	return r.getRun(ctx, `
		SELECT run_id, decision_date, mode, success,
		       regime_label, regime_source, regime_confidence,
		       cash_out, weights_hash, diagnostics, duration_ms, created_at
		FROM analytics.pipeline_runs
		WHERE decision_date = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, date)
}

// ListRecentRuns retrieves the newest run summaries, most recent first
func (r *Repository) ListRecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_id, decision_date, mode, success,
		       regime_label, regime_source, regime_confidence,
		       cash_out, weights_hash, diagnostics, duration_ms, created_at
		FROM analytics.pipeline_runs
		ORDER BY decision_date DESC, created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var (
			rec         RunRecord
			mode        string
			label       string
			source      string
			diagnostics []byte
		)
		if err := rows.Scan(
			&rec.RunID, &rec.DecisionDate, &mode, &rec.Success,
			&label, &source, &rec.RegimeConfidence,
			&rec.CashOut, &rec.WeightsHash, &diagnostics, &rec.DurationMS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Mode = contracts.Mode(mode)
		rec.Regime = contracts.RegimeLabel(label)
		rec.RegimeSource = contracts.RegimeSource(source)
		if len(diagnostics) > 0 {
			if err := json.Unmarshal(diagnostics, &rec.Diagnostics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal diagnostics: %w", err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) getRun(ctx context.Context, query string, args ...interface{}) (*RunRecord, error) {
	var (
		rec         RunRecord
		mode        string
		label       string
		source      string
		diagnostics []byte
	)
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&rec.RunID, &rec.DecisionDate, &mode, &rec.Success,
		&label, &source, &rec.RegimeConfidence,
		&rec.CashOut, &rec.WeightsHash, &diagnostics, &rec.DurationMS, &rec.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	rec.Mode = contracts.Mode(mode)
	rec.Regime = contracts.RegimeLabel(label)
	rec.RegimeSource = contracts.RegimeSource(source)
	if len(diagnostics) > 0 {
		if err := json.Unmarshal(diagnostics, &rec.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagnostics: %w", err)
		}
	}
	return &rec, nil
}

// GetScores retrieves the stored composite scores for one decision date
func (r *Repository) GetScores(ctx context.Context, date time.Time) ([]contracts.CompositeScore, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT stock_code, technical, sentiment, blended, status, reasons
		FROM analytics.composite_scores
		WHERE decision_date = $1
		ORDER BY stock_code
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query composite scores: %w", err)
	}
	defer rows.Close()

	var scores []contracts.CompositeScore
	for rows.Next() {
		cs := contracts.CompositeScore{DecisionDate: date}
		var status string
		if err := rows.Scan(&cs.Code, &cs.Technical, &cs.Sentiment, &cs.Blended, &status, &cs.Reasons); err != nil {
			return nil, fmt.Errorf("failed to scan composite score: %w", err)
		}
		cs.Status = contracts.ScoreStatus(status)
		scores = append(scores, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return scores, nil
}
