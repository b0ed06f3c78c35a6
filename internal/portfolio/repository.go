package portfolio

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/argus/backend/internal/contracts"
)

// Repository handles target-weight persistence
// ⭐ SSOT: 목표 비중 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveWeights replaces the stored weights for the decision date.
// The snapshot row keeps the parity hash so live and simulation runs for
// the same date can be compared after the fact.
func (r *Repository) SaveWeights(ctx context.Context, target *contracts.TargetWeights, hash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		"DELETE FROM portfolio.target_weights WHERE decision_date = $1", target.DecisionDate)
	if err != nil {
		return fmt.Errorf("failed to delete old weights: %w", err)
	}

	query := `
		INSERT INTO portfolio.target_weights (decision_date, stock_code, weight)
		VALUES ($1, $2, $3)
	`
	batch := &pgx.Batch{}
	for _, code := range sortedWeightCodes(target.Weights) {
		batch.Queue(query, target.DecisionDate, code, target.Weights[code])
	}
	br := tx.SendBatch(ctx, batch)
	for range target.Weights {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("failed to insert weight: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	summaryQuery := `
		INSERT INTO portfolio.weight_snapshots (
			decision_date, positions, total_weight, cash_out, hash, created_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (decision_date) DO UPDATE SET
			positions = EXCLUDED.positions,
			total_weight = EXCLUDED.total_weight,
			cash_out = EXCLUDED.cash_out,
			hash = EXCLUDED.hash,
			created_at = NOW()
	`
	_, err = tx.Exec(ctx, summaryQuery,
		target.DecisionDate, len(target.Weights), target.TotalWeight(), target.CashOut, hash)
	if err != nil {
		return fmt.Errorf("failed to save weight snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetWeights loads the stored weights for one decision date.
// Returns pgx.ErrNoRows when the date was never computed.
func (r *Repository) GetWeights(ctx context.Context, date time.Time) (*contracts.TargetWeights, error) {
	target := &contracts.TargetWeights{
		Weights: make(map[string]float64),
	}

	err := r.pool.QueryRow(ctx,
		"SELECT decision_date, cash_out FROM portfolio.weight_snapshots WHERE decision_date = $1",
		date).Scan(&target.DecisionDate, &target.CashOut)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		"SELECT stock_code, weight FROM portfolio.target_weights WHERE decision_date = $1 ORDER BY stock_code",
		date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var weight float64
		if err := rows.Scan(&code, &weight); err != nil {
			return nil, err
		}
		target.Weights[code] = weight
	}
	return target, rows.Err()
}

// GetLatestWeights loads the most recent stored weights
func (r *Repository) GetLatestWeights(ctx context.Context) (*contracts.TargetWeights, error) {
	var date time.Time
	err := r.pool.QueryRow(ctx,
		"SELECT decision_date FROM portfolio.weight_snapshots ORDER BY decision_date DESC LIMIT 1").
		Scan(&date)
	if err != nil {
		return nil, err
	}
	return r.GetWeights(ctx, date)
}

// GetHash returns the stored parity hash for a decision date
func (r *Repository) GetHash(ctx context.Context, date time.Time) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx,
		"SELECT hash FROM portfolio.weight_snapshots WHERE decision_date = $1", date).Scan(&hash)
	return hash, err
}

func sortedWeightCodes(weights map[string]float64) []string {
	codes := make([]string, 0, len(weights))
	for code := range weights {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
