package relgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/argus/backend/internal/contracts"
)

// Repository persists the static graph and the candidate audit trail
// ⭐ SSOT: 관계 그래프 저장소 접근은 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new graph repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadGraph reads every static edge, ordered so arena construction is
// reproducible. Implements contracts.GraphLoader.
func (r *Repository) LoadGraph(ctx context.Context) ([]contracts.RelationshipEdge, error) {
	query := `
		SELECT source_code, target_code, kind, tier, weight
		FROM graph.relationship_edges
		ORDER BY target_code, tier, source_code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []contracts.RelationshipEdge
	for rows.Next() {
		var e contracts.RelationshipEdge
		var kind string
		if err := rows.Scan(&e.Source, &e.Target, &kind, &e.Tier, &e.Weight); err != nil {
			return nil, err
		}
		e.Kind = contracts.RelationKind(kind)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// SaveCandidates records the day's discovered candidate edges for curation.
// Re-running a date replaces that date's candidates.
func (r *Repository) SaveCandidates(ctx context.Context, decisionDate time.Time, edges []contracts.CandidateEdge) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM graph.candidate_edges WHERE decision_date = $1`, decisionDate); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO graph.candidate_edges
			(decision_date, mention, resolved_code, target_code, kind, weight, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, e := range edges {
		batch.Queue(query, decisionDate, e.Mention, e.ResolvedCode, e.Target,
			string(e.Kind), e.Weight, e.DiscoveredAt)
	}

	br := tx.SendBatch(ctx, batch)
	for range edges {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// PromoteCandidate inserts a curated candidate into the static graph.
// 승격은 명시적 운영 행위다. 파이프라인은 절대 이 메서드를 호출하지 않는다.
func (r *Repository) PromoteCandidate(ctx context.Context, edge contracts.CandidateEdge, tier int) error {
	if edge.ResolvedCode == "" {
		return fmt.Errorf("cannot promote unresolved candidate %q", edge.Mention)
	}
	if tier != 1 && tier != 2 {
		return fmt.Errorf("invalid tier %d", tier)
	}
	if !contracts.IsValidRelationKind(string(edge.Kind)) {
		return fmt.Errorf("invalid relation kind %q", edge.Kind)
	}

	query := `
		INSERT INTO graph.relationship_edges (source_code, target_code, kind, tier, weight)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_code, target_code, kind) DO UPDATE SET
			tier = EXCLUDED.tier,
			weight = EXCLUDED.weight
	`
	_, err := r.pool.Exec(ctx, query, edge.ResolvedCode, edge.Target,
		string(edge.Kind), tier, edge.Weight)
	return err
}
