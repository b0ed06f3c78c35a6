package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/argus/backend/internal/contracts"
)

// NewsRepository implements contracts.NewsProvider over Postgres
// ⭐ SSOT: 뉴스 데이터 저장소는 여기서만
type NewsRepository struct {
	pool *pgxpool.Pool
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(pool *pgxpool.Pool) *NewsRepository {
	return &NewsRepository{pool: pool}
}

// GetNews retrieves items for a code published in [from, to), oldest first.
// The ID tiebreak keeps ordering stable for items sharing a timestamp.
func (r *NewsRepository) GetNews(ctx context.Context, code string, from, to time.Time) ([]contracts.NewsItem, error) {
	query := `
		SELECT id, stock_code, published_at, headline, body, source
		FROM data.news_items
		WHERE stock_code = $1 AND published_at >= $2 AND published_at < $3
		ORDER BY published_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, code, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []contracts.NewsItem
	for rows.Next() {
		var item contracts.NewsItem
		if err := rows.Scan(&item.ID, &item.Code, &item.Timestamp, &item.Headline, &item.Body, &item.Source); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SaveItems inserts news items, silently keeping the first version of an ID.
// Feeds re-deliver the same article; the first capture wins.
func (r *NewsRepository) SaveItems(ctx context.Context, items []contracts.NewsItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.news_items (id, stock_code, published_at, headline, body, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, item.ID, item.Code, item.Timestamp, item.Headline, item.Body, item.Source)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to save news item: %w", err)
		}
	}
	return nil
}

// CountByCode returns how many stored items fall in [from, to) per code
func (r *NewsRepository) CountByCode(ctx context.Context, from, to time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT stock_code, COUNT(*)
		FROM data.news_items
		WHERE published_at >= $1 AND published_at < $2
		GROUP BY stock_code
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		counts[code] = count
	}
	return counts, rows.Err()
}
