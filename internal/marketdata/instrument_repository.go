package marketdata

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/argus/backend/internal/contracts"
)

// InstrumentRepository implements contracts.InstrumentProvider over Postgres
// ⭐ SSOT: 종목 마스터 저장소는 여기서만
type InstrumentRepository struct {
	pool *pgxpool.Pool
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(pool *pgxpool.Pool) *InstrumentRepository {
	return &InstrumentRepository{pool: pool}
}

// ListInstruments returns the tradable universe sorted by code.
// Aliases ride along for candidate-edge resolution.
func (r *InstrumentRepository) ListInstruments(ctx context.Context) ([]contracts.Instrument, error) {
	query := `
		SELECT stock_code, name, COALESCE(sector, ''), COALESCE(aliases, '{}')
		FROM data.instruments
		WHERE active = true
		ORDER BY stock_code
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []contracts.Instrument
	for rows.Next() {
		var inst contracts.Instrument
		if err := rows.Scan(&inst.Code, &inst.Name, &inst.Sector, &inst.Aliases); err != nil {
			return nil, err
		}
		instruments = append(instruments, inst)
	}
	return instruments, rows.Err()
}

// UpsertInstrument registers or refreshes one instrument
func (r *InstrumentRepository) UpsertInstrument(ctx context.Context, inst contracts.Instrument) error {
	query := `
		INSERT INTO data.instruments (stock_code, name, sector, aliases, active)
		VALUES ($1, $2, $3, $4, true)
		ON CONFLICT (stock_code) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			aliases = EXCLUDED.aliases,
			active = true
	`
	_, err := r.pool.Exec(ctx, query, inst.Code, inst.Name, inst.Sector, inst.Aliases)
	return err
}
