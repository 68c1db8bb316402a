package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.MarketStore = (*MarketStore)(nil)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	db DB
}

// NewMarketStore creates a new MarketStore backed by db.
func NewMarketStore(db DB) *MarketStore {
	return &MarketStore{db: db}
}

const marketCols = `id, chain_id, onchain_id, title, resource_id, created_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(&m.ID, &m.ChainID, &m.OnchainID, &m.Title, &m.ResourceID, &m.CreatedAt)
	return m, err
}

func scanMarketRows(rows pgx.Rows) ([]domain.Market, error) {
	defer rows.Close()
	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// Upsert inserts or updates a market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (id, chain_id, onchain_id, title, resource_id, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		ON CONFLICT (id) DO UPDATE SET
			title       = EXCLUDED.title,
			resource_id = EXCLUDED.resource_id`

	var createdAt any
	if !m.CreatedAt.IsZero() {
		createdAt = m.CreatedAt
	}
	if _, err := s.db.Exec(ctx, query, m.ID, m.ChainID, m.OnchainID, m.Title, m.ResourceID, createdAt); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.db.QueryRow(ctx, `SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		return domain.Market{}, notFound(err, "get market %s", id)
	}
	return m, nil
}

// ListByChain returns every market deployed on chainID.
func (s *MarketStore) ListByChain(ctx context.Context, chainID int64) ([]domain.Market, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE chain_id = $1 ORDER BY onchain_id`, chainID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets for chain %d: %w", chainID, err)
	}
	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan markets: %w", err)
	}
	return markets, nil
}

// List returns markets newest first with pagination and optional time filtering.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE TRUE`
	var args []any

	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	query, args = limitOffset(query, args, opts)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	markets, err := scanMarketRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan markets: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}
