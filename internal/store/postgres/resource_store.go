package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.ResourceStore = (*ResourceStore)(nil)

// ResourceStore implements domain.ResourceStore using PostgreSQL.
type ResourceStore struct {
	db DB
}

// NewResourceStore creates a new ResourceStore backed by db.
func NewResourceStore(db DB) *ResourceStore {
	return &ResourceStore{db: db}
}

const resourceCols = `id, market_id, url, crawled_data, last_crawled_at`

func scanResource(row pgx.Row) (domain.Resource, error) {
	var r domain.Resource
	err := row.Scan(&r.ID, &r.MarketID, &r.URL, &r.CrawledData, &r.LastCrawledAt)
	return r, err
}

// GetByID retrieves a resource by its primary key.
func (s *ResourceStore) GetByID(ctx context.Context, id string) (domain.Resource, error) {
	r, err := scanResource(s.db.QueryRow(ctx, `SELECT `+resourceCols+` FROM resources WHERE id = $1`, id))
	if err != nil {
		return domain.Resource{}, notFound(err, "get resource %s", id)
	}
	return r, nil
}

// GetByMarket retrieves the resource attached to a market.
func (s *ResourceStore) GetByMarket(ctx context.Context, marketID string) (domain.Resource, error) {
	r, err := scanResource(s.db.QueryRow(ctx,
		`SELECT `+resourceCols+` FROM resources WHERE market_id = $1 ORDER BY id LIMIT 1`, marketID))
	if err != nil {
		return domain.Resource{}, notFound(err, "get resource for market %s", marketID)
	}
	return r, nil
}

// UpdateCrawl replaces the snapshot and its crawl time in a single statement.
func (s *ResourceStore) UpdateCrawl(ctx context.Context, id, data string, crawledAt int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE resources SET crawled_data = $2, last_crawled_at = $3 WHERE id = $1`,
		id, data, crawledAt)
	if err != nil {
		return fmt.Errorf("postgres: update crawl for resource %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
