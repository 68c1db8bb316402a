package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.OutcomeStore = (*OutcomeStore)(nil)

// OutcomeStore implements domain.OutcomeStore using PostgreSQL.
type OutcomeStore struct {
	db DB
}

// NewOutcomeStore creates a new OutcomeStore backed by db.
func NewOutcomeStore(db DB) *OutcomeStore {
	return &OutcomeStore{db: db}
}

const outcomeCols = `id, round_id, market_id, onchain_id, description,
	total_bet_amount::text, weight, resolution_date, status,
	is_won, is_disputed, result, revealed_timestamp`

func scanOutcome(row pgx.Row) (domain.Outcome, error) {
	var o domain.Outcome
	var amount, status string
	err := row.Scan(
		&o.ID, &o.RoundID, &o.MarketID, &o.OnchainID, &o.Description,
		&amount, &o.Weight, &o.ResolutionDate, &status,
		&o.IsWon, &o.IsDisputed, &o.Result, &o.RevealedTimestamp,
	)
	if err != nil {
		return domain.Outcome{}, err
	}
	o.Status = domain.SettlementStatus(status)
	if o.TotalBetAmount, err = parseNumeric("total_bet_amount", amount); err != nil {
		return domain.Outcome{}, err
	}
	return o, nil
}

// Create inserts a new unrevealed outcome.
func (s *OutcomeStore) Create(ctx context.Context, o domain.Outcome) error {
	const query = `
		INSERT INTO outcomes (id, round_id, market_id, onchain_id, description, weight, resolution_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.Exec(ctx, query,
		o.ID, o.RoundID, o.MarketID, o.OnchainID, o.Description, o.Weight, o.ResolutionDate)
	if err != nil {
		return fmt.Errorf("postgres: create outcome %s: %w", o.ID, err)
	}
	return nil
}

// GetByID retrieves an outcome by its primary key.
func (s *OutcomeStore) GetByID(ctx context.Context, id string) (domain.Outcome, error) {
	o, err := scanOutcome(s.db.QueryRow(ctx, `SELECT `+outcomeCols+` FROM outcomes WHERE id = $1`, id))
	if err != nil {
		return domain.Outcome{}, notFound(err, "get outcome %s", id)
	}
	return o, nil
}

// ListByRound returns a round's outcomes ordered by on-chain index.
func (s *OutcomeStore) ListByRound(ctx context.Context, roundID string) ([]domain.Outcome, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+outcomeCols+` FROM outcomes WHERE round_id = $1 ORDER BY onchain_id, id`, roundID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes of round %s: %w", roundID, err)
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// Reveal writes the verdict to an unrevealed outcome and settles its
// PENDING positions in the same transaction.
func (s *OutcomeStore) Reveal(ctx context.Context, id string, v domain.Verdict, status domain.SettlementStatus, revealedAt int64) (bool, int64, error) {
	var (
		applied bool
		settled int64
	)
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE outcomes SET
				is_won             = $2,
				is_disputed        = $3,
				result             = $4,
				status             = $5,
				revealed_timestamp = $6
			WHERE id = $1 AND revealed_timestamp IS NULL`,
			id, v.IsWon, v.IsDisputed, v.Explanation, string(status), revealedAt)
		if err != nil {
			return fmt.Errorf("write verdict: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		applied = true

		tag, err = tx.Exec(ctx,
			`UPDATE positions SET status = $2 WHERE outcome_id = $1 AND status = 'PENDING'`,
			id, string(status))
		if err != nil {
			return fmt.Errorf("settle positions: %w", err)
		}
		settled = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("postgres: reveal outcome %s: %w", id, err)
	}
	return applied, settled, nil
}

// UpdateWeights writes all weights in one batch.
func (s *OutcomeStore) UpdateWeights(ctx context.Context, weights map[string]float64) error {
	if len(weights) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(weights))
	for id, w := range weights {
		batch.Queue(`UPDATE outcomes SET weight = $2 WHERE id = $1`, id, w)
		ids = append(ids, id)
	}

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for _, id := range ids {
		tag, err := br.Exec()
		if err != nil {
			return fmt.Errorf("postgres: update weight of outcome %s: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("postgres: update weight of outcome %s: %w", id, domain.ErrNotFound)
		}
	}
	return nil
}
