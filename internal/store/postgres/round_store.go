package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.RoundStore = (*RoundStore)(nil)

// RoundStore implements domain.RoundStore using PostgreSQL. Status changes
// are conditional updates on the expected prior status.
type RoundStore struct {
	db DB
}

// NewRoundStore creates a new RoundStore backed by db.
func NewRoundStore(db DB) *RoundStore {
	return &RoundStore{db: db}
}

const roundCols = `id, market_id, onchain_id,
	total_bet_amount::text, total_paid_amount::text, total_disputed_amount::text,
	weight, last_weight_updated_at, status,
	finalized_timestamp, resolved_timestamp,
	winning_outcome_ids, disputed_outcome_ids`

func scanRound(row pgx.Row) (domain.Round, error) {
	var r domain.Round
	var bet, paid, disputed, status string
	err := row.Scan(
		&r.ID, &r.MarketID, &r.OnchainID,
		&bet, &paid, &disputed,
		&r.Weight, &r.LastWeightUpdatedAt, &status,
		&r.FinalizedTimestamp, &r.ResolvedTimestamp,
		&r.WinningOutcomeIDs, &r.DisputedOutcomeIDs,
	)
	if err != nil {
		return domain.Round{}, err
	}
	r.Status = domain.RoundStatus(status)
	if r.TotalBetAmount, err = parseNumeric("total_bet_amount", bet); err != nil {
		return domain.Round{}, err
	}
	if r.TotalPaidAmount, err = parseNumeric("total_paid_amount", paid); err != nil {
		return domain.Round{}, err
	}
	if r.TotalDisputedAmount, err = parseNumeric("total_disputed_amount", disputed); err != nil {
		return domain.Round{}, err
	}
	return r, nil
}

// Create inserts a new PENDING round.
func (s *RoundStore) Create(ctx context.Context, r domain.Round) error {
	const query = `
		INSERT INTO rounds (id, market_id, onchain_id, status)
		VALUES ($1, $2, $3, 'PENDING')`
	if _, err := s.db.Exec(ctx, query, r.ID, r.MarketID, r.OnchainID); err != nil {
		return fmt.Errorf("postgres: create round %s: %w", r.ID, err)
	}
	return nil
}

// GetByID retrieves a round by its primary key.
func (s *RoundStore) GetByID(ctx context.Context, id string) (domain.Round, error) {
	r, err := scanRound(s.db.QueryRow(ctx, `SELECT `+roundCols+` FROM rounds WHERE id = $1`, id))
	if err != nil {
		return domain.Round{}, notFound(err, "get round %s", id)
	}
	return r, nil
}

// GetByOnchainID retrieves a market's round by its on-chain number.
func (s *RoundStore) GetByOnchainID(ctx context.Context, marketID string, onchainID int64) (domain.Round, error) {
	r, err := scanRound(s.db.QueryRow(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE market_id = $1 AND onchain_id = $2`, marketID, onchainID))
	if err != nil {
		return domain.Round{}, notFound(err, "get round %s/%d", marketID, onchainID)
	}
	return r, nil
}

// ListClosed returns the market's rounds numbered below currentRound that
// are not yet RESOLVED, oldest first.
func (s *RoundStore) ListClosed(ctx context.Context, marketID string, currentRound int64) ([]domain.Round, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+roundCols+` FROM rounds
		WHERE market_id = $1 AND onchain_id < $2 AND status <> 'RESOLVED'
		ORDER BY onchain_id`, marketID, currentRound)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed rounds for market %s: %w", marketID, err)
	}
	defer rows.Close()

	var rounds []domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// MarkFinalized moves a PENDING round to FINALIZED.
func (s *RoundStore) MarkFinalized(ctx context.Context, id string, finalizedAt int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE rounds SET status = 'FINALIZED', finalized_timestamp = $2
		WHERE id = $1 AND status = 'PENDING'`, id, finalizedAt)
	if err != nil {
		return fmt.Errorf("postgres: finalize round %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.guardFailure(ctx, id)
	}
	return nil
}

// MarkResolved moves a FINALIZED round to RESOLVED with its settlement.
func (s *RoundStore) MarkResolved(ctx context.Context, id string, res domain.Resolution) error {
	winning := res.WinningOutcomeIDs
	if winning == nil {
		winning = []string{}
	}
	disputed := res.DisputedOutcomeIDs
	if disputed == nil {
		disputed = []string{}
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rounds SET
			status                = 'RESOLVED',
			resolved_timestamp    = $2,
			winning_outcome_ids   = $3,
			disputed_outcome_ids  = $4,
			total_disputed_amount = $5::numeric
		WHERE id = $1 AND status = 'FINALIZED'`,
		id, res.ResolvedAt, winning, disputed, res.TotalDisputedAmount.String())
	if err != nil {
		return fmt.Errorf("postgres: resolve round %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.guardFailure(ctx, id)
	}
	return nil
}

// UpdateWeight records the round's summed outcome weight.
func (s *RoundStore) UpdateWeight(ctx context.Context, id string, weight float64, updatedAt int64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE rounds SET weight = $2, last_weight_updated_at = $3 WHERE id = $1`,
		id, weight, updatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update weight of round %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// guardFailure tells a missing round apart from one in the wrong state.
func (s *RoundStore) guardFailure(ctx context.Context, id string) error {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rounds WHERE id = $1)`, id).Scan(&exists)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: check round %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrStateTransitionConflict
}
