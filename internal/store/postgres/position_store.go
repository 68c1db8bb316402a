package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.PositionStore = (*PositionStore)(nil)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	db DB
}

// NewPositionStore creates a new PositionStore backed by db.
func NewPositionStore(db DB) *PositionStore {
	return &PositionStore{db: db}
}

const positionCols = `id, user_id, market_id, round_id, outcome_id,
	bet_amount::text, predicted_outcome, status, is_claimed, created_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var amount, status string
	err := row.Scan(
		&p.ID, &p.UserID, &p.MarketID, &p.RoundID, &p.OutcomeID,
		&amount, &p.PredictedOutcome, &status, &p.IsClaimed, &p.CreatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Status = domain.SettlementStatus(status)
	if p.BetAmount, err = parseNumeric("bet_amount", amount); err != nil {
		return domain.Position{}, err
	}
	return p, nil
}

// Place inserts the position and adds its stake to the outcome and round
// pools in one transaction. The pool updates are guarded on the round being
// PENDING and the outcome unrevealed, so a stake never lands on a closed pool.
func (s *PositionStore) Place(ctx context.Context, p domain.Position) error {
	amount := p.BetAmount.String()
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE rounds SET total_bet_amount = total_bet_amount + $2::numeric
			WHERE id = $1 AND status = 'PENDING'`, p.RoundID, amount)
		if err != nil {
			return fmt.Errorf("increment round pool: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrBettingClosed
		}

		tag, err = tx.Exec(ctx, `
			UPDATE outcomes SET total_bet_amount = total_bet_amount + $2::numeric
			WHERE id = $1 AND round_id = $3 AND revealed_timestamp IS NULL`, p.OutcomeID, amount, p.RoundID)
		if err != nil {
			return fmt.Errorf("increment outcome pool: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrBettingClosed
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO positions (
				id, user_id, market_id, round_id, outcome_id,
				bet_amount, predicted_outcome, status, is_claimed, created_at
			) VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, FALSE, $9)`,
			p.ID, p.UserID, p.MarketID, p.RoundID, p.OutcomeID,
			amount, p.PredictedOutcome, string(p.Status), p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert position: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrBettingClosed) {
			return err
		}
		return fmt.Errorf("postgres: place position %s: %w", p.ID, err)
	}
	return nil
}

// GetByID retrieves a position by its primary key.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	p, err := scanPosition(s.db.QueryRow(ctx, `SELECT `+positionCols+` FROM positions WHERE id = $1`, id))
	if err != nil {
		return domain.Position{}, notFound(err, "get position %s", id)
	}
	return p, nil
}

// ListByUser returns a user's positions newest first.
func (s *PositionStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionCols + ` FROM positions WHERE user_id = $1`
	args := []any{userID}
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
		return nil, fmt.Errorf("postgres: list positions for %s: %w", userID, err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}
