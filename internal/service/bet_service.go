package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/payout"
	"github.com/alanyoungcy/roundoracle/internal/round"
)

// PlaceBetRequest describes a stake on one outcome of a live round.
type PlaceBetRequest struct {
	UserID      string
	MarketID    string
	RoundNumber int64
	OutcomeID   string
	Amount      decimal.Decimal
}

// BetService records positions. Pool totals are incremented by the store in
// the same transaction as the position insert.
type BetService struct {
	rounds    domain.RoundStore
	outcomes  domain.OutcomeStore
	positions domain.PositionStore
	cache     domain.OutcomeCache
	bus       domain.SignalBus
	now       func() time.Time
	logger    *slog.Logger
}

// NewBetService creates a BetService. cache and bus may be nil.
func NewBetService(
	rounds domain.RoundStore,
	outcomes domain.OutcomeStore,
	positions domain.PositionStore,
	cache domain.OutcomeCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		rounds:    rounds,
		outcomes:  outcomes,
		positions: positions,
		cache:     cache,
		bus:       bus,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "bet_service")),
	}
}

// PlaceBet validates req against the current pool, records the position and
// returns it with the payout quote computed before the stake landed.
func (s *BetService) PlaceBet(ctx context.Context, req PlaceBetRequest) (domain.Position, payout.Quote, error) {
	if req.UserID == "" {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: missing user: %w", domain.ErrInvalidStake)
	}
	if !req.Amount.IsPositive() {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: amount %s: %w", req.Amount, domain.ErrInvalidStake)
	}

	r, err := s.rounds.GetByOnchainID(ctx, req.MarketID, req.RoundNumber)
	if err != nil {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: get round: %w", err)
	}
	if round.Status(r) != domain.RoundPending {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: round %s is %s: %w", r.ID, round.Status(r), domain.ErrBettingClosed)
	}

	outcomes, err := s.outcomes.ListByRound(ctx, r.ID)
	if err != nil {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: list outcomes: %w", err)
	}

	var chosen *domain.Outcome
	for i := range outcomes {
		if outcomes[i].ID == req.OutcomeID {
			chosen = &outcomes[i]
			break
		}
	}
	if chosen == nil {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: outcome %s: %w", req.OutcomeID, domain.ErrNotFound)
	}
	if chosen.Revealed() {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: outcome %s revealed: %w", chosen.ID, domain.ErrBettingClosed)
	}

	quote, err := payout.Compute(outcomes, chosen.ID, req.Amount)
	if err != nil {
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: quote: %w", err)
	}

	pos := domain.Position{
		ID:               uuid.New().String(),
		UserID:           req.UserID,
		MarketID:         req.MarketID,
		RoundID:          r.ID,
		OutcomeID:        chosen.ID,
		BetAmount:        req.Amount,
		PredictedOutcome: chosen.OnchainID,
		Status:           domain.StatusPending,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.positions.Place(ctx, pos); err != nil {
		if errors.Is(err, domain.ErrBettingClosed) {
			return domain.Position{}, payout.Quote{}, err
		}
		return domain.Position{}, payout.Quote{}, fmt.Errorf("bet_service: place: %w", err)
	}

	invalidateOutcomes(ctx, s.cache, s.logger, r.ID)
	publishEvent(ctx, s.bus, s.logger, domain.ChannelBetPlaced, domain.RoundEvent{
		MarketID:  req.MarketID,
		RoundID:   r.ID,
		OutcomeID: chosen.ID,
		Amount:    req.Amount.String(),
		Timestamp: pos.CreatedAt.Unix(),
	})

	s.logger.InfoContext(ctx, "bet placed",
		slog.String("position_id", pos.ID),
		slog.String("round_id", r.ID),
		slog.String("outcome_id", chosen.ID),
		slog.String("amount", req.Amount.String()),
	)
	return pos, quote, nil
}

// ListPositions returns a user's positions, newest first.
func (s *BetService) ListPositions(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Position, error) {
	positions, err := s.positions.ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("bet_service: list positions: %w", err)
	}
	return positions, nil
}
