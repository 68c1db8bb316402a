package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/payout"
	"github.com/alanyoungcy/roundoracle/internal/round"
)

// RoundService serves round and outcome reads and drives the
// PENDING -> FINALIZED transition from the on-chain round number.
type RoundService struct {
	markets  domain.MarketStore
	rounds   domain.RoundStore
	outcomes domain.OutcomeStore
	cache    domain.OutcomeCache
	bus      domain.SignalBus
	now      func() time.Time
	logger   *slog.Logger
}

// NewRoundService creates a RoundService. cache and bus may be nil.
func NewRoundService(
	markets domain.MarketStore,
	rounds domain.RoundStore,
	outcomes domain.OutcomeStore,
	cache domain.OutcomeCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *RoundService {
	return &RoundService{
		markets:  markets,
		rounds:   rounds,
		outcomes: outcomes,
		cache:    cache,
		bus:      bus,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "round_service")),
	}
}

// SetClock overrides the wall clock.
func (s *RoundService) SetClock(now func() time.Time) { s.now = now }

// GetMarket returns a market by ID.
func (s *RoundService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return s.markets.GetByID(ctx, id)
}

// ListMarkets returns markets with pagination.
func (s *RoundService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.markets.List(ctx, opts)
}

// ListMarketsByChain returns every market deployed on chainID.
func (s *RoundService) ListMarketsByChain(ctx context.Context, chainID int64) ([]domain.Market, error) {
	return s.markets.ListByChain(ctx, chainID)
}

// CountMarkets returns the number of markets.
func (s *RoundService) CountMarkets(ctx context.Context) (int64, error) {
	return s.markets.Count(ctx)
}

// GetRound returns a market's round by its on-chain number.
func (s *RoundService) GetRound(ctx context.Context, marketID string, roundNumber int64) (domain.Round, error) {
	r, err := s.rounds.GetByOnchainID(ctx, marketID, roundNumber)
	if err != nil {
		return domain.Round{}, fmt.Errorf("round_service: get round %s/%d: %w", marketID, roundNumber, err)
	}
	return r, nil
}

// OutcomesForRound returns the outcome pool of a market's round, reading
// through the outcome cache when one is configured.
func (s *RoundService) OutcomesForRound(ctx context.Context, marketID string, roundNumber int64) ([]domain.Outcome, error) {
	r, err := s.GetRound(ctx, marketID, roundNumber)
	if err != nil {
		return nil, err
	}

	var (
		gen  int64
		fill bool
	)
	if s.cache != nil {
		cached, g, err := s.cache.Get(ctx, r.ID)
		switch {
		case err == nil:
			return cached, nil
		case errors.Is(err, domain.ErrNotFound):
			gen, fill = g, true
		default:
			s.logger.WarnContext(ctx, "outcome cache read failed",
				slog.String("round_id", r.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	outcomes, err := s.outcomes.ListByRound(ctx, r.ID)
	if err != nil {
		return nil, fmt.Errorf("round_service: list outcomes of round %s: %w", r.ID, err)
	}

	if fill {
		stored, err := s.cache.Set(ctx, r.ID, gen, outcomes)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "outcome cache write failed",
				slog.String("round_id", r.ID),
				slog.String("error", err.Error()),
			)
		case !stored:
			s.logger.DebugContext(ctx, "outcome pool changed during read, not cached",
				slog.String("round_id", r.ID),
			)
		}
	}
	return outcomes, nil
}

// ComputeOdds projects the payout of stake on chosenOutcomeID.
func (s *RoundService) ComputeOdds(outcomes []domain.Outcome, chosenOutcomeID string, stake decimal.Decimal) (payout.Quote, error) {
	return payout.Compute(outcomes, chosenOutcomeID, stake)
}

// FinalizeClosedRounds moves every PENDING round whose on-chain number is
// below currentRound to FINALIZED. Rounds finalized concurrently by another
// run are skipped. It returns how many rounds this call finalized.
func (s *RoundService) FinalizeClosedRounds(ctx context.Context, market domain.Market, currentRound int64) (int, error) {
	rounds, err := s.rounds.ListClosed(ctx, market.ID, currentRound)
	if err != nil {
		return 0, fmt.Errorf("round_service: list closed rounds for market %s: %w", market.ID, err)
	}

	now := s.now().Unix()
	finalized := 0
	for _, r := range rounds {
		if round.Status(r) != domain.RoundPending {
			continue
		}
		if err := round.Finalize(&r, now); err != nil {
			continue
		}
		if err := s.rounds.MarkFinalized(ctx, r.ID, now); err != nil {
			if errors.Is(err, domain.ErrStateTransitionConflict) {
				continue
			}
			return finalized, fmt.Errorf("round_service: finalize round %s: %w", r.ID, err)
		}
		finalized++

		s.logger.InfoContext(ctx, "round finalized",
			slog.String("market_id", market.ID),
			slog.String("round_id", r.ID),
			slog.Int64("onchain_round", r.OnchainID),
		)
		publishEvent(ctx, s.bus, s.logger, domain.ChannelRoundFinalized, domain.RoundEvent{
			MarketID:  market.ID,
			RoundID:   r.ID,
			Status:    string(domain.RoundFinalized),
			Timestamp: now,
		})
	}
	return finalized, nil
}
