package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/payout"
	"github.com/alanyoungcy/roundoracle/internal/round"
)

// WeightRefresher asks the judge to re-score the outcomes of a market's live
// round at most once per interval.
type WeightRefresher struct {
	rounds      domain.RoundStore
	outcomes    domain.OutcomeStore
	resources   domain.ResourceStore
	source      ContextProvider
	assigner    domain.WeightAssigner
	cache       domain.OutcomeCache
	bus         domain.SignalBus
	interval    time.Duration
	callTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewWeightRefresher creates a WeightRefresher. cache and bus may be nil.
func NewWeightRefresher(
	rounds domain.RoundStore,
	outcomes domain.OutcomeStore,
	resources domain.ResourceStore,
	source ContextProvider,
	assigner domain.WeightAssigner,
	cache domain.OutcomeCache,
	bus domain.SignalBus,
	interval, callTimeout time.Duration,
	logger *slog.Logger,
) *WeightRefresher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &WeightRefresher{
		rounds:      rounds,
		outcomes:    outcomes,
		resources:   resources,
		source:      source,
		assigner:    assigner,
		cache:       cache,
		bus:         bus,
		interval:    interval,
		callTimeout: callTimeout,
		now:         time.Now,
		logger:      logger.With(slog.String("component", "weight_refresher")),
	}
}

// Refresh re-scores the live round of market when its weights are older
// than the interval. It reports whether new weights were written.
func (w *WeightRefresher) Refresh(ctx context.Context, market domain.Market, currentRound int64) (bool, error) {
	r, err := w.rounds.GetByOnchainID(ctx, market.ID, currentRound)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("weight_refresher: get live round: %w", err)
	}
	if round.Status(r) != domain.RoundPending {
		return false, nil
	}

	now := w.now().Unix()
	if r.LastWeightUpdatedAt != nil && now-*r.LastWeightUpdatedAt < int64(w.interval/time.Second) {
		return false, nil
	}

	outcomes, err := w.outcomes.ListByRound(ctx, r.ID)
	if err != nil {
		return false, fmt.Errorf("weight_refresher: list outcomes: %w", err)
	}
	if len(outcomes) == 0 {
		return false, nil
	}

	res, err := w.resources.GetByID(ctx, market.ResourceID)
	if err != nil {
		return false, fmt.Errorf("weight_refresher: get resource: %w", err)
	}
	text, err := w.source.Context(ctx, res)
	if err != nil {
		return false, fmt.Errorf("weight_refresher: resource context: %w", err)
	}

	callCtx := ctx
	if w.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, w.callTimeout)
		defer cancel()
	}
	raw, err := w.assigner.AssignWeights(callCtx, text, outcomes)
	if err != nil {
		return false, fmt.Errorf("weight_refresher: assign weights: %w", err)
	}

	weights := make(map[string]float64, len(outcomes))
	var total float64
	for _, o := range outcomes {
		v, ok := raw[o.ID]
		if !ok {
			continue
		}
		v = payout.ClampWeight(v)
		weights[o.ID] = v
		total += v
	}
	if len(weights) == 0 {
		return false, nil
	}

	if err := w.outcomes.UpdateWeights(ctx, weights); err != nil {
		return false, fmt.Errorf("weight_refresher: store outcome weights: %w", err)
	}
	if err := w.rounds.UpdateWeight(ctx, r.ID, total, now); err != nil {
		return false, fmt.Errorf("weight_refresher: store round weight: %w", err)
	}

	invalidateOutcomes(ctx, w.cache, w.logger, r.ID)
	publishEvent(ctx, w.bus, w.logger, domain.ChannelWeightsUpdated, domain.RoundEvent{
		MarketID:  market.ID,
		RoundID:   r.ID,
		Timestamp: now,
	})
	w.logger.InfoContext(ctx, "outcome weights refreshed",
		slog.String("round_id", r.ID),
		slog.Int("outcomes", len(weights)),
	)
	return true, nil
}
