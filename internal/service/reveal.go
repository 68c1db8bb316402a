package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/roundoracle/internal/domain"
	"github.com/alanyoungcy/roundoracle/internal/round"
)

// ContextProvider returns the judging context of a resource.
// *ResourceCache satisfies it.
type ContextProvider interface {
	Context(ctx context.Context, res domain.Resource) (string, error)
}

// RevealDeps are the collaborators of a RevealOrchestrator. Limiter, Bus,
// OutcomeCache and Notifier are optional.
type RevealDeps struct {
	Rounds       domain.RoundStore
	Outcomes     domain.OutcomeStore
	Resources    domain.ResourceStore
	Context      ContextProvider
	Judge        domain.Judge
	Limiter      domain.RateLimiter
	Bus          domain.SignalBus
	OutcomeCache domain.OutcomeCache
	Notifier     Notifier
}

// RevealConfig tunes a RevealOrchestrator.
type RevealConfig struct {
	// CallTimeout bounds each judge call. Zero means no extra deadline.
	CallTimeout time.Duration
	// JudgeCallsPerMinute caps judge calls per market when a Limiter is set.
	JudgeCallsPerMinute int
	// Now overrides the wall clock.
	Now func() time.Time
}

// RevealOrchestrator judges due outcomes of finalized rounds and resolves a
// round once all of its dated outcomes are revealed. Every write is guarded,
// so repeated or overlapping runs converge on the same stored state.
type RevealOrchestrator struct {
	deps   RevealDeps
	cfg    RevealConfig
	logger *slog.Logger
}

// NewRevealOrchestrator creates a RevealOrchestrator.
func NewRevealOrchestrator(deps RevealDeps, cfg RevealConfig, logger *slog.Logger) *RevealOrchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RevealOrchestrator{
		deps:   deps,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "reveal")),
	}
}

// Reveal runs one reveal pass for market given the live on-chain round.
// Failures inside a round are logged and do not stop the other rounds; only
// a failure to list the market's rounds is returned.
func (o *RevealOrchestrator) Reveal(ctx context.Context, currentOnchainRound int64, market domain.Market) error {
	rounds, err := o.deps.Rounds.ListClosed(ctx, market.ID, currentOnchainRound)
	if err != nil {
		return fmt.Errorf("reveal: list closed rounds for market %s: %w", market.ID, err)
	}

	for _, r := range rounds {
		if !round.IsClosed(r, currentOnchainRound) || !round.AwaitingReveal(r) {
			continue
		}
		if err := o.revealRound(ctx, market, r); err != nil {
			o.logger.ErrorContext(ctx, "reveal round failed",
				slog.String("market_id", market.ID),
				slog.String("round_id", r.ID),
				slog.Int64("onchain_round", r.OnchainID),
				slog.String("error", err.Error()),
			)
			o.notify(ctx, EventRevealFailed, "Reveal failed",
				fmt.Sprintf("market %s round %d: %v", market.ID, r.OnchainID, err))
		}
	}
	return nil
}

func (o *RevealOrchestrator) revealRound(ctx context.Context, market domain.Market, r domain.Round) error {
	outcomes, err := o.deps.Outcomes.ListByRound(ctx, r.ID)
	if err != nil {
		return fmt.Errorf("reveal: list outcomes: %w", err)
	}

	now := o.cfg.Now().Unix()

	if due := round.Due(outcomes, now); len(due) > 0 {
		verdicts, err := o.judge(ctx, market, due)
		if err != nil {
			return err
		}
		revealed, err := o.persistVerdicts(ctx, market, r, due, verdicts, now)
		if revealed > 0 {
			invalidateOutcomes(ctx, o.deps.OutcomeCache, o.logger, r.ID)
		}
		if err != nil {
			return err
		}
		if revealed > 0 {
			if outcomes, err = o.deps.Outcomes.ListByRound(ctx, r.ID); err != nil {
				return fmt.Errorf("reveal: reload outcomes: %w", err)
			}
		}
	}

	if !round.ReadyToResolve(outcomes) {
		return nil
	}
	return o.resolve(ctx, market, r, outcomes, now)
}

// judge fetches the resource context and asks the judge about due. A nil
// slice with a nil error means the call was throttled this tick.
func (o *RevealOrchestrator) judge(ctx context.Context, market domain.Market, due []domain.Outcome) ([]domain.Verdict, error) {
	if !o.allowJudgeCall(ctx, market.ID) {
		o.logger.InfoContext(ctx, "judge call throttled, retrying next tick",
			slog.String("market_id", market.ID),
		)
		return nil, nil
	}

	res, err := o.deps.Resources.GetByID(ctx, market.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("reveal: get resource %s: %w", market.ResourceID, err)
	}

	text, err := o.deps.Context.Context(ctx, res)
	if err != nil {
		if !errors.Is(err, domain.ErrCrawlFailure) || res.CrawledData == "" {
			return nil, fmt.Errorf("reveal: resource context: %w", err)
		}
		o.logger.WarnContext(ctx, "crawl failed, judging with stale snapshot",
			slog.String("resource_id", res.ID),
			slog.String("error", err.Error()),
		)
		text = res.CrawledData
	}

	judgeCtx := ctx
	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		judgeCtx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}

	verdicts, err := o.deps.Judge.Evaluate(judgeCtx, text, due)
	if err != nil {
		return nil, fmt.Errorf("reveal: judge %d outcomes: %w", len(due), err)
	}
	return verdicts, nil
}

func (o *RevealOrchestrator) allowJudgeCall(ctx context.Context, marketID string) bool {
	if o.deps.Limiter == nil || o.cfg.JudgeCallsPerMinute <= 0 {
		return true
	}
	allowed, err := o.deps.Limiter.Allow(ctx, "judge:"+marketID, o.cfg.JudgeCallsPerMinute, time.Minute)
	if err != nil {
		o.logger.WarnContext(ctx, "judge rate limiter unavailable",
			slog.String("error", err.Error()),
		)
		return true
	}
	return allowed
}

// persistVerdicts writes the verdicts matching due outcomes. Verdicts for
// other outcomes and duplicates are ignored; due outcomes without a verdict
// stay unrevealed.
func (o *RevealOrchestrator) persistVerdicts(
	ctx context.Context,
	market domain.Market,
	r domain.Round,
	due []domain.Outcome,
	verdicts []domain.Verdict,
	now int64,
) (int, error) {
	byID := make(map[string]domain.Verdict, len(verdicts))
	for _, v := range verdicts {
		if _, seen := byID[v.OutcomeID]; !seen {
			byID[v.OutcomeID] = v
		}
	}

	revealed := 0
	for _, out := range due {
		v, ok := byID[out.ID]
		if !ok {
			continue
		}
		status := round.Settlement(v)
		applied, settled, err := o.deps.Outcomes.Reveal(ctx, out.ID, v, status, now)
		if err != nil {
			return revealed, fmt.Errorf("reveal: reveal outcome %s: %w", out.ID, err)
		}
		if !applied {
			continue
		}
		revealed++

		o.logger.InfoContext(ctx, "outcome revealed",
			slog.String("round_id", r.ID),
			slog.String("outcome_id", out.ID),
			slog.String("status", string(status)),
			slog.Int64("positions_settled", settled),
		)
		publishEvent(ctx, o.deps.Bus, o.logger, domain.ChannelOutcomeRevealed, domain.RoundEvent{
			MarketID:  market.ID,
			RoundID:   r.ID,
			OutcomeID: out.ID,
			Status:    string(status),
			Timestamp: now,
		})
	}
	return revealed, nil
}

func (o *RevealOrchestrator) resolve(ctx context.Context, market domain.Market, r domain.Round, outcomes []domain.Outcome, now int64) error {
	if err := round.Resolve(&r, now); err != nil {
		if errors.Is(err, domain.ErrStateTransitionConflict) {
			return nil
		}
		return err
	}

	res := round.BuildResolution(outcomes, now)
	if err := o.deps.Rounds.MarkResolved(ctx, r.ID, res); err != nil {
		if errors.Is(err, domain.ErrStateTransitionConflict) {
			o.logger.DebugContext(ctx, "round already resolved", slog.String("round_id", r.ID))
			return nil
		}
		return fmt.Errorf("reveal: mark round %s resolved: %w", r.ID, err)
	}

	o.logger.InfoContext(ctx, "round resolved",
		slog.String("market_id", market.ID),
		slog.String("round_id", r.ID),
		slog.Int("winning", len(res.WinningOutcomeIDs)),
		slog.Int("disputed", len(res.DisputedOutcomeIDs)),
	)
	publishEvent(ctx, o.deps.Bus, o.logger, domain.ChannelRoundResolved, domain.RoundEvent{
		MarketID:  market.ID,
		RoundID:   r.ID,
		Status:    string(domain.RoundResolved),
		Timestamp: now,
	})
	o.notify(ctx, EventRoundResolved, "Round resolved",
		fmt.Sprintf("market %s round %d: %d winning, %d disputed",
			market.ID, r.OnchainID, len(res.WinningOutcomeIDs), len(res.DisputedOutcomeIDs)))
	return nil
}

func (o *RevealOrchestrator) notify(ctx context.Context, event, title, message string) {
	if o.deps.Notifier == nil {
		return
	}
	if err := o.deps.Notifier.Notify(ctx, event, title, message); err != nil {
		o.logger.WarnContext(ctx, "notification failed", slog.String("error", err.Error()))
	}
}
