// Package scheduler drives the periodic reveal tick. Each tick reads the live
// round of every market on the configured chain, finalizes closed rounds,
// refreshes live weights and reveals due outcomes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// TickLockKey is the distributed lock held for the duration of a tick.
const TickLockKey = "reveal-tick"

// Finalizer moves closed PENDING rounds to FINALIZED.
type Finalizer interface {
	FinalizeClosedRounds(ctx context.Context, market domain.Market, currentRound int64) (int, error)
}

// WeightRefresher re-scores the live round of a market.
type WeightRefresher interface {
	Refresh(ctx context.Context, market domain.Market, currentRound int64) (bool, error)
}

// Revealer reveals due outcomes of a market's finalized rounds.
type Revealer interface {
	Reveal(ctx context.Context, currentOnchainRound int64, market domain.Market) error
}

// Config holds the scheduler knobs.
type Config struct {
	ChainID     int64
	Cron        string
	CallTimeout time.Duration
	LockTTL     time.Duration
}

// TickResult summarises one tick.
type TickResult struct {
	Markets        int  `json:"markets"`
	Failed         int  `json:"failed"`
	Finalized      int  `json:"finalized"`
	WeightsUpdated int  `json:"weights_updated"`
	Skipped        bool `json:"skipped"`
}

// Scheduler runs Tick on a cron schedule or on demand.
type Scheduler struct {
	markets   domain.MarketStore
	chain     domain.OnchainReader
	finalizer Finalizer
	weights   WeightRefresher
	revealer  Revealer
	locks     domain.LockManager
	cfg       Config
	trigger   chan struct{}
	logger    *slog.Logger
}

// New creates a Scheduler. weights and locks may be nil.
func New(
	markets domain.MarketStore,
	chain domain.OnchainReader,
	finalizer Finalizer,
	weights WeightRefresher,
	revealer Revealer,
	locks domain.LockManager,
	cfg Config,
	logger *slog.Logger,
) *Scheduler {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Minute
	}
	if cfg.LockTTL < cfg.CallTimeout {
		cfg.LockTTL = 3 * cfg.CallTimeout
	}
	return &Scheduler{
		markets:   markets,
		chain:     chain,
		finalizer: finalizer,
		weights:   weights,
		revealer:  revealer,
		locks:     locks,
		cfg:       cfg,
		trigger:   make(chan struct{}, 1),
		logger:    logger.With(slog.String("component", "scheduler")),
	}
}

// Trigger requests a tick outside the cron schedule. It never blocks and
// reports false when a request is already queued.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run registers the cron entry and executes ticks until ctx is cancelled.
// Cron firings and manual triggers share one queue so ticks never overlap
// within the process.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Cron, func() { s.Trigger() }); err != nil {
		return fmt.Errorf("scheduler: register cron %q: %w", s.cfg.Cron, err)
	}
	c.Start()
	defer func() { <-c.Stop().Done() }()

	s.logger.Info("scheduler started",
		slog.String("cron", s.cfg.Cron),
		slog.Int64("chain_id", s.cfg.ChainID),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return nil
		case <-s.trigger:
			if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick processes every market of the configured chain once. A failure for
// one market is logged and does not stop the others; only failures that
// affect the whole tick are returned.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult

	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, TickLockKey, s.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.InfoContext(ctx, "tick already running elsewhere, skipping")
			res.Skipped = true
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("scheduler: acquire tick lock: %w", err)
		}
		defer unlock()
	}

	start := time.Now()
	markets, err := s.markets.ListByChain(ctx, s.cfg.ChainID)
	if err != nil {
		return res, fmt.Errorf("scheduler: list markets: %w", err)
	}
	res.Markets = len(markets)

	for _, m := range markets {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if err := s.processMarket(ctx, m, &res); err != nil {
			res.Failed++
			s.logger.WarnContext(ctx, "market skipped",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "tick complete",
		slog.Int("markets", res.Markets),
		slog.Int("failed", res.Failed),
		slog.Int("finalized", res.Finalized),
		slog.Int("weights_updated", res.WeightsUpdated),
		slog.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (s *Scheduler) processMarket(ctx context.Context, m domain.Market, res *TickResult) error {
	current, err := s.currentRound(ctx, m)
	if err != nil {
		return err
	}

	// Rounds finalized on earlier ticks still get revealed when this fails.
	n, err := s.finalizer.FinalizeClosedRounds(ctx, m, current)
	res.Finalized += n
	if err != nil {
		s.logger.WarnContext(ctx, "finalize failed",
			slog.String("market_id", m.ID),
			slog.Int("finalized", n),
			slog.String("error", err.Error()),
		)
	}

	if s.weights != nil {
		wctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		updated, err := s.weights.Refresh(wctx, m, current)
		cancel()
		if err != nil {
			s.logger.WarnContext(ctx, "weight refresh failed",
				slog.String("market_id", m.ID),
				slog.String("error", err.Error()),
			)
		} else if updated {
			res.WeightsUpdated++
		}
	}

	if err := s.revealer.Reveal(ctx, current, m); err != nil {
		return fmt.Errorf("reveal: %w", err)
	}
	return nil
}

func (s *Scheduler) currentRound(ctx context.Context, m domain.Market) (int64, error) {
	cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	current, err := s.chain.CurrentRound(cctx, m.OnchainID)
	if err != nil {
		if errors.Is(err, domain.ErrOnchainRead) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: market %d: %v", domain.ErrOnchainRead, m.OnchainID, err)
	}
	return current, nil
}
