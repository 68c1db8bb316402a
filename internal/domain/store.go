package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists market metadata.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (Market, error)
	ListByChain(ctx context.Context, chainID int64) ([]Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// ResourceStore persists market resources and their crawled snapshots.
type ResourceStore interface {
	GetByID(ctx context.Context, id string) (Resource, error)
	GetByMarket(ctx context.Context, marketID string) (Resource, error)
	// UpdateCrawl stores a fresh snapshot and its crawl time in one write.
	UpdateCrawl(ctx context.Context, id, data string, crawledAt int64) error
}

// RoundStore persists rounds. Transition writes are guarded by the expected
// prior state and return ErrStateTransitionConflict when the guard fails.
type RoundStore interface {
	GetByID(ctx context.Context, id string) (Round, error)
	GetByOnchainID(ctx context.Context, marketID string, onchainID int64) (Round, error)
	// ListClosed returns rounds whose on-chain number is below currentRound.
	ListClosed(ctx context.Context, marketID string, currentRound int64) ([]Round, error)
	MarkFinalized(ctx context.Context, id string, finalizedAt int64) error
	MarkResolved(ctx context.Context, id string, res Resolution) error
	UpdateWeight(ctx context.Context, id string, weight float64, updatedAt int64) error
}

// OutcomeStore persists outcomes.
type OutcomeStore interface {
	GetByID(ctx context.Context, id string) (Outcome, error)
	ListByRound(ctx context.Context, roundID string) ([]Outcome, error)
	// Reveal writes the verdict and moves every PENDING position on the
	// outcome to status in one transaction. It writes nothing if the outcome
	// was already revealed; applied is then false.
	Reveal(ctx context.Context, id string, v Verdict, status SettlementStatus, revealedAt int64) (applied bool, settled int64, err error)
	UpdateWeights(ctx context.Context, weights map[string]float64) error
}

// PositionStore persists user positions.
type PositionStore interface {
	// Place records the position and atomically increments the outcome and
	// round pool totals. It returns ErrBettingClosed when the round is no
	// longer PENDING or the outcome has been revealed.
	Place(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Position, error)
}
