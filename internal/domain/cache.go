package domain

import (
	"context"
	"time"
)

// OutcomeCache keeps a short-lived copy of a round's outcome pool for the
// odds read path. Fills are fenced by a per-round generation that every
// Invalidate bumps: a miss reports the current generation, and Set stores
// only while that generation is still current, so a pool read before a
// concurrent invalidation is never cached.
type OutcomeCache interface {
	// Get returns the cached pool, or ErrNotFound together with the
	// generation a subsequent Set must present.
	Get(ctx context.Context, roundID string) (outcomes []Outcome, gen int64, err error)
	// Set stores outcomes if gen is still current. stored is false when an
	// Invalidate happened since the generation was read.
	Set(ctx context.Context, roundID string, gen int64, outcomes []Outcome) (stored bool, err error)
	Invalidate(ctx context.Context, roundID string) error
}

// RateLimiter admits at most limit calls per key within a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for round lifecycle events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
