// Package round holds the round lifecycle rules: PENDING -> FINALIZED ->
// RESOLVED, forward only, each transition applied at most once.
package round

import (
	"fmt"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// Status derives the lifecycle state from the round's timestamps, falling
// back to the stored status when neither timestamp is set.
func Status(r domain.Round) domain.RoundStatus {
	switch {
	case r.ResolvedTimestamp != nil:
		return domain.RoundResolved
	case r.FinalizedTimestamp != nil:
		return domain.RoundFinalized
	case r.Status == "":
		return domain.RoundPending
	}
	return r.Status
}

// Finalize applies PENDING -> FINALIZED and stamps finalizedAt. A round that
// is already past PENDING is left untouched and ErrStateTransitionConflict
// is returned.
func Finalize(r *domain.Round, now int64) error {
	if st := Status(*r); st != domain.RoundPending {
		return fmt.Errorf("round: finalize %s from %s: %w", r.ID, st, domain.ErrStateTransitionConflict)
	}
	r.Status = domain.RoundFinalized
	r.FinalizedTimestamp = &now
	return nil
}

// Resolve applies FINALIZED -> RESOLVED and stamps resolvedAt. Resolving a
// round twice returns ErrStateTransitionConflict; resolving a PENDING round
// returns ErrInvalidTransition.
func Resolve(r *domain.Round, now int64) error {
	switch st := Status(*r); st {
	case domain.RoundFinalized:
	case domain.RoundResolved:
		return fmt.Errorf("round: resolve %s: %w", r.ID, domain.ErrStateTransitionConflict)
	default:
		return fmt.Errorf("round: resolve %s from %s: %w", r.ID, st, domain.ErrInvalidTransition)
	}
	r.Status = domain.RoundResolved
	r.ResolvedTimestamp = &now
	return nil
}

// IsClosed reports whether the round's betting window has passed.
func IsClosed(r domain.Round, currentOnchainRound int64) bool {
	return currentOnchainRound > r.OnchainID
}

// AwaitingReveal reports whether the round is FINALIZED but not RESOLVED.
func AwaitingReveal(r domain.Round) bool {
	return r.FinalizedTimestamp != nil && r.ResolvedTimestamp == nil
}
