package round

import (
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// Dated returns the outcomes that carry a resolution date.
func Dated(outcomes []domain.Outcome) []domain.Outcome {
	var out []domain.Outcome
	for _, o := range outcomes {
		if o.ResolutionDate != nil {
			out = append(out, o)
		}
	}
	return out
}

// Due returns the unrevealed outcomes whose resolution date has passed.
func Due(outcomes []domain.Outcome, now int64) []domain.Outcome {
	var out []domain.Outcome
	for _, o := range Dated(outcomes) {
		if o.Revealed() || now < *o.ResolutionDate {
			continue
		}
		out = append(out, o)
	}
	return out
}

// ReadyToResolve reports whether every dated outcome has been revealed. A
// round with no dated outcomes is never ready.
func ReadyToResolve(outcomes []domain.Outcome) bool {
	dated := Dated(outcomes)
	if len(dated) == 0 {
		return false
	}
	for _, o := range dated {
		if !o.Revealed() {
			return false
		}
	}
	return true
}

// Settlement maps a verdict to the status written to the outcome and its
// positions. A disputed outcome is cancelled whatever the win flag says.
func Settlement(v domain.Verdict) domain.SettlementStatus {
	switch {
	case v.IsDisputed:
		return domain.StatusCancelled
	case v.IsWon:
		return domain.StatusWin
	}
	return domain.StatusLose
}

// BuildResolution collects the winning and disputed outcome IDs of a fully
// revealed round and sums the pool of the disputed ones.
func BuildResolution(outcomes []domain.Outcome, resolvedAt int64) domain.Resolution {
	res := domain.Resolution{
		ResolvedAt:          resolvedAt,
		WinningOutcomeIDs:   []string{},
		DisputedOutcomeIDs:  []string{},
		TotalDisputedAmount: decimal.Zero,
	}
	for _, o := range outcomes {
		if !o.Revealed() {
			continue
		}
		if o.IsDisputed {
			res.DisputedOutcomeIDs = append(res.DisputedOutcomeIDs, o.ID)
			res.TotalDisputedAmount = res.TotalDisputedAmount.Add(o.TotalBetAmount)
			continue
		}
		if o.IsWon {
			res.WinningOutcomeIDs = append(res.WinningOutcomeIDs, o.ID)
		}
	}
	return res
}
