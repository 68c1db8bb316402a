package payout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// Quote is the payout projection for a stake on one outcome. When Available
// is false the numeric fields are zero and must not be shown.
type Quote struct {
	MinPayout decimal.Decimal `json:"min_payout"`
	MaxPayout decimal.Decimal `json:"max_payout"`
	MinOdds   decimal.Decimal `json:"min_odds"`
	MaxOdds   decimal.Decimal `json:"max_odds"`
	Available bool            `json:"available"`
}

var unitStake = decimal.NewFromInt(1)

// Compute projects the payout bounds of staking amount on chosenID against
// the current pool, plus the per-unit odds. The pool itself is not modified.
//
// It returns domain.ErrNotFound when chosenID is not among outcomes and
// domain.ErrInvalidStake for a negative amount. A zero weighted-share
// denominator is not an error: the quote comes back with Available false.
func Compute(outcomes []domain.Outcome, chosenID string, amount decimal.Decimal) (Quote, error) {
	if amount.IsNegative() {
		return Quote{}, fmt.Errorf("payout: compute: %w", domain.ErrInvalidStake)
	}
	idx := indexOf(outcomes, chosenID)
	if idx < 0 {
		return Quote{}, fmt.Errorf("payout: compute: outcome %s: %w", chosenID, domain.ErrNotFound)
	}

	minPayout, maxPayout, ok := bounds(outcomes, idx, amount)
	if !ok {
		return Quote{}, nil
	}
	minOdds, maxOdds, ok := bounds(outcomes, idx, unitStake)
	if !ok {
		return Quote{}, nil
	}
	return Quote{
		MinPayout: minPayout,
		MaxPayout: maxPayout,
		MinOdds:   minOdds,
		MaxOdds:   maxOdds,
		Available: true,
	}, nil
}

// Odds returns the per-unit payout bounds for chosenID, as displayed before
// the user enters an amount.
func Odds(outcomes []domain.Outcome, chosenID string) (minOdds, maxOdds decimal.Decimal, err error) {
	idx := indexOf(outcomes, chosenID)
	if idx < 0 {
		return decimal.Zero, decimal.Zero, fmt.Errorf("payout: odds: outcome %s: %w", chosenID, domain.ErrNotFound)
	}
	minOdds, maxOdds, ok := bounds(outcomes, idx, unitStake)
	if !ok {
		return decimal.Zero, decimal.Zero, domain.ErrOddsUnavailable
	}
	return minOdds, maxOdds, nil
}

// bounds computes the min and max payout of stake on outcomes[idx]. ok is
// false when either denominator is zero.
//
// The stake enters the weighted-share total only through the chosen
// outcome's term; every other outcome contributes its stored pool.
func bounds(outcomes []domain.Outcome, idx int, stake decimal.Decimal) (minPayout, maxPayout decimal.Decimal, ok bool) {
	chosen := outcomes[idx]
	chosenPool := chosen.TotalBetAmount.Add(stake)

	totalPool := decimal.Zero
	totalWeightedShares := decimal.Zero
	for i, o := range outcomes {
		totalPool = totalPool.Add(o.TotalBetAmount)
		if i == idx {
			totalWeightedShares = totalWeightedShares.Add(chosenPool.Mul(Share(o)))
			continue
		}
		totalWeightedShares = totalWeightedShares.Add(o.TotalBetAmount.Mul(Share(o)))
	}

	totalPoolAfter := totalPool.Add(stake)
	if totalWeightedShares.Sign() <= 0 || chosenPool.Sign() <= 0 || totalPoolAfter.IsNegative() {
		return decimal.Zero, decimal.Zero, false
	}

	outcomeWeightedShare := chosenPool.Mul(Share(chosen))
	ratio := outcomeWeightedShare.Div(totalWeightedShares)

	maxPayout = totalPoolAfter.Mul(stake).Div(chosenPool)
	minPayout = ratio.Mul(maxPayout)
	if minPayout.GreaterThan(maxPayout) {
		minPayout = maxPayout
	}
	return minPayout, maxPayout, true
}

func indexOf(outcomes []domain.Outcome, id string) int {
	for i, o := range outcomes {
		if o.ID == id {
			return i
		}
	}
	return -1
}
