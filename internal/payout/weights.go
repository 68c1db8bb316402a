// Package payout implements the weighted pari-mutuel math shown to bettors.
// Everything here is pure and safe for concurrent use.
package payout

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// MaxWeight is the upper bound of a judge-assigned outcome weight.
const MaxWeight = 100.0

// Weights returns the raw weights of the outcomes keyed by outcome ID.
// Outcomes without a weight are omitted.
func Weights(outcomes []domain.Outcome) map[string]float64 {
	out := make(map[string]float64, len(outcomes))
	for _, o := range outcomes {
		if o.Weight != nil {
			out[o.ID] = *o.Weight
		}
	}
	return out
}

// Share is the multiplier an outcome's stake carries in the weighted pool.
// An undefined weight counts as zero; values are held to [0, MaxWeight].
func Share(o domain.Outcome) decimal.Decimal {
	if o.Weight == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(ClampWeight(*o.Weight))
}

// ClampWeight bounds w to [0, MaxWeight].
func ClampWeight(w float64) float64 {
	switch {
	case math.IsNaN(w), w < 0:
		return 0
	case w > MaxWeight:
		return MaxWeight
	}
	return w
}

// TotalWeight sums the clamped weights of all outcomes.
func TotalWeight(outcomes []domain.Outcome) float64 {
	var sum float64
	for _, o := range outcomes {
		if o.Weight != nil {
			sum += ClampWeight(*o.Weight)
		}
	}
	return sum
}
