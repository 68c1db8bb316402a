package payout

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func outcome(id string, pool int64, weight *float64) domain.Outcome {
	return domain.Outcome{
		ID:             id,
		TotalBetAmount: decimal.NewFromInt(pool),
		Weight:         weight,
	}
}

func TestComputeTwoOutcomeScenario(t *testing.T) {
	outcomes := []domain.Outcome{
		outcome("a", 100, floatPtr(80)),
		outcome("b", 50, floatPtr(20)),
	}

	q, err := Compute(outcomes, "a", decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !q.Available {
		t.Fatal("expected quote to be available")
	}
	if got := q.MinPayout.Round(1).String(); got != "61.5" {
		t.Errorf("min payout: expected 61.5, got %s (%s)", got, q.MinPayout)
	}
	if got := q.MaxPayout.Round(1).String(); got != "66.7" {
		t.Errorf("max payout: expected 66.7, got %s (%s)", got, q.MaxPayout)
	}
}

func TestComputeDoesNotMutatePool(t *testing.T) {
	outcomes := []domain.Outcome{
		outcome("a", 100, floatPtr(80)),
		outcome("b", 50, floatPtr(20)),
	}
	if _, err := Compute(outcomes, "a", decimal.NewFromInt(50)); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !outcomes[0].TotalBetAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("pool of a changed to %s", outcomes[0].TotalBetAmount)
	}
}

func TestComputeUnavailable(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []domain.Outcome
		chosen   string
		amount   int64
	}{
		{
			name:     "all weights undefined",
			outcomes: []domain.Outcome{outcome("a", 100, nil), outcome("b", 50, nil)},
			chosen:   "a",
			amount:   10,
		},
		{
			name:     "all weights zero",
			outcomes: []domain.Outcome{outcome("a", 100, floatPtr(0)), outcome("b", 50, floatPtr(0))},
			chosen:   "b",
			amount:   10,
		},
		{
			name:     "weighted outcomes have empty pools",
			outcomes: []domain.Outcome{outcome("a", 0, floatPtr(50)), outcome("b", 40, nil)},
			chosen:   "b",
			amount:   10,
		},
		{
			name:     "empty chosen pool with zero stake",
			outcomes: []domain.Outcome{outcome("a", 0, floatPtr(50)), outcome("b", 40, floatPtr(10))},
			chosen:   "a",
			amount:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := Compute(tt.outcomes, tt.chosen, decimal.NewFromInt(tt.amount))
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if q.Available {
				t.Errorf("expected unavailable quote, got %+v", q)
			}
			if !q.MinPayout.IsZero() || !q.MaxPayout.IsZero() {
				t.Errorf("expected zero payouts, got %s/%s", q.MinPayout, q.MaxPayout)
			}
		})
	}
}

func TestComputeUndefinedWeightStillCountsInPool(t *testing.T) {
	outcomes := []domain.Outcome{
		outcome("a", 100, floatPtr(50)),
		outcome("b", 100, nil),
	}
	q, err := Compute(outcomes, "a", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	// b contributes nothing to the weighted total, so a is the sole weighted
	// share, but b's pool is still paid out.
	if !q.MinPayout.Equal(q.MaxPayout) {
		t.Errorf("expected min == max, got %s/%s", q.MinPayout, q.MaxPayout)
	}
	if !q.MaxPayout.Equal(decimal.NewFromInt(150)) {
		t.Errorf("expected max payout 150, got %s", q.MaxPayout)
	}
}

func TestComputeErrors(t *testing.T) {
	outcomes := []domain.Outcome{outcome("a", 10, floatPtr(50))}

	if _, err := Compute(outcomes, "missing", decimal.NewFromInt(1)); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := Compute(outcomes, "a", decimal.NewFromInt(-1)); !errors.Is(err, domain.ErrInvalidStake) {
		t.Errorf("expected ErrInvalidStake, got %v", err)
	}
}

func TestComputeBoundsOrdering(t *testing.T) {
	pools := []int64{0, 1, 7, 50, 1000}
	weights := []*float64{nil, floatPtr(0), floatPtr(1), floatPtr(33.3), floatPtr(100), floatPtr(250)}
	amounts := []string{"0", "0.5", "1", "25", "10000"}

	for _, pa := range pools {
		for _, pb := range pools {
			for _, wa := range weights {
				for _, wb := range weights {
					outcomes := []domain.Outcome{
						outcome("a", pa, wa),
						outcome("b", pb, wb),
						outcome("c", 3, floatPtr(10)),
					}
					for _, amt := range amounts {
						q, err := Compute(outcomes, "a", mustDecimal(t, amt))
						if err != nil {
							t.Fatalf("Compute: %v", err)
						}
						if !q.Available {
							continue
						}
						if q.MinPayout.IsNegative() || q.MaxPayout.IsNegative() {
							t.Fatalf("negative payout for pools %d/%d amount %s: %+v", pa, pb, amt, q)
						}
						if q.MinPayout.GreaterThan(q.MaxPayout) {
							t.Fatalf("min > max for pools %d/%d amount %s: %+v", pa, pb, amt, q)
						}
						if q.MinOdds.GreaterThan(q.MaxOdds) {
							t.Fatalf("min odds > max odds for pools %d/%d: %+v", pa, pb, q)
						}
					}
				}
			}
		}
	}
}

func TestOddsUsesUnitStake(t *testing.T) {
	outcomes := []domain.Outcome{
		outcome("a", 100, floatPtr(80)),
		outcome("b", 50, floatPtr(20)),
	}
	minOdds, maxOdds, err := Odds(outcomes, "a")
	if err != nil {
		t.Fatalf("Odds: %v", err)
	}
	q, err := Compute(outcomes, "a", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if !minOdds.Equal(q.MinPayout) || !maxOdds.Equal(q.MaxPayout) {
		t.Errorf("odds %s/%s differ from unit payout %s/%s", minOdds, maxOdds, q.MinPayout, q.MaxPayout)
	}
	if !q.MinOdds.Equal(minOdds) || !q.MaxOdds.Equal(maxOdds) {
		t.Errorf("quote odds %s/%s differ from Odds %s/%s", q.MinOdds, q.MaxOdds, minOdds, maxOdds)
	}

	zero := []domain.Outcome{outcome("a", 10, nil)}
	if _, _, err := Odds(zero, "a"); !errors.Is(err, domain.ErrOddsUnavailable) {
		t.Errorf("expected ErrOddsUnavailable, got %v", err)
	}
}
