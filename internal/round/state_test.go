package round

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

func int64Ptr(v int64) *int64 { return &v }

func TestFinalizeOnce(t *testing.T) {
	r := domain.Round{ID: "r1", Status: domain.RoundPending}

	if err := Finalize(&r, 100); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if r.Status != domain.RoundFinalized || r.FinalizedTimestamp == nil || *r.FinalizedTimestamp != 100 {
		t.Fatalf("unexpected round after finalize: %+v", r)
	}

	err := Finalize(&r, 200)
	if !errors.Is(err, domain.ErrStateTransitionConflict) {
		t.Fatalf("expected ErrStateTransitionConflict, got %v", err)
	}
	if *r.FinalizedTimestamp != 100 {
		t.Errorf("finalized timestamp overwritten: %d", *r.FinalizedTimestamp)
	}
}

func TestResolveRequiresFinalized(t *testing.T) {
	r := domain.Round{ID: "r1", Status: domain.RoundPending}
	if err := Resolve(&r, 100); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if r.ResolvedTimestamp != nil || r.Status != domain.RoundPending {
		t.Fatalf("pending round mutated: %+v", r)
	}
}

func TestResolveOnce(t *testing.T) {
	r := domain.Round{ID: "r1", Status: domain.RoundFinalized, FinalizedTimestamp: int64Ptr(50)}

	if err := Resolve(&r, 100); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := Resolve(&r, 300); !errors.Is(err, domain.ErrStateTransitionConflict) {
		t.Fatalf("expected ErrStateTransitionConflict, got %v", err)
	}
	if *r.ResolvedTimestamp != 100 || *r.FinalizedTimestamp != 50 {
		t.Errorf("timestamps overwritten: %+v", r)
	}
	if err := Finalize(&r, 400); !errors.Is(err, domain.ErrStateTransitionConflict) {
		t.Errorf("finalize after resolve: expected conflict, got %v", err)
	}
}

func TestStatusSequenceIsMonotonic(t *testing.T) {
	order := map[domain.RoundStatus]int{
		domain.RoundPending:   0,
		domain.RoundFinalized: 1,
		domain.RoundResolved:  2,
	}
	ops := []func(*domain.Round, int64) error{Resolve, Finalize, Resolve, Finalize, Resolve}

	r := domain.Round{ID: "r1"}
	last := order[Status(r)]
	for i, op := range ops {
		_ = op(&r, int64(i+1))
		cur := order[Status(r)]
		if cur < last || cur > last+1 {
			t.Fatalf("step %d jumped from %d to %d", i, last, cur)
		}
		last = cur
	}
	if Status(r) != domain.RoundResolved {
		t.Errorf("expected RESOLVED at end, got %s", Status(r))
	}
}

func TestStatusDerivation(t *testing.T) {
	tests := []struct {
		name  string
		round domain.Round
		want  domain.RoundStatus
	}{
		{"empty", domain.Round{}, domain.RoundPending},
		{"finalized timestamp", domain.Round{Status: domain.RoundPending, FinalizedTimestamp: int64Ptr(1)}, domain.RoundFinalized},
		{"resolved timestamp", domain.Round{FinalizedTimestamp: int64Ptr(1), ResolvedTimestamp: int64Ptr(2)}, domain.RoundResolved},
		{"stored status", domain.Round{Status: domain.RoundFinalized}, domain.RoundFinalized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.round); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestClosedAndAwaitingReveal(t *testing.T) {
	r := domain.Round{OnchainID: 5}
	if IsClosed(r, 5) {
		t.Error("round 5 should be open while chain is on round 5")
	}
	if !IsClosed(r, 6) {
		t.Error("round 5 should be closed once chain reaches round 6")
	}
	if AwaitingReveal(r) {
		t.Error("pending round should not await reveal")
	}
	r.FinalizedTimestamp = int64Ptr(10)
	if !AwaitingReveal(r) {
		t.Error("finalized round should await reveal")
	}
	r.ResolvedTimestamp = int64Ptr(20)
	if AwaitingReveal(r) {
		t.Error("resolved round should not await reveal")
	}
}

func TestDueOutcomes(t *testing.T) {
	now := int64(1000)
	outcomes := []domain.Outcome{
		{ID: "past", ResolutionDate: int64Ptr(900)},
		{ID: "exact", ResolutionDate: int64Ptr(1000)},
		{ID: "future", ResolutionDate: int64Ptr(1001)},
		{ID: "undated"},
		{ID: "revealed", ResolutionDate: int64Ptr(10), RevealedTimestamp: int64Ptr(20)},
	}
	due := Due(outcomes, now)
	if len(due) != 2 || due[0].ID != "past" || due[1].ID != "exact" {
		t.Fatalf("unexpected due outcomes: %+v", due)
	}
}

func TestReadyToResolve(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []domain.Outcome
		want     bool
	}{
		{"no outcomes", nil, false},
		{"only undated", []domain.Outcome{{ID: "a"}}, false},
		{"one pending", []domain.Outcome{
			{ID: "a", ResolutionDate: int64Ptr(1), RevealedTimestamp: int64Ptr(2)},
			{ID: "b", ResolutionDate: int64Ptr(1)},
		}, false},
		{"all dated revealed, undated ignored", []domain.Outcome{
			{ID: "a", ResolutionDate: int64Ptr(1), RevealedTimestamp: int64Ptr(2)},
			{ID: "b"},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReadyToResolve(tt.outcomes); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSettlement(t *testing.T) {
	tests := []struct {
		v    domain.Verdict
		want domain.SettlementStatus
	}{
		{domain.Verdict{IsWon: true}, domain.StatusWin},
		{domain.Verdict{IsWon: false}, domain.StatusLose},
		{domain.Verdict{IsWon: true, IsDisputed: true}, domain.StatusCancelled},
		{domain.Verdict{IsDisputed: true}, domain.StatusCancelled},
	}
	for _, tt := range tests {
		if got := Settlement(tt.v); got != tt.want {
			t.Errorf("Settlement(%+v): expected %s, got %s", tt.v, tt.want, got)
		}
	}
}

func TestBuildResolution(t *testing.T) {
	outcomes := []domain.Outcome{
		{ID: "w", IsWon: true, RevealedTimestamp: int64Ptr(1), TotalBetAmount: decimal.NewFromInt(10)},
		{ID: "l", RevealedTimestamp: int64Ptr(1), TotalBetAmount: decimal.NewFromInt(20)},
		{ID: "d1", IsWon: true, IsDisputed: true, RevealedTimestamp: int64Ptr(1), TotalBetAmount: decimal.NewFromInt(5)},
		{ID: "d2", IsDisputed: true, RevealedTimestamp: int64Ptr(1), TotalBetAmount: decimal.NewFromInt(7)},
	}
	res := BuildResolution(outcomes, 99)
	if res.ResolvedAt != 99 {
		t.Errorf("resolved at: %d", res.ResolvedAt)
	}
	if len(res.WinningOutcomeIDs) != 1 || res.WinningOutcomeIDs[0] != "w" {
		t.Errorf("winning ids: %v", res.WinningOutcomeIDs)
	}
	if len(res.DisputedOutcomeIDs) != 2 {
		t.Errorf("disputed ids: %v", res.DisputedOutcomeIDs)
	}
	if !res.TotalDisputedAmount.Equal(decimal.NewFromInt(12)) {
		t.Errorf("disputed amount: %s", res.TotalDisputedAmount)
	}
}
