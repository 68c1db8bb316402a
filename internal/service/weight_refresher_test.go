package service

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

func newWeightFixture(t *testing.T, lastUpdated *int64) (*memStore, *fakeJudge, *WeightRefresher) {
	t.Helper()
	store := newMemStore()
	store.resources["res-1"] = domain.Resource{ID: "res-1", CrawledData: "ctx", LastCrawledAt: int64Ptr(9_990)}
	store.rounds["r-1"] = domain.Round{ID: "r-1", MarketID: "m-1", OnchainID: 3, Status: domain.RoundPending, LastWeightUpdatedAt: lastUpdated}
	store.outcomes["o-a"] = domain.Outcome{ID: "o-a", RoundID: "r-1"}
	store.outcomes["o-b"] = domain.Outcome{ID: "o-b", RoundID: "r-1"}

	judge := &fakeJudge{weights: map[string]float64{"o-a": 70, "o-b": 140, "o-x": 5}}
	cache := NewResourceCache(memResources{store}, &fakeCrawler{}, discardLogger(), WithResourceClock(fixedClock(10_000)))
	w := NewWeightRefresher(memRounds{store}, memOutcomes{store}, memResources{store}, cache, judge,
		nil, nil, time.Hour, 0, discardLogger())
	w.now = fixedClock(10_000)
	return store, judge, w
}

func TestWeightRefresherWritesClampedWeights(t *testing.T) {
	store, _, w := newWeightFixture(t, nil)
	mkt := domain.Market{ID: "m-1", ResourceID: "res-1"}

	updated, err := w.Refresh(context.Background(), mkt, 3)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !updated {
		t.Fatal("expected weights to be refreshed")
	}
	if got := *store.outcomes["o-a"].Weight; got != 70 {
		t.Errorf("o-a weight %v", got)
	}
	if got := *store.outcomes["o-b"].Weight; got != 100 {
		t.Errorf("o-b weight should be clamped to 100, got %v", got)
	}
	r := store.rounds["r-1"]
	if r.Weight != 170 || r.LastWeightUpdatedAt == nil || *r.LastWeightUpdatedAt != 10_000 {
		t.Errorf("round weight not recorded: %+v", r)
	}
}

func TestWeightRefresherRespectsInterval(t *testing.T) {
	_, judge, w := newWeightFixture(t, int64Ptr(10_000-60))
	updated, err := w.Refresh(context.Background(), domain.Market{ID: "m-1", ResourceID: "res-1"}, 3)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if updated || judge.calls != 0 {
		t.Errorf("weights refreshed inside interval: updated=%v calls=%d", updated, judge.calls)
	}
}

func TestWeightRefresherSkipsMissingLiveRound(t *testing.T) {
	_, judge, w := newWeightFixture(t, nil)
	updated, err := w.Refresh(context.Background(), domain.Market{ID: "m-1", ResourceID: "res-1"}, 4)
	if err != nil || updated || judge.calls != 0 {
		t.Errorf("unexpected refresh: updated=%v err=%v calls=%d", updated, err, judge.calls)
	}
}
