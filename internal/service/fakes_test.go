package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }
func fixedClock(sec int64) func() time.Time {
	return func() time.Time { return time.Unix(sec, 0) }
}

// memStore is an in-memory record store with the same guarded writes as the
// postgres implementation.
type memStore struct {
	mu        sync.Mutex
	markets   map[string]domain.Market
	resources map[string]domain.Resource
	rounds    map[string]domain.Round
	outcomes  map[string]domain.Outcome
	positions map[string]domain.Position

	crawlWrites   int
	revealWrites  int
	resolveWrites int
	failListRound bool
	// failReveal fails that many Reveal calls before any write.
	failReveal int
}

func newMemStore() *memStore {
	return &memStore{
		markets:   map[string]domain.Market{},
		resources: map[string]domain.Resource{},
		rounds:    map[string]domain.Round{},
		outcomes:  map[string]domain.Outcome{},
		positions: map[string]domain.Position{},
	}
}

func (s *memStore) snapshot() (map[string]domain.Round, map[string]domain.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds := make(map[string]domain.Round, len(s.rounds))
	for k, v := range s.rounds {
		rounds[k] = v
	}
	outcomes := make(map[string]domain.Outcome, len(s.outcomes))
	for k, v := range s.outcomes {
		outcomes[k] = v
	}
	return rounds, outcomes
}

// ── markets ──

type memMarkets struct{ *memStore }

func (s memMarkets) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s memMarkets) ListByChain(_ context.Context, chainID int64) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		if m.ChainID == chainID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memMarkets) List(ctx context.Context, _ domain.ListOpts) ([]domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Market
	for _, m := range s.markets {
		out = append(out, m)
	}
	return out, nil
}

func (s memMarkets) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.markets)), nil
}

// ── resources ──

type memResources struct{ *memStore }

func (s memResources) GetByID(_ context.Context, id string) (domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return domain.Resource{}, domain.ErrNotFound
	}
	return r, nil
}

func (s memResources) GetByMarket(_ context.Context, marketID string) (domain.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.resources {
		if r.MarketID == marketID {
			return r, nil
		}
	}
	return domain.Resource{}, domain.ErrNotFound
}

func (s memResources) UpdateCrawl(_ context.Context, id, data string, crawledAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.CrawledData = data
	r.LastCrawledAt = &crawledAt
	s.resources[id] = r
	s.crawlWrites++
	return nil
}

// ── rounds ──

type memRounds struct{ *memStore }

func (s memRounds) GetByID(_ context.Context, id string) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrNotFound
	}
	return r, nil
}

func (s memRounds) GetByOnchainID(_ context.Context, marketID string, onchainID int64) (domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rounds {
		if r.MarketID == marketID && r.OnchainID == onchainID {
			return r, nil
		}
	}
	return domain.Round{}, domain.ErrNotFound
}

func (s memRounds) ListClosed(_ context.Context, marketID string, currentRound int64) ([]domain.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failListRound {
		return nil, fmt.Errorf("store unreachable")
	}
	var out []domain.Round
	for _, r := range s.rounds {
		if r.MarketID == marketID && r.OnchainID < currentRound {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OnchainID < out[j].OnchainID })
	return out, nil
}

func (s memRounds) MarkFinalized(_ context.Context, id string, finalizedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status != domain.RoundPending {
		return domain.ErrStateTransitionConflict
	}
	r.Status = domain.RoundFinalized
	r.FinalizedTimestamp = &finalizedAt
	s.rounds[id] = r
	return nil
}

func (s memRounds) MarkResolved(_ context.Context, id string, res domain.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status != domain.RoundFinalized {
		return domain.ErrStateTransitionConflict
	}
	r.Status = domain.RoundResolved
	r.ResolvedTimestamp = &res.ResolvedAt
	r.WinningOutcomeIDs = res.WinningOutcomeIDs
	r.DisputedOutcomeIDs = res.DisputedOutcomeIDs
	r.TotalDisputedAmount = res.TotalDisputedAmount
	s.rounds[id] = r
	s.resolveWrites++
	return nil
}

func (s memRounds) UpdateWeight(_ context.Context, id string, weight float64, updatedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Weight = weight
	r.LastWeightUpdatedAt = &updatedAt
	s.rounds[id] = r
	return nil
}

// ── outcomes ──

type memOutcomes struct{ *memStore }

func (s memOutcomes) GetByID(_ context.Context, id string) (domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[id]
	if !ok {
		return domain.Outcome{}, domain.ErrNotFound
	}
	return o, nil
}

func (s memOutcomes) ListByRound(_ context.Context, roundID string) ([]domain.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Outcome
	for _, o := range s.outcomes {
		if o.RoundID == roundID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s memOutcomes) Reveal(_ context.Context, id string, v domain.Verdict, status domain.SettlementStatus, revealedAt int64) (bool, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReveal > 0 {
		s.failReveal--
		return false, 0, errors.New("connection reset")
	}
	o, ok := s.outcomes[id]
	if !ok {
		return false, 0, domain.ErrNotFound
	}
	if o.RevealedTimestamp != nil {
		return false, 0, nil
	}
	o.IsWon = v.IsWon
	o.IsDisputed = v.IsDisputed
	o.Result = v.Explanation
	o.Status = status
	o.RevealedTimestamp = &revealedAt
	s.outcomes[id] = o
	s.revealWrites++

	var settled int64
	for pid, p := range s.positions {
		if p.OutcomeID == id && p.Status == domain.StatusPending {
			p.Status = status
			s.positions[pid] = p
			settled++
		}
	}
	return true, settled, nil
}

func (s memOutcomes) UpdateWeights(_ context.Context, weights map[string]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range weights {
		o, ok := s.outcomes[id]
		if !ok {
			return domain.ErrNotFound
		}
		w := w
		o.Weight = &w
		s.outcomes[id] = o
	}
	return nil
}

// ── positions ──

type memPositions struct{ *memStore }

func (s memPositions) Place(_ context.Context, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[pos.RoundID]
	if !ok || r.Status != domain.RoundPending {
		return domain.ErrBettingClosed
	}
	o, ok := s.outcomes[pos.OutcomeID]
	if !ok || o.RevealedTimestamp != nil {
		return domain.ErrBettingClosed
	}
	o.TotalBetAmount = o.TotalBetAmount.Add(pos.BetAmount)
	r.TotalBetAmount = r.TotalBetAmount.Add(pos.BetAmount)
	s.outcomes[o.ID] = o
	s.rounds[r.ID] = r
	s.positions[pos.ID] = pos
	return nil
}

func (s memPositions) GetByID(_ context.Context, id string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok {
		return domain.Position{}, domain.ErrNotFound
	}
	return p, nil
}

func (s memPositions) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, p := range s.positions {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ── collaborators ──

type fakeCrawler struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (c *fakeCrawler) Fetch(_ context.Context, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	return c.text, nil
}

type fakeJudge struct {
	mu       sync.Mutex
	calls    int
	requests [][]string
	verdict  func(o domain.Outcome) (domain.Verdict, bool)
	err      error
	failFor  map[string]bool
	weights  map[string]float64
}

func (j *fakeJudge) Evaluate(_ context.Context, _ string, due []domain.Outcome) ([]domain.Verdict, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	ids := make([]string, 0, len(due))
	for _, o := range due {
		ids = append(ids, o.ID)
	}
	j.requests = append(j.requests, ids)
	if j.err != nil {
		return nil, j.err
	}
	if len(due) > 0 && j.failFor[due[0].RoundID] {
		return nil, fmt.Errorf("judge unavailable for round %s", due[0].RoundID)
	}
	var out []domain.Verdict
	for _, o := range due {
		if j.verdict == nil {
			continue
		}
		if v, ok := j.verdict(o); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (j *fakeJudge) AssignWeights(_ context.Context, _ string, _ []domain.Outcome) (map[string]float64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls++
	if j.err != nil {
		return nil, j.err
	}
	return j.weights, nil
}

type recordingBus struct {
	mu       sync.Mutex
	messages map[string]int
}

func (b *recordingBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.messages == nil {
		b.messages = map[string]int{}
	}
	b.messages[channel]++
	return nil
}

func (b *recordingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, fmt.Errorf("not supported")
}

func (b *recordingBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages[channel]
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) { return false, nil }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }
