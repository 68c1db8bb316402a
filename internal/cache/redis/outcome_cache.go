package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.OutcomeCache = (*OutcomeCache)(nil)

const (
	outcomeTTL    = 5 * time.Minute
	generationTTL = 24 * time.Hour
)

// fillLua stores the pool only while the generation still matches the one
// the caller read before loading it. An absent generation counts as 0.
const fillLua = `
local gen = redis.call('GET', KEYS[2]) or '0'
if gen ~= ARGV[1] then
    return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`

var fillScript = redis.NewScript(fillLua)

// OutcomeCache implements domain.OutcomeCache.
//
// Key schema:
//
//	round:{id}:outcomes     - JSON pool, expires after outcomeTTL
//	round:{id}:outcomes:gen - invalidation counter fencing fills
type OutcomeCache struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewOutcomeCache creates an OutcomeCache backed by the given Client.
func NewOutcomeCache(c *Client) *OutcomeCache {
	return &OutcomeCache{c: c, rdb: c.rdb, ttl: outcomeTTL}
}

func (oc *OutcomeCache) outcomesKey(roundID string) string {
	return oc.c.key("round:" + roundID + ":outcomes")
}

func (oc *OutcomeCache) generationKey(roundID string) string {
	return oc.outcomesKey(roundID) + ":gen"
}

// Get returns a round's cached pool. On a miss it returns domain.ErrNotFound
// and the generation to hand to Set.
func (oc *OutcomeCache) Get(ctx context.Context, roundID string) ([]domain.Outcome, int64, error) {
	pipe := oc.rdb.TxPipeline()
	dataCmd := pipe.Get(ctx, oc.outcomesKey(roundID))
	genCmd := pipe.Get(ctx, oc.generationKey(roundID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("redis: get outcomes of round %s: %w", roundID, err)
	}

	gen, err := parseGeneration(genCmd.Val())
	if err != nil {
		return nil, 0, fmt.Errorf("redis: get outcomes of round %s: %w", roundID, err)
	}
	data, err := dataCmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, gen, domain.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("redis: get outcomes of round %s: %w", roundID, err)
	}

	var outcomes []domain.Outcome
	if err := json.Unmarshal(data, &outcomes); err != nil {
		return nil, 0, fmt.Errorf("redis: unmarshal outcomes of round %s: %w", roundID, err)
	}
	return outcomes, gen, nil
}

// Set stores the pool if no Invalidate happened since gen was read.
func (oc *OutcomeCache) Set(ctx context.Context, roundID string, gen int64, outcomes []domain.Outcome) (bool, error) {
	data, err := json.Marshal(outcomes)
	if err != nil {
		return false, fmt.Errorf("redis: marshal outcomes of round %s: %w", roundID, err)
	}
	n, err := fillScript.Run(ctx, oc.rdb,
		[]string{oc.outcomesKey(roundID), oc.generationKey(roundID)},
		strconv.FormatInt(gen, 10), data, oc.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis: set outcomes of round %s: %w", roundID, err)
	}
	return n == 1, nil
}

// Invalidate drops a round's cached pool and bumps its generation so that
// fills started before this call are discarded.
func (oc *OutcomeCache) Invalidate(ctx context.Context, roundID string) error {
	genKey := oc.generationKey(roundID)
	pipe := oc.rdb.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, oc.outcomesKey(roundID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: invalidate outcomes of round %s: %w", roundID, err)
	}
	return nil
}

func parseGeneration(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad generation %q: %w", raw, err)
	}
	return gen, nil
}
