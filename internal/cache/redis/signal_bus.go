package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

var _ domain.SignalBus = (*SignalBus)(nil)

// streamMaxLen is the approximate maximum length of the event log stream,
// enforced via XADD MAXLEN ~.
const streamMaxLen int64 = 10000

// SignalBus implements domain.SignalBus using Redis Pub/Sub for live
// delivery. Every published event is also appended to a capped stream so
// late subscribers can replay recent history.
type SignalBus struct {
	c   *Client
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c, rdb: c.rdb}
}

func (sb *SignalBus) streamKey() string {
	return sb.c.key("events")
}

// Publish sends payload on channel and appends it to the event log in one
// round trip.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	pipe := sb.rdb.Pipeline()
	pipe.Publish(ctx, sb.c.key(channel), payload)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: sb.streamKey(),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"channel": channel,
			"payload": payload,
		},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Redis Pub/Sub subscription and returns a read-only
// channel that emits raw byte payloads. Channels containing glob wildcards
// are subscribed with PSUBSCRIBE. The returned channel is closed when ctx
// is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	var pubsub *redis.PubSub
	if hasPattern(channel) {
		pubsub = sb.rdb.PSubscribe(ctx, sb.c.key(channel))
	} else {
		pubsub = sb.rdb.Subscribe(ctx, sb.c.key(channel))
	}

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Recent returns up to count of the most recent events, oldest first.
func (sb *SignalBus) Recent(ctx context.Context, count int64) ([][]byte, error) {
	msgs, err := sb.rdb.XRevRangeN(ctx, sb.streamKey(), "+", "-", count).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis: read recent events: %w", err)
	}

	out := make([][]byte, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		if data, ok := streamPayload(msgs[i].Values); ok {
			out = append(out, data)
		}
	}
	return out, nil
}

func streamPayload(values map[string]interface{}) ([]byte, bool) {
	switch v := values["payload"].(type) {
	case string:
		return []byte(v), true
	case []byte:
		return v, true
	default:
		return nil, false
	}
}

// hasPattern returns true when the Redis channel includes glob-style
// wildcards, in which case PSubscribe must be used instead of Subscribe.
func hasPattern(channel string) bool {
	return strings.ContainsAny(channel, "*?[")
}
