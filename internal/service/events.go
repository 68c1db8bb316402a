package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// Notifier delivers operator alerts. *notify.Notifier satisfies it.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Notification event types.
const (
	EventRoundResolved = "round_resolved"
	EventRevealFailed  = "reveal_failed"
)

// publishEvent sends ev on channel. Bus failures are logged and dropped.
func publishEvent(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel string, ev domain.RoundEvent) {
	if bus == nil {
		return
	}
	ev.Type = channel
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func invalidateOutcomes(ctx context.Context, cache domain.OutcomeCache, logger *slog.Logger, roundID string) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx, roundID); err != nil {
		logger.WarnContext(ctx, "outcome cache invalidate failed",
			slog.String("round_id", roundID),
			slog.String("error", err.Error()),
		)
	}
}
