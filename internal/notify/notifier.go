// Package notify fans operator alerts (round resolutions, reveal failures)
// out to Telegram and Discord, filtered by event type.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// sendTimeout bounds each sender so a slow channel cannot stall the caller.
const sendTimeout = 30 * time.Second

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs and errors, e.g. "telegram".
	Name() string
}

// Notifier delivers an alert to every Sender in parallel, provided its event
// type is enabled.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list enables every event
// type.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	enabled := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			enabled[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  enabled,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether alerts of the event type are delivered.
func (n *Notifier) Enabled(event string) bool {
	return len(n.senders) > 0 && (len(n.events) == 0 || n.events[event])
}

// Notify delivers title and message for an enabled event to all senders. A
// failing sender does not stop the others; their errors are joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if !n.Enabled(event) {
		return nil
	}

	errs := make([]error, len(n.senders))
	var wg sync.WaitGroup
	for i, s := range n.senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			defer cancel()
			if err := s.Send(sendCtx, title, message); err != nil {
				errs[i] = fmt.Errorf("%s: %w", s.Name(), err)
			}
		}()
	}
	wg.Wait()

	err := errors.Join(errs...)
	if err != nil {
		n.logger.ErrorContext(ctx, "notification delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("notify: %w", err)
	}
	n.logger.DebugContext(ctx, "notification sent",
		slog.String("event", event),
		slog.Int("senders", len(n.senders)),
	)
	return nil
}
