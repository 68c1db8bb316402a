package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// TickTrigger queues an out-of-schedule reveal tick.
type TickTrigger interface {
	Trigger() bool
}

// SchedulerHandler serves the manual tick trigger.
type SchedulerHandler struct {
	trigger TickTrigger
	logger  *slog.Logger
}

// NewSchedulerHandler creates a SchedulerHandler. trigger may be nil when
// this process does not run the scheduler.
func NewSchedulerHandler(trigger TickTrigger, logger *slog.Logger) *SchedulerHandler {
	return &SchedulerHandler{trigger: trigger, logger: logger}
}

// TriggerTick enqueues one tick. queued is false when a tick request is
// already waiting.
// POST /api/scheduler/trigger
func (h *SchedulerHandler) TriggerTick(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not running in this process")
		return
	}
	queued := h.trigger.Trigger()
	h.logger.InfoContext(r.Context(), "handler: tick trigger requested", slog.Bool("queued", queued))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"queued":       queued,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}
