// Package ws relays round lifecycle events from the signal bus to
// WebSocket clients.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/roundoracle/internal/domain"
)

// replayCount is how many recent events a new client receives.
const replayCount = 50

// relayedChannels are the bus channels the hub forwards.
var relayedChannels = []string{
	domain.ChannelRoundFinalized,
	domain.ChannelOutcomeRevealed,
	domain.ChannelRoundResolved,
	domain.ChannelBetPlaced,
	domain.ChannelWeightsUpdated,
}

// recentReader is implemented by buses that keep an event log.
type recentReader interface {
	Recent(ctx context.Context, count int64) ([][]byte, error)
}

type event struct {
	channel string
	data    []byte
}

// Hub fans bus events out to connected clients according to each client's
// channel subscriptions.
type Hub struct {
	bus      domain.SignalBus
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub relaying bus events. Upgrades are accepted from
// allowedOrigins only; an empty list or "*" allows every origin.
func NewHub(bus domain.SignalBus, allowedOrigins []string, logger *slog.Logger) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:  logger.With(slog.String("component", "ws_hub")),
		clients: make(map[*client]struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run relays events until ctx is cancelled, then disconnects every client.
// A channel whose subscription fails is logged and skipped.
func (h *Hub) Run(ctx context.Context) error {
	events := make(chan event, 256)
	var wg sync.WaitGroup
	for _, name := range relayedChannels {
		src, err := h.bus.Subscribe(ctx, name)
		if err != nil {
			h.logger.Error("subscribe failed",
				slog.String("channel", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			forward(ctx, name, src, events)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			wg.Wait()
			return nil
		case ev := <-events:
			h.deliver(ev)
		}
	}
}

func forward(ctx context.Context, channel string, src <-chan []byte, dst chan<- event) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-src:
			if !ok {
				return
			}
			select {
			case dst <- event{channel: channel, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) deliver(ev event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.isSubscribed(ev.channel) && !c.enqueue(ev.data) {
			h.logger.Warn("dropping event for slow client", slog.String("channel", ev.channel))
		}
	}
}

// HandleWS upgrades the request, replays recent events and starts the
// client's pumps.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(conn)
	h.replay(r.Context(), c)
	if !h.add(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go func() {
		c.readPump(h.logger)
		h.remove(c)
	}()
}

func (h *Hub) replay(ctx context.Context, c *client) {
	rr, ok := h.bus.(recentReader)
	if !ok {
		return
	}
	events, err := rr.Recent(ctx, replayCount)
	if err != nil {
		h.logger.Warn("replay failed", slog.String("error", err.Error()))
		return
	}
	for _, ev := range events {
		if !c.enqueue(ev) {
			return
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client connected", slog.Int("clients", n))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("client disconnected", slog.Int("clients", n))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
