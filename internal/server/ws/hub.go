// Package ws pushes listing events from the signal bus to WebSocket
// clients. Clients narrow their feed by listing id and event type.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/martelinho/martelinho/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is public; listing events carry nothing the REST API hides.
	CheckOrigin: func(*http.Request) bool { return true },
}

// frame is an event already encoded for the wire.
type frame struct {
	listingID string
	typ       domain.EventType
	data      []byte
}

// Hub fans bus events out to connected clients. The client set is owned by
// the Run loop.
type Hub struct {
	bus        domain.SignalBus
	logger     *slog.Logger
	startedAt  time.Time
	frames     chan frame
	register   chan *client
	unregister chan *client
	done       chan struct{}
	connected  atomic.Int64
}

// NewHub creates a Hub reading from bus.
func NewHub(bus domain.SignalBus, logger *slog.Logger) *Hub {
	return &Hub{
		bus:        bus,
		logger:     logger.With(slog.String("component", "ws_hub")),
		startedAt:  time.Now().UTC(),
		frames:     make(chan frame, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Connected returns the number of open connections.
func (h *Hub) Connected() int {
	return int(h.connected.Load())
}

// Run subscribes to the listings channel and serves clients until ctx is
// done.
func (h *Hub) Run(ctx context.Context) error {
	events, err := h.bus.Subscribe(ctx, domain.ChannelListings)
	if err != nil {
		return fmt.Errorf("ws: subscribe %s: %w", domain.ChannelListings, err)
	}
	go h.decode(ctx, events)
	defer close(h.done)

	clients := make(map[*client]struct{})
	drop := func(c *client) {
		if _, ok := clients[c]; ok {
			delete(clients, c)
			close(c.send)
			h.connected.Add(-1)
		}
	}

	for {
		select {
		case <-ctx.Done():
			for c := range clients {
				drop(c)
			}
			return ctx.Err()

		case c := <-h.register:
			clients[c] = struct{}{}
			h.connected.Add(1)
			c.send <- h.hello()
			h.logger.Debug("ws: client connected", slog.Int("clients", len(clients)))

		case c := <-h.unregister:
			drop(c)
			h.logger.Debug("ws: client disconnected", slog.Int("clients", len(clients)))

		case f := <-h.frames:
			for c := range clients {
				if !c.wants(f) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					// A client that cannot keep up would show stale bids;
					// disconnect it so it reconnects and refetches.
					h.logger.Warn("ws: disconnecting slow client", slog.String("listing_id", f.listingID))
					drop(c)
				}
			}
		}
	}
}

// decode reads raw bus messages and queues them for delivery. Messages that
// are not events are dropped.
func (h *Hub) decode(ctx context.Context, events <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-events:
			if !ok {
				h.logger.Warn("ws: subscription closed")
				return
			}
			// Only routing fields are read, so a payload the full Event
			// type would reject still reaches clients.
			var ev struct {
				Type      domain.EventType `json:"type"`
				ListingID string           `json:"listing_id"`
			}
			if err := json.Unmarshal(data, &ev); err != nil || ev.ListingID == "" {
				h.logger.Warn("ws: dropping malformed event", slog.Int("bytes", len(data)))
				continue
			}
			select {
			case h.frames <- frame{listingID: ev.ListingID, typ: ev.Type, data: data}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *Hub) hello() []byte {
	msg, _ := json.Marshal(map[string]any{
		"type":           "hello",
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
	return msg
}

// HandleWS upgrades the request and registers the connection. ?listing=
// and ?type= may be repeated to narrow the feed from the start.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	q := r.URL.Query()
	c.apply(subscription{Action: "watch", Listings: q["listing"], Types: q["type"]})

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writeLoop()
	go c.readLoop()
}
