package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/martelinho/martelinho/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// subscription is the message a client sends to change its feed, e.g.
// {"action":"watch","listings":["12"],"types":["bid_placed"]}.
// "unwatch" removes the given listings and types.
type subscription struct {
	Action   string   `json:"action"`
	Listings []string `json:"listings"`
	Types    []string `json:"types"`
}

// client is one connection. Empty filters match everything.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	listings map[string]struct{}
	types    map[domain.EventType]struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		listings: make(map[string]struct{}),
		types:    make(map[domain.EventType]struct{}),
	}
}

func (c *client) apply(s subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch s.Action {
	case "watch":
		for _, id := range s.Listings {
			c.listings[id] = struct{}{}
		}
		for _, t := range s.Types {
			c.types[domain.EventType(t)] = struct{}{}
		}
	case "unwatch":
		for _, id := range s.Listings {
			delete(c.listings, id)
		}
		for _, t := range s.Types {
			delete(c.types, domain.EventType(t))
		}
	}
}

func (c *client) wants(f frame) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.listings) > 0 {
		if _, ok := c.listings[f.listingID]; !ok {
			return false
		}
	}
	if len(c.types) > 0 {
		if _, ok := c.types[f.typ]; !ok {
			return false
		}
	}
	return true
}

// readLoop applies subscription messages until the connection fails.
func (c *client) readLoop() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("ws: read failed", slog.String("error", err.Error()))
			}
			return
		}
		var s subscription
		if json.Unmarshal(data, &s) == nil {
			c.apply(s)
		}
	}
}

// writeLoop drains send and keeps the connection alive with pings. A
// closed send channel means the hub dropped the client.
func (c *client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
