package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/martelinho/martelinho/internal/cache/local"
	"github.com/martelinho/martelinho/internal/domain"
)

func startHub(t *testing.T) (*Hub, *local.SignalBus, string) {
	t.Helper()
	bus := local.NewSignalBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return hub, bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil || hello["type"] != "hello" {
		t.Fatalf("hello = %v, %v", hello, err)
	}
	return conn
}

func publish(t *testing.T, bus *local.SignalBus, ev domain.Event) {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Publish(context.Background(), domain.ChannelListings, data); err != nil {
		t.Fatal(err)
	}
}

func TestHubFiltersByType(t *testing.T) {
	hub, bus, url := startHub(t)
	conn := dial(t, url+"?type=listing_ended")
	if hub.Connected() != 1 {
		t.Errorf("Connected = %d", hub.Connected())
	}
	all := dial(t, url)

	bid := domain.Reais(150)
	publish(t, bus, domain.Event{Type: domain.EventBidPlaced, ListingID: "1", Status: domain.StatusActive, Amount: &bid})
	publish(t, bus, domain.Event{Type: domain.EventListingEnded, ListingID: "1", Status: domain.StatusEnded})

	// The unfiltered client sees the bid, so the filtered one dropped it
	// by type rather than never receiving it.
	var first domain.Event
	if err := all.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	if first.Type != domain.EventBidPlaced {
		t.Fatalf("unfiltered client got %s first", first.Type)
	}

	var ev domain.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != domain.EventListingEnded {
		t.Errorf("got %s, want only listing_ended", ev.Type)
	}
}

func TestHubForwardsEventsWithoutStatus(t *testing.T) {
	_, bus, url := startHub(t)
	conn := dial(t, url)

	raw := []byte(`{"type":"message_sent","listing_id":"7","text":"oi"}`)
	if err := bus.Publish(context.Background(), domain.ChannelListings, raw); err != nil {
		t.Fatal(err)
	}
	_, got, err := conn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(raw) {
		t.Errorf("got %s", got)
	}
}

func TestHubSkipsMalformedMessages(t *testing.T) {
	_, bus, url := startHub(t)
	conn := dial(t, url)

	if err := bus.Publish(context.Background(), domain.ChannelListings, []byte("not json")); err != nil {
		t.Fatal(err)
	}
	publish(t, bus, domain.Event{Type: domain.EventMessageSent, ListingID: "7", Status: domain.StatusSwapAccepted, Text: "ainda disponível?"})

	var ev domain.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.ListingID != "7" || ev.Text != "ainda disponível?" {
		t.Errorf("event = %+v", ev)
	}
}

func TestClientSubscriptionMessages(t *testing.T) {
	c := newClient(nil, nil)
	bid := frame{listingID: "3", typ: domain.EventBidPlaced}
	if !c.wants(bid) {
		t.Fatal("empty filters should match everything")
	}
	c.apply(subscription{Action: "watch", Listings: []string{"4"}})
	if c.wants(bid) {
		t.Error("listing 3 is not watched")
	}
	c.apply(subscription{Action: "unwatch", Listings: []string{"4"}})
	c.apply(subscription{Action: "watch", Types: []string{"bid_placed"}})
	if !c.wants(bid) || c.wants(frame{listingID: "3", typ: domain.EventSwapProposed}) {
		t.Error("type filter not applied")
	}
}
