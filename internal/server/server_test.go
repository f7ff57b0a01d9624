package server

import (
	"bytes"
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
	"github.com/martelinho/martelinho/internal/lifecycle"
	"github.com/martelinho/martelinho/internal/server/handler"
	"github.com/martelinho/martelinho/internal/server/ws"
	"github.com/martelinho/martelinho/internal/service"
	"github.com/martelinho/martelinho/internal/store/snapshot"
)

type denyAll struct{}

func (denyAll) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

type testAPI struct {
	t   *testing.T
	srv *httptest.Server
	hub *ws.Hub
}

func newTestAPI(t *testing.T, cfg Config, limiter domain.RateLimiter) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := snapshot.New(snapshot.NewMemoryPort(), nil, lifecycle.Seed, logger)
	bus := local.NewSignalBus()
	market := service.NewMarketplaceService(service.Deps{Store: store, Bus: bus}, logger)
	users := service.NewUserService(store, nil, logger)
	hub := ws.NewHub(bus, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	h := NewHandler(cfg, Handlers{
		Health:   handler.NewHealthHandler(nil, logger),
		Listings: handler.NewListingHandler(market, logger),
		Users:    handler.NewUserHandler(users, market, logger),
	}, hub, limiter, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testAPI{t: t, srv: srv, hub: hub}
}

func (a *testAPI) do(method, path, userID string, body any, out any) int {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			a.t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	if err != nil {
		a.t.Fatal(err)
	}
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		a.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			a.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (a *testAPI) login(name, address string) domain.User {
	a.t.Helper()
	var u domain.User
	if code := a.do("POST", "/api/session", "", lifecycle.Signup{Name: name, Address: address}, &u); code != http.StatusCreated {
		a.t.Fatalf("login status %d", code)
	}
	return u
}

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestBidErrorsMapToStatuses(t *testing.T) {
	api := newTestAPI(t, Config{}, nil)
	u := api.login("Ana", "São Paulo, SP")

	cases := map[string]struct {
		user     string
		listing  string
		amount   float64
		wantCode int
		wantKind string
	}{
		"anonymous":    {user: "", listing: "1", amount: 200, wantCode: 401, wantKind: "login_required"},
		"unknown user": {user: "ghost", listing: "1", amount: 200, wantCode: 401, wantKind: "login_required"},
		"too low":      {user: u.ID, listing: "1", amount: 185, wantCode: 409, wantKind: "bid_too_low"},
		"no funds":     {user: u.ID, listing: "1", amount: 5000, wantCode: 402, wantKind: "insufficient_funds"},
		"missing":      {user: u.ID, listing: "nope", amount: 200, wantCode: 404, wantKind: "listing_not_found"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var body errBody
			code := api.do("POST", "/api/listings/"+tc.listing+"/bids", tc.user, map[string]float64{"amount": tc.amount}, &body)
			if code != tc.wantCode || body.Code != tc.wantKind {
				t.Errorf("got %d %q (%s), want %d %q", code, body.Code, body.Error, tc.wantCode, tc.wantKind)
			}
		})
	}

	var ok struct {
		Listing struct {
			CurrentBid    domain.Money `json:"currentBid"`
			TimeRemaining string       `json:"timeRemaining"`
		} `json:"listing"`
		Bid domain.Bid `json:"bid"`
	}
	if code := api.do("POST", "/api/listings/1/bids", u.ID, map[string]float64{"amount": 190.5}, &ok); code != http.StatusCreated {
		t.Fatalf("bid status %d", code)
	}
	if ok.Listing.CurrentBid != domain.Reais(190.5) || ok.Bid.BidderID != u.ID || !strings.HasSuffix(ok.Listing.TimeRemaining, "s") {
		t.Errorf("response = %+v", ok)
	}

	var me domain.User
	api.do("GET", "/api/users/"+u.ID, "", nil, &me)
	if me.Reserved != domain.Reais(190.5) {
		t.Errorf("reserved = %s", me.Reserved)
	}
	var won struct{ Listings []domain.Listing }
	api.do("GET", "/api/users/"+u.ID+"/won", "", nil, &won)
	if len(won.Listings) != 1 || won.Listings[0].ID != "1" {
		t.Errorf("won = %+v", won.Listings)
	}
}

func TestSearchAndCatalog(t *testing.T) {
	api := newTestAPI(t, Config{}, nil)

	var res struct{ Listings []domain.Listing }
	if code := api.do("GET", "/api/listings?city=rio+de+janeiro", "", nil, &res); code != 200 {
		t.Fatalf("status %d", code)
	}
	if len(res.Listings) != 1 || res.Listings[0].ID != "2" {
		t.Errorf("city search = %+v", res.Listings)
	}

	var cats struct{ Categories []domain.Category }
	api.do("GET", "/api/categories", "", nil, &cats)
	if len(cats.Categories) != len(domain.Categories) {
		t.Errorf("categories = %d", len(cats.Categories))
	}

	var health map[string]any
	if code := api.do("GET", "/api/health", "", nil, &health); code != 200 || health["status"] != "ok" {
		t.Errorf("health = %d %v", code, health)
	}
}

func TestCreateAndRename(t *testing.T) {
	api := newTestAPI(t, Config{}, nil)
	u := api.login("Carla", "Curitiba, PR")

	var body errBody
	if code := api.do("POST", "/api/listings", u.ID, lifecycle.Draft{Title: "Sem foto"}, &body); code != 400 || body.Code != "invalid_listing" {
		t.Errorf("invalid draft = %d %+v", code, body)
	}

	var created domain.Listing
	draft := lifecycle.Draft{
		Title: "Teclado Yamaha", Description: "61 teclas", CategoryID: "musica",
		Location: "Curitiba, PR", ImageURLs: []string{"a.jpg"}, AcceptedTerms: true,
	}
	if code := api.do("POST", "/api/listings", u.ID, draft, &created); code != http.StatusCreated {
		t.Fatalf("create status %d", code)
	}
	if created.SellerID != u.ID || created.Category != "Instrumentos Musicais" {
		t.Errorf("created = %+v", created)
	}

	if code := api.do("PUT", "/api/users/"+u.ID+"/name", "someone-else", map[string]string{"name": "x"}, &body); code != 403 {
		t.Errorf("renaming others = %d", code)
	}
	if code := api.do("PUT", "/api/users/"+u.ID+"/name", u.ID, map[string]string{"name": "Nova"}, &body); code != 409 || body.Code != "nick_change_too_soon" {
		t.Errorf("early rename = %d %+v", code, body)
	}
}

func TestRateLimitOnlyMutations(t *testing.T) {
	api := newTestAPI(t, Config{RateLimit: 1, RateLimitWindow: time.Second}, denyAll{})
	if code := api.do("GET", "/api/listings", "", nil, nil); code != 200 {
		t.Errorf("read limited: %d", code)
	}
	if code := api.do("POST", "/api/session", "", lifecycle.Signup{Name: "x"}, nil); code != http.StatusTooManyRequests {
		t.Errorf("write status = %d", code)
	}
}

func TestWebSocketReceivesBidEvents(t *testing.T) {
	api := newTestAPI(t, Config{}, nil)
	u := api.login("Dani", "São Paulo, SP")

	url := "ws" + strings.TrimPrefix(api.srv.URL, "http") + "/ws?listing=1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello map[string]any
	if err := conn.ReadJSON(&hello); err != nil || hello["type"] != "hello" {
		t.Fatalf("hello = %v, %v", hello, err)
	}

	// The hub registers the client before replying, so the bid below is
	// delivered. Listing 2 is not watched.
	api.do("POST", "/api/listings/2/bids", u.ID, map[string]float64{"amount": 400}, nil)
	api.do("POST", "/api/listings/1/bids", u.ID, map[string]float64{"amount": 200}, nil)

	var ev domain.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != domain.EventBidPlaced || ev.ListingID != "1" || ev.Amount == nil || *ev.Amount != domain.Reais(200) {
		t.Errorf("event = %+v", ev)
	}
}
