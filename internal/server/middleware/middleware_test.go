package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://martelinho.app/"})(okHandler)

	cases := map[string]struct {
		origin, method, preflight string
		wantAllow                 string
		wantStatus                int
	}{
		"allowed origin": {origin: "https://martelinho.app", method: http.MethodGet, wantAllow: "https://martelinho.app", wantStatus: http.StatusOK},
		"foreign origin": {origin: "https://evil.example", method: http.MethodGet, wantStatus: http.StatusOK},
		"preflight":      {origin: "https://martelinho.app", method: http.MethodOptions, preflight: "POST", wantAllow: "https://martelinho.app", wantStatus: http.StatusNoContent},
		"no origin":      {method: http.MethodGet, wantStatus: http.StatusOK},
		"plain options":  {method: http.MethodOptions, wantStatus: http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/api/listings", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if tc.preflight != "" {
				req.Header.Set("Access-Control-Request-Method", tc.preflight)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tc.wantAllow {
				t.Errorf("allow origin = %q, want %q", got, tc.wantAllow)
			}
		})
	}
}

func TestLoggingSetsRequestID(t *testing.T) {
	var seen string
	h := Logging(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" || rec.Header().Get(HeaderRequestID) != seen {
		t.Errorf("generated id %q, header %q", seen, rec.Header().Get(HeaderRequestID))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc" {
		t.Errorf("client id not kept: %q", seen)
	}
}

func TestActor(t *testing.T) {
	var got string
	h := Actor()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ActorID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, "  u-1 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "u-1" {
		t.Errorf("ActorID = %q", got)
	}
}

func TestAuth(t *testing.T) {
	h := Auth("s3cret")(okHandler)
	cases := map[string]struct {
		header, value string
		want          int
	}{
		"missing": {want: http.StatusUnauthorized},
		"wrong":   {header: "X-API-Key", value: "nope", want: http.StatusUnauthorized},
		"api key": {header: "X-API-Key", value: "s3cret", want: http.StatusOK},
		"bearer":  {header: "Authorization", value: "Bearer s3cret", want: http.StatusOK},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/export", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func TestRateLimit(t *testing.T) {
	lim := &stubLimiter{}
	h := Actor()(RateLimit(lim, 1, time.Minute, discard())(okHandler))

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/listings", nil))
	if get.Code != http.StatusOK || len(lim.keys) != 0 {
		t.Fatal("reads must not be limited")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/listings/x/bids", nil)
	req.Header.Set(HeaderUserID, "u-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") == "" {
		t.Errorf("status = %d", rec.Code)
	}
	if lim.keys[0] != "ratelimit:api:user:u-1" {
		t.Errorf("key = %q", lim.keys[0])
	}

	lim.err = errors.New("redis down")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("limiter errors should fail open, got %d", rec.Code)
	}
}
