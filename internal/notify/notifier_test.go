package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordingSender struct {
	name string
	err  error
	got  []Alert
}

func (r *recordingSender) Send(_ context.Context, a Alert) error {
	r.got = append(r.got, a)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{" bid_placed ", ""}, discard())

	if err := n.Notify(context.Background(), "message_sent", "t", "m"); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), "bid_placed", "Novo lance", "Guitarra: R$ 150,00"); err != nil {
		t.Fatal(err)
	}
	if len(s.got) != 1 || s.got[0].Event != "bid_placed" || s.got[0].Title != "Novo lance" {
		t.Fatalf("got %+v", s.got)
	}
}

func TestNotifierEmptyFilterAllowsAll(t *testing.T) {
	n := NewNotifier(nil, nil, discard())
	if !n.Allowed("anything") {
		t.Error("empty filter should allow every event")
	}
}

func TestNotifierKeepsDeliveringAfterFailure(t *testing.T) {
	boom := errors.New("boom")
	bad := &recordingSender{name: "bad", err: boom}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discard())

	err := n.Notify(context.Background(), "dispute_opened", "Disputa aberta", "x")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Errorf("error should name the failing sender: %v", err)
	}
	if len(good.got) != 1 {
		t.Error("second sender should still receive the alert")
	}
}

func TestTelegramEscapesHTML(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	tg := NewTelegramSender("TOKEN", "42")
	tg.baseURL = srv.URL
	err := tg.Send(context.Background(), Alert{Event: "bid_placed", Title: "Novo lance", Body: "<Fender> & amp"})
	if err != nil {
		t.Fatal(err)
	}
	if payload["parse_mode"] != "HTML" || payload["chat_id"] != "42" {
		t.Errorf("payload = %v", payload)
	}
	text, _ := payload["text"].(string)
	if !strings.Contains(text, "&lt;Fender&gt; &amp; amp") || !strings.HasPrefix(text, "<b>Novo lance</b>") {
		t.Errorf("text = %q", text)
	}
}

func TestDiscordEmbedAndErrorStatus(t *testing.T) {
	var payload struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	status := http.StatusNoContent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	if err := d.Send(context.Background(), Alert{Event: "dispute_opened", Title: "Disputa", Body: "b"}); err != nil {
		t.Fatal(err)
	}
	if len(payload.Embeds) != 1 || payload.Embeds[0].Color != 0xE74C3C || payload.Embeds[0].Footer.Text != "dispute_opened" {
		t.Errorf("embeds = %+v", payload.Embeds)
	}

	status = http.StatusTooManyRequests
	err := d.Send(context.Background(), Alert{Title: "x"})
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}
