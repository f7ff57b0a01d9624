package domain

import (
	"encoding/json"
	"testing"
)

func TestMoneyPercent(t *testing.T) {
	cases := map[string]struct {
		m    Money
		pct  int64
		want Money
	}{
		"whole":        {m: Reais(150), pct: 5, want: Reais(7.5)},
		"rounds half":  {m: 10, pct: 5, want: 1},
		"rounds down":  {m: 9, pct: 5, want: 0},
		"sale fee":     {m: Reais(185), pct: 10, want: Reais(18.5)},
		"negative":     {m: -10, pct: 5, want: -1},
		"zero percent": {m: Reais(99), pct: 0, want: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := tc.m.Percent(tc.pct); got != tc.want {
				t.Errorf("Percent(%d) of %d = %d, want %d", tc.pct, tc.m, got, tc.want)
			}
		})
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[Money]string{
		0:              "R$ 0,00",
		Reais(7.5):     "R$ 7,50",
		Reais(1250.5):  "R$ 1.250,50",
		Reais(1000000): "R$ 1.000.000,00",
		-Reais(3.05):   "-R$ 3,05",
	}
	for m, want := range cases {
		if got := m.String(); got != want {
			t.Errorf("String(%d) = %q, want %q", m, got, want)
		}
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount": 15.5}`), &v); err != nil {
		t.Fatal(err)
	}
	if v.Amount != 1550 {
		t.Fatalf("Amount = %d, want 1550", v.Amount)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"amount":15.50}` {
		t.Errorf("Marshal = %s", out)
	}
	if err := json.Unmarshal([]byte(`{"amount": "x"}`), &v); err == nil {
		t.Error("expected error for string amount")
	}
}

func TestStatusUnmarshalRejectsUnknown(t *testing.T) {
	var s Status
	if err := json.Unmarshal([]byte(`"swap_in_progress"`), &s); err != nil || s != StatusSwapInProgress {
		t.Fatalf("got %q, %v", s, err)
	}
	if err := json.Unmarshal([]byte(`"sold"`), &s); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestListingCloneIsDeep(t *testing.T) {
	l := Listing{
		Bids:   []Bid{{ID: "a"}},
		Winner: &Winner{ID: "u1"},
	}
	c := l.Clone()
	c.Bids[0].ID = "b"
	c.Winner.ID = "u2"
	if l.Bids[0].ID != "a" || l.Winner.ID != "u1" {
		t.Errorf("clone shares state with original: %+v", l)
	}
}
