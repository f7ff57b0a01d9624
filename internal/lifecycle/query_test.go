package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

func TestSameCity(t *testing.T) {
	cases := map[string]struct {
		a, b string
		want bool
	}{
		"exact":            {a: "Curitiba, PR", b: "Curitiba, PR", want: true},
		"case and spacing": {a: "  curitiba ,pr", b: "CURITIBA, PR", want: true},
		"diacritics":       {a: "São Paulo, SP", b: "sao  paulo", want: true},
		"state ignored":    {a: "Campinas, SP", b: "Campinas, MG", want: true},
		"different":        {a: "Curitiba, PR", b: "Londrina, PR", want: false},
		"empty":            {a: "", b: "", want: false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := SameCity(tc.a, tc.b); got != tc.want {
				t.Errorf("SameCity(%q, %q) = %v", tc.a, tc.b, got)
			}
		})
	}
	if got := City("Rio de Janeiro, RJ"); got != "Rio de Janeiro" {
		t.Errorf("City = %q", got)
	}
}

func TestSearchActive(t *testing.T) {
	listings := Seed(t0)
	closed := activeListing()
	closed.ID = "closed"
	closed.Status = domain.StatusEnded
	listings = append(listings, closed)

	if got := SearchActive(listings, Filter{}); len(got) != 2 || got[0].ID != "1" {
		t.Fatalf("all active = %d listings, first %v", len(got), got)
	}
	cases := map[string]struct {
		f    Filter
		want []string
	}{
		"title":         {f: Filter{Query: "GUITARRA"}, want: []string{"2"}},
		"category name": {f: Filter{Category: "Ferramentas & Construção"}, want: []string{"1"}},
		"category id":   {f: Filter{Category: "musica"}, want: []string{"2"}},
		"city":          {f: Filter{City: "sao paulo"}, want: []string{"1"}},
		"no match":      {f: Filter{Query: "bicicleta"}, want: nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := SearchActive(listings, tc.f)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d listings, want %d", len(got), len(tc.want))
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Errorf("got[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestOwnershipQueries(t *testing.T) {
	mine := activeListing()
	mine.SellerID = "u1"
	won := activeListing()
	won.ID = "l2"
	won.Winner = &domain.Winner{ID: "u1"}
	listings := append(Seed(t0), mine, won)

	if got := OwnedBy(listings, "u1"); len(got) != 1 || got[0].ID != "l1" {
		t.Errorf("OwnedBy = %v", got)
	}
	if got := WonBy(listings, "u1"); len(got) != 1 || got[0].ID != "l2" {
		t.Errorf("WonBy = %v", got)
	}
	if got := WonBy(listings, ""); len(got) != 0 {
		t.Errorf("WonBy(\"\") matched seed winners: %v", got)
	}
	if _, err := SwapCandidates(listings, "nobody", "1"); !errors.Is(err, domain.ErrNoEligibleItems) {
		t.Errorf("SwapCandidates err = %v", err)
	}
	if got, err := SwapCandidates(listings, "u1", "1"); err != nil || len(got) != 1 {
		t.Errorf("SwapCandidates = %v, %v", got, err)
	}
	if got := LiveFeatured(listings); len(got) != 2 {
		t.Errorf("LiveFeatured = %d", len(got))
	}
}

func TestSeedInvariants(t *testing.T) {
	for _, l := range Seed(t0) {
		if l.BidCount != len(l.Bids) {
			t.Errorf("%s: bidCount %d, %d bids", l.ID, l.BidCount, len(l.Bids))
		}
		if l.CurrentBid < l.StartingBid || l.Bids[0].Amount != l.CurrentBid {
			t.Errorf("%s: current %s start %s top %s", l.ID, l.CurrentBid, l.StartingBid, l.Bids[0].Amount)
		}
		for i := 1; i < len(l.Bids); i++ {
			if !l.Bids[i].Timestamp.Before(l.Bids[i-1].Timestamp) {
				t.Errorf("%s: bids not most recent first", l.ID)
			}
		}
		if l.WinnerID() != "" || !l.EndTime.After(t0) || l.EndTime.Sub(t0) > 24*time.Hour {
			t.Errorf("%s: winner %q end %s", l.ID, l.WinnerID(), l.EndTime)
		}
	}
}
