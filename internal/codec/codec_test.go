package codec

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
)

func TestRoundtripPreservesListings(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 123456789, time.UTC)
	released := now.Add(-time.Hour)
	seed := lifecycle.Seed(now)
	seed[0].Winner = &domain.Winner{ID: "u1", Name: "Ana"}
	seed[0].CurrentBid = domain.Reais(185)
	seed[0].Payment = &domain.Payment{PayerID: "u1", Amount: domain.Reais(185), Fee: domain.Reais(18.5), SellerNet: domain.Reais(166.5), PaidAt: now}
	seed[0].Delivery = &domain.Delivery{ConfirmedAt: now, ReleaseAt: now.Add(72 * time.Hour), ReleasedAt: &released}
	seed = append(seed, domain.Listing{
		ID:          "swap-1",
		Title:       "Bicicleta aro 29",
		StartingBid: domain.Reais(900),
		SellerID:    "seller_3",
		EndTime:     now.Add(time.Hour),
		Status:      domain.StatusSwapAccepted,
		AcceptsSwap: true,
		SwapOffers: []domain.SwapOffer{
			{ID: "o1", ProposerID: "u2", OfferedItemID: "2", OfferedItemTitle: "Guitarra", OfferedItemPrice: domain.Reais(310), Status: domain.OfferPaid, Timestamp: now},
			{ID: "o2", ProposerID: "u3", OfferedItemID: "9", Status: domain.OfferRejected, Timestamp: now.Add(time.Minute)},
		},
		ChatMessages: []domain.Message{{ID: "m1", SenderID: "u2", Text: "Fechado?", Timestamp: now}},
		CreatedAt:    now.Add(-time.Hour),
		Version:      7,
	})

	for _, name := range []string{NameJSON, NameCBOR} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			if err != nil {
				t.Fatal(err)
			}
			data, err := c.Marshal(seed)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var got []domain.Listing
			if err := c.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if len(got) != len(seed) {
				t.Fatalf("got %d listings, want %d", len(got), len(seed))
			}
			for i := range seed {
				if !reflect.DeepEqual(got[i], seed[i]) {
					t.Errorf("listing %s changed in transit:\n got %+v\nwant %+v", seed[i].ID, got[i], seed[i])
				}
			}
		})
	}
}

func TestCBORDeterministic(t *testing.T) {
	users := map[string]domain.User{
		"b": {ID: "b", Balance: 100},
		"a": {ID: "a", Balance: 200},
	}
	first, err := CBOR{}.Marshal(users)
	if err != nil {
		t.Fatal(err)
	}
	for range 10 {
		again, err := CBOR{}.Marshal(users)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first, again) {
			t.Fatal("encoding is not deterministic")
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	var l domain.Listing
	if err := (JSON{}).Unmarshal([]byte(`{"id":"1","status":"sold"}`), &l); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("xml"); err == nil {
		t.Error("expected error")
	}
}
