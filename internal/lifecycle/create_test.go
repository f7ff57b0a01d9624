package lifecycle

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

func validDraft() Draft {
	return Draft{
		Title:         "Violão Tagima",
		Description:   "Cordas novas",
		CategoryID:    "musica",
		Location:      "Curitiba, PR",
		ImageURLs:     []string{"a.jpg"},
		AcceptedTerms: true,
	}
}

func TestValidateDraftCollectsErrors(t *testing.T) {
	err := ValidateDraft(Draft{})
	if !errors.Is(err, domain.ErrInvalidListing) {
		t.Fatalf("err = %v", err)
	}
	for _, want := range []string{"title", "description", "image", "location", "terms"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestNewListingDefaults(t *testing.T) {
	seller := domain.User{ID: "s1", Name: "marcos", ReputationScore: 85}
	d := validDraft()
	d.DurationDays = 30
	d.CategoryID = "unknown"
	d.ImageURLs = []string{"1", "2", "3", "4", "5", "6"}

	l, err := NewListing(d, seller, nil, t0)
	if err != nil {
		t.Fatal(err)
	}
	if got := l.EndTime.Sub(t0); got != MaxDurationDays*24*time.Hour {
		t.Errorf("duration = %s", got)
	}
	if l.Category != "Outros" {
		t.Errorf("category = %q", l.Category)
	}
	if len(l.ImageURLs) != MaxImages {
		t.Errorf("images = %d", len(l.ImageURLs))
	}
	if l.StartingBid != domain.Reais(1) || l.CurrentBid != l.StartingBid {
		t.Errorf("bids start=%s current=%s", l.StartingBid, l.CurrentBid)
	}
	if l.DeliveryInfo != DefaultDeliveryInfo || l.EnergyScore != DefaultEnergyScore {
		t.Errorf("delivery %q energy %d", l.DeliveryInfo, l.EnergyScore)
	}
	if l.Status != domain.StatusActive || l.SellerID != "s1" || l.BidCount != 0 || l.Winner != nil {
		t.Errorf("listing = %+v", l)
	}

	d.DurationDays = 0
	l, _ = NewListing(d, seller, nil, t0)
	if got := l.EndTime.Sub(t0); got != DefaultDurationDays*24*time.Hour {
		t.Errorf("default duration = %s", got)
	}
	d.DurationDays = -4
	l, _ = NewListing(d, seller, nil, t0)
	if got := l.EndTime.Sub(t0); got != MinDurationDays*24*time.Hour {
		t.Errorf("clamped duration = %s", got)
	}
}

func TestNewListingVerdict(t *testing.T) {
	seller := domain.User{ID: "s1"}
	_, err := NewListing(validDraft(), seller, &domain.Suggestion{IsAllowed: false, EnergyMessage: "Item proibido"}, t0)
	if !errors.Is(err, domain.ErrProhibitedItem) {
		t.Fatalf("err = %v", err)
	}

	l, err := NewListing(validDraft(), seller, &domain.Suggestion{IsAllowed: true, EnergyScore: 9, EnergyMessage: "Vai voar!"}, t0)
	if err != nil {
		t.Fatal(err)
	}
	if l.EnergyScore != 9 || l.EnergyMessage != "Vai voar!" || l.Category != "Instrumentos Musicais" {
		t.Errorf("listing = %+v", l)
	}
}

func TestSetLiveFeatured(t *testing.T) {
	l := activeListing()
	if _, err := SetLiveFeatured(l, domain.User{ID: "u"}, true); !errors.Is(err, domain.ErrNotParticipant) {
		t.Errorf("err = %v", err)
	}
	got, err := SetLiveFeatured(l, domain.User{ID: "a", IsAdmin: true}, true)
	if err != nil || !got.IsLiveFeatured {
		t.Errorf("got %v, %v", got.IsLiveFeatured, err)
	}
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(Signup{Email: "joao@mail.com"}, t0)
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "joao_mail" || u.Address != DefaultAddress || u.Balance != domain.Reais(1000) || u.ReputationScore != 85 {
		t.Errorf("user = %+v", u)
	}
	if !strings.HasPrefix(u.ID, "user_") || u.IsAdmin {
		t.Errorf("id %q admin %v", u.ID, u.IsAdmin)
	}

	admin, _ := NewUser(Signup{Name: "Super Admin", Address: "Curitiba, PR"}, t0)
	if !admin.IsAdmin || admin.Name != "super_admin" || admin.Address != "Curitiba, PR" {
		t.Errorf("admin = %+v", admin)
	}

	if _, err := NewUser(Signup{}, t0); !errors.Is(err, domain.ErrInvalidProfile) {
		t.Errorf("empty signup err = %v", err)
	}
}

func TestRename(t *testing.T) {
	u := domain.User{ID: "u", Name: "old", LastNickChange: t0}
	if _, err := Rename(u, "new", t0.Add(29*24*time.Hour)); !errors.Is(err, domain.ErrNickChangeTooSoon) {
		t.Fatalf("err = %v", err)
	}
	got, err := Rename(u, "Novo Nick", t0.Add(NickChangeCooldown))
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "novo_nick" || !got.LastNickChange.Equal(t0.Add(NickChangeCooldown)) {
		t.Errorf("user = %+v", got)
	}
}
