package lifecycle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/martelinho/martelinho/internal/domain"
)

// Filter narrows the storefront. Empty fields match everything.
type Filter struct {
	Query    string
	Category string
	City     string
}

func (f Filter) match(l domain.Listing) bool {
	if q := normalize(f.Query); q != "" && !strings.Contains(normalize(l.Title), q) {
		return false
	}
	if f.Category != "" && l.Category != f.Category {
		if c, ok := domain.CategoryByID(f.Category); !ok || c.Name != l.Category {
			return false
		}
	}
	if f.City != "" && NormalizeCity(f.City) != NormalizeCity(l.Location) {
		return false
	}
	return true
}

// SearchActive returns the active listings matching f, ending soonest first.
func SearchActive(listings []domain.Listing, f Filter) []domain.Listing {
	out := make([]domain.Listing, 0, len(listings))
	for _, l := range listings {
		if l.Status == domain.StatusActive && f.match(l) {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out
}

// OwnedBy returns every listing sold by userID, in any status.
func OwnedBy(listings []domain.Listing, userID string) []domain.Listing {
	out := []domain.Listing{}
	for _, l := range listings {
		if l.SellerID == userID {
			out = append(out, l)
		}
	}
	return out
}

// WonBy returns the listings userID currently leads or has won.
func WonBy(listings []domain.Listing, userID string) []domain.Listing {
	out := []domain.Listing{}
	if userID == "" {
		return out
	}
	for _, l := range listings {
		if l.WinnerID() == userID {
			out = append(out, l)
		}
	}
	return out
}

// SwapCandidates returns userID's active listings that can be offered in
// exchange for target. It fails with ErrNoEligibleItems when there are none.
func SwapCandidates(listings []domain.Listing, userID, targetID string) ([]domain.Listing, error) {
	out := []domain.Listing{}
	for _, l := range listings {
		if l.SellerID == userID && l.Status == domain.StatusActive && l.ID != targetID {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: publish an active listing first", domain.ErrNoEligibleItems)
	}
	return out, nil
}

// LiveFeatured returns the active listings flagged for the live show.
func LiveFeatured(listings []domain.Listing) []domain.Listing {
	out := []domain.Listing{}
	for _, l := range listings {
		if l.IsLiveFeatured && l.Status == domain.StatusActive {
			out = append(out, l)
		}
	}
	return out
}
