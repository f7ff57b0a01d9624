package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/martelinho/martelinho/internal/domain"
)

const (
	DefaultDurationDays = 3
	MinDurationDays     = 1
	MaxDurationDays     = 10
	MaxImages           = 5
	DefaultEnergyScore  = 7
	DefaultDeliveryInfo = "A combinar entrega presencial"
)

// Draft is a seller's listing submission.
type Draft struct {
	Title         string       `json:"title"`
	Description   string       `json:"description"`
	CategoryID    string       `json:"categoryId"`
	StartingBid   domain.Money `json:"startingBid"`
	DurationDays  int          `json:"durationDays"`
	Location      string       `json:"location"`
	DeliveryInfo  string       `json:"deliveryInfo"`
	AcceptsSwap   bool         `json:"acceptsSwap"`
	HasDefects    bool         `json:"hasDefects"`
	SwapInterests string       `json:"swapInterests"`
	ImageURLs     []string     `json:"imageUrls"`
	AcceptedTerms bool         `json:"acceptedTerms"`
}

// ValidateDraft reports every missing field at once.
func ValidateDraft(d Draft) error {
	var errs []error
	if strings.TrimSpace(d.Title) == "" {
		errs = append(errs, errors.New("title is required"))
	}
	if strings.TrimSpace(d.Description) == "" {
		errs = append(errs, errors.New("description is required"))
	}
	if len(d.ImageURLs) == 0 {
		errs = append(errs, errors.New("at least one image is required"))
	}
	if strings.TrimSpace(d.Location) == "" {
		errs = append(errs, errors.New("location is required"))
	}
	if !d.AcceptedTerms {
		errs = append(errs, errors.New("platform terms must be accepted"))
	}
	if d.StartingBid < 0 {
		errs = append(errs, errors.New("starting bid cannot be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidListing, errors.Join(errs...))
	}
	return nil
}

// NewListing builds an active listing from d. A verdict from the copy
// generator is optional; when present it must allow the item and its
// energy score and message are adopted.
func NewListing(d Draft, seller domain.User, verdict *domain.Suggestion, now time.Time) (domain.Listing, error) {
	if err := ValidateDraft(d); err != nil {
		return domain.Listing{}, err
	}
	if verdict != nil && !verdict.IsAllowed {
		return domain.Listing{}, fmt.Errorf("%w: %s", domain.ErrProhibitedItem, verdict.EnergyMessage)
	}

	days := d.DurationDays
	if days == 0 {
		days = DefaultDurationDays
	}
	days = min(max(days, MinDurationDays), MaxDurationDays)

	start := d.StartingBid
	if start <= 0 {
		start = domain.Reais(1)
	}

	cat, ok := domain.CategoryByID(d.CategoryID)
	if !ok {
		cat, _ = domain.CategoryByID(domain.DefaultCategoryID)
	}

	images := d.ImageURLs
	if len(images) > MaxImages {
		images = images[:MaxImages]
	}

	delivery := strings.TrimSpace(d.DeliveryInfo)
	if delivery == "" {
		delivery = DefaultDeliveryInfo
	}

	l := domain.Listing{
		ID:               uuid.NewString(),
		Title:            strings.TrimSpace(d.Title),
		Description:      strings.TrimSpace(d.Description),
		Category:         cat.Name,
		StartingBid:      start,
		CurrentBid:       start,
		ImageURLs:        append([]string(nil), images...),
		SellerID:         seller.ID,
		SellerName:       seller.Name,
		SellerReputation: seller.ReputationScore,
		EndTime:          now.Add(time.Duration(days) * 24 * time.Hour),
		Status:           domain.StatusActive,
		EnergyScore:      DefaultEnergyScore,
		Location:         strings.TrimSpace(d.Location),
		DeliveryInfo:     delivery,
		AcceptsSwap:      d.AcceptsSwap,
		HasDefects:       d.HasDefects,
		SwapInterests:    strings.TrimSpace(d.SwapInterests),
		Bids:             []domain.Bid{},
		SwapOffers:       []domain.SwapOffer{},
		ChatMessages:     []domain.Message{},
		CreatedAt:        now,
	}
	if verdict != nil {
		if verdict.EnergyScore >= 1 && verdict.EnergyScore <= 10 {
			l.EnergyScore = verdict.EnergyScore
		}
		l.EnergyMessage = verdict.EnergyMessage
	}
	return l, nil
}

// SetLiveFeatured toggles whether l appears in the live presentation.
// Only admins may change it.
func SetLiveFeatured(l domain.Listing, actor domain.User, featured bool) (domain.Listing, error) {
	if !actor.IsAdmin {
		return domain.Listing{}, fmt.Errorf("%w: admin only", domain.ErrNotParticipant)
	}
	next := l.Clone()
	next.IsLiveFeatured = featured
	return next, nil
}
