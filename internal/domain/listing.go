package domain

import (
	"fmt"
	"time"
)

// Status tracks the listing lifecycle. The set is closed: UnmarshalText
// rejects anything not declared here.
type Status string

const (
	StatusActive              Status = "active"
	StatusEnded               Status = "ended"
	StatusCancelled           Status = "cancelled"
	StatusPendingPayment      Status = "pending_payment"
	StatusPaidPendingDelivery Status = "paid_pending_delivery"
	StatusSwapInProgress      Status = "swap_in_progress"
	StatusSwapAccepted        Status = "swap_accepted"
	StatusCompleted           Status = "completed"
	StatusDispute             Status = "dispute"
)

var statuses = map[Status]bool{
	StatusActive:              true,
	StatusEnded:               true,
	StatusCancelled:           true,
	StatusPendingPayment:      true,
	StatusPaidPendingDelivery: true,
	StatusSwapInProgress:      true,
	StatusSwapAccepted:        true,
	StatusCompleted:           true,
	StatusDispute:             true,
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return statuses[s]
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v := Status(text)
	if !v.Valid() {
		return fmt.Errorf("unknown listing status %q", string(text))
	}
	*s = v
	return nil
}

// OfferStatus tracks a swap offer.
type OfferStatus string

const (
	OfferPending  OfferStatus = "pending"
	OfferAccepted OfferStatus = "accepted"
	OfferRejected OfferStatus = "rejected"
	OfferPaid     OfferStatus = "paid"
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OfferStatus) UnmarshalText(text []byte) error {
	switch v := OfferStatus(text); v {
	case OfferPending, OfferAccepted, OfferRejected, OfferPaid:
		*s = v
		return nil
	}
	return fmt.Errorf("unknown offer status %q", string(text))
}

// Bid is an immutable monetary offer against a listing.
type Bid struct {
	ID         string    `json:"id"`
	BidderID   string    `json:"bidderId"`
	BidderName string    `json:"bidderName"`
	Amount     Money     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
}

// SwapOffer proposes one of the proposer's own listings in exchange for the
// target listing. Title and price are snapshotted at proposal time.
type SwapOffer struct {
	ID               string      `json:"id"`
	ProposerID       string      `json:"proposerId"`
	ProposerName     string      `json:"proposerName"`
	OfferedItemID    string      `json:"offeredItemId"`
	OfferedItemTitle string      `json:"offeredItemTitle"`
	OfferedItemPrice Money       `json:"offeredItemPrice"`
	Status           OfferStatus `json:"status"`
	Timestamp        time.Time   `json:"timestamp"`
}

// Message is a chat line between swap participants.
type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"senderId"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Winner is the current leading bidder. It is nil until the first bid.
type Winner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payment records a settled sale.
type Payment struct {
	PayerID   string    `json:"payerId"`
	Amount    Money     `json:"amount"`
	Fee       Money     `json:"fee"`
	SellerNet Money     `json:"sellerNet"`
	PaidAt    time.Time `json:"paidAt"`
}

// Delivery records the buyer's confirmation and the end of the dispute
// window, after which funds are released to the seller.
type Delivery struct {
	ConfirmedAt time.Time  `json:"confirmedAt"`
	ReleaseAt   time.Time  `json:"releaseAt"`
	ReleasedAt  *time.Time `json:"releasedAt,omitempty"`
}

// Listing is the aggregate root: an item offered for bids and, optionally,
// for swaps.
type Listing struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	Category         string      `json:"category"`
	StartingBid      Money       `json:"startingBid"`
	CurrentBid       Money       `json:"currentBid"`
	BidCount         int         `json:"bidCount"`
	ImageURLs        []string    `json:"imageUrls"`
	SellerID         string      `json:"sellerId"`
	SellerName       string      `json:"sellerName"`
	SellerReputation int         `json:"sellerReputation,omitempty"`
	EndTime          time.Time   `json:"endTime"`
	Status           Status      `json:"status"`
	EnergyScore      int         `json:"energyScore"`
	EnergyMessage    string      `json:"energyMessage,omitempty"`
	Location         string      `json:"location"`
	DeliveryInfo     string      `json:"deliveryInfo"`
	AcceptsSwap      bool        `json:"acceptsSwap"`
	HasDefects       bool        `json:"hasDefects"`
	SwapInterests    string      `json:"swapInterests,omitempty"`
	IsLiveFeatured   bool        `json:"isLiveFeatured,omitempty"`
	Winner           *Winner     `json:"winner,omitempty"`
	Payment          *Payment    `json:"payment,omitempty"`
	Delivery         *Delivery   `json:"delivery,omitempty"`
	Bids             []Bid       `json:"bids"`
	SwapOffers       []SwapOffer `json:"swapOffers"`
	ChatMessages     []Message   `json:"chatMessages"`
	CreatedAt        time.Time   `json:"createdAt"`
	Version          int64       `json:"version"`
}

// Clone returns a deep copy so transitions never share backing arrays with
// the snapshot they were computed from.
func (l Listing) Clone() Listing {
	out := l
	if l.ImageURLs != nil {
		out.ImageURLs = append([]string(nil), l.ImageURLs...)
	}
	if l.Bids != nil {
		out.Bids = append([]Bid(nil), l.Bids...)
	}
	if l.SwapOffers != nil {
		out.SwapOffers = append([]SwapOffer(nil), l.SwapOffers...)
	}
	if l.ChatMessages != nil {
		out.ChatMessages = append([]Message(nil), l.ChatMessages...)
	}
	if l.Winner != nil {
		w := *l.Winner
		out.Winner = &w
	}
	if l.Payment != nil {
		p := *l.Payment
		out.Payment = &p
	}
	if l.Delivery != nil {
		d := *l.Delivery
		if d.ReleasedAt != nil {
			r := *d.ReleasedAt
			d.ReleasedAt = &r
		}
		out.Delivery = &d
	}
	return out
}

// Offer returns the swap offer with the given id.
func (l Listing) Offer(id string) (SwapOffer, bool) {
	for _, o := range l.SwapOffers {
		if o.ID == id {
			return o, true
		}
	}
	return SwapOffer{}, false
}

// AcceptedOffer returns the offer the seller accepted, if any.
func (l Listing) AcceptedOffer() (SwapOffer, bool) {
	return l.offerWithStatus(OfferAccepted)
}

// PaidOffer returns the offer whose swap fee has been paid, if any.
func (l Listing) PaidOffer() (SwapOffer, bool) {
	return l.offerWithStatus(OfferPaid)
}

func (l Listing) offerWithStatus(status OfferStatus) (SwapOffer, bool) {
	for _, o := range l.SwapOffers {
		if o.Status == status {
			return o, true
		}
	}
	return SwapOffer{}, false
}

// WinnerID returns the leading bidder's id, or "" when nobody has bid.
func (l Listing) WinnerID() string {
	if l.Winner == nil {
		return ""
	}
	return l.Winner.ID
}
