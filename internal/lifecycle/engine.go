package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/martelinho/martelinho/internal/domain"
)

// Hold is a change to a user's reserved funds. Positive deltas lock funds,
// negative deltas release them.
type Hold struct {
	UserID string
	Delta  domain.Money
}

// Apply returns u with the hold applied.
func (h Hold) Apply(u domain.User) domain.User {
	u.Reserved += h.Delta
	if u.Reserved < 0 {
		u.Reserved = 0
	}
	return u
}

// BidOutcome is the result of a successful bid.
type BidOutcome struct {
	Listing domain.Listing
	Bid     domain.Bid
	Holds   []Hold
}

// PlaceBid validates amount against l and bidder and returns the next
// snapshot with the bid prepended. The bidder's funds are reserved and the
// previous leader's reservation is released; a leader raising their own bid
// only reserves the difference.
func PlaceBid(l domain.Listing, bidder domain.User, amount domain.Money, now time.Time) (BidOutcome, error) {
	if l.Status != domain.StatusActive {
		return BidOutcome{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if !now.Before(l.EndTime) {
		return BidOutcome{}, fmt.Errorf("%w: bidding closed at %s", domain.ErrInvalidTransition, l.EndTime.Format(time.RFC3339))
	}
	if bidder.ID == l.SellerID {
		return BidOutcome{}, fmt.Errorf("%w: sellers cannot bid on their own listing", domain.ErrNotParticipant)
	}
	if amount <= l.CurrentBid {
		return BidOutcome{}, fmt.Errorf("%w: bid must be higher than %s", domain.ErrBidTooLow, l.CurrentBid)
	}

	leader := l.WinnerID()
	need := amount
	if leader == bidder.ID {
		need = amount - l.CurrentBid
	}
	if bidder.Available() < need {
		return BidOutcome{}, fmt.Errorf("%w: bid needs %s available, have %s",
			domain.ErrInsufficientFunds, need, bidder.Available())
	}

	var holds []Hold
	if leader != "" && leader != bidder.ID {
		holds = append(holds, Hold{UserID: leader, Delta: -l.CurrentBid})
	}
	holds = append(holds, Hold{UserID: bidder.ID, Delta: need})

	bid := domain.Bid{
		ID:         ulid.Make().String(),
		BidderID:   bidder.ID,
		BidderName: bidder.Name,
		Amount:     amount,
		Timestamp:  now,
	}

	next := l.Clone()
	next.CurrentBid = amount
	next.BidCount++
	next.Winner = &domain.Winner{ID: bidder.ID, Name: bidder.Name}
	next.Bids = append([]domain.Bid{bid}, l.Bids...)

	return BidOutcome{Listing: next, Bid: bid, Holds: holds}, nil
}

// ProposeSwap offers one of proposer's active listings in exchange for l.
// The proposer must live in l's city.
func ProposeSwap(l domain.Listing, proposer domain.User, offered domain.Listing, now time.Time) (domain.Listing, domain.SwapOffer, error) {
	if l.Status != domain.StatusActive {
		return domain.Listing{}, domain.SwapOffer{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if !l.AcceptsSwap {
		return domain.Listing{}, domain.SwapOffer{}, domain.ErrSwapsDisabled
	}
	if proposer.ID == l.SellerID {
		return domain.Listing{}, domain.SwapOffer{}, fmt.Errorf("%w: sellers cannot swap with themselves", domain.ErrNotParticipant)
	}
	if offered.ID == l.ID || offered.SellerID != proposer.ID || offered.Status != domain.StatusActive {
		return domain.Listing{}, domain.SwapOffer{}, fmt.Errorf("%w: %q is not one of your active listings", domain.ErrNoEligibleItems, offered.Title)
	}
	if !SameCity(proposer.Address, l.Location) {
		return domain.Listing{}, domain.SwapOffer{}, fmt.Errorf("%w: swaps are only allowed in the listing's city (%s)",
			domain.ErrLocationMismatch, City(l.Location))
	}
	for _, o := range l.SwapOffers {
		if o.ProposerID == proposer.ID && o.OfferedItemID == offered.ID && o.Status == domain.OfferPending {
			return domain.Listing{}, domain.SwapOffer{}, fmt.Errorf("%w: %q is already on offer", domain.ErrAlreadyExists, offered.Title)
		}
	}

	offer := domain.SwapOffer{
		ID:               uuid.NewString(),
		ProposerID:       proposer.ID,
		ProposerName:     proposer.Name,
		OfferedItemID:    offered.ID,
		OfferedItemTitle: offered.Title,
		OfferedItemPrice: offered.CurrentBid,
		Status:           domain.OfferPending,
		Timestamp:        now,
	}

	next := l.Clone()
	next.SwapOffers = append([]domain.SwapOffer{offer}, l.SwapOffers...)
	return next, offer, nil
}

// AcceptOutcome is the result of accepting a swap offer.
type AcceptOutcome struct {
	Listing domain.Listing
	Offer   domain.SwapOffer
	Holds   []Hold
}

// AcceptSwap marks offerID accepted and moves l to swap_accepted. Every
// other pending offer is rejected, and the leading bidder's reservation is
// released since bidding is over.
func AcceptSwap(l domain.Listing, actorID, offerID string) (AcceptOutcome, error) {
	if l.Status != domain.StatusActive {
		return AcceptOutcome{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if actorID != l.SellerID {
		return AcceptOutcome{}, fmt.Errorf("%w: only the seller can accept offers", domain.ErrNotParticipant)
	}
	offer, ok := l.Offer(offerID)
	if !ok {
		return AcceptOutcome{}, fmt.Errorf("%w: %s", domain.ErrOfferNotFound, offerID)
	}
	if offer.Status != domain.OfferPending {
		return AcceptOutcome{}, fmt.Errorf("%w: offer is %s", domain.ErrInvalidTransition, offer.Status)
	}

	next := l.Clone()
	for i := range next.SwapOffers {
		switch {
		case next.SwapOffers[i].ID == offerID:
			next.SwapOffers[i].Status = domain.OfferAccepted
			offer = next.SwapOffers[i]
		case next.SwapOffers[i].Status == domain.OfferPending:
			next.SwapOffers[i].Status = domain.OfferRejected
		}
	}
	next.Status = domain.StatusSwapAccepted

	var holds []Hold
	if leader := l.WinnerID(); leader != "" {
		holds = append(holds, Hold{UserID: leader, Delta: -l.CurrentBid})
	}
	return AcceptOutcome{Listing: next, Offer: offer, Holds: holds}, nil
}

// FeeOutcome is the result of paying the swap fee.
type FeeOutcome struct {
	Listing domain.Listing
	Payer   domain.User
	Fee     domain.Money
}

// PaySwapFee charges payer the swap fee on l's accepted offer and opens the
// swap chat.
func PaySwapFee(l domain.Listing, payer domain.User) (FeeOutcome, error) {
	if l.Status != domain.StatusSwapAccepted {
		return FeeOutcome{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	offer, ok := l.AcceptedOffer()
	if !ok {
		return FeeOutcome{}, domain.ErrSwapNotAccepted
	}
	if payer.ID != l.SellerID && payer.ID != offer.ProposerID {
		return FeeOutcome{}, fmt.Errorf("%w: only the seller or %s can pay this fee", domain.ErrNotParticipant, offer.ProposerName)
	}
	fee := SwapFee(l.CurrentBid, offer.OfferedItemPrice)
	if payer.Available() < fee {
		return FeeOutcome{}, fmt.Errorf("%w: swap fee is %s, available %s", domain.ErrInsufficientFunds, fee, payer.Available())
	}

	next := l.Clone()
	for i := range next.SwapOffers {
		if next.SwapOffers[i].ID == offer.ID {
			next.SwapOffers[i].Status = domain.OfferPaid
		}
	}
	next.Status = domain.StatusSwapInProgress

	payer.Balance -= fee
	return FeeOutcome{Listing: next, Payer: payer, Fee: fee}, nil
}

// ChatEnabled reports whether userID may post in l's chat.
func ChatEnabled(l domain.Listing, userID string) bool {
	if l.Status != domain.StatusSwapInProgress {
		return false
	}
	if userID == l.SellerID {
		return true
	}
	offer, ok := l.PaidOffer()
	return ok && offer.ProposerID == userID
}

// SendMessage appends a chat message once the swap fee is paid.
func SendMessage(l domain.Listing, senderID, text string, now time.Time) (domain.Listing, domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Listing{}, domain.Message{}, domain.ErrEmptyMessage
	}
	if !ChatEnabled(l, senderID) {
		return domain.Listing{}, domain.Message{}, fmt.Errorf("%w: chat opens to the seller and the paying proposer once the swap fee is paid", domain.ErrChatDisabled)
	}

	msg := domain.Message{
		ID:        ulid.Make().String(),
		SenderID:  senderID,
		Text:      text,
		Timestamp: now,
	}
	next := l.Clone()
	next.ChatMessages = append(next.ChatMessages, msg)
	return next, msg, nil
}

// TickExpiry closes an active listing whose end time has passed: ended when
// it received bids, cancelled otherwise. Pending swap offers are rejected.
// It reports whether l changed and is a no-op for anything already closed.
func TickExpiry(l domain.Listing, now time.Time) (domain.Listing, bool) {
	if l.Status != domain.StatusActive || now.Before(l.EndTime) {
		return l, false
	}
	next := l.Clone()
	rejectPending(&next)
	if l.BidCount > 0 {
		next.Status = domain.StatusEnded
	} else {
		next.Status = domain.StatusCancelled
	}
	return next, true
}

// rejectPending closes every swap offer still awaiting the seller.
func rejectPending(l *domain.Listing) {
	for i := range l.SwapOffers {
		if l.SwapOffers[i].Status == domain.OfferPending {
			l.SwapOffers[i].Status = domain.OfferRejected
		}
	}
}

// Cancel lets the seller withdraw a listing nobody has bid on yet. Pending
// swap offers are rejected.
func Cancel(l domain.Listing, actorID string) (domain.Listing, error) {
	if l.Status != domain.StatusActive {
		return domain.Listing{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if actorID != l.SellerID {
		return domain.Listing{}, fmt.Errorf("%w: only the seller can cancel", domain.ErrNotParticipant)
	}
	if l.BidCount > 0 {
		return domain.Listing{}, fmt.Errorf("%w: listing already has %d bids", domain.ErrInvalidTransition, l.BidCount)
	}
	next := l.Clone()
	rejectPending(&next)
	next.Status = domain.StatusCancelled
	return next, nil
}

// TimeRemaining returns how long bidding stays open, never negative.
func TimeRemaining(l domain.Listing, now time.Time) time.Duration {
	if d := l.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// FormatRemaining renders d as "4h 3m 2s", or "FIM" once elapsed.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "FIM"
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
