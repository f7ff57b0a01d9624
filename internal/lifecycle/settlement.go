package lifecycle

import (
	"fmt"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

// AwaitPayment moves an ended auction with a winner to pending_payment.
func AwaitPayment(l domain.Listing) (domain.Listing, error) {
	if l.Status != domain.StatusEnded {
		return domain.Listing{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if l.Winner == nil {
		return domain.Listing{}, fmt.Errorf("%w: listing has no winner", domain.ErrInvalidTransition)
	}
	next := l.Clone()
	next.Status = domain.StatusPendingPayment
	return next, nil
}

// PaymentOutcome is the result of settling a sale.
type PaymentOutcome struct {
	Listing domain.Listing
	Buyer   domain.User
	Payment domain.Payment
}

// RecordPayment charges the winning bid to buyer. The buyer's reservation
// is converted into the payment, so Balance and Reserved both drop by the
// sale amount. The seller is credited only when funds are released.
// Ended auctions are moved through pending_payment implicitly.
func RecordPayment(l domain.Listing, buyer domain.User, now time.Time) (PaymentOutcome, error) {
	if l.Status == domain.StatusEnded {
		var err error
		if l, err = AwaitPayment(l); err != nil {
			return PaymentOutcome{}, err
		}
	}
	if l.Status != domain.StatusPendingPayment {
		return PaymentOutcome{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if l.WinnerID() != buyer.ID || buyer.ID == "" {
		return PaymentOutcome{}, fmt.Errorf("%w: only the winning bidder can pay", domain.ErrNotParticipant)
	}

	amount := l.CurrentBid
	if buyer.Balance < amount {
		return PaymentOutcome{}, fmt.Errorf("%w: payment is %s, balance %s", domain.ErrInsufficientFunds, amount, buyer.Balance)
	}

	fee := SaleFee(amount)
	payment := domain.Payment{
		PayerID:   buyer.ID,
		Amount:    amount,
		Fee:       fee,
		SellerNet: amount - fee,
		PaidAt:    now,
	}

	buyer.Balance -= amount
	buyer.Reserved -= min(amount, buyer.Reserved)

	next := l.Clone()
	next.Status = domain.StatusPaidPendingDelivery
	next.Payment = &payment
	return PaymentOutcome{Listing: next, Buyer: buyer, Payment: payment}, nil
}

// ConfirmDelivery completes a paid sale and starts the dispute window.
func ConfirmDelivery(l domain.Listing, buyerID string, now time.Time) (domain.Listing, error) {
	if l.Status != domain.StatusPaidPendingDelivery {
		return domain.Listing{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if l.WinnerID() != buyerID || buyerID == "" {
		return domain.Listing{}, fmt.Errorf("%w: only the buyer can confirm delivery", domain.ErrNotParticipant)
	}
	next := l.Clone()
	next.Status = domain.StatusCompleted
	next.Delivery = &domain.Delivery{
		ConfirmedAt: now,
		ReleaseAt:   now.Add(AutoReleaseWindow),
	}
	return next, nil
}

// OpenDispute freezes a completed sale while its funds are still held.
func OpenDispute(l domain.Listing, buyerID string, now time.Time) (domain.Listing, error) {
	if l.Status != domain.StatusCompleted || l.Delivery == nil {
		return domain.Listing{}, fmt.Errorf("%w: listing is %s", domain.ErrInvalidTransition, l.Status)
	}
	if l.WinnerID() != buyerID || buyerID == "" {
		return domain.Listing{}, fmt.Errorf("%w: only the buyer can open a dispute", domain.ErrNotParticipant)
	}
	if l.Delivery.ReleasedAt != nil || !now.Before(l.Delivery.ReleaseAt) {
		return domain.Listing{}, fmt.Errorf("%w: dispute window closed at %s",
			domain.ErrInvalidTransition, l.Delivery.ReleaseAt.Format(time.RFC3339))
	}
	next := l.Clone()
	next.Status = domain.StatusDispute
	return next, nil
}

// ReleaseDue reports whether l's held funds can be paid out to the seller.
func ReleaseDue(l domain.Listing, now time.Time) bool {
	return l.Status == domain.StatusCompleted &&
		l.Payment != nil &&
		l.Delivery != nil &&
		l.Delivery.ReleasedAt == nil &&
		!now.Before(l.Delivery.ReleaseAt)
}

// ReleaseOutcome is the result of paying a seller out.
type ReleaseOutcome struct {
	Listing domain.Listing
	Seller  domain.User
	Amount  domain.Money
}

// Release credits the seller with the sale net of fees and stamps the
// release time. It fails unless ReleaseDue.
func Release(l domain.Listing, seller domain.User, now time.Time) (ReleaseOutcome, error) {
	if !ReleaseDue(l, now) {
		return ReleaseOutcome{}, fmt.Errorf("%w: funds for %s are not due", domain.ErrInvalidTransition, l.ID)
	}
	if seller.ID != l.SellerID {
		return ReleaseOutcome{}, fmt.Errorf("%w: %s is not the seller", domain.ErrNotParticipant, seller.ID)
	}
	net := l.Payment.SellerNet
	seller.Balance += net
	seller.SuccessfulDeals++

	next := l.Clone()
	released := now
	next.Delivery.ReleasedAt = &released
	return ReleaseOutcome{Listing: next, Seller: seller, Amount: net}, nil
}
