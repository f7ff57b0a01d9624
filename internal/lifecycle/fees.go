// Package lifecycle implements the listing state machine: bids, swap
// negotiation, chat gating, expiry and settlement. Every operation is a pure
// function from a snapshot to the next snapshot; inputs are never mutated
// and nothing is returned but the zero value on failure.
package lifecycle

import (
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

// Platform-wide fee schedule.
const (
	SaleFeePercent    = 10
	SwapFeePercent    = 5
	AutoReleaseWindow = 72 * time.Hour
)

// SwapFee is SwapFeePercent of the higher of the two items' values.
func SwapFee(currentBid, offeredItemPrice domain.Money) domain.Money {
	return max(currentBid, offeredItemPrice).Percent(SwapFeePercent)
}

// SaleFee is the intermediation fee retained on a completed sale.
func SaleFee(amount domain.Money) domain.Money {
	return amount.Percent(SaleFeePercent)
}

// SwapFeeFor returns the fee due on l's accepted offer.
func SwapFeeFor(l domain.Listing) (domain.Money, bool) {
	offer, ok := l.AcceptedOffer()
	if !ok {
		return 0, false
	}
	return SwapFee(l.CurrentBid, offer.OfferedItemPrice), true
}
