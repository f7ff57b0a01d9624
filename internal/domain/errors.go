package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("version conflict")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("login required")
	ErrLockHeld      = errors.New("lock already held")
)

// Lifecycle errors. Callers wrap these with the concrete blocking value
// (fmt.Errorf("%w: ...")) and match with errors.Is.
var (
	ErrBidTooLow         = errors.New("bid too low")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrLocationMismatch  = errors.New("location mismatch")
	ErrNoEligibleItems   = errors.New("no eligible items to swap")
	ErrOfferNotFound     = errors.New("swap offer not found")
	ErrListingNotFound   = errors.New("listing not found")
	ErrChatDisabled      = errors.New("chat disabled")
	ErrProhibitedItem    = errors.New("prohibited item")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotParticipant    = errors.New("not a participant")
	ErrSwapNotAccepted   = errors.New("no accepted swap offer")
	ErrSwapsDisabled     = errors.New("listing does not accept swaps")
	ErrInvalidListing    = errors.New("invalid listing")
	ErrNickChangeTooSoon = errors.New("nickname change too soon")
	ErrInvalidProfile    = errors.New("invalid profile")
	ErrEmptyMessage      = errors.New("empty message")
)
