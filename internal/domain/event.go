package domain

import "time"

// ChannelListings is the pub/sub channel carrying listing events.
const ChannelListings = "listings"

// EventType names a listing event.
type EventType string

const (
	EventListingCreated    EventType = "listing_created"
	EventBidPlaced         EventType = "bid_placed"
	EventSwapProposed      EventType = "swap_proposed"
	EventSwapAccepted      EventType = "swap_accepted"
	EventSwapFeePaid       EventType = "swap_fee_paid"
	EventMessageSent       EventType = "message_sent"
	EventListingEnded      EventType = "listing_ended"
	EventListingCancelled  EventType = "listing_cancelled"
	EventPaymentRecorded   EventType = "payment_recorded"
	EventDeliveryConfirmed EventType = "delivery_confirmed"
	EventDisputeOpened     EventType = "dispute_opened"
	EventLiveFeatured      EventType = "live_featured"
)

// Event is published on ChannelListings after a successful commit.
type Event struct {
	Type      EventType `json:"type"`
	ListingID string    `json:"listing_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Status    Status    `json:"status"`
	Amount    *Money    `json:"amount,omitempty"`
	Text      string    `json:"text,omitempty"`
	At        time.Time `json:"at"`
}
