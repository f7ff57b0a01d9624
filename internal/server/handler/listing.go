package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
	"github.com/martelinho/martelinho/internal/server/middleware"
)

// MarketplaceService defines the methods that the listing handler requires
// from the service layer.
type MarketplaceService interface {
	Listing(ctx context.Context, id string) (domain.Listing, error)
	Search(ctx context.Context, f lifecycle.Filter) ([]domain.Listing, error)
	LiveFeatured(ctx context.Context) ([]domain.Listing, error)
	SwapCandidates(ctx context.Context, userID, targetID string) ([]domain.Listing, error)
	History(ctx context.Context, listingID string, limit int) ([]domain.AuditEntry, error)
	LiveScript(ctx context.Context, listingID string) (string, error)
	Suggest(ctx context.Context, d lifecycle.Draft) (domain.Suggestion, error)

	Create(ctx context.Context, sellerID string, d lifecycle.Draft) (domain.Listing, error)
	PlaceBid(ctx context.Context, listingID, bidderID string, amount domain.Money) (domain.Listing, domain.Bid, error)
	ProposeSwap(ctx context.Context, listingID, proposerID, offeredID string) (domain.Listing, domain.SwapOffer, error)
	AcceptSwap(ctx context.Context, listingID, actorID, offerID string) (domain.Listing, domain.SwapOffer, error)
	PaySwapFee(ctx context.Context, listingID, payerID string) (domain.Listing, domain.Money, error)
	SendMessage(ctx context.Context, listingID, senderID, text string) (domain.Listing, domain.Message, error)
	Cancel(ctx context.Context, listingID, actorID string) (domain.Listing, error)
	RecordPayment(ctx context.Context, listingID, buyerID string) (domain.Listing, domain.Payment, error)
	ConfirmDelivery(ctx context.Context, listingID, buyerID string) (domain.Listing, error)
	OpenDispute(ctx context.Context, listingID, buyerID string) (domain.Listing, error)
	SetLiveFeatured(ctx context.Context, listingID, actorID string, featured bool) (domain.Listing, error)
}

// ListingHandler serves listing endpoints.
type ListingHandler struct {
	market MarketplaceService
	now    func() time.Time
	logger *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(market MarketplaceService, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{
		market: market,
		now:    time.Now,
		logger: logHandler(logger, "listings"),
	}
}

// listingView is a listing plus the values the storefront derives from it.
type listingView struct {
	domain.Listing
	SecondsRemaining int64         `json:"secondsRemaining"`
	TimeRemaining    string        `json:"timeRemaining"`
	SwapFee          *domain.Money `json:"swapFee,omitempty"`
	ChatEnabled      bool          `json:"chatEnabled"`
}

func (h *ListingHandler) view(l domain.Listing, userID string) listingView {
	left := lifecycle.TimeRemaining(l, h.now())
	v := listingView{
		Listing:          l,
		SecondsRemaining: int64(left / time.Second),
		TimeRemaining:    lifecycle.FormatRemaining(left),
		ChatEnabled:      userID != "" && lifecycle.ChatEnabled(l, userID),
	}
	if fee, ok := lifecycle.SwapFeeFor(l); ok {
		v.SwapFee = &fee
	}
	return v
}

func (h *ListingHandler) views(ls []domain.Listing, userID string) []listingView {
	out := make([]listingView, 0, len(ls))
	for _, l := range ls {
		out = append(out, h.view(l, userID))
	}
	return out
}

// ListListings returns active listings matching the query.
// GET /api/listings?q=&category=&city=
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ls, err := h.market.Search(r.Context(), lifecycle.Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		City:     q.Get("city"),
	})
	if err != nil {
		writeDomainError(w, r, h.logger, "list listings", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": h.views(ls, middleware.ActorID(r.Context()))})
}

// ListLive returns the listings featured in the live show.
// GET /api/live
func (h *ListingHandler) ListLive(w http.ResponseWriter, r *http.Request) {
	ls, err := h.market.LiveFeatured(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "list live", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": h.views(ls, middleware.ActorID(r.Context()))})
}

// GetListing returns one listing.
// GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.market.Listing(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get listing", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(l, middleware.ActorID(r.Context())))
}

// CreateListing publishes a draft.
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var d lifecycle.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	l, err := h.market.Create(r.Context(), userID, d)
	if err != nil {
		writeDomainError(w, r, h.logger, "create listing", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(l, userID))
}

// SuggestCopy runs the curation model over a draft without publishing it.
// POST /api/listings/suggest
func (h *ListingHandler) SuggestCopy(w http.ResponseWriter, r *http.Request) {
	var d lifecycle.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s, err := h.market.Suggest(r.Context(), d)
	if err != nil {
		h.logger.WarnContext(r.Context(), "suggest failed", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "copygen_unavailable", "suggestions are unavailable right now")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type bidRequest struct {
	Amount domain.Money `json:"amount"`
}

// PlaceBid bids on a listing.
// POST /api/listings/{id}/bids
func (h *ListingHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	l, bid, err := h.market.PlaceBid(r.Context(), pathParam(r, "id"), userID, req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, "place bid", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"listing": h.view(l, userID), "bid": bid})
}

// SwapCandidates lists the caller's items that could be offered.
// GET /api/listings/{id}/swap-candidates
func (h *ListingHandler) SwapCandidates(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	ls, err := h.market.SwapCandidates(r.Context(), userID, pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "swap candidates", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": ls})
}

type swapRequest struct {
	OfferedItemID string `json:"offeredItemId"`
}

// ProposeSwap offers one of the caller's listings in exchange.
// POST /api/listings/{id}/swaps
func (h *ListingHandler) ProposeSwap(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var req swapRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	l, offer, err := h.market.ProposeSwap(r.Context(), pathParam(r, "id"), userID, req.OfferedItemID)
	if err != nil {
		writeDomainError(w, r, h.logger, "propose swap", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"listing": h.view(l, userID), "offer": offer})
}

// AcceptSwap accepts a pending offer.
// POST /api/listings/{id}/swaps/{offerID}/accept
func (h *ListingHandler) AcceptSwap(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	l, offer, err := h.market.AcceptSwap(r.Context(), pathParam(r, "id"), userID, pathParam(r, "offerID"))
	if err != nil {
		writeDomainError(w, r, h.logger, "accept swap", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": h.view(l, userID), "offer": offer})
}

// PaySwapFee pays the intermediation fee on an accepted swap.
// POST /api/listings/{id}/swap-fee
func (h *ListingHandler) PaySwapFee(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	l, fee, err := h.market.PaySwapFee(r.Context(), pathParam(r, "id"), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, "pay swap fee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": h.view(l, userID), "fee": fee})
}

type messageRequest struct {
	Text string `json:"text"`
}

// SendMessage posts to the swap chat.
// POST /api/listings/{id}/messages
func (h *ListingHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	_, msg, err := h.market.SendMessage(r.Context(), pathParam(r, "id"), userID, req.Text)
	if err != nil {
		writeDomainError(w, r, h.logger, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// RecordPayment settles the winning bid.
// POST /api/listings/{id}/payment
func (h *ListingHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	l, payment, err := h.market.RecordPayment(r.Context(), pathParam(r, "id"), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, "record payment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listing": h.view(l, userID), "payment": payment})
}

// Cancel withdraws a listing.
// POST /api/listings/{id}/cancel
func (h *ListingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "cancel", h.market.Cancel)
}

// ConfirmDelivery completes a paid sale.
// POST /api/listings/{id}/delivery
func (h *ListingHandler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "confirm delivery", h.market.ConfirmDelivery)
}

// OpenDispute freezes a completed sale.
// POST /api/listings/{id}/dispute
func (h *ListingHandler) OpenDispute(w http.ResponseWriter, r *http.Request) {
	h.simple(w, r, "open dispute", h.market.OpenDispute)
}

func (h *ListingHandler) simple(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	fn func(ctx context.Context, listingID, actorID string) (domain.Listing, error),
) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	l, err := fn(r.Context(), pathParam(r, "id"), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(l, userID))
}

type liveRequest struct {
	Featured bool `json:"featured"`
}

// SetLive toggles the live-show flag.
// POST /api/listings/{id}/live
func (h *ListingHandler) SetLive(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	var req liveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	l, err := h.market.SetLiveFeatured(r.Context(), pathParam(r, "id"), userID, req.Featured)
	if err != nil {
		writeDomainError(w, r, h.logger, "set live", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(l, userID))
}

// LiveScript returns presenter talking points.
// GET /api/listings/{id}/live-script
func (h *ListingHandler) LiveScript(w http.ResponseWriter, r *http.Request) {
	script, err := h.market.LiveScript(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "live script", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"script": script})
}

// History returns the listing's audit trail.
// GET /api/listings/{id}/history?limit=
func (h *ListingHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.market.History(r.Context(), pathParam(r, "id"), parseLimit(r))
	if err != nil {
		writeDomainError(w, r, h.logger, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
