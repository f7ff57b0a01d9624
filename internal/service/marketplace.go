// Package service coordinates the listing lifecycle with storage, caching,
// pub/sub, auditing and notifications. Engine rules live in
// internal/lifecycle; this package only loads snapshots, commits the
// results and fans out events.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/martelinho/martelinho/internal/copygen"
	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
)

const (
	maxCommitAttempts  = 3
	listingLockTTL     = 10 * time.Second
	defaultCopyTimeout = 5 * time.Second
)

// Alerter delivers operator/user alerts. *notify.Notifier implements it.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Deps are the collaborators of MarketplaceService. Store is required;
// the rest may be nil.
type Deps struct {
	Store       domain.MarketStore
	Audit       domain.AuditStore
	Cache       domain.ListingCache
	Locks       domain.LockManager
	Bus         domain.SignalBus
	Copy        domain.CopyGenerator
	Alerts      Alerter
	CopyTimeout time.Duration
	Now         func() time.Time
}

// MarketplaceService runs every listing mutation as load, transition,
// commit, retrying on version conflicts.
type MarketplaceService struct {
	store       domain.MarketStore
	audit       domain.AuditStore
	cache       domain.ListingCache
	locks       domain.LockManager
	bus         domain.SignalBus
	copy        domain.CopyGenerator
	alerts      Alerter
	copyTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewMarketplaceService creates a MarketplaceService.
func NewMarketplaceService(d Deps, logger *slog.Logger) *MarketplaceService {
	s := &MarketplaceService{
		store:       d.Store,
		audit:       d.Audit,
		cache:       d.Cache,
		locks:       d.Locks,
		bus:         d.Bus,
		copy:        d.Copy,
		alerts:      d.Alerts,
		copyTimeout: d.CopyTimeout,
		now:         d.Now,
		logger:      logger.With(slog.String("component", "marketplace")),
	}
	if s.copy == nil {
		s.copy = copygen.Static{}
	}
	if s.copyTimeout <= 0 {
		s.copyTimeout = defaultCopyTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// --- reads ---

// Listing returns a listing, preferring the cache. A miss fills the cache
// with the stored copy; the cache keeps the higher Version, so a fill that
// races a commit cannot replace the committed listing.
func (s *MarketplaceService) Listing(ctx context.Context, id string) (domain.Listing, error) {
	if s.cache != nil {
		if l, err := s.cache.Get(ctx, id); err == nil {
			return l, nil
		}
	}
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("marketplace: get listing %q: %w", id, err)
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, l); err != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.String("listing_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return l, nil
}

// Search returns the active listings matching f, ending soonest first.
func (s *MarketplaceService) Search(ctx context.Context, f lifecycle.Filter) ([]domain.Listing, error) {
	active, err := s.store.ListListings(ctx, domain.ListingQuery{Status: domain.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("marketplace: list active: %w", err)
	}
	return lifecycle.SearchActive(active, f), nil
}

// LiveFeatured returns the active listings picked for the live show.
func (s *MarketplaceService) LiveFeatured(ctx context.Context) ([]domain.Listing, error) {
	active, err := s.store.ListListings(ctx, domain.ListingQuery{Status: domain.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("marketplace: list active: %w", err)
	}
	return lifecycle.LiveFeatured(active), nil
}

// OwnedBy returns every listing userID is selling.
func (s *MarketplaceService) OwnedBy(ctx context.Context, userID string) ([]domain.Listing, error) {
	out, err := s.store.ListListings(ctx, domain.ListingQuery{SellerID: userID})
	if err != nil {
		return nil, fmt.Errorf("marketplace: list owned by %q: %w", userID, err)
	}
	return out, nil
}

// WonBy returns every listing userID currently leads or has won.
func (s *MarketplaceService) WonBy(ctx context.Context, userID string) ([]domain.Listing, error) {
	if userID == "" {
		return []domain.Listing{}, nil
	}
	out, err := s.store.ListListings(ctx, domain.ListingQuery{WinnerID: userID})
	if err != nil {
		return nil, fmt.Errorf("marketplace: list won by %q: %w", userID, err)
	}
	return out, nil
}

// SwapCandidates returns userID's listings that can be offered for targetID.
func (s *MarketplaceService) SwapCandidates(ctx context.Context, userID, targetID string) ([]domain.Listing, error) {
	owned, err := s.OwnedBy(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lifecycle.SwapCandidates(owned, userID, targetID)
}

// History returns the audit trail of one listing, newest first.
func (s *MarketplaceService) History(ctx context.Context, listingID string, limit int) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return []domain.AuditEntry{}, nil
	}
	entries, err := s.audit.List(ctx, domain.ListOpts{ListingID: listingID, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("marketplace: history %q: %w", listingID, err)
	}
	return entries, nil
}

// LiveScript asks the copy generator for presenter talking points.
func (s *MarketplaceService) LiveScript(ctx context.Context, listingID string) (string, error) {
	l, err := s.Listing(ctx, listingID)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, s.copyTimeout)
	defer cancel()
	script, err := s.copy.LiveScript(ctx, l.Title, l.CurrentBid, l.Description)
	if err != nil {
		s.logger.WarnContext(ctx, "live script failed",
			slog.String("listing_id", listingID),
			slog.String("error", err.Error()),
		)
		return copygen.Static{}.LiveScript(ctx, l.Title, l.CurrentBid, l.Description)
	}
	return script, nil
}

// Suggest runs the curation model on a draft without creating anything.
func (s *MarketplaceService) Suggest(ctx context.Context, d lifecycle.Draft) (domain.Suggestion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.copyTimeout)
	defer cancel()
	sug, err := s.copy.Suggest(ctx, d.Title, d.Description, firstImage(d.ImageURLs))
	if err != nil {
		return domain.Suggestion{}, fmt.Errorf("marketplace: suggest: %w", err)
	}
	return sug, nil
}

// --- mutations ---

// Create validates d, gates it through the copy generator and stores the
// new listing.
func (s *MarketplaceService) Create(ctx context.Context, sellerID string, d lifecycle.Draft) (domain.Listing, error) {
	if err := lifecycle.ValidateDraft(d); err != nil {
		return domain.Listing{}, err
	}
	seller, err := s.user(ctx, sellerID)
	if err != nil {
		return domain.Listing{}, err
	}
	verdict := s.curate(ctx, d)

	l, err := lifecycle.NewListing(d, seller, verdict, s.now())
	if err != nil {
		return domain.Listing{}, err
	}
	if err := s.store.Commit(ctx, domain.Changeset{Listings: []domain.Listing{l}}); err != nil {
		return domain.Listing{}, fmt.Errorf("marketplace: create listing: %w", err)
	}
	l.Version++

	s.emit(ctx, domain.Event{Type: domain.EventListingCreated, ActorID: sellerID, Text: l.Title}, l)
	return l, nil
}

// curate returns the copy generator's verdict, or nil when it failed or
// timed out so the item is allowed.
func (s *MarketplaceService) curate(ctx context.Context, d lifecycle.Draft) *domain.Suggestion {
	ctx, cancel := context.WithTimeout(ctx, s.copyTimeout)
	defer cancel()
	sug, err := s.copy.Suggest(ctx, d.Title, d.Description, firstImage(d.ImageURLs))
	if err != nil {
		s.logger.WarnContext(ctx, "copy gate unavailable, allowing",
			slog.String("title", d.Title),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return &sug
}

// PlaceBid records a bid and moves fund reservations.
func (s *MarketplaceService) PlaceBid(ctx context.Context, listingID, bidderID string, amount domain.Money) (domain.Listing, domain.Bid, error) {
	var out lifecycle.BidOutcome
	err := s.mutate(ctx, listingID, func(ctx context.Context, l domain.Listing) (domain.Changeset, error) {
		bidder, err := s.user(ctx, bidderID)
		if err != nil {
			return domain.Changeset{}, err
		}
		out, err = lifecycle.PlaceBid(l, bidder, amount, s.now())
		if err != nil {
			return domain.Changeset{}, err
		}
		users, err := s.applyHolds(ctx, map[string]domain.User{bidder.ID: bidder}, out.Holds)
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{out.Listing}, Users: users}, nil
	})
	if err != nil {
		return domain.Listing{}, domain.Bid{}, err
	}

	out.Listing.Version++
	amt := out.Bid.Amount
	s.emit(ctx, domain.Event{
		Type:    domain.EventBidPlaced,
		ActorID: bidderID,
		Amount:  &amt,
		Text:    s.announce(ctx, out.Listing),
	}, out.Listing)
	return out.Listing, out.Bid, nil
}

func (s *MarketplaceService) announce(ctx context.Context, l domain.Listing) string {
	ctx, cancel := context.WithTimeout(ctx, s.copyTimeout)
	defer cancel()
	txt, err := s.copy.AnnounceBid(ctx, l.Title, l.CurrentBid)
	if err != nil {
		s.logger.WarnContext(ctx, "bid announcement failed",
			slog.String("listing_id", l.ID),
			slog.String("error", err.Error()),
		)
		txt, _ = copygen.Static{}.AnnounceBid(ctx, l.Title, l.CurrentBid)
	}
	return txt
}

// ProposeSwap offers offeredID in exchange for listingID.
func (s *MarketplaceService) ProposeSwap(ctx context.Context, listingID, proposerID, offeredID string) (domain.Listing, domain.SwapOffer, error) {
	var (
		next  domain.Listing
		offer domain.SwapOffer
	)
	err := s.mutate(ctx, listingID, func(ctx context.Context, l domain.Listing) (domain.Changeset, error) {
		proposer, err := s.user(ctx, proposerID)
		if err != nil {
			return domain.Changeset{}, err
		}
		offered, err := s.store.GetListing(ctx, offeredID)
		if err != nil {
			if errors.Is(err, domain.ErrListingNotFound) {
				return domain.Changeset{}, fmt.Errorf("%w: %s", domain.ErrNoEligibleItems, offeredID)
			}
			return domain.Changeset{}, err
		}
		next, offer, err = lifecycle.ProposeSwap(l, proposer, offered, s.now())
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{next}}, nil
	})
	if err != nil {
		return domain.Listing{}, domain.SwapOffer{}, err
	}

	next.Version++
	price := offer.OfferedItemPrice
	s.emit(ctx, domain.Event{Type: domain.EventSwapProposed, ActorID: proposerID, Amount: &price, Text: offer.OfferedItemTitle}, next)
	return next, offer, nil
}

// AcceptSwap accepts offerID on behalf of the seller.
func (s *MarketplaceService) AcceptSwap(ctx context.Context, listingID, actorID, offerID string) (domain.Listing, domain.SwapOffer, error) {
	var out lifecycle.AcceptOutcome
	err := s.mutate(ctx, listingID, func(ctx context.Context, l domain.Listing) (domain.Changeset, error) {
		var err error
		out, err = lifecycle.AcceptSwap(l, actorID, offerID)
		if err != nil {
			return domain.Changeset{}, err
		}
		users, err := s.applyHolds(ctx, nil, out.Holds)
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{out.Listing}, Users: users}, nil
	})
	if err != nil {
		return domain.Listing{}, domain.SwapOffer{}, err
	}

	out.Listing.Version++
	s.emit(ctx, domain.Event{Type: domain.EventSwapAccepted, ActorID: actorID, Text: out.Offer.OfferedItemTitle}, out.Listing)
	return out.Listing, out.Offer, nil
}

// PaySwapFee charges payerID the swap fee and opens the chat.
func (s *MarketplaceService) PaySwapFee(ctx context.Context, listingID, payerID string) (domain.Listing, domain.Money, error) {
	var out lifecycle.FeeOutcome
	err := s.mutate(ctx, listingID, func(ctx context.Context, l domain.Listing) (domain.Changeset, error) {
		payer, err := s.user(ctx, payerID)
		if err != nil {
			return domain.Changeset{}, err
		}
		out, err = lifecycle.PaySwapFee(l, payer)
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{out.Listing}, Users: []domain.User{out.Payer}}, nil
	})
	if err != nil {
		return domain.Listing{}, 0, err
	}

	out.Listing.Version++
	fee := out.Fee
	s.emit(ctx, domain.Event{Type: domain.EventSwapFeePaid, ActorID: payerID, Amount: &fee}, out.Listing)
	return out.Listing, out.Fee, nil
}

// SendMessage posts text to the swap chat.
func (s *MarketplaceService) SendMessage(ctx context.Context, listingID, senderID, text string) (domain.Listing, domain.Message, error) {
	var (
		next domain.Listing
		msg  domain.Message
	)
	err := s.mutate(ctx, listingID, func(ctx context.Context, l domain.Listing) (domain.Changeset, error) {
		var err error
		next, msg, err = lifecycle.SendMessage(l, senderID, text, s.now())
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{next}}, nil
	})
	if err != nil {
		return domain.Listing{}, domain.Message{}, err
	}

	next.Version++
	s.emit(ctx, domain.Event{Type: domain.EventMessageSent, ActorID: senderID, Text: msg.Text}, next)
	return next, msg, nil
}

// Cancel withdraws a listing without bids.
func (s *MarketplaceService) Cancel(ctx context.Context, listingID, actorID string) (domain.Listing, error) {
	return s.transition(ctx, listingID, actorID, domain.EventListingCancelled, func(l domain.Listing) (domain.Listing, error) {
		return lifecycle.Cancel(l, actorID)
	})
}

// ConfirmDelivery completes a paid sale.
func (s *MarketplaceService) ConfirmDelivery(ctx context.Context, listingID, buyerID string) (domain.Listing, error) {
	return s.transition(ctx, listingID, buyerID, domain.EventDeliveryConfirmed, func(l domain.Listing) (domain.Listing, error) {
		return lifecycle.ConfirmDelivery(l, buyerID, s.now())
	})
}

// OpenDispute freezes a completed sale's funds.
func (s *MarketplaceService) OpenDispute(ctx context.Context, listingID, buyerID string) (domain.Listing, error) {
	return s.transition(ctx, listingID, buyerID, domain.EventDisputeOpened, func(l domain.Listing) (domain.Listing, error) {
		return lifecycle.OpenDispute(l, buyerID, s.now())
	})
}

// SetLiveFeatured toggles the live-show flag. Admin only.
func (s *MarketplaceService) SetLiveFeatured(ctx context.Context, listingID, actorID string, featured bool) (domain.Listing, error) {
	actor, err := s.user(ctx, actorID)
	if err != nil {
		return domain.Listing{}, err
	}
	return s.transition(ctx, listingID, actorID, domain.EventLiveFeatured, func(l domain.Listing) (domain.Listing, error) {
		return lifecycle.SetLiveFeatured(l, actor, featured)
	})
}

// RecordPayment settles the winning bid.
func (s *MarketplaceService) RecordPayment(ctx context.Context, listingID, buyerID string) (domain.Listing, domain.Payment, error) {
	var out lifecycle.PaymentOutcome
	err := s.mutate(ctx, listingID, func(ctx context.Context, l domain.Listing) (domain.Changeset, error) {
		buyer, err := s.user(ctx, buyerID)
		if err != nil {
			return domain.Changeset{}, err
		}
		out, err = lifecycle.RecordPayment(l, buyer, s.now())
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{out.Listing}, Users: []domain.User{out.Buyer}}, nil
	})
	if err != nil {
		return domain.Listing{}, domain.Payment{}, err
	}

	out.Listing.Version++
	amt := out.Payment.Amount
	s.emit(ctx, domain.Event{Type: domain.EventPaymentRecorded, ActorID: buyerID, Amount: &amt}, out.Listing)
	return out.Listing, out.Payment, nil
}

// Expire closes listingID if its end time has passed. It reports whether
// anything changed.
func (s *MarketplaceService) Expire(ctx context.Context, listingID string) (bool, error) {
	var (
		next    domain.Listing
		changed bool
	)
	err := s.mutate(ctx, listingID, func(_ context.Context, l domain.Listing) (domain.Changeset, error) {
		next, changed = lifecycle.TickExpiry(l, s.now())
		if !changed {
			return domain.Changeset{}, nil
		}
		return domain.Changeset{Listings: []domain.Listing{next}}, nil
	})
	if err != nil || !changed {
		return false, err
	}

	next.Version++
	ev := domain.Event{Type: domain.EventListingEnded}
	if next.Status == domain.StatusCancelled {
		ev.Type = domain.EventListingCancelled
	} else {
		amt := next.CurrentBid
		ev.Amount = &amt
		ev.ActorID = next.WinnerID()
	}
	s.emit(ctx, ev, next)
	return true, nil
}

// ReleaseFunds pays the seller once the dispute window of a completed sale
// has elapsed. It reports whether a payout happened.
func (s *MarketplaceService) ReleaseFunds(ctx context.Context, listingID string) (bool, error) {
	var out lifecycle.ReleaseOutcome
	err := s.mutate(ctx, listingID, func(ctx context.Context, l domain.Listing) (domain.Changeset, error) {
		out = lifecycle.ReleaseOutcome{}
		if !lifecycle.ReleaseDue(l, s.now()) {
			return domain.Changeset{}, nil
		}
		seller, err := s.store.GetUser(ctx, l.SellerID)
		if err != nil {
			return domain.Changeset{}, fmt.Errorf("seller %s: %w", l.SellerID, err)
		}
		out, err = lifecycle.Release(l, seller, s.now())
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{out.Listing}, Users: []domain.User{out.Seller}}, nil
	})
	if err != nil || out.Listing.ID == "" {
		return false, err
	}
	out.Listing.Version++

	s.refresh(ctx, out.Listing)
	s.log(ctx, "funds.released", map[string]any{
		"listing_id": out.Listing.ID,
		"seller_id":  out.Seller.ID,
		"amount":     out.Amount.String(),
	})
	s.logger.InfoContext(ctx, "funds released",
		slog.String("listing_id", out.Listing.ID),
		slog.String("amount", out.Amount.String()),
	)
	return true, nil
}

func (s *MarketplaceService) transition(
	ctx context.Context,
	listingID, actorID string,
	event domain.EventType,
	step func(domain.Listing) (domain.Listing, error),
) (domain.Listing, error) {
	var next domain.Listing
	err := s.mutate(ctx, listingID, func(_ context.Context, l domain.Listing) (domain.Changeset, error) {
		var err error
		next, err = step(l)
		if err != nil {
			return domain.Changeset{}, err
		}
		return domain.Changeset{Listings: []domain.Listing{next}}, nil
	})
	if err != nil {
		return domain.Listing{}, err
	}
	next.Version++
	s.emit(ctx, domain.Event{Type: event, ActorID: actorID}, next)
	return next, nil
}

// mutate loads listingID fresh from the store, runs step and commits the
// changeset it returns. Version conflicts re-run step on a fresh snapshot.
// An empty changeset commits nothing.
func (s *MarketplaceService) mutate(
	ctx context.Context,
	listingID string,
	step func(context.Context, domain.Listing) (domain.Changeset, error),
) error {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, "listing:"+listingID, listingLockTTL)
		if err != nil {
			return fmt.Errorf("marketplace: lock listing %s: %w", listingID, err)
		}
		defer unlock()
	}

	for attempt := 1; ; attempt++ {
		l, err := s.store.GetListing(ctx, listingID)
		if err != nil {
			return fmt.Errorf("marketplace: load %q: %w", listingID, err)
		}
		cs, err := step(ctx, l)
		if err != nil {
			return err
		}
		if cs.Empty() {
			return nil
		}
		err = s.store.Commit(ctx, cs)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt == maxCommitAttempts {
			return fmt.Errorf("marketplace: commit %q: %w", listingID, err)
		}
		s.logger.WarnContext(ctx, "version conflict, retrying",
			slog.String("listing_id", listingID),
			slog.Int("attempt", attempt),
		)
	}
}

// user loads an acting user. Unknown or missing ids mean the caller is not
// logged in.
func (s *MarketplaceService) user(ctx context.Context, id string) (domain.User, error) {
	if id == "" {
		return domain.User{}, domain.ErrUnauthorized
	}
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("%w: unknown user %s", domain.ErrUnauthorized, id)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("marketplace: get user %q: %w", id, err)
	}
	return u, nil
}

// applyHolds applies holds to the users in known, loading the others from
// the store, and returns every touched user. Holds naming unknown users
// (seed bids) are skipped.
func (s *MarketplaceService) applyHolds(ctx context.Context, known map[string]domain.User, holds []lifecycle.Hold) ([]domain.User, error) {
	touched := make(map[string]domain.User, len(holds))
	var order []string
	for _, h := range holds {
		if h.UserID == "" {
			continue
		}
		u, ok := touched[h.UserID]
		if !ok {
			if u, ok = known[h.UserID]; !ok {
				var err error
				u, err = s.store.GetUser(ctx, h.UserID)
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, fmt.Errorf("marketplace: load hold user %q: %w", h.UserID, err)
				}
			}
			order = append(order, h.UserID)
		}
		touched[h.UserID] = h.Apply(u)
	}
	users := make([]domain.User, 0, len(order))
	for _, id := range order {
		users = append(users, touched[id])
	}
	return users, nil
}

// emit runs the advisory side effects of a committed change. Failures are
// logged only.
func (s *MarketplaceService) emit(ctx context.Context, ev domain.Event, l domain.Listing) {
	ev.ListingID = l.ID
	ev.Status = l.Status
	ev.At = s.now()

	s.refresh(ctx, l)

	detail := map[string]any{"listing_id": l.ID, "status": string(l.Status), "version": l.Version}
	if ev.ActorID != "" {
		detail["actor_id"] = ev.ActorID
	}
	if ev.Amount != nil {
		detail["amount"] = ev.Amount.String()
	}
	s.log(ctx, string(ev.Type), detail)

	if s.bus != nil {
		payload, err := json.Marshal(ev)
		if err == nil {
			err = s.bus.Publish(ctx, domain.ChannelListings, payload)
		}
		if err != nil {
			s.logger.WarnContext(ctx, "publish event failed",
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.alerts != nil {
		if title, msg, ok := alertFor(ev, l); ok {
			if err := s.alerts.Notify(ctx, string(ev.Type), title, msg); err != nil {
				s.logger.WarnContext(ctx, "alert failed",
					slog.String("event", string(ev.Type)),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.logger.InfoContext(ctx, "listing updated",
		slog.String("event", string(ev.Type)),
		slog.String("listing_id", l.ID),
		slog.String("status", string(l.Status)),
	)
}

// refresh writes a committed listing through to the cache, dropping the
// entry when the write fails.
func (s *MarketplaceService) refresh(ctx context.Context, l domain.Listing) {
	if s.cache == nil {
		return
	}
	err := s.cache.Set(ctx, l)
	if err == nil {
		return
	}
	if invErr := s.cache.Invalidate(ctx, l.ID); invErr != nil {
		err = errors.Join(err, invErr)
	}
	s.logger.WarnContext(ctx, "cache refresh failed",
		slog.String("listing_id", l.ID),
		slog.String("error", err.Error()),
	)
}

func (s *MarketplaceService) log(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func alertFor(ev domain.Event, l domain.Listing) (title, msg string, ok bool) {
	switch ev.Type {
	case domain.EventBidPlaced:
		return "Novo lance", fmt.Sprintf("%s recebeu um lance de %s", l.Title, l.CurrentBid), true
	case domain.EventSwapProposed:
		return "Proposta de troca", fmt.Sprintf("%s: oferecido %s", l.Title, ev.Text), true
	case domain.EventListingEnded:
		return "Disputa encerrada", fmt.Sprintf("%s arrematado por %s", l.Title, l.CurrentBid), true
	case domain.EventPaymentRecorded:
		return "Pagamento confirmado", fmt.Sprintf("%s pago: %s", l.Title, l.CurrentBid), true
	case domain.EventDisputeOpened:
		return "Disputa aberta", fmt.Sprintf("O comprador de %s abriu uma disputa", l.Title), true
	}
	return "", "", false
}

func firstImage(urls []string) []byte {
	if len(urls) == 0 {
		return nil
	}
	data, err := copygen.DecodeDataURL(urls[0])
	if err != nil {
		return nil
	}
	return data
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
