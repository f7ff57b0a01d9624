package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

// ExpiryTracker closes listings whose end time has passed and releases
// escrowed funds once the dispute window elapses.
type ExpiryTracker struct {
	store    domain.MarketStore
	market   *MarketplaceService
	interval time.Duration
	logger   *slog.Logger
}

// NewExpiryTracker creates an ExpiryTracker ticking every interval.
func NewExpiryTracker(store domain.MarketStore, market *MarketplaceService, interval time.Duration, logger *slog.Logger) *ExpiryTracker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &ExpiryTracker{
		store:    store,
		market:   market,
		interval: interval,
		logger:   logger.With(slog.String("component", "expiry_tracker")),
	}
}

// Run ticks until ctx is cancelled. Call in a goroutine.
func (t *ExpiryTracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Tick(ctx); err != nil {
				t.logger.ErrorContext(ctx, "expiry tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// dueLister is implemented by stores that can select expired listings
// server side.
type dueLister interface {
	ListDue(ctx context.Context, now time.Time) ([]domain.Listing, error)
}

// Tick runs one sweep over active and completed listings.
func (t *ExpiryTracker) Tick(ctx context.Context) error {
	now := t.market.now()
	var (
		active []domain.Listing
		err    error
	)
	if dl, ok := t.store.(dueLister); ok {
		active, err = dl.ListDue(ctx, now)
	} else {
		active, err = t.store.ListListings(ctx, domain.ListingQuery{Status: domain.StatusActive})
	}
	if err != nil {
		return err
	}
	var ended int
	for _, l := range active {
		if now.Before(l.EndTime) {
			continue
		}
		changed, err := t.market.Expire(ctx, l.ID)
		if err != nil {
			t.skip(ctx, "expire", l.ID, err)
			continue
		}
		if changed {
			ended++
		}
	}

	completed, err := t.store.ListListings(ctx, domain.ListingQuery{Status: domain.StatusCompleted})
	if err != nil {
		return err
	}
	var released int
	for _, l := range completed {
		if l.Delivery == nil || l.Delivery.ReleasedAt != nil || now.Before(l.Delivery.ReleaseAt) {
			continue
		}
		ok, err := t.market.ReleaseFunds(ctx, l.ID)
		if err != nil {
			t.skip(ctx, "release", l.ID, err)
			continue
		}
		if ok {
			released++
		}
	}

	if ended > 0 || released > 0 {
		t.logger.InfoContext(ctx, "expiry sweep",
			slog.Int("ended", ended),
			slog.Int("released", released),
		)
	}
	return nil
}

func (t *ExpiryTracker) skip(ctx context.Context, op, id string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, domain.ErrLockHeld) {
		level = slog.LevelDebug
	}
	t.logger.Log(ctx, level, "expiry "+op+" skipped",
		slog.String("listing_id", id),
		slog.String("error", err.Error()),
	)
}
