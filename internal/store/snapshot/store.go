// Package snapshot implements domain.MarketStore over a key/blob
// SnapshotPort. The whole listing collection and the whole user collection
// are each persisted as one encoded blob, the way the storefront keeps them.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/martelinho/martelinho/internal/codec"
	"github.com/martelinho/martelinho/internal/domain"
)

// SeedFunc returns the listings used when none have been saved yet.
type SeedFunc func(now time.Time) []domain.Listing

// Store is an in-memory MarketStore written through to a SnapshotPort.
type Store struct {
	port   domain.SnapshotPort
	codec  codec.Codec
	seed   SeedFunc
	logger *slog.Logger

	mu       sync.RWMutex
	loaded   bool
	listings map[string]domain.Listing
	order    []string
	users    map[string]domain.User
}

var _ domain.MarketStore = (*Store)(nil)

// New creates a Store. Nothing is read until the first call.
func New(port domain.SnapshotPort, c codec.Codec, seed SeedFunc, logger *slog.Logger) *Store {
	if c == nil {
		c = codec.JSON{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		port:   port,
		codec:  c,
		seed:   seed,
		logger: logger.With(slog.String("component", "snapshot_store")),
	}
}

// Load reads both collections from the port. Absent listings are seeded;
// absent users start empty. Load is called lazily but may be called
// eagerly at startup to surface storage errors early.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	var listings []domain.Listing
	data, err := s.port.Load(ctx, domain.KeyListings)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if s.seed != nil {
			listings = s.seed(time.Now())
			s.logger.Info("seeding storefront", slog.Int("listings", len(listings)))
		}
	case err != nil:
		return fmt.Errorf("snapshot: load listings: %w", err)
	default:
		if err := s.codec.Unmarshal(data, &listings); err != nil {
			return fmt.Errorf("snapshot: decode listings: %w", err)
		}
	}

	var users []domain.User
	data, err = s.port.Load(ctx, domain.KeyUsers)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return fmt.Errorf("snapshot: load users: %w", err)
	default:
		if err := s.codec.Unmarshal(data, &users); err != nil {
			return fmt.Errorf("snapshot: decode users: %w", err)
		}
	}

	s.listings = make(map[string]domain.Listing, len(listings))
	s.order = make([]string, 0, len(listings))
	for _, l := range listings {
		if _, dup := s.listings[l.ID]; !dup {
			s.order = append(s.order, l.ID)
		}
		s.listings[l.ID] = l
	}
	s.users = make(map[string]domain.User, len(users))
	for _, u := range users {
		s.users[u.ID] = u
	}
	s.loaded = true
	return nil
}

func (s *Store) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Load(ctx)
}

// GetListing returns a copy of the listing with the given id.
func (s *Store) GetListing(ctx context.Context, id string) (domain.Listing, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.Listing{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, fmt.Errorf("snapshot: listing %s: %w", id, domain.ErrListingNotFound)
	}
	return l.Clone(), nil
}

// ListListings returns listings matching q, newest first.
func (s *Store) ListListings(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Listing, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		l := s.listings[s.order[i]]
		if q.Status != "" && l.Status != q.Status {
			continue
		}
		if q.SellerID != "" && l.SellerID != q.SellerID {
			continue
		}
		if q.WinnerID != "" && l.WinnerID() != q.WinnerID {
			continue
		}
		out = append(out, l.Clone())
	}
	return page(out, q.Offset, q.Limit), nil
}

// GetUser returns the user with the given id.
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return domain.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("snapshot: user %s: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

// Commit applies cs if every element's Version matches the stored one,
// bumping each stored Version by one, then writes the touched collections
// through to the port. On a write failure memory is rolled back.
func (s *Store) Commit(ctx context.Context, cs domain.Changeset) error {
	if cs.Empty() {
		return nil
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range cs.Listings {
		stored, ok := s.listings[l.ID]
		if err := checkVersion("listing", l.ID, l.Version, stored.Version, ok); err != nil {
			return err
		}
	}
	for _, u := range cs.Users {
		stored, ok := s.users[u.ID]
		if err := checkVersion("user", u.ID, u.Version, stored.Version, ok); err != nil {
			return err
		}
	}

	prevListings := make(map[string]*domain.Listing, len(cs.Listings))
	prevOrder := len(s.order)
	for _, l := range cs.Listings {
		if old, ok := s.listings[l.ID]; ok {
			prevListings[l.ID] = &old
		} else {
			prevListings[l.ID] = nil
			s.order = append(s.order, l.ID)
		}
		next := l.Clone()
		next.Version++
		s.listings[l.ID] = next
	}
	prevUsers := make(map[string]*domain.User, len(cs.Users))
	for _, u := range cs.Users {
		if old, ok := s.users[u.ID]; ok {
			prevUsers[u.ID] = &old
		} else {
			prevUsers[u.ID] = nil
		}
		u.Version++
		s.users[u.ID] = u
	}

	err := s.flushLocked(ctx, len(cs.Listings) > 0, len(cs.Users) > 0)
	if err == nil {
		return nil
	}

	for id, old := range prevListings {
		if old == nil {
			delete(s.listings, id)
		} else {
			s.listings[id] = *old
		}
	}
	s.order = s.order[:prevOrder]
	for id, old := range prevUsers {
		if old == nil {
			delete(s.users, id)
		} else {
			s.users[id] = *old
		}
	}

	// Users reached the port but listings did not: put the old users back.
	var partial errListingsUnsaved
	if len(cs.Users) > 0 && errors.As(err, &partial) {
		if restoreErr := s.flushLocked(ctx, false, true); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("snapshot: restore users: %w", restoreErr))
		}
	}
	return err
}

// Flush writes both collections to the port.
func (s *Store) Flush(ctx context.Context) error {
	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flushLocked(ctx, true, true)
}

// flushLocked encodes the selected collections before writing either, then
// saves users ahead of listings. A listing is never persisted pointing at a
// hold the users blob does not carry.
func (s *Store) flushLocked(ctx context.Context, listings, users bool) error {
	var listingsData, usersData []byte
	if listings {
		all := make([]domain.Listing, 0, len(s.order))
		for _, id := range s.order {
			all = append(all, s.listings[id])
		}
		data, err := s.codec.Marshal(all)
		if err != nil {
			return fmt.Errorf("snapshot: encode listings: %w", err)
		}
		listingsData = data
	}
	if users {
		data, err := s.encodeUsersLocked()
		if err != nil {
			return err
		}
		usersData = data
	}

	if users {
		if err := s.port.Save(ctx, domain.KeyUsers, usersData); err != nil {
			return fmt.Errorf("snapshot: save users: %w", err)
		}
	}
	if listings {
		if err := s.port.Save(ctx, domain.KeyListings, listingsData); err != nil {
			return fmt.Errorf("snapshot: save listings: %w", errListingsUnsaved{err})
		}
	}
	return nil
}

// errListingsUnsaved marks a flush that wrote users but not listings.
type errListingsUnsaved struct{ err error }

func (e errListingsUnsaved) Error() string { return e.err.Error() }
func (e errListingsUnsaved) Unwrap() error { return e.err }

func (s *Store) encodeUsersLocked() ([]byte, error) {
	all := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	data, err := s.codec.Marshal(all)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode users: %w", err)
	}
	return data, nil
}

func checkVersion(kind, id string, have, stored int64, exists bool) error {
	switch {
	case !exists && have != 0:
		return fmt.Errorf("snapshot: %s %s was deleted: %w", kind, id, domain.ErrConflict)
	case exists && stored != have:
		return fmt.Errorf("snapshot: %s %s at version %d, have %d: %w", kind, id, stored, have, domain.ErrConflict)
	}
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
