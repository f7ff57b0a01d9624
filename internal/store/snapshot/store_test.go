package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/martelinho/martelinho/internal/codec"
	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
)

type failingPort struct {
	domain.SnapshotPort
	fail    bool
	failKey string
}

func (p *failingPort) Save(ctx context.Context, key string, data []byte) error {
	if p.fail || key == p.failKey {
		return errors.New("disk full")
	}
	return p.SnapshotPort.Save(ctx, key, data)
}

func TestSeedsWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryPort(), nil, lifecycle.Seed, nil)

	all, err := s.ListListings(ctx, domain.ListingQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d listings, want seeded 2", len(all))
	}
	if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetUser err = %v", err)
	}
	if _, err := s.GetListing(ctx, "missing"); !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("GetListing err = %v", err)
	}
}

func TestCommitPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	for _, c := range []codec.Codec{codec.JSON{}, codec.CBOR{}} {
		t.Run(c.Name(), func(t *testing.T) {
			port, err := NewFilePort(t.TempDir(), "."+c.Name())
			if err != nil {
				t.Fatal(err)
			}
			s := New(port, c, lifecycle.Seed, nil)

			u := domain.User{ID: "u1", Name: "ana", Balance: domain.Reais(1000)}
			l, err := s.GetListing(ctx, "1")
			if err != nil {
				t.Fatal(err)
			}
			l.Title = "Furadeira nova"
			if err := s.Commit(ctx, domain.Changeset{Listings: []domain.Listing{l}, Users: []domain.User{u}}); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			reloaded := New(port, c, lifecycle.Seed, nil)
			got, err := reloaded.GetListing(ctx, "1")
			if err != nil {
				t.Fatal(err)
			}
			if got.Title != "Furadeira nova" || got.Version != 1 {
				t.Errorf("listing = %q v%d", got.Title, got.Version)
			}
			gu, err := reloaded.GetUser(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if gu.Balance != domain.Reais(1000) || gu.Version != 1 {
				t.Errorf("user = %+v", gu)
			}
			if !got.EndTime.Equal(l.EndTime) {
				t.Errorf("end time %s, want %s", got.EndTime, l.EndTime)
			}
		})
	}
}

func TestCommitConflictIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryPort(), nil, lifecycle.Seed, nil)

	a, _ := s.GetListing(ctx, "1")
	b, _ := s.GetListing(ctx, "2")

	a.Title = "first writer"
	if err := s.Commit(ctx, domain.Changeset{Listings: []domain.Listing{a}}); err != nil {
		t.Fatal(err)
	}

	stale := a
	stale.Title = "stale writer"
	b.Title = "should not land"
	err := s.Commit(ctx, domain.Changeset{Listings: []domain.Listing{b, stale}})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	got, _ := s.GetListing(ctx, "2")
	if got.Title == "should not land" {
		t.Error("partial commit applied")
	}
}

func TestCommitRollsBackOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	port := &failingPort{SnapshotPort: NewMemoryPort()}
	s := New(port, nil, lifecycle.Seed, nil)
	if err := s.Load(ctx); err != nil {
		t.Fatal(err)
	}

	port.fail = true
	l := domain.Listing{ID: "new", Status: domain.StatusActive, EndTime: time.Now().Add(time.Hour)}
	if err := s.Commit(ctx, domain.Changeset{Listings: []domain.Listing{l}}); err == nil {
		t.Fatal("expected write error")
	}
	if _, err := s.GetListing(ctx, "new"); !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("failed commit left listing behind: %v", err)
	}
	all, _ := s.ListListings(ctx, domain.ListingQuery{})
	if len(all) != 2 {
		t.Errorf("got %d listings after rollback", len(all))
	}
}

func TestCommitNeverPersistsHalfAChangeset(t *testing.T) {
	for _, failKey := range []string{domain.KeyUsers, domain.KeyListings} {
		t.Run(failKey, func(t *testing.T) {
			ctx := context.Background()
			port := &failingPort{SnapshotPort: NewMemoryPort()}
			s := New(port, nil, lifecycle.Seed, nil)

			l, err := s.GetListing(ctx, "1")
			if err != nil {
				t.Fatal(err)
			}
			l.Title = "Furadeira"
			u := domain.User{ID: "u1", Name: "ana", Balance: domain.Reais(1000)}
			if err := s.Commit(ctx, domain.Changeset{Listings: []domain.Listing{l}, Users: []domain.User{u}}); err != nil {
				t.Fatal(err)
			}

			l, _ = s.GetListing(ctx, "1")
			u, _ = s.GetUser(ctx, "u1")
			l.Title = "CHANGED"
			u.Reserved = domain.Reais(200)
			port.failKey = failKey
			if err := s.Commit(ctx, domain.Changeset{Listings: []domain.Listing{l}, Users: []domain.User{u}}); err == nil {
				t.Fatal("expected write error")
			}

			restarted := New(port.SnapshotPort, nil, lifecycle.Seed, nil)
			gotL, err := restarted.GetListing(ctx, "1")
			if err != nil {
				t.Fatal(err)
			}
			gotU, err := restarted.GetUser(ctx, "u1")
			if err != nil {
				t.Fatal(err)
			}
			if gotL.Title != "Furadeira" || gotU.Reserved != 0 {
				t.Errorf("after restart: title=%q reserved=%v", gotL.Title, gotU.Reserved)
			}
		})
	}
}

func TestListListingsFilters(t *testing.T) {
	ctx := context.Background()
	s := New(NewMemoryPort(), nil, lifecycle.Seed, nil)
	mine := domain.Listing{ID: "m", SellerID: "u1", Status: domain.StatusEnded, Winner: &domain.Winner{ID: "u2"}}
	if err := s.Commit(ctx, domain.Changeset{Listings: []domain.Listing{mine}}); err != nil {
		t.Fatal(err)
	}

	cases := map[string]struct {
		q    domain.ListingQuery
		want int
	}{
		"all":      {q: domain.ListingQuery{}, want: 3},
		"active":   {q: domain.ListingQuery{Status: domain.StatusActive}, want: 2},
		"seller":   {q: domain.ListingQuery{SellerID: "u1"}, want: 1},
		"winner":   {q: domain.ListingQuery{WinnerID: "u2"}, want: 1},
		"limit":    {q: domain.ListingQuery{Limit: 2}, want: 2},
		"offset":   {q: domain.ListingQuery{Offset: 2}, want: 1},
		"past end": {q: domain.ListingQuery{Offset: 5}, want: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := s.ListListings(ctx, tc.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tc.want {
				t.Errorf("got %d listings, want %d", len(got), tc.want)
			}
		})
	}
	newest, _ := s.ListListings(ctx, domain.ListingQuery{Limit: 1})
	if newest[0].ID != "m" {
		t.Errorf("newest = %s, want m", newest[0].ID)
	}
}

func TestFilePortMissingKey(t *testing.T) {
	port, err := NewFilePort(t.TempDir(), ".json")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := port.Load(context.Background(), domain.KeyUsers); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}
