package domain

import (
	"context"
	"time"
)

// Persistence keys. The listing collection and the user profiles are each
// stored as a single serialized blob.
const (
	KeyListings = "martelinho_ads"
	KeyUsers    = "martelinho_users"
)

// SnapshotPort is a key/blob store. Load returns ErrNotFound when the key
// has never been saved.
type SnapshotPort interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}

// ListingQuery narrows ListListings. Zero fields do not filter.
type ListingQuery struct {
	Status   Status
	SellerID string
	WinnerID string
	Limit    int
	Offset   int
}

// Changeset is a set of next snapshots applied atomically by
// MarketStore.Commit. Each element carries the Version it was read at;
// brand new records carry Version 0.
type Changeset struct {
	Listings []Listing
	Users    []User
}

// Empty reports whether the changeset would write nothing.
func (c Changeset) Empty() bool {
	return len(c.Listings) == 0 && len(c.Users) == 0
}

// MarketStore persists listings and users. Commit fails with ErrConflict
// when any element's Version no longer matches the stored one, in which
// case nothing is written.
type MarketStore interface {
	GetListing(ctx context.Context, id string) (Listing, error)
	ListListings(ctx context.Context, q ListingQuery) ([]Listing, error)
	GetUser(ctx context.Context, id string) (User, error)
	Commit(ctx context.Context, cs Changeset) error
}

// ListOpts provides pagination and filtering for audit queries.
type ListOpts struct {
	ListingID string
	Limit     int
	Offset    int
	Since     *time.Time
	Until     *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
