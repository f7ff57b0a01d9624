package domain

import (
	"context"
	"time"
)

// ListingCache provides fast listing lookups for read-heavy pages. Set
// never replaces a cached listing with one of a lower or equal Version, so
// a reader that loaded a listing before a commit cannot overwrite the
// committed copy.
type ListingCache interface {
	Set(ctx context.Context, listing Listing) error
	Get(ctx context.Context, id string) (Listing, error)
	Invalidate(ctx context.Context, ids ...string) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for listing events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
