package redis

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/martelinho/martelinho/internal/domain"
)

const defaultListingTTL = 5 * time.Minute

//go:embed scripts/listing_set.lua
var listingSetLua string

// ListingCache implements domain.ListingCache with JSON strings under
// listing:{id}. Entries expire after ttl. Writes go through a Lua script
// that keeps the higher Version.
type ListingCache struct {
	c     *Client
	ttl   time.Duration
	setSc *redis.Script
}

var _ domain.ListingCache = (*ListingCache)(nil)

// NewListingCache creates a ListingCache backed by the given Client. A
// non-positive ttl uses five minutes.
func NewListingCache(c *Client, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = defaultListingTTL
	}
	return &ListingCache{c: c, ttl: ttl, setSc: redis.NewScript(listingSetLua)}
}

func (lc *ListingCache) key(id string) string { return lc.c.Key("listing", id) }

// Set stores l unless the cached copy already has its Version or a later
// one.
func (lc *ListingCache) Set(ctx context.Context, l domain.Listing) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("redis: marshal listing %s: %w", l.ID, err)
	}
	err = lc.setSc.Run(ctx, lc.c.rdb, []string{lc.key(l.ID)}, l.Version, data, lc.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("redis: set listing %s: %w", l.ID, err)
	}
	return nil
}

// Get returns the cached listing or domain.ErrNotFound on a miss.
func (lc *ListingCache) Get(ctx context.Context, id string) (domain.Listing, error) {
	data, err := lc.c.rdb.Get(ctx, lc.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Listing{}, domain.ErrNotFound
		}
		return domain.Listing{}, fmt.Errorf("redis: get listing %s: %w", id, err)
	}
	var l domain.Listing
	if err := json.Unmarshal(data, &l); err != nil {
		return domain.Listing{}, fmt.Errorf("redis: unmarshal listing %s: %w", id, err)
	}
	return l, nil
}

// Invalidate drops the given listings.
func (lc *ListingCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = lc.key(id)
	}
	if err := lc.c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: invalidate listings: %w", err)
	}
	return nil
}
