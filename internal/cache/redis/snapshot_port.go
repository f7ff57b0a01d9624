package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/martelinho/martelinho/internal/domain"
)

// SnapshotPort stores each snapshot blob as a plain string key under
// snapshot:{key}.
type SnapshotPort struct {
	c *Client
}

var _ domain.SnapshotPort = (*SnapshotPort)(nil)

// NewSnapshotPort creates a SnapshotPort backed by the given Client.
func NewSnapshotPort(c *Client) *SnapshotPort {
	return &SnapshotPort{c: c}
}

// Load returns the blob for key or domain.ErrNotFound.
func (p *SnapshotPort) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := p.c.rdb.Get(ctx, p.c.Key("snapshot", key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("redis: snapshot %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("redis: load snapshot %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the blob for key. Snapshots never expire.
func (p *SnapshotPort) Save(ctx context.Context, key string, data []byte) error {
	if err := p.c.rdb.Set(ctx, p.c.Key("snapshot", key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save snapshot %s: %w", key, err)
	}
	return nil
}
