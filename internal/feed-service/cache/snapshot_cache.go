package cache

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/wager-marketplace/pkg/contracts/topics"
)

// Cache lê os snapshots mantidos pelo feed-processor
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// Bet retorna o JSON bruto do snapshot; ok=false quando não há snapshot (ou expirou)
func (c *Cache) Bet(ctx context.Context, betID string) ([]byte, bool, error) {
	return c.get(ctx, topics.BetSnapshotKey(betID))
}

func (c *Cache) Account(ctx context.Context, agentID string) ([]byte, bool, error) {
	return c.get(ctx, topics.AccountSnapshotKey(agentID))
}

func (c *Cache) get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.R.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}
