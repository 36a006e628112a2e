package rbac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheVersionKey = "rbac:rights:version"

// RightsCache keeps per-user effective rights in Redis. Keys are versioned:
// any assignment mutation bumps the version so every cached entry goes stale
// at once, and old generations simply expire by TTL.
type RightsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRightsCache instantiates the cache helper. A nil client degrades to a
// pass-through so tests and the worker can run without Redis.
func NewRightsCache(client *redis.Client, ttl time.Duration) *RightsCache {
	return &RightsCache{client: client, ttl: ttl}
}

// Get loads the cached effective rights for a user. The second return value
// reports a cache hit.
func (c *RightsCache) Get(ctx context.Context, userID int64) ([]int64, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rights []int64
	if err := json.Unmarshal(raw, &rights); err != nil {
		return nil, false, err
	}
	return rights, true, nil
}

// Set stores the effective rights for a user under the current version.
func (c *RightsCache) Set(ctx context.Context, userID int64, rights []int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	key, err := c.key(ctx, userID)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(rights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate bumps the version, expiring every cached entry at once.
func (c *RightsCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *RightsCache) key(ctx context.Context, userID int64) (string, error) {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", err
		}
		ver = 1
		if err := c.client.Set(ctx, cacheVersionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("rbac:rights:%d:%d", ver, userID), nil
}
