package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	permissionEpochKey   = "omms:rbac:epoch"
	permissionKeyPattern = "omms:rbac:perms:%d:%d"
)

// PermissionCache keeps resolved permission code sets in Redis.
//
// Every cached entry embeds the epoch counter in its key. Any RBAC
// mutation bumps the epoch, so stale entries become unreachable and
// expire on their own TTL instead of being deleted one by one.
type PermissionCache struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewPermissionCache wires the cache onto an established Redis client.
func NewPermissionCache(client *goredis.Client, ttl time.Duration) *PermissionCache {
	return &PermissionCache{client: client, ttl: ttl}
}

func (c *PermissionCache) Get(ctx context.Context, userID int64) ([]string, bool, error) {
	epoch, err := c.currentEpoch(ctx)
	if err != nil {
		return nil, false, err
	}

	payload, err := c.client.Get(ctx, c.key(epoch, userID)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("permission cache get: %w", err)
	}

	var codes []string
	if err := json.Unmarshal(payload, &codes); err != nil {
		return nil, false, fmt.Errorf("permission cache decode: %w", err)
	}
	return codes, true, nil
}

func (c *PermissionCache) Set(ctx context.Context, userID int64, codes []string) error {
	epoch, err := c.currentEpoch(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("permission cache encode: %w", err)
	}
	if err := c.client.Set(ctx, c.key(epoch, userID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("permission cache set: %w", err)
	}
	return nil
}

// BumpEpoch invalidates every cached permission set at once.
func (c *PermissionCache) BumpEpoch(ctx context.Context) error {
	if err := c.client.Incr(ctx, permissionEpochKey).Err(); err != nil {
		return fmt.Errorf("permission cache epoch bump: %w", err)
	}
	return nil
}

func (c *PermissionCache) currentEpoch(ctx context.Context) (int64, error) {
	epoch, err := c.client.Get(ctx, permissionEpochKey).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("permission cache epoch read: %w", err)
	}
	return epoch, nil
}

func (c *PermissionCache) key(epoch, userID int64) string {
	return fmt.Sprintf(permissionKeyPattern, epoch, userID)
}
