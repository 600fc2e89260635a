// internal/common/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"school-notifier/internal/common/config"
	"school-notifier/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisCache persists a JSON snapshot of the notification list so the UI can
// keep showing notifications across restarts and offline periods.
type RedisCache struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a new snapshot cache client.
func NewRedis(cfg config.CacheConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	return &RedisCache{Client: rdb, ttl: cfg.TTLDuration()}, nil
}

// Ping tests the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *RedisCache) Close() error {
	if c.Client != nil {
		return c.Client.Close()
	}
	return nil
}

func snapshotKey(scopeID string) string {
	if scopeID == "" {
		scopeID = "default"
	}
	return "notify:snapshot:" + scopeID
}

// SaveSnapshot stores the full notification list for a scope.
func (c *RedisCache) SaveSnapshot(ctx context.Context, scopeID string, items []models.Notification) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.Client.Set(ctx, snapshotKey(scopeID), data, c.ttl).Err()
}

// LoadSnapshot returns the stored list for a scope; a missing key yields an
// empty list, not an error.
func (c *RedisCache) LoadSnapshot(ctx context.Context, scopeID string) ([]models.Notification, error) {
	data, err := c.Client.Get(ctx, snapshotKey(scopeID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var items []models.Notification
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return items, nil
}

// ClearSnapshot drops the stored list for a scope.
func (c *RedisCache) ClearSnapshot(ctx context.Context, scopeID string) error {
	return c.Client.Del(ctx, snapshotKey(scopeID)).Err()
}
