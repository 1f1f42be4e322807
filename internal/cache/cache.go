package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ytflow/ytflow/pkg/models"
)

// Cache stores fetched manifests in Redis for the lifetime of their signed
// URLs. It is an optimization only: readers must still validate the TTL on
// every hit, because a cached manifest may outlive its upstream tokens when
// the upstream shortens them.
type Cache struct {
	client *redis.Client
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// SetManifest caches a manifest under its video id until the signed URLs
// expire. The Redis key expiry matches the manifest TTL so stale entries
// evict themselves.
func (c *Cache) SetManifest(ctx context.Context, manifest *models.Manifest) error {
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	key := fmt.Sprintf("manifest:%s", manifest.Video.ID)
	return c.client.Set(ctx, key, data, manifest.TTL).Err()
}

// GetManifest retrieves a manifest from cache. It returns nil on a miss and
// nil for an entry whose TTL has lapsed.
func (c *Cache) GetManifest(ctx context.Context, videoID string) (*models.Manifest, error) {
	key := fmt.Sprintf("manifest:%s", videoID)
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get manifest from cache: %w", err)
	}

	var manifest models.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	if manifest.Expired(time.Now()) {
		return nil, nil
	}

	return &manifest, nil
}

// DeleteManifest removes a manifest from cache, forcing the next fetch to
// go upstream. Used when a stream URL turns out to be expired early.
func (c *Cache) DeleteManifest(ctx context.Context, videoID string) error {
	key := fmt.Sprintf("manifest:%s", videoID)
	return c.client.Del(ctx, key).Err()
}

// Health check
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
