// Package redis provides a Redis implementation of the sessionkit DraftCache,
// used by web deployments where drafts should survive tab and device changes.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/draftpad/sessionkit"
	sessErrors "github.com/draftpad/sessionkit/errors"
)

// Operation constants for consistent error reporting
const (
	opSave = "redis.Save"
	opLoad = "redis.Load"
)

// DefaultTTL is how long a draft snapshot lives without being overwritten.
// Drafts are a recovery aid, not an archive; stale ones expire on their own.
const DefaultTTL = 7 * 24 * time.Hour

// Cache implements sessionkit.DraftCache using Redis
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ sessionkit.DraftCache = (*Cache)(nil)

// New creates a Redis-backed draft cache from a connection URL
func New(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient creates a cache from an existing Redis client
func NewWithClient(client *redis.Client) *Cache {
	return &Cache{
		client: client,
		prefix: "draft:",
		ttl:    DefaultTTL,
	}
}

// WithTTL overrides the snapshot expiration.
func (c *Cache) WithTTL(ttl time.Duration) *Cache {
	c.ttl = ttl
	return c
}

// key generates the Redis key for a document id
func (c *Cache) key(documentID string) string {
	return c.prefix + documentID
}

// Save overwrites the snapshot for its document id, refreshing the TTL.
func (c *Cache) Save(ctx context.Context, snapshot sessionkit.DraftSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return sessErrors.WrapOpComponent(err, opSave, "cache/redis")
	}

	if err := c.client.Set(ctx, c.key(snapshot.DocumentID), jsonData, c.ttl).Err(); err != nil {
		return sessErrors.WrapOpComponent(err, opSave, "cache/redis")
	}
	return nil
}

// Load returns the snapshot for the document id, ok=false when absent or
// expired.
func (c *Cache) Load(ctx context.Context, documentID string) (sessionkit.DraftSnapshot, bool, error) {
	jsonData, err := c.client.Get(ctx, c.key(documentID)).Result()
	if err == redis.Nil {
		return sessionkit.DraftSnapshot{}, false, nil
	}
	if err != nil {
		return sessionkit.DraftSnapshot{}, false, sessErrors.WrapOpComponent(err, opLoad, "cache/redis")
	}

	var snap sessionkit.DraftSnapshot
	if err := json.Unmarshal([]byte(jsonData), &snap); err != nil {
		return sessionkit.DraftSnapshot{}, false, sessErrors.WrapOpComponent(err, opLoad, "cache/redis")
	}
	return snap, true, nil
}

// Delete removes the snapshot for a document id
func (c *Cache) Delete(ctx context.Context, documentID string) error {
	if err := c.client.Del(ctx, c.key(documentID)).Err(); err != nil {
		return sessErrors.WrapOpComponent(err, opSave, "cache/redis")
	}
	return nil
}

// Ping checks if Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}
