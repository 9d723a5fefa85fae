package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultMirrorKey is the Redis key holding the latest snapshot.
const DefaultMirrorKey = "prices:v1:latest"

// RedisMirror stores the latest snapshot in Redis so a restarted or second
// instance can serve prices before its first refresh completes.
type RedisMirror struct {
	cache *redis.Client
	key   string
	ttl   time.Duration
}

// NewRedisMirror builds a mirror. Entries expire after ttl when it is positive.
func NewRedisMirror(cache *redis.Client, key string, ttl time.Duration) *RedisMirror {
	if key == "" {
		key = DefaultMirrorKey
	}
	return &RedisMirror{cache: cache, key: key, ttl: ttl}
}

// Publish writes s under the mirror key.
func (m *RedisMirror) Publish(ctx context.Context, s Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return m.cache.Set(ctx, m.key, payload, m.ttl).Err()
}

// Load reads the mirrored snapshot. ok is false when none is stored.
func (m *RedisMirror) Load(ctx context.Context) (s Snapshot, ok bool, err error) {
	raw, err := m.cache.Get(ctx, m.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, true, nil
}

// Warm copies the mirrored snapshot into cache when the cache is empty.
func (m *RedisMirror) Warm(ctx context.Context, cache *Cache) (bool, error) {
	if _, ok := cache.Latest(); ok {
		return false, nil
	}
	s, ok, err := m.Load(ctx)
	if err != nil || !ok {
		return false, err
	}
	cache.Update(s)
	return true, nil
}
