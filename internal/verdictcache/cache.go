// Package verdictcache caches moderation verdicts in Redis keyed by a hash of
// the checked content. Keys embed the filter version so a policy change never
// serves a verdict computed by an older phrase list.
package verdictcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pocketmarket/moderation/internal/moderation"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix is the Redis key prefix for cached verdicts.
const KeyPrefix = "verdict:"

// entry is the cached form of a verdict. Unlike the public JSON it keeps the
// trigger term so logs and audit rows stay complete on cache hits.
type entry struct {
	Flagged  bool                `json:"f"`
	Reason   string              `json:"r,omitempty"`
	Category moderation.Category `json:"c,omitempty"`
	Term     string              `json:"t,omitempty"`
}

// Cache stores verdicts in Redis with a fixed TTL.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Cache. A ttl of zero or less disables storing.
func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Key derives the cache key for content checked on channel by a filter version.
// parts are hashed with a separator so ("ab", "c") and ("a", "bc") differ.
func Key(channel, version string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(channel))
	h.Write([]byte{0})
	h.Write([]byte(version))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return KeyPrefix + channel + ":" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached verdict for key. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) (moderation.Verdict, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return moderation.Verdict{}, false, nil
	}
	if err != nil {
		return moderation.Verdict{}, false, fmt.Errorf("verdictcache: get: %w", err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return moderation.Verdict{}, false, fmt.Errorf("verdictcache: decode: %w", err)
	}
	return moderation.Verdict{
		Flagged:  e.Flagged,
		Reason:   e.Reason,
		Category: e.Category,
		Term:     e.Term,
	}, true, nil
}

// Set stores v under key.
func (c *Cache) Set(ctx context.Context, key string, v moderation.Verdict) error {
	if c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(entry{
		Flagged:  v.Flagged,
		Reason:   v.Reason,
		Category: v.Category,
		Term:     v.Term,
	})
	if err != nil {
		return fmt.Errorf("verdictcache: encode: %w", err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("verdictcache: set: %w", err)
	}
	return nil
}
