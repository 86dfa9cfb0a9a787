// Package strike tracks repeat moderation offenders in Redis. Every flagged
// submission adds a strike; once a user collects enough strikes inside the
// strike window they are put in a posting cooldown that escalates with each
// further offense:
//
//	Key:   strike:count:<user>     Value: strike count      TTL: StrikeTTL
//	Key:   strike:cooldown:<user>  Value: <category>        TTL: cooldown
package strike

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	CountPrefix    = "strike:count:"
	CooldownPrefix = "strike:cooldown:"

	// Escalating cooldowns once the threshold is reached.
	Cooldown15Min  = 15 * time.Minute
	Cooldown1Hour  = 1 * time.Hour
	Cooldown24Hour = 24 * time.Hour

	// StrikeTTL is how long the strike counter lives. The TTL is set on the
	// first strike only, so the window does not slide.
	StrikeTTL = 24 * time.Hour

	// Threshold is the number of strikes within StrikeTTL that starts a cooldown.
	Threshold = 3
)

// Outcome describes the state of a user after a strike was recorded.
type Outcome struct {
	Strikes  int
	Cooldown time.Duration // zero when no cooldown was applied
}

// Store manages strike counters and cooldowns in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new strike store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// cooldownFor returns the cooldown for a strike count, or zero below the threshold.
func cooldownFor(strikes int) time.Duration {
	switch {
	case strikes < Threshold:
		return 0
	case strikes == Threshold:
		return Cooldown15Min
	case strikes == Threshold+1:
		return Cooldown1Hour
	default:
		return Cooldown24Hour
	}
}

// Record adds a strike for user and applies a cooldown once the threshold is
// reached. category is stored as the cooldown reason.
func (s *Store) Record(ctx context.Context, user, category string) (Outcome, error) {
	key := CountPrefix + user

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Outcome{}, fmt.Errorf("strike: record incr: %w", err)
	}

	if count == 1 {
		if err := s.client.Expire(ctx, key, StrikeTTL).Err(); err != nil {
			return Outcome{}, fmt.Errorf("strike: record expire: %w", err)
		}
	}

	out := Outcome{Strikes: int(count), Cooldown: cooldownFor(int(count))}
	if out.Cooldown > 0 {
		if err := s.client.Set(ctx, CooldownPrefix+user, category, out.Cooldown).Err(); err != nil {
			return Outcome{}, fmt.Errorf("strike: record cooldown: %w", err)
		}
	}
	return out, nil
}

// Strikes returns the current strike count for user, 0 when none are recorded.
func (s *Store) Strikes(ctx context.Context, user string) (int, error) {
	n, err := s.client.Get(ctx, CountPrefix+user).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("strike: count: %w", err)
	}
	return n, nil
}

// Cooldown reports the remaining cooldown for user and the category that
// caused it. remaining is zero when the user is not in a cooldown.
func (s *Store) Cooldown(ctx context.Context, user string) (time.Duration, string, error) {
	key := CooldownPrefix + user

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("strike: cooldown: %w", err)
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		// The cooldown exists but its TTL is unreadable; report at least a second.
		return time.Second, reason, nil
	}
	return ttl, reason, nil
}

// Clear removes the cooldown and strike history for user.
func (s *Store) Clear(ctx context.Context, user string) error {
	return s.client.Del(ctx, CooldownPrefix+user, CountPrefix+user).Err()
}
