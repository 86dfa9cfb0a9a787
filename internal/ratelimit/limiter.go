// Package ratelimit provides Redis-backed rate limiting using INCR + EXPIRE
// fixed windows. The moderator uses it to throttle check requests per user so
// a single account cannot hammer the filter at high volume.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Rule defines a rate limiting policy: the Redis key prefix, maximum number of
// requests allowed in the window, and the window duration. A Limit of zero or
// less disables the rule.
type Rule struct {
	Key    string        // Redis key prefix (e.g., "rl:listing:", "rl:message:")
	Limit  int           // max count in the window
	Window time.Duration // time window
}

// Default rules.
var (
	// RuleListingCheck allows 30 listing checks per minute per user.
	RuleListingCheck = Rule{Key: "rl:listing:", Limit: 30, Window: time.Minute}

	// RuleMessageCheck allows 120 message checks per minute per user.
	RuleMessageCheck = Rule{Key: "rl:message:", Limit: 120, Window: time.Minute}
)

// WithLimit returns a copy of r with a different limit.
func (r Rule) WithLimit(limit int) Rule {
	r.Limit = limit
	return r
}

// Limiter performs rate limiting checks against Redis.
type Limiter struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewLimiter creates a Limiter backed by the given Redis client.
func NewLimiter(client *redis.Client, logger zerolog.Logger) *Limiter {
	return &Limiter{client: client, logger: logger}
}

// Allow checks whether the given identifier is within the rate limit defined by
// rule. It increments the counter in Redis and sets the expiry on first access.
//
// Returns true if the request is allowed, false if rate limited. On Redis
// errors the method fails open (returns true) so that a Redis outage does not
// block legitimate traffic.
func (l *Limiter) Allow(ctx context.Context, identifier string, rule Rule) (bool, error) {
	if rule.Limit <= 0 {
		return true, nil
	}
	key := rule.Key + identifier

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("redis INCR failed, failing open")
		return true, err
	}

	// On the first increment, set the expiry to define the window boundary.
	if count == 1 {
		if err := l.client.Expire(ctx, key, rule.Window).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("redis EXPIRE failed, failing open")
			// Without a TTL the key would throttle the identifier forever.
			l.client.Del(ctx, key)
			return true, err
		}
	}

	return int(count) <= rule.Limit, nil
}
