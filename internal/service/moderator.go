// Package service runs moderation checks for the HTTP and NATS surfaces. It
// wraps the pure filter with input validation, per-user rate limiting, a
// verdict cache and the side effects of a flag: strikes, audit rows and
// flag events.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pocketmarket/moderation/internal/audit"
	"github.com/pocketmarket/moderation/internal/metrics"
	"github.com/pocketmarket/moderation/internal/moderation"
	"github.com/pocketmarket/moderation/internal/ratelimit"
	"github.com/pocketmarket/moderation/internal/strike"
	"github.com/pocketmarket/moderation/internal/verdictcache"
	"github.com/rs/zerolog"
)

// sideEffectTimeout bounds strike, audit and publish calls for one flag.
const sideEffectTimeout = 2 * time.Second

// Limiter allows or rejects a check for an identifier.
type Limiter interface {
	Allow(ctx context.Context, identifier string, rule ratelimit.Rule) (bool, error)
}

// VerdictCache stores verdicts by content key.
type VerdictCache interface {
	Get(ctx context.Context, key string) (moderation.Verdict, bool, error)
	Set(ctx context.Context, key string, v moderation.Verdict) error
}

// StrikeRecorder counts violations per user and reports active cooldowns.
type StrikeRecorder interface {
	Record(ctx context.Context, user, category string) (strike.Outcome, error)
	Cooldown(ctx context.Context, user string) (time.Duration, string, error)
}

// AuditLog persists flagged checks.
type AuditLog interface {
	Record(ctx context.Context, ev audit.Event) (string, error)
}

// EventPublisher broadcasts flag events.
type EventPublisher interface {
	PublishFlagged(category string, data []byte) error
}

// Deps configures a Moderator. Every field except Logger is optional; nil
// collaborators are skipped.
type Deps struct {
	Filter      *moderation.Filter
	Limiter     Limiter
	Cache       VerdictCache
	Strikes     StrikeRecorder
	Audit       AuditLog
	Publisher   EventPublisher
	ListingRule ratelimit.Rule
	MessageRule ratelimit.Rule
	Logger      zerolog.Logger
}

// Moderator runs listing and message checks. It is safe for concurrent use.
type Moderator struct {
	filter      *moderation.Filter
	limiter     Limiter
	cache       VerdictCache
	strikes     StrikeRecorder
	audit       AuditLog
	publisher   EventPublisher
	listingRule ratelimit.Rule
	messageRule ratelimit.Rule
	logger      zerolog.Logger
	now         func() time.Time
}

// NewModerator builds a Moderator from deps. A nil Filter uses the default
// blocklists; zero rules fall back to the package defaults.
func NewModerator(deps Deps) *Moderator {
	m := &Moderator{
		filter:      deps.Filter,
		limiter:     deps.Limiter,
		cache:       deps.Cache,
		strikes:     deps.Strikes,
		audit:       deps.Audit,
		publisher:   deps.Publisher,
		listingRule: deps.ListingRule,
		messageRule: deps.MessageRule,
		logger:      deps.Logger.With().Str("component", "moderator").Logger(),
		now:         time.Now,
	}
	if m.filter == nil {
		m.filter = moderation.Default()
	}
	if m.listingRule.Key == "" {
		m.listingRule = ratelimit.RuleListingCheck
	}
	if m.messageRule.Key == "" {
		m.messageRule = ratelimit.RuleMessageCheck
	}
	return m
}

// FilterVersion returns the version of the blocklists in use.
func (m *Moderator) FilterVersion() string {
	return m.filter.Version()
}

// check is the channel-independent part of a request.
type check struct {
	channel   string
	requestID string
	userID    string
	subjectID string
	content   string
	cacheKey  string
	rule      ratelimit.Rule
	classify  func() moderation.Verdict
}

// CheckListing validates and classifies a listing.
func (m *Moderator) CheckListing(ctx context.Context, req ListingCheckRequest) (*CheckResult, error) {
	if err := ValidateListing(req); err != nil {
		return nil, err
	}
	return m.run(ctx, check{
		channel:   ChannelListing,
		requestID: req.RequestID,
		userID:    req.UserID,
		subjectID: req.ListingID,
		content:   req.Title + "\n" + req.Description,
		cacheKey:  verdictcache.Key(ChannelListing, m.filter.Version(), req.Title, req.Description),
		rule:      m.listingRule,
		classify: func() moderation.Verdict {
			return m.filter.CheckListing(req.Title, req.Description)
		},
	})
}

// CheckMessage validates and classifies a chat message.
func (m *Moderator) CheckMessage(ctx context.Context, req MessageCheckRequest) (*CheckResult, error) {
	if err := ValidateMessage(req); err != nil {
		return nil, err
	}
	return m.run(ctx, check{
		channel:   ChannelMessage,
		requestID: req.RequestID,
		userID:    req.UserID,
		subjectID: req.ConversationID,
		content:   req.Text,
		cacheKey:  verdictcache.Key(ChannelMessage, m.filter.Version(), req.Text),
		rule:      m.messageRule,
		classify: func() moderation.Verdict {
			return m.filter.CheckMessage(req.Text)
		},
	})
}

func (m *Moderator) run(ctx context.Context, c check) (*CheckResult, error) {
	if c.requestID == "" {
		c.requestID = uuid.New().String()
	}
	log := m.logger.With().
		Str("request_id", c.requestID).
		Str("channel", c.channel).
		Str("user_id", c.userID).
		Logger()

	if m.limiter != nil && c.userID != "" {
		// Limiter errors fail open.
		allowed, err := m.limiter.Allow(ctx, c.userID, c.rule)
		if err == nil && !allowed {
			metrics.RateLimited.WithLabelValues(c.channel).Inc()
			return nil, ErrRateLimited
		}
	}

	if m.strikes != nil && c.userID != "" {
		// Cooldown lookups fail open like the limiter.
		remaining, category, err := m.strikes.Cooldown(ctx, c.userID)
		if err != nil {
			log.Warn().Err(err).Msg("cooldown lookup failed")
		} else if remaining > 0 {
			metrics.CoolingDown.WithLabelValues(c.channel).Inc()
			log.Debug().Dur("remaining", remaining).Msg("check rejected, user in cooldown")
			return nil, &CooldownError{Remaining: remaining, Category: category}
		}
	}

	start := time.Now()
	verdict, cached := m.classify(ctx, log, c)
	metrics.CheckLatency.WithLabelValues(c.channel).Observe(time.Since(start).Seconds())

	result := &CheckResult{
		RequestID: c.requestID,
		Flagged:   verdict.Flagged,
		Reason:    verdict.Reason,
		Category:  verdict.Category,
		Cached:    cached,
	}

	if !verdict.Flagged {
		metrics.ChecksTotal.WithLabelValues(c.channel, "clean").Inc()
		log.Debug().Bool("cached", cached).Msg("check clean")
		return result, nil
	}

	metrics.ChecksTotal.WithLabelValues(c.channel, "flagged").Inc()
	metrics.FlagsTotal.WithLabelValues(c.channel, string(verdict.Category)).Inc()
	log.Info().
		Str("category", string(verdict.Category)).
		Str("term", verdict.Term).
		Bool("cached", cached).
		Msg("check flagged")

	m.onFlag(ctx, log, c, verdict, result)
	return result, nil
}

// classify returns the cached verdict for c or computes and caches a new one.
// Cache failures fall through to the filter.
func (m *Moderator) classify(ctx context.Context, log zerolog.Logger, c check) (moderation.Verdict, bool) {
	if m.cache == nil {
		return c.classify(), false
	}

	v, ok, err := m.cache.Get(ctx, c.cacheKey)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("verdict cache lookup failed")
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return v, true
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	v = c.classify()
	if err := m.cache.Set(ctx, c.cacheKey, v); err != nil {
		log.Warn().Err(err).Msg("verdict cache store failed")
	}
	return v, false
}

// onFlag records the strike, audit row and flag event for a flagged check.
// Failures are logged and counted but never alter the verdict.
func (m *Moderator) onFlag(ctx context.Context, log zerolog.Logger, c check, v moderation.Verdict, result *CheckResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	now := m.now()

	if m.strikes != nil && c.userID != "" {
		outcome, err := m.strikes.Record(ctx, c.userID, string(v.Category))
		if err != nil {
			metrics.SideEffectErrors.WithLabelValues("strike").Inc()
			log.Error().Err(err).Msg("failed to record strike")
		} else {
			result.Strikes = outcome.Strikes
			result.CooldownSeconds = int64(outcome.Cooldown / time.Second)
			if outcome.Cooldown > 0 {
				log.Warn().
					Int("strikes", outcome.Strikes).
					Dur("cooldown", outcome.Cooldown).
					Msg("user placed in cooldown")
			}
		}
	}

	eventID := uuid.New().String()

	if m.audit != nil {
		_, err := m.audit.Record(ctx, audit.Event{
			ID:        eventID,
			Channel:   c.channel,
			Category:  v.Category,
			Term:      v.Term,
			UserID:    c.userID,
			SubjectID: c.subjectID,
			Content:   c.content,
			FlaggedAt: now,
		})
		if err != nil {
			metrics.SideEffectErrors.WithLabelValues("audit").Inc()
			log.Error().Err(err).Msg("failed to record audit event")
		}
	}

	if m.publisher != nil {
		data, err := json.Marshal(FlagEvent{
			EventID:         eventID,
			RequestID:       c.requestID,
			Channel:         c.channel,
			Category:        v.Category,
			Term:            v.Term,
			UserID:          c.userID,
			SubjectID:       c.subjectID,
			Strikes:         result.Strikes,
			CooldownSeconds: result.CooldownSeconds,
			FlaggedAt:       now.Unix(),
		})
		if err == nil {
			err = m.publisher.PublishFlagged(string(v.Category), data)
		}
		if err != nil {
			metrics.SideEffectErrors.WithLabelValues("publish").Inc()
			log.Error().Err(err).Msg("failed to publish flag event")
		}
	}
}

// HandleListingRequest decodes a JSON ListingCheckRequest, runs it and
// encodes the result. Errors are reported in the error field.
func (m *Moderator) HandleListingRequest(ctx context.Context, data []byte) []byte {
	var req ListingCheckRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return m.encode(nil, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	return m.encode(m.CheckListing(ctx, req))
}

// HandleMessageRequest decodes a JSON MessageCheckRequest, runs it and
// encodes the result. Errors are reported in the error field.
func (m *Moderator) HandleMessageRequest(ctx context.Context, data []byte) []byte {
	var req MessageCheckRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return m.encode(nil, fmt.Errorf("%w: %v", ErrInvalidInput, err))
	}
	return m.encode(m.CheckMessage(ctx, req))
}

func (m *Moderator) encode(result *CheckResult, err error) []byte {
	resp := response{CheckResult: result}
	if err != nil {
		resp.Error = err.Error()
	}
	data, mErr := json.Marshal(resp)
	if mErr != nil {
		m.logger.Error().Err(mErr).Msg("failed to marshal response")
		return []byte(`{"error":"internal error"}`)
	}
	return data
}
