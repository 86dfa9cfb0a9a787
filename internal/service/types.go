package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/pocketmarket/moderation/internal/moderation"
)

// Channels name where checked content came from. They label metrics, cache
// keys, audit rows and flag events.
const (
	ChannelListing = "listing"
	ChannelMessage = "message"
)

var (
	// ErrInvalidInput is returned when a request fails size or encoding checks.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRateLimited is returned when a user exceeds the per-minute check budget.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrCoolingDown is returned while a user sits out a strike cooldown.
	// It is wrapped in a *CooldownError.
	ErrCoolingDown = errors.New("posting cooldown active")
)

// CooldownError rejects a check from a user in a strike cooldown.
type CooldownError struct {
	Remaining time.Duration
	Category  string
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %ds remaining", ErrCoolingDown, e.Seconds())
}

func (e *CooldownError) Unwrap() error { return ErrCoolingDown }

// Seconds returns the remaining cooldown rounded up to whole seconds.
func (e *CooldownError) Seconds() int64 {
	return int64((e.Remaining + time.Second - 1) / time.Second)
}

// ListingCheckRequest asks whether a marketplace listing may be published.
type ListingCheckRequest struct {
	RequestID   string `json:"request_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
	ListingID   string `json:"listing_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// MessageCheckRequest asks whether a buyer/seller chat message may be delivered.
type MessageCheckRequest struct {
	RequestID      string `json:"request_id,omitempty"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Text           string `json:"text"`
}

// CheckResult is the outcome of one check as returned to callers.
type CheckResult struct {
	RequestID       string              `json:"request_id"`
	Flagged         bool                `json:"flagged"`
	Reason          string              `json:"reason,omitempty"`
	Category        moderation.Category `json:"category,omitempty"`
	Cached          bool                `json:"cached"`
	Strikes         int                 `json:"strikes,omitempty"`
	CooldownSeconds int64               `json:"cooldown_seconds,omitempty"`
}

// FlagEvent is published on moderation.flagged.<category> for every flagged check.
type FlagEvent struct {
	EventID         string              `json:"event_id"`
	RequestID       string              `json:"request_id"`
	Channel         string              `json:"channel"`
	Category        moderation.Category `json:"category"`
	Term            string              `json:"term,omitempty"`
	UserID          string              `json:"user_id,omitempty"`
	SubjectID       string              `json:"subject_id,omitempty"`
	Strikes         int                 `json:"strikes,omitempty"`
	CooldownSeconds int64               `json:"cooldown_seconds,omitempty"`
	FlaggedAt       int64               `json:"flagged_at"`
}

// response wraps a CheckResult for the NATS request/reply handlers.
type response struct {
	*CheckResult
	Error string `json:"error,omitempty"`
}
