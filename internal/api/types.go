package api

import (
	"time"

	"github.com/pocketmarket/moderation/internal/audit"
	"github.com/pocketmarket/moderation/internal/moderation"
)

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	FilterVersion string            `json:"filter_version"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

// FlagRecord is an audit row as exposed to staff tooling.
type FlagRecord struct {
	ID        string              `json:"id"`
	Channel   string              `json:"channel"`
	Category  moderation.Category `json:"category"`
	Term      string              `json:"term,omitempty"`
	SubjectID string              `json:"subject_id,omitempty"`
	Excerpt   string              `json:"excerpt"`
	FlaggedAt time.Time           `json:"flagged_at"`
}

// UserStanding summarizes a user's moderation history.
type UserStanding struct {
	UserID           string       `json:"user_id"`
	Strikes          int          `json:"strikes"`
	CooldownSeconds  int64        `json:"cooldown_seconds"`
	CooldownCategory string       `json:"cooldown_category,omitempty"`
	FlagsLast24h     int          `json:"flags_last_24h"`
	RecentFlags      []FlagRecord `json:"recent_flags"`
}

func toFlagRecords(recs []audit.Record) []FlagRecord {
	out := make([]FlagRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, FlagRecord{
			ID:        r.ID,
			Channel:   r.Channel,
			Category:  r.Category,
			Term:      r.Term,
			SubjectID: r.SubjectID,
			Excerpt:   r.Excerpt,
			FlaggedAt: r.FlaggedAt.UTC(),
		})
	}
	return out
}
