// Package audit records flagged moderation verdicts in SQL so trust and
// safety staff can review them later. The filter itself never persists
// anything; the moderator service writes here after a check has flagged.
//
// PostgreSQL is the production backend; SQLite serves local runs and tests.
// Queries are written with ? placeholders and rebound per driver.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pocketmarket/moderation/internal/moderation"
	_ "modernc.org/sqlite"
)

// Supported drivers, as registered with database/sql.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// MaxExcerptRunes bounds the stored content excerpt.
const MaxExcerptRunes = 280

// validChannels mirrors the CHECK constraint on flag_events.channel.
var validChannels = map[string]bool{
	"listing": true,
	"message": true,
}

// Event is one flagged check.
type Event struct {
	ID        string
	Channel   string
	Category  moderation.Category
	Term      string
	UserID    string
	SubjectID string // listing or conversation ID
	Content   string // hashed and excerpted, never stored whole
	FlaggedAt time.Time
}

// Record is a stored Event as read back from the table.
type Record struct {
	ID          string
	Channel     string
	Category    moderation.Category
	Term        string
	UserID      string
	SubjectID   string
	ContentHash string
	Excerpt     string
	FlaggedAt   time.Time
}

// Store manages flag events in a SQL database.
type Store struct {
	db     *sql.DB
	driver string
}

// Open opens a database for driver and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("audit: unsupported driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows a single writer; one connection also keeps
		// in-memory databases alive across calls.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: ping: %w", err)
	}
	return db, nil
}

// NewStore creates a new audit store backed by the given database handle.
func NewStore(db *sql.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

// Record inserts a flag event. ID and FlaggedAt are filled in when empty. The
// returned ID identifies the stored row.
func (s *Store) Record(ctx context.Context, ev Event) (string, error) {
	if !validChannels[ev.Channel] {
		return "", fmt.Errorf("audit: invalid channel %q", ev.Channel)
	}
	if !ev.Category.Valid() {
		return "", fmt.Errorf("audit: invalid category %q", ev.Category)
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.FlaggedAt.IsZero() {
		ev.FlaggedAt = time.Now()
	}

	const query = `
		INSERT INTO flag_events (id, channel, category, term, user_id, subject_id, content_hash, excerpt, flagged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query),
		ev.ID,
		ev.Channel,
		string(ev.Category),
		ev.Term,
		ev.UserID,
		ev.SubjectID,
		ContentHash(ev.Content),
		Excerpt(ev.Content),
		ev.FlaggedAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("audit: insert: %w", err)
	}
	return ev.ID, nil
}

// CountRecent returns the number of flag events recorded for a user within
// the given window.
func (s *Store) CountRecent(ctx context.Context, userID string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM flag_events
		WHERE user_id = ?
		  AND flagged_at >= ?`

	since := time.Now().Add(-window).Unix()

	var count int
	err := s.db.QueryRowContext(ctx, s.rebind(query), userID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("audit: count recent: %w", err)
	}
	return count, nil
}

// Recent returns the newest flag events, newest first. An empty userID lists
// events for every user.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, channel, category, term, user_id, subject_id, content_hash, excerpt, flagged_at
		FROM flag_events`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY flagged_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("audit: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r         Record
			category  string
			flaggedAt int64
		)
		if err := rows.Scan(&r.ID, &r.Channel, &category, &r.Term, &r.UserID, &r.SubjectID,
			&r.ContentHash, &r.Excerpt, &flaggedAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		r.Category = moderation.Category(category)
		r.FlaggedAt = time.Unix(flaggedAt, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: rows: %w", err)
	}
	return out, nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContentHash returns the hex sha256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Excerpt truncates content to MaxExcerptRunes runes.
func Excerpt(content string) string {
	if utf8.RuneCountInString(content) <= MaxExcerptRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:MaxExcerptRunes])
}
