package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pocketmarket/moderation/internal/audit"
	"github.com/pocketmarket/moderation/internal/moderation"
	"github.com/pocketmarket/moderation/internal/ratelimit"
	"github.com/pocketmarket/moderation/internal/strike"
	"github.com/rs/zerolog"
)

type fakeLimiter struct {
	allow bool
	err   error
	calls int
	rules []ratelimit.Rule
}

func (f *fakeLimiter) Allow(_ context.Context, _ string, rule ratelimit.Rule) (bool, error) {
	f.calls++
	f.rules = append(f.rules, rule)
	return f.allow, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]moderation.Verdict
	getErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]moderation.Verdict)}
}

func (f *fakeCache) Get(_ context.Context, key string) (moderation.Verdict, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return moderation.Verdict{}, false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, v moderation.Verdict) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	f.entries[key] = v
	return nil
}

type fakeStrikes struct {
	counts      map[string]int
	cooldowns   map[string]time.Duration
	err         error
	cooldownErr error
}

func (f *fakeStrikes) Record(_ context.Context, user, _ string) (strike.Outcome, error) {
	if f.err != nil {
		return strike.Outcome{}, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int)
	}
	f.counts[user]++
	out := strike.Outcome{Strikes: f.counts[user]}
	if out.Strikes >= strike.Threshold {
		out.Cooldown = strike.Cooldown15Min
		if f.cooldowns == nil {
			f.cooldowns = make(map[string]time.Duration)
		}
		f.cooldowns[user] = out.Cooldown
	}
	return out, nil
}

func (f *fakeStrikes) Cooldown(_ context.Context, user string) (time.Duration, string, error) {
	if f.cooldownErr != nil {
		return 0, "", f.cooldownErr
	}
	if d := f.cooldowns[user]; d > 0 {
		return d, string(moderation.CategoryScam), nil
	}
	return 0, "", nil
}

type fakeAudit struct {
	events []audit.Event
	err    error
}

func (f *fakeAudit) Record(_ context.Context, ev audit.Event) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.events = append(f.events, ev)
	return ev.ID, nil
}

type fakePublisher struct {
	subjects []string
	events   []FlagEvent
	err      error
}

func (f *fakePublisher) PublishFlagged(category string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	var ev FlagEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	f.subjects = append(f.subjects, category)
	f.events = append(f.events, ev)
	return nil
}

type harness struct {
	mod       *Moderator
	limiter   *fakeLimiter
	cache     *fakeCache
	strikes   *fakeStrikes
	audit     *fakeAudit
	publisher *fakePublisher
}

func newHarness() *harness {
	h := &harness{
		limiter:   &fakeLimiter{allow: true},
		cache:     newFakeCache(),
		strikes:   &fakeStrikes{},
		audit:     &fakeAudit{},
		publisher: &fakePublisher{},
	}
	h.mod = NewModerator(Deps{
		Limiter:   h.limiter,
		Cache:     h.cache,
		Strikes:   h.strikes,
		Audit:     h.audit,
		Publisher: h.publisher,
		Logger:    zerolog.Nop(),
	})
	return h
}

func TestCheckListingClean(t *testing.T) {
	h := newHarness()

	res, err := h.mod.CheckListing(context.Background(), ListingCheckRequest{
		UserID:      "seller-1",
		Title:       "Vintage desk lamp",
		Description: "Works great, minor scratches.",
	})
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if res.Flagged {
		t.Errorf("expected clean, got %+v", res)
	}
	if res.RequestID == "" {
		t.Error("expected generated request ID")
	}
	if len(h.audit.events) != 0 || len(h.publisher.events) != 0 || len(h.strikes.counts) != 0 {
		t.Error("clean check produced side effects")
	}
	if h.limiter.calls != 1 || h.limiter.rules[0].Key != ratelimit.RuleListingCheck.Key {
		t.Errorf("expected one listing rate-limit call, got %d %v", h.limiter.calls, h.limiter.rules)
	}
}

func TestCheckListingFlagged(t *testing.T) {
	h := newHarness()

	res, err := h.mod.CheckListing(context.Background(), ListingCheckRequest{
		RequestID:   "req-1",
		UserID:      "seller-1",
		ListingID:   "listing-7",
		Title:       "Handgun for sale",
		Description: "Barely used.",
	})
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if !res.Flagged || res.Category != moderation.CategoryProhibitedItem {
		t.Fatalf("expected prohibited_item flag, got %+v", res)
	}
	if res.Reason != moderation.ReasonProhibitedItem {
		t.Errorf("Reason: got %q", res.Reason)
	}
	if res.RequestID != "req-1" {
		t.Errorf("RequestID: got %q", res.RequestID)
	}
	if res.Strikes != 1 || res.CooldownSeconds != 0 {
		t.Errorf("expected 1 strike without cooldown, got %d/%d", res.Strikes, res.CooldownSeconds)
	}

	if len(h.audit.events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(h.audit.events))
	}
	ev := h.audit.events[0]
	if ev.Channel != ChannelListing || ev.Term != "handgun" || ev.SubjectID != "listing-7" {
		t.Errorf("unexpected audit event: %+v", ev)
	}

	if len(h.publisher.events) != 1 {
		t.Fatalf("expected 1 flag event, got %d", len(h.publisher.events))
	}
	pub := h.publisher.events[0]
	if h.publisher.subjects[0] != string(moderation.CategoryProhibitedItem) {
		t.Errorf("published under %q", h.publisher.subjects[0])
	}
	if pub.EventID != ev.ID || pub.RequestID != "req-1" || pub.UserID != "seller-1" {
		t.Errorf("unexpected flag event: %+v", pub)
	}
}

func TestCheckMessageScam(t *testing.T) {
	h := newHarness()

	res, err := h.mod.CheckMessage(context.Background(), MessageCheckRequest{
		UserID:         "buyer-1",
		ConversationID: "conv-3",
		Text:           "Please pay by wire transfer first",
	})
	if err != nil {
		t.Fatalf("CheckMessage: %v", err)
	}
	if !res.Flagged || res.Category != moderation.CategoryScam {
		t.Fatalf("expected scam flag, got %+v", res)
	}
	if res.Reason != moderation.ReasonMessageScam {
		t.Errorf("Reason: got %q", res.Reason)
	}
	if h.limiter.rules[0].Key != ratelimit.RuleMessageCheck.Key {
		t.Errorf("expected message rule, got %q", h.limiter.rules[0].Key)
	}
}

func TestCheckMessageIgnoresContactInfo(t *testing.T) {
	h := newHarness()

	res, err := h.mod.CheckMessage(context.Background(), MessageCheckRequest{
		UserID: "buyer-1",
		Text:   "call me at 555-123-4567",
	})
	if err != nil {
		t.Fatalf("CheckMessage: %v", err)
	}
	if res.Flagged {
		t.Errorf("messages may share contact info, got %+v", res)
	}
}

func TestStrikesEscalateToCooldown(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	var res *CheckResult
	for i := 0; i < strike.Threshold; i++ {
		var err error
		res, err = h.mod.CheckMessage(ctx, MessageCheckRequest{
			UserID: "buyer-9",
			Text:   "send gift card now",
		})
		if err != nil {
			t.Fatalf("CheckMessage: %v", err)
		}
	}
	if res.Strikes != strike.Threshold {
		t.Errorf("Strikes: got %d, want %d", res.Strikes, strike.Threshold)
	}
	if want := int64(strike.Cooldown15Min / time.Second); res.CooldownSeconds != want {
		t.Errorf("CooldownSeconds: got %d, want %d", res.CooldownSeconds, want)
	}
}

func TestCooldownRejectsFurtherChecks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	for i := 0; i < strike.Threshold; i++ {
		if _, err := h.mod.CheckListing(ctx, ListingCheckRequest{UserID: "seller-7", Title: "Handgun"}); err != nil {
			t.Fatalf("CheckListing #%d: %v", i+1, err)
		}
	}
	auditRows := len(h.audit.events)

	_, err := h.mod.CheckListing(ctx, ListingCheckRequest{UserID: "seller-7", Title: "Road bike"})
	if !errors.Is(err, ErrCoolingDown) {
		t.Fatalf("expected ErrCoolingDown, got %v", err)
	}
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("expected *CooldownError, got %T", err)
	}
	if cd.Seconds() != int64(strike.Cooldown15Min/time.Second) {
		t.Errorf("Seconds: got %d, want %d", cd.Seconds(), int64(strike.Cooldown15Min/time.Second))
	}
	if len(h.audit.events) != auditRows {
		t.Error("rejected check should not be audited")
	}

	// Messages from the same user are held too.
	if _, err := h.mod.CheckMessage(ctx, MessageCheckRequest{UserID: "seller-7", Text: "still available?"}); !errors.Is(err, ErrCoolingDown) {
		t.Errorf("message: expected ErrCoolingDown, got %v", err)
	}

	// Other users are unaffected.
	res, err := h.mod.CheckListing(ctx, ListingCheckRequest{UserID: "seller-8", Title: "Road bike"})
	if err != nil || res.Flagged {
		t.Errorf("other user: got %+v, %v", res, err)
	}
}

func TestCooldownLookupFailsOpen(t *testing.T) {
	h := newHarness()
	h.strikes.cooldownErr = errors.New("redis down")

	res, err := h.mod.CheckListing(context.Background(), ListingCheckRequest{UserID: "seller-1", Title: "Road bike"})
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if res.Flagged {
		t.Errorf("expected clean verdict, got %+v", res)
	}
}

func TestCooldownErrorRoundsUp(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      int64
	}{
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{15 * time.Minute, 900},
	}
	for _, tt := range tests {
		if got := (&CooldownError{Remaining: tt.remaining}).Seconds(); got != tt.want {
			t.Errorf("Seconds(%s) = %d, want %d", tt.remaining, got, tt.want)
		}
	}
}

func TestRateLimited(t *testing.T) {
	h := newHarness()
	h.limiter.allow = false

	_, err := h.mod.CheckListing(context.Background(), ListingCheckRequest{
		UserID: "seller-1",
		Title:  "Handgun",
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if h.cache.sets != 0 || len(h.audit.events) != 0 {
		t.Error("rate-limited check should not classify")
	}
}

func TestRateLimiterErrorFailsOpen(t *testing.T) {
	h := newHarness()
	h.limiter.allow = false
	h.limiter.err = errors.New("redis down")

	res, err := h.mod.CheckListing(context.Background(), ListingCheckRequest{
		UserID: "seller-1",
		Title:  "Desk",
	})
	if err != nil {
		t.Fatalf("expected fail-open, got %v", err)
	}
	if res.Flagged {
		t.Errorf("unexpected flag: %+v", res)
	}
}

func TestAnonymousSkipsLimiterAndStrikes(t *testing.T) {
	h := newHarness()

	res, err := h.mod.CheckListing(context.Background(), ListingCheckRequest{Title: "cocaine"})
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if !res.Flagged {
		t.Fatal("expected flag")
	}
	if h.limiter.calls != 0 {
		t.Errorf("limiter called %d times for anonymous request", h.limiter.calls)
	}
	if res.Strikes != 0 || len(h.strikes.counts) != 0 {
		t.Error("anonymous request recorded a strike")
	}
	if len(h.audit.events) != 1 {
		t.Errorf("expected audit row for anonymous flag, got %d", len(h.audit.events))
	}
}

func TestInvalidInput(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"long title", func() error {
			_, err := h.mod.CheckListing(ctx, ListingCheckRequest{Title: strings.Repeat("a", MaxTitleChars+1)})
			return err
		}},
		{"long description", func() error {
			_, err := h.mod.CheckListing(ctx, ListingCheckRequest{Description: strings.Repeat("a", MaxDescriptionChars+1)})
			return err
		}},
		{"invalid utf8 title", func() error {
			_, err := h.mod.CheckListing(ctx, ListingCheckRequest{Title: "bad \xff"})
			return err
		}},
		{"long message", func() error {
			_, err := h.mod.CheckMessage(ctx, MessageCheckRequest{Text: strings.Repeat("é", MaxMessageChars+1)})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if h.limiter.calls != 0 {
		t.Error("invalid input reached the limiter")
	}
}

func TestLimitsCountRunesNotBytes(t *testing.T) {
	h := newHarness()

	_, err := h.mod.CheckMessage(context.Background(), MessageCheckRequest{
		Text: strings.Repeat("é", MaxMessageChars),
	})
	if err != nil {
		t.Errorf("message at the rune limit rejected: %v", err)
	}
}

func TestVerdictCache(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	req := ListingCheckRequest{UserID: "seller-1", Title: "Stun gun", Description: "new"}

	first, err := h.mod.CheckListing(ctx, req)
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if first.Cached {
		t.Error("first check should not be cached")
	}

	second, err := h.mod.CheckListing(ctx, req)
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if !second.Cached {
		t.Error("second check should be served from cache")
	}
	if second.Category != first.Category || second.Reason != first.Reason {
		t.Errorf("cached verdict differs: %+v vs %+v", second, first)
	}
	if len(h.audit.events) != 2 || h.audit.events[1].Term != h.audit.events[0].Term {
		t.Error("cached flag should still be audited with its term")
	}
}

func TestVerdictCacheErrorFallsThrough(t *testing.T) {
	h := newHarness()
	h.cache.getErr = errors.New("redis down")

	res, err := h.mod.CheckMessage(context.Background(), MessageCheckRequest{Text: "western union only"})
	if err != nil {
		t.Fatalf("CheckMessage: %v", err)
	}
	if !res.Flagged || res.Cached {
		t.Errorf("expected uncached flag, got %+v", res)
	}
}

func TestSideEffectFailuresKeepVerdict(t *testing.T) {
	h := newHarness()
	h.strikes.err = errors.New("redis down")
	h.audit.err = errors.New("db down")
	h.publisher.err = errors.New("nats down")

	res, err := h.mod.CheckListing(context.Background(), ListingCheckRequest{
		UserID: "seller-1",
		Title:  "fake id",
	})
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if !res.Flagged || res.Category != moderation.CategoryProhibitedItem {
		t.Errorf("verdict changed by side-effect failures: %+v", res)
	}
	if res.Strikes != 0 {
		t.Errorf("Strikes: got %d", res.Strikes)
	}
}

func TestNilCollaborators(t *testing.T) {
	mod := NewModerator(Deps{Logger: zerolog.Nop()})

	res, err := mod.CheckListing(context.Background(), ListingCheckRequest{
		UserID: "u",
		Title:  "ammo",
	})
	if err != nil {
		t.Fatalf("CheckListing: %v", err)
	}
	if !res.Flagged || res.Cached {
		t.Errorf("unexpected result: %+v", res)
	}
	if mod.FilterVersion() != moderation.Default().Version() {
		t.Error("nil filter should use the default blocklists")
	}
}

func TestHandleListingRequest(t *testing.T) {
	h := newHarness()

	out := h.mod.HandleListingRequest(context.Background(),
		[]byte(`{"request_id":"r1","user_id":"u1","title":"Glock handgun","description":""}`))

	var resp struct {
		RequestID string `json:"request_id"`
		Flagged   bool   `json:"flagged"`
		Category  string `json:"category"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if resp.RequestID != "r1" || !resp.Flagged || resp.Category != "prohibited_item" {
		t.Errorf("unexpected response: %s", out)
	}
	if strings.Contains(string(out), "handgun") {
		t.Errorf("response leaked the matched term: %s", out)
	}
}

func TestHandleMessageRequestErrors(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	out := h.mod.HandleMessageRequest(ctx, []byte(`{not json`))
	var resp map[string]interface{}
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if msg, _ := resp["error"].(string); !strings.HasPrefix(msg, ErrInvalidInput.Error()) {
		t.Errorf("expected invalid input error, got %s", out)
	}
	if _, ok := resp["flagged"]; ok {
		t.Errorf("error response should not carry a verdict: %s", out)
	}

	h.limiter.allow = false
	out = h.mod.HandleMessageRequest(ctx, []byte(`{"user_id":"u1","text":"hi"}`))
	resp = nil
	if err := json.Unmarshal(out, &resp); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if resp["error"] != ErrRateLimited.Error() {
		t.Errorf("expected rate limit error, got %s", out)
	}
}
