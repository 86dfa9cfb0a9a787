package strike

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and removes
// test keys before returning. Tests that call this helper require a running
// Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		for _, pattern := range []string{CountPrefix + "test_*", CooldownPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, pattern, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStore(client)
}

func TestCooldownFor(t *testing.T) {
	tests := []struct {
		strikes int
		want    time.Duration
	}{
		{0, 0},
		{1, 0},
		{2, 0},
		{3, Cooldown15Min},
		{4, Cooldown1Hour},
		{5, Cooldown24Hour},
		{50, Cooldown24Hour},
	}

	for _, tt := range tests {
		if got := cooldownFor(tt.strikes); got != tt.want {
			t.Errorf("cooldownFor(%d) = %s, want %s", tt.strikes, got, tt.want)
		}
	}
}

func TestRecord_EscalatesAfterThreshold(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := "test_escalate"

	want := []time.Duration{0, 0, Cooldown15Min, Cooldown1Hour, Cooldown24Hour}
	for i, cooldown := range want {
		out, err := store.Record(ctx, user, "scam")
		if err != nil {
			t.Fatalf("Record #%d error: %v", i+1, err)
		}
		if out.Strikes != i+1 {
			t.Errorf("Record #%d strikes = %d, want %d", i+1, out.Strikes, i+1)
		}
		if out.Cooldown != cooldown {
			t.Errorf("Record #%d cooldown = %s, want %s", i+1, out.Cooldown, cooldown)
		}
	}

	remaining, reason, err := store.Cooldown(ctx, user)
	if err != nil {
		t.Fatalf("Cooldown error: %v", err)
	}
	if reason != "scam" {
		t.Errorf("reason = %q, want scam", reason)
	}
	if remaining <= Cooldown1Hour || remaining > Cooldown24Hour {
		t.Errorf("remaining = %s, want within (1h, 24h]", remaining)
	}
}

func TestCooldown_NoneRecorded(t *testing.T) {
	store := newTestStore(t)

	remaining, reason, err := store.Cooldown(context.Background(), "test_clean_user")
	if err != nil {
		t.Fatalf("Cooldown error: %v", err)
	}
	if remaining != 0 || reason != "" {
		t.Errorf("Cooldown = (%s, %q), want (0, \"\")", remaining, reason)
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := "test_clear"

	for i := 0; i < Threshold; i++ {
		if _, err := store.Record(ctx, user, "hate_speech"); err != nil {
			t.Fatalf("Record error: %v", err)
		}
	}
	if err := store.Clear(ctx, user); err != nil {
		t.Fatalf("Clear error: %v", err)
	}

	remaining, _, err := store.Cooldown(ctx, user)
	if err != nil {
		t.Fatalf("Cooldown error: %v", err)
	}
	if remaining != 0 {
		t.Errorf("remaining after Clear = %s, want 0", remaining)
	}
	n, err := store.Strikes(ctx, user)
	if err != nil {
		t.Fatalf("Strikes error: %v", err)
	}
	if n != 0 {
		t.Errorf("Strikes after Clear = %d, want 0", n)
	}
}
