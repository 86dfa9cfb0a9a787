package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pocketmarket/moderation/internal/audit"
	"github.com/pocketmarket/moderation/internal/moderation"
	"github.com/spf13/pflag"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	listingFlags.title, listingFlags.description, listingFlags.userID = "", "", ""
	messageFlags.text, messageFlags.userID = "", ""
	remote = false
	timeout = 3 * time.Second
	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	for _, c := range rootCmd.Commands() {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestListingLocal(t *testing.T) {
	out, err := execute(t, "listing", "--title", "Shotgun", "--description", "works fine")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var res localResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse output %q: %v", out, err)
	}
	if !res.Flagged || res.Category != moderation.CategoryProhibitedItem || res.Term != "shotgun" {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.FilterVersion != moderation.Default().Version() {
		t.Errorf("FilterVersion: got %q", res.FilterVersion)
	}
}

func TestMessageLocal(t *testing.T) {
	out, err := execute(t, "message", "--text", "text me at 555-123-4567")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var res localResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse output %q: %v", out, err)
	}
	if res.Flagged {
		t.Errorf("messages may carry contact info, got %+v", res)
	}
}

func TestMessageRequiresText(t *testing.T) {
	if _, err := execute(t, "message"); err == nil {
		t.Error("expected error without --text")
	}
}

func TestTimeoutFlag(t *testing.T) {
	if _, err := execute(t, "message", "--text", "hi", "--timeout", "soon"); err == nil {
		t.Error("expected error for a malformed --timeout")
	}

	_, err := execute(t, "message", "--text", "hi", "--remote", "--timeout", "0s")
	if err == nil || !strings.Contains(err.Error(), "--timeout must be positive") {
		t.Errorf("expected non-positive --timeout to be rejected, got %v", err)
	}

	if _, err := execute(t, "message", "--text", "hi", "--timeout", "750ms"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if timeout != 750*time.Millisecond {
		t.Errorf("timeout = %s, want 750ms", timeout)
	}
}

func TestFlagsCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")
	ctx := context.Background()

	db, err := audit.Open(ctx, audit.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := audit.Migrate(db, audit.DriverSQLite); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	_, err = audit.NewStore(db, audit.DriverSQLite).Record(ctx, audit.Event{
		Channel:   "message",
		Category:  moderation.CategoryScam,
		Term:      "moneygram",
		UserID:    "u42",
		SubjectID: "conv-1",
		Content:   "moneygram only please",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	db.Close()

	out, err := execute(t, "flags", "--driver", "sqlite", "--dsn", dsn, "--user", "u42", "--window", "1h")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, want := range []string{"u42: 1 flags in the last 1h0m0s", "scam", `term="moneygram"`, "moneygram only please"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, moderation.Default().Version()) {
		t.Errorf("version output missing filter version:\n%s", out)
	}
}
