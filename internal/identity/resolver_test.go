package identity

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"linebridge/internal/line"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// countingLookup records how many profile calls were made.
type countingLookup struct {
	calls int
	name  string
	err   error
}

func (c *countingLookup) Profile(ctx context.Context, userID string) (*line.Profile, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &line.Profile{DisplayName: c.name, UserID: userID}, nil
}

func TestResolve_AllowListBypassesProfileAPI(t *testing.T) {
	lookup := &countingLookup{name: "Remote"}
	r := NewResolver(map[string]string{"Uabc12": "Alice"}, lookup, testLogger())

	got := r.Resolve(context.Background(), "Uabc123456")
	if got != "Alice" {
		t.Errorf("expected Alice, got %q", got)
	}
	if lookup.calls != 0 {
		t.Errorf("profile API called %d times, want 0", lookup.calls)
	}
}

func TestResolve_CacheHitSkipsNetwork(t *testing.T) {
	lookup := &countingLookup{name: "Bob"}
	r := NewResolver(nil, lookup, testLogger())

	first := r.Resolve(context.Background(), "U99999999")
	second := r.Resolve(context.Background(), "U99999999")
	if first != "Bob" || second != "Bob" {
		t.Errorf("expected Bob twice, got %q then %q", first, second)
	}
	if lookup.calls != 1 {
		t.Errorf("profile API called %d times, want 1", lookup.calls)
	}
	if r.CacheLen() != 1 {
		t.Errorf("cache len = %d, want 1", r.CacheLen())
	}
}

func TestResolve_EmptyDisplayName(t *testing.T) {
	lookup := &countingLookup{name: ""}
	r := NewResolver(nil, lookup, testLogger())

	got := r.Resolve(context.Background(), "Uxyz98765")
	if got != "(unknown user Uxyz98)" {
		t.Errorf("unexpected fallback: %q", got)
	}
	// The fallback for an empty displayName is cached.
	if r.Resolve(context.Background(), "Uxyz98765") != got {
		t.Error("expected cached fallback on second call")
	}
	if lookup.calls != 1 {
		t.Errorf("profile API called %d times, want 1", lookup.calls)
	}
}

func TestResolve_LookupErrorNotCached(t *testing.T) {
	lookup := &countingLookup{err: errors.New("boom")}
	r := NewResolver(nil, lookup, testLogger())

	got := r.Resolve(context.Background(), "Uerr12345")
	if got != "(user Uerr12)" {
		t.Errorf("unexpected fallback: %q", got)
	}
	if r.CacheLen() != 0 {
		t.Error("error fallback must not be cached")
	}

	// Recovery: once the lookup works, the real name is returned and cached.
	lookup.err = nil
	lookup.name = "Carol"
	if got := r.Resolve(context.Background(), "Uerr12345"); got != "Carol" {
		t.Errorf("expected Carol after recovery, got %q", got)
	}
	if r.CacheLen() != 1 {
		t.Error("recovered name should be cached")
	}
}

func TestResolve_ShortUserID(t *testing.T) {
	lookup := &countingLookup{err: errors.New("down")}
	r := NewResolver(map[string]string{"U1": "Shorty"}, lookup, testLogger())

	if got := r.Resolve(context.Background(), "U1"); got != "Shorty" {
		t.Errorf("short ID should match allow-list whole, got %q", got)
	}
	if got := r.Resolve(context.Background(), "U2"); got != "(user U2)" {
		t.Errorf("unexpected fallback for short ID: %q", got)
	}
}
