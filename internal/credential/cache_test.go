package credential

import (
	"errors"
	"testing"
	"time"
)

func TestCacheSetThenGetIfValidRoundTrip(t *testing.T) {
	c := NewCache(ScopeStorage)
	tok := Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	c.Set(tok)

	got, ok := c.GetIfValid(time.Minute)
	if !ok {
		t.Fatal("expected cached token to be valid")
	}
	if got.Value != tok.Value {
		t.Fatalf("got %q, want %q", got.Value, tok.Value)
	}
}

func TestCacheGetIfValidEmptyReportsAbsent(t *testing.T) {
	c := NewCache(ScopeStorage)
	if _, ok := c.GetIfValid(time.Minute); ok {
		t.Fatal("expected no token in a fresh cache")
	}
}

func TestCacheInvalidateIsIdempotent(t *testing.T) {
	c := NewCache(ScopeDatabase)
	c.Set(Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)})

	c.Invalidate()
	c.Invalidate() // repeated invalidation must not panic or change outcome

	if _, ok := c.GetIfValid(0); ok {
		t.Fatal("expected no token after invalidation")
	}
}

func TestCacheRecordErrorLeavesTokenUntouched(t *testing.T) {
	c := NewCache(ScopeStorage)
	tok := Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	c.Set(tok)

	c.RecordError(errors.New("identity unavailable"))

	got, ok := c.GetIfValid(time.Minute)
	if !ok || got.Value != tok.Value {
		t.Fatal("expected prior token to survive a recorded error")
	}

	snap := c.Snapshot()
	if snap.LastError == "" {
		t.Fatal("expected snapshot to surface the recorded error")
	}
}

func TestCacheSnapshotNeverExposesTokenValue(t *testing.T) {
	c := NewCache(ScopeStorage)
	c.Set(Token{Value: "super-secret", ExpiresAt: time.Now().Add(time.Hour)})

	snap := c.Snapshot()
	if !snap.HasToken {
		t.Fatal("expected HasToken true")
	}
	if snap.TTLSeconds <= 0 {
		t.Fatalf("expected positive TTL, got %f", snap.TTLSeconds)
	}
}
