package storageauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cogserve/cogserve/internal/credential"
)

type fakeSource struct {
	tok credential.Token
	err error
}

func (f *fakeSource) Token(ctx context.Context) (credential.Token, error) {
	return f.tok, f.err
}

func TestMiddlewareInjectsTokenOnSuccess(t *testing.T) {
	cache := credential.NewCache(credential.ScopeStorage)
	source := &fakeSource{tok: credential.Token{Value: "abc", ExpiresAt: time.Now().Add(time.Hour)}}
	provider := credential.NewProvider(credential.ScopeStorage, cache, source, time.Second, nil)

	var seen credential.Token
	var ok bool
	h := Middleware(provider, func() time.Duration { return time.Minute })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !ok {
		t.Fatal("expected token in context")
	}
	if seen.Value != "abc" {
		t.Fatalf("got token %q, want abc", seen.Value)
	}
}

func TestMiddlewareNeverAbortsOnAcquisitionFailure(t *testing.T) {
	cache := credential.NewCache(credential.ScopeStorage)
	source := &fakeSource{err: errors.New("identity unavailable")}
	provider := credential.NewProvider(credential.ScopeStorage, cache, source, time.Second, nil)

	called := false
	h := Middleware(provider, func() time.Duration { return time.Minute })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := FromContext(r.Context()); ok {
			t.Error("expected no token in context after acquisition failure")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected downstream handler to run despite acquisition failure")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
}

func TestFromContextEmpty(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("expected no token in a bare context")
	}
}

func TestWithProcessEnvRestoresPriorState(t *testing.T) {
	const key = "COGSERVE_TEST_STORAGE_TOKEN"
	os.Setenv(key, "prior-value")
	defer os.Unsetenv(key)

	err := WithProcessEnv(map[string]string{key: "temp-value"}, func() error {
		if got := os.Getenv(key); got != "temp-value" {
			t.Fatalf("got %q during scoped call, want temp-value", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv(key); got != "prior-value" {
		t.Fatalf("got %q after scoped call, want prior-value restored", got)
	}
}

func TestWithProcessEnvUnsetsWhenNotPreviouslySet(t *testing.T) {
	const key = "COGSERVE_TEST_STORAGE_TOKEN_UNSET"
	os.Unsetenv(key)

	err := WithProcessEnv(map[string]string{key: "temp-value"}, func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := os.LookupEnv(key); ok {
		t.Fatal("expected env var to be unset after scoped call")
	}
}

func TestWithProcessEnvPropagatesFnError(t *testing.T) {
	sentinel := errors.New("boom")
	err := WithProcessEnv(map[string]string{"COGSERVE_TEST_X": "1"}, func() error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want sentinel propagated", err)
	}
}
