// Package storageauth injects the current storage-scope credential into
// the request context for downstream handlers and storage clients
// (spec §4.3, C3).
package storageauth

import (
	"context"
	"net/http"
	"time"

	"github.com/cogserve/cogserve/internal/credential"
)

type contextKey string

const tokenKey contextKey = "storage_token"

// NewContext returns a context carrying tok, retrievable via FromContext.
func NewContext(ctx context.Context, tok credential.Token) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

// FromContext extracts the storage token injected by Middleware. The
// second return is false when no middleware ran, or acquisition failed
// and no token could be injected.
func FromContext(ctx context.Context) (credential.Token, bool) {
	tok, ok := ctx.Value(tokenKey).(credential.Token)
	return tok, ok
}

// Middleware acquires the current storage token on every request and
// attaches it to the request context. Acquisition failure is logged but
// never aborts the request: handlers that need the token check
// FromContext themselves and fail closed if it is absent, keeping the
// auth concern out of the routing layer.
func Middleware(provider *credential.Provider, minTTL func() time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			tok, err := provider.AcquireAsync(ctx, minTTL())
			if err == nil {
				ctx = NewContext(ctx, tok)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
