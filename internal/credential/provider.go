package credential

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cogserve/cogserve/internal/telemetry"
)

// minAcquiredTTL is the floor below which a freshly-issued token is
// rejected outright: the identity service returning a token that is
// already expiring makes acquisition itself a failure (spec §4.2).
const minAcquiredTTL = 60 * time.Second

// TokenSource is the minimal shape a concrete identity backend must
// implement: fetch one token, synchronously, for this provider's
// audience. Implementations may be a managed-identity metadata client,
// an OIDC client-credentials exchange, a developer-CLI shell-out, or a
// long-lived secret lookup.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
}

// Provider acquires tokens for one resource scope, caching them in a
// Cache and ensuring at most one concrete acquisition is in flight at a
// time (P2: single-flight).
type Provider struct {
	scope  Scope
	cache  *Cache
	source TokenSource
	group  singleflight.Group
	logger *slog.Logger
	timeout time.Duration
}

// NewProvider builds a Provider over the given TokenSource, publishing
// results into cache.
func NewProvider(scope Scope, cache *Cache, source TokenSource, timeout time.Duration, logger *slog.Logger) *Provider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		scope:   scope,
		cache:   cache,
		source:  source,
		timeout: timeout,
		logger:  logger,
	}
}

// AcquireAsync returns a token valid for at least minTTL, from cache if
// possible, otherwise via a single-flighted call to the identity
// backend. Concurrent callers with an empty cache share one underlying
// call and its result (P2).
func (p *Provider) AcquireAsync(ctx context.Context, minTTL time.Duration) (Token, error) {
	if tok, ok := p.cache.GetIfValid(minTTL); ok {
		return tok, nil
	}

	v, err, _ := p.group.Do(string(p.scope), func() (any, error) {
		return p.acquireOnce(ctx)
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

// RefreshAsync invalidates the cache and unconditionally acquires a new
// token (min_ttl=0 per spec §4.2, but acquireOnce still enforces the
// 60s floor on the token the identity service returns). If the
// acquisition fails, the token cached before the call is put back, so a
// failed refresh leaves the previous token available.
func (p *Provider) RefreshAsync(ctx context.Context) (Token, error) {
	prev, hadPrev := p.cache.GetIfValid(0)
	p.cache.Invalidate()

	v, err, _ := p.group.Do(string(p.scope), func() (any, error) {
		return p.acquireOnce(ctx)
	})
	if err != nil {
		if hadPrev {
			p.cache.mu.Lock()
			if p.cache.token.Value == "" {
				p.cache.token = prev
			}
			p.cache.mu.Unlock()
		}
		return Token{}, err
	}
	return v.(Token), nil
}

// acquireOnce performs exactly one identity-backend call under a bounded
// deadline, validates the result, and publishes it to the cache on
// success. A failed acquisition leaves the cache's current token
// untouched — callers simply receive the error.
func (p *Provider) acquireOnce(ctx context.Context) (Token, error) {
	start := time.Now()
	acquireCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tok, err := p.source.Token(acquireCtx)
	telemetry.CredentialAcquireDuration.WithLabelValues(string(p.scope)).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if acquireCtx.Err() != nil {
			err = fmt.Errorf("%w: %v", ErrIdentityTimeout, err)
			outcome = "timeout"
		}
		p.cache.RecordError(err)
		telemetry.CredentialAcquisitions.WithLabelValues(string(p.scope), outcome).Inc()
		if p.logger != nil {
			p.logger.Warn("credential acquisition failed", "scope", p.scope, "error", err)
		}
		return Token{}, err
	}

	if !tok.validAt(time.Now(), minAcquiredTTL) {
		err := fmt.Errorf("%w: token for scope %s expires within %s of issuance", ErrIdentityMalformedToken, p.scope, minAcquiredTTL)
		p.cache.RecordError(err)
		telemetry.CredentialAcquisitions.WithLabelValues(string(p.scope), "malformed").Inc()
		return Token{}, err
	}

	p.cache.Set(tok)
	telemetry.CredentialAcquisitions.WithLabelValues(string(p.scope), "success").Inc()
	if ttl, ok := p.cache.TTL(); ok {
		telemetry.TokenTTLSeconds.WithLabelValues(string(p.scope)).Set(ttl.Seconds())
	}
	if p.logger != nil {
		p.logger.Info("credential acquired", "scope", p.scope, "expires_at", tok.ExpiresAt)
	}
	return tok, nil
}
