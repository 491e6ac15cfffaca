package credential

import (
	"sync"
	"time"
)

// Scope names the resource a Cache's token is good for. Exactly one Cache
// exists per scope for the life of the process.
type Scope string

const (
	ScopeStorage  Scope = "storage"
	ScopeDatabase Scope = "database"
)

// Cache is a thread-safe holder for one bearer token and its bookkeeping.
// It never performs I/O and cannot fail — expiry is read, not computed
// here. The same mutex-backed implementation serves both the startup
// (blocking) call path and the per-request (cooperative) call path: Go's
// goroutines already make a short-held sync.Mutex cheap and non-blocking
// in the threaded sense the source's "cooperative mutex" existed to
// avoid, so one lock flavor covers both (see DESIGN.md).
type Cache struct {
	scope Scope

	mu            sync.RWMutex
	token         Token
	lastSuccessAt time.Time
	lastError     string
	lastErrorAt   time.Time
}

// NewCache creates an empty token cache for the given resource scope.
func NewCache(scope Scope) *Cache {
	return &Cache{scope: scope}
}

// Scope returns the resource scope this cache serves.
func (c *Cache) Scope() Scope { return c.scope }

// GetIfValid returns the cached token only if it remains valid at least
// minTTL from now (B1: strict inequality — a token expiring exactly at
// now+minTTL is treated as absent).
func (c *Cache) GetIfValid(minTTL time.Duration) (Token, bool) {
	return c.getIfValidAt(time.Now(), minTTL)
}

func (c *Cache) getIfValidAt(now time.Time, minTTL time.Duration) (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.token.validAt(now, minTTL) {
		return Token{}, false
	}
	return c.token, true
}

// Set unconditionally replaces the cached token and records success.
func (c *Cache) Set(t Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = t
	c.lastSuccessAt = time.Now()
}

// Invalidate forces the next GetIfValid to report absent, without
// touching the success/error bookkeeping.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = Token{}
}

// RecordError records a failed acquisition attempt for diagnostics. It
// never touches the cached token: a failed acquisition leaves the
// previous token untouched (spec §4.2).
func (c *Cache) RecordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastError = err.Error()
	c.lastErrorAt = time.Now()
}

// TTL returns the remaining time until expiry, for diagnostics. The
// second return value is false if there is no token cached.
func (c *Cache) TTL() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token.Value == "" {
		return 0, false
	}
	remaining := time.Until(c.token.ExpiresAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Snapshot is a point-in-time, read-only view of cache bookkeeping for
// the diagnostics endpoint (C7). It never exposes the raw token value.
type Snapshot struct {
	Scope         Scope
	HasToken      bool
	TTLSeconds    float64
	LastSuccessAt time.Time
	LastError     string
	LastErrorAt   time.Time
}

// Snapshot returns a diagnostic view of the cache without leaking the
// token value itself.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Scope:         c.scope,
		LastSuccessAt: c.lastSuccessAt,
		LastError:     c.lastError,
		LastErrorAt:   c.lastErrorAt,
	}
	if c.token.Value != "" {
		s.HasToken = true
		ttl := time.Until(c.token.ExpiresAt)
		if ttl < 0 {
			ttl = 0
		}
		s.TTLSeconds = ttl.Seconds()
	}
	return s
}
