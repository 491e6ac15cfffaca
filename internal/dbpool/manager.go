// Package dbpool owns the control plane's two logical database pools
// (synchronous, via database/sql + lib/pq; cooperative, via pgxpool) and
// rotates both atomically when the underlying credential changes
// (spec §4.4, C4).
package dbpool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogserve/cogserve/internal/platform"
	"github.com/cogserve/cogserve/internal/telemetry"
)

// pools bundles one generation of both logical pools. A Manager always
// exposes exactly one *pools value at a time; rotation replaces the
// whole bundle rather than mutating either pool in place, so readers
// never observe a sync pool built from one credential alongside an
// async pool built from another (P3).
type pools struct {
	sync  *sql.DB
	async *pgxpool.Pool
}

// Manager holds the current generation of database pools behind a
// RWMutex and exposes atomic, drain-on-rotate replacement.
type Manager struct {
	mu       sync.RWMutex
	current  *pools
	drainFor time.Duration
	logger   *slog.Logger
}

// NewManager creates an uninitialized Manager. Call Initialize before
// GetSync/GetAsync are used.
func NewManager(drainFor time.Duration, logger *slog.Logger) *Manager {
	return &Manager{drainFor: drainFor, logger: logger}
}

// Initialize opens the first generation of both pools from cred. It is
// not safe to call concurrently with itself or Rotate.
func (m *Manager) Initialize(ctx context.Context, cred platform.PGCredential) error {
	p, err := newPools(ctx, cred)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.current = p
	m.mu.Unlock()
	return nil
}

// GetSync returns the current generation's database/sql pool. It panics
// if called before Initialize, since that is a programming error, not a
// runtime condition callers should branch on.
func (m *Manager) GetSync() *sql.DB {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		panic("dbpool: GetSync called before Initialize")
	}
	return m.current.sync
}

// GetAsync returns the current generation's pgxpool.
func (m *Manager) GetAsync() *pgxpool.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		panic("dbpool: GetAsync called before Initialize")
	}
	return m.current.async
}

// GetAsyncOrNil returns the current generation's pgxpool, or nil if
// Initialize has not run — for startup paths that must tolerate running
// without a database (e.g. DatabaseRequired=false).
func (m *Manager) GetAsyncOrNil() *pgxpool.Pool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	return m.current.async
}

// Rotate builds a new generation of pools from cred, swaps it in as the
// current generation, then closes the previous generation after
// drainFor — long enough for connections already checked out to
// complete (B2: calling Rotate again before the previous drain
// completes is safe, since each generation closes independently).
func (m *Manager) Rotate(ctx context.Context, cred platform.PGCredential) error {
	next, err := newPools(ctx, cred)
	if err != nil {
		telemetry.PoolRotationsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("rotating database pools: %w", err)
	}

	m.mu.Lock()
	prev := m.current
	m.current = next
	m.mu.Unlock()

	telemetry.PoolRotationsTotal.WithLabelValues("success").Inc()
	if m.logger != nil {
		m.logger.Info("database pools rotated", "drain", m.drainFor)
	}

	if prev != nil {
		go m.drainAndClose(prev)
	}
	return nil
}

func (m *Manager) drainAndClose(p *pools) {
	time.Sleep(m.drainFor)
	if err := p.sync.Close(); err != nil && m.logger != nil {
		m.logger.Warn("closing prior sync pool", "error", err)
	}
	p.async.Close()
}

// Close closes the current generation's pools. Call it only on final
// process shutdown, never as part of rotation.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	err := m.current.sync.Close()
	m.current.async.Close()
	return err
}

// PoolStats describes one logical pool's configured size and current
// usage, for the diagnostics endpoint (C7). It never exposes connection
// strings or credentials.
type PoolStats struct {
	Kind     string
	MaxConns int32
	InUse    int32
}

// Stats reports size/usage for both logical pools, or nil if Initialize
// has not yet run — diagnostics must degrade gracefully here, not panic.
func (m *Manager) Stats() []PoolStats {
	m.mu.RLock()
	p := m.current
	m.mu.RUnlock()
	if p == nil {
		return nil
	}

	syncStats := p.sync.Stats()
	asyncStats := p.async.Stat()
	return []PoolStats{
		{Kind: "sync", MaxConns: int32(syncStats.MaxOpenConnections), InUse: int32(syncStats.InUse)},
		{Kind: "async", MaxConns: asyncStats.MaxConns(), InUse: asyncStats.AcquiredConns()},
	}
}

// ReportMetrics publishes current connection usage for both pools. It is
// meant to be called periodically by the background refresher (C6).
func (m *Manager) ReportMetrics() {
	m.mu.RLock()
	p := m.current
	m.mu.RUnlock()
	if p == nil {
		return
	}
	telemetry.PoolConnectionsInUse.WithLabelValues("sync").Set(float64(p.sync.Stats().InUse))
	telemetry.PoolConnectionsInUse.WithLabelValues("async").Set(float64(p.async.Stat().AcquiredConns()))
}

func newPools(ctx context.Context, cred platform.PGCredential) (*pools, error) {
	syncPool, err := platform.NewSyncPool(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("opening sync pool: %w", err)
	}
	asyncPool, err := platform.NewAsyncPool(ctx, cred)
	if err != nil {
		_ = syncPool.Close()
		return nil, fmt.Errorf("opening async pool: %w", err)
	}
	return &pools{sync: syncPool, async: asyncPool}, nil
}
