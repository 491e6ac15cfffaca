package health

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogserve/cogserve/internal/credential"
	"github.com/cogserve/cogserve/internal/version"
)

// diagnosticsTimeout bounds the whole diagnostics sub-query batch;
// diagnosticQueryTimeout bounds each individual query within it (spec §5).
const (
	diagnosticsTimeout     = 30 * time.Second
	diagnosticQueryTimeout = 5 * time.Second
)

// introspectionQueries is the bounded set of sub-queries diagnostics
// runs against the database pool. Each is a cheap, read-only count so a
// slow or locked table degrades one entry rather than the whole
// endpoint.
var introspectionQueries = []struct {
	Name string
	SQL  string
}{
	{Name: "control_plane_event_count", SQL: "SELECT count(*) FROM control_plane_events"},
	{Name: "table_counts", SQL: "SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public'"},
	{Name: "geometry_columns", SQL: "SELECT count(*) FROM geometry_columns"},
}

// DiagnosticQuery is one introspection sub-query's outcome. Exactly one
// of Result/Error is populated — never both absent (P6).
type DiagnosticQuery struct {
	Name   string `json:"name"`
	Result *int64 `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ProviderDiagnostic summarizes one credential cache's bookkeeping
// without ever exposing the token value itself.
type ProviderDiagnostic struct {
	Scope         string     `json:"scope"`
	HasToken      bool       `json:"has_token"`
	TTLSeconds    float64    `json:"ttl_seconds"`
	LastSuccessAt *time.Time `json:"last_success_at,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
	LastErrorAt   *time.Time `json:"last_error_at,omitempty"`
}

// PoolDiagnostic reports one logical pool's configured size and current
// usage.
type PoolDiagnostic struct {
	Kind     string `json:"kind"`
	MaxConns int32  `json:"max_conns"`
	InUse    int32  `json:"in_use"`
}

// Diagnostics is the full structured aggregate returned by GET /health:
// version, per-component state, pool sizes/usage, token TTLs,
// last-success/last-error timestamps per provider, hostname, uptime,
// and the bounded introspection query batch (spec §4.7).
type Diagnostics struct {
	Version       string               `json:"version"`
	Commit        string               `json:"commit"`
	Hostname      string               `json:"hostname"`
	UptimeSeconds float64              `json:"uptime_seconds"`
	Components    []ProbeResult        `json:"components"`
	Providers     []ProviderDiagnostic `json:"providers"`
	Pools         []PoolDiagnostic     `json:"pools"`
	CatalogSize   int                  `json:"catalog_collections"`
	Queries       []DiagnosticQuery    `json:"queries"`
	TimedOut      bool                 `json:"timed_out"`
}

// Diagnostics builds the full diagnostic aggregate. It never returns an
// error: sub-query failures are captured per-entry in Queries, and a
// nil Reporter field simply omits that section (mirrors Ready's
// tolerance of partially-configured dependencies).
func (r *Reporter) Diagnostics(ctx context.Context, startedAt time.Time) Diagnostics {
	d := Diagnostics{
		Version:       version.Version,
		Commit:        version.Commit,
		Hostname:      hostname(),
		UptimeSeconds: time.Since(startedAt).Seconds(),
		Components:    r.Ready(ctx),
	}

	if r.StorageCache != nil {
		d.Providers = append(d.Providers, providerDiagnostic("storage", r.StorageCache))
	}
	if r.DatabaseCache != nil {
		d.Providers = append(d.Providers, providerDiagnostic("database", r.DatabaseCache))
	}

	var pool *pgxpool.Pool
	if r.Pools != nil {
		for _, s := range r.Pools.Stats() {
			d.Pools = append(d.Pools, PoolDiagnostic{Kind: s.Kind, MaxConns: s.MaxConns, InUse: s.InUse})
		}
		pool = r.Pools.GetAsyncOrNil()
	}

	if r.CatalogSvc != nil {
		d.CatalogSize = len(r.CatalogSvc.Current().Collections)
	}

	d.Queries, d.TimedOut = runIntrospectionQueries(ctx, pool)
	return d
}

func providerDiagnostic(scope string, cache *credential.Cache) ProviderDiagnostic {
	snap := cache.Snapshot()
	pd := ProviderDiagnostic{
		Scope:      scope,
		HasToken:   snap.HasToken,
		TTLSeconds: snap.TTLSeconds,
		LastError:  snap.LastError,
	}
	if !snap.LastSuccessAt.IsZero() {
		t := snap.LastSuccessAt
		pd.LastSuccessAt = &t
	}
	if !snap.LastErrorAt.IsZero() {
		t := snap.LastErrorAt
		pd.LastErrorAt = &t
	}
	return pd
}

// runIntrospectionQueries executes the bounded introspection batch under
// an overall deadline, returning whatever completed plus a timed_out
// flag if the deadline was hit before every query ran (spec §4.7/§5).
// A nil pool (no database configured) yields no queries and no timeout.
func runIntrospectionQueries(ctx context.Context, pool *pgxpool.Pool) ([]DiagnosticQuery, bool) {
	if pool == nil {
		return nil, false
	}

	overallCtx, cancel := context.WithTimeout(ctx, diagnosticsTimeout)
	defer cancel()

	results := make([]DiagnosticQuery, 0, len(introspectionQueries))
	for _, q := range introspectionQueries {
		if overallCtx.Err() != nil {
			return results, true
		}
		results = append(results, runOneQuery(overallCtx, pool, q.Name, q.SQL))
	}
	return results, false
}

func runOneQuery(ctx context.Context, pool *pgxpool.Pool, name, sql string) DiagnosticQuery {
	queryCtx, cancel := context.WithTimeout(ctx, diagnosticQueryTimeout)
	defer cancel()

	var count int64
	if err := pool.QueryRow(queryCtx, sql).Scan(&count); err != nil {
		return DiagnosticQuery{Name: name, Error: err.Error()}
	}
	return DiagnosticQuery{Name: name, Result: &count}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
