// Package health reports liveness and readiness, combining probe
// results from the credential caches, database pools, and catalog
// service into one diagnostic view (spec §4.7, C7).
package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cogserve/cogserve/internal/catalog"
	"github.com/cogserve/cogserve/internal/credential"
	"github.com/cogserve/cogserve/internal/dbpool"
)

// probeTimeout bounds each individual dependency probe so one slow
// backend cannot stall the whole readiness check past the caller's own
// deadline.
const probeTimeout = 5 * time.Second

// Status is the outcome of one probe.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error"
)

// ProbeResult names one component's observed status and, when
// available, a short diagnostic message. A probe never returns a
// ProbeResult with an empty Status — there is always a verdict, even if
// it is StatusError (P6).
type ProbeResult struct {
	Component string
	Status    Status
	Message   string
}

// Reporter holds references to the components it probes. Any field may
// be nil to model a disabled dependency (e.g. no database-auth mode
// configured), in which case that probe is skipped rather than failing.
type Reporter struct {
	StorageCache  *credential.Cache
	DatabaseCache *credential.Cache
	Pools         *dbpool.Manager
	Redis         *redis.Client
	CatalogSvc    *catalog.Service
	MinTokenTTL   time.Duration

	// DatabaseRequired mirrors the process's configured deployment mode.
	// When false, readiness accepts the degraded-mode OR-branch: storage
	// healthy stands in for an unavailable database (spec §4.7, §7
	// scenario 2).
	DatabaseRequired bool
}

// Live reports whether the process itself is responsive. It never
// touches external dependencies: a livez failure means the process
// should be restarted, not that a downstream system is unavailable
// (P5: never panics, even with every field nil).
func (r *Reporter) Live() ProbeResult {
	return ProbeResult{Component: "process", Status: StatusOK}
}

// Ready runs every configured probe and returns the full set of
// results, continuing past individual probe failures so a caller sees
// every component's state rather than only the first failure.
func (r *Reporter) Ready(ctx context.Context) []ProbeResult {
	var results []ProbeResult

	if r.StorageCache != nil {
		results = append(results, r.probeCache("storage_credential", r.StorageCache))
	}
	if r.DatabaseCache != nil {
		results = append(results, r.probeCache("database_credential", r.DatabaseCache))
	}
	if r.Pools != nil {
		results = append(results, r.probePool(ctx))
	}
	if r.Redis != nil {
		results = append(results, r.probeRedis(ctx))
	}
	if r.CatalogSvc != nil {
		results = append(results, r.probeCatalog())
	}

	return results
}

// IsReady implements the spec §4.7 readiness OR: ready when (a) the
// database pool probe reports ok, OR (b) the process runs in
// DB-optional ("degraded") mode and the storage credential probe
// reports ok. Components other than database_pool/storage_credential
// (database_credential, redis, catalog) are surfaced in the response
// body for visibility but do not themselves gate readiness — a DB-only
// failure in DB-required mode must flip readiness to not-ready, while
// the same failure in DB-optional mode must not (spec §7).
func IsReady(results []ProbeResult, databaseRequired bool) bool {
	var sawPool, poolHealthy, sawStorage, storageHealthy bool
	for _, res := range results {
		switch res.Component {
		case "database_pool":
			sawPool = true
			poolHealthy = res.Status == StatusOK
		case "storage_credential":
			sawStorage = true
			storageHealthy = res.Status == StatusOK
		}
	}

	if sawPool && poolHealthy {
		return true
	}
	if databaseRequired {
		return false
	}
	return !sawStorage || storageHealthy
}

func (r *Reporter) probeCache(component string, cache *credential.Cache) ProbeResult {
	snap := cache.Snapshot()
	if !snap.HasToken {
		return ProbeResult{Component: component, Status: StatusError, Message: "no token cached"}
	}
	ttl := time.Duration(snap.TTLSeconds * float64(time.Second))
	if ttl < r.MinTokenTTL {
		return ProbeResult{Component: component, Status: StatusDegraded, Message: "token ttl below readiness threshold"}
	}
	return ProbeResult{Component: component, Status: StatusOK}
}

// probePool reports database_pool ok only when both logical pools
// answer — spec §4.7 defines readiness as "C4 reports both pools
// healthy", not just the async one most request handlers use.
func (r *Reporter) probePool(ctx context.Context) (result ProbeResult) {
	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	defer func() {
		// GetSync/GetAsync panic if Initialize was never called; that is
		// a genuine misconfiguration the caller should see as an error,
		// not a crashed health endpoint (P5).
		if rec := recover(); rec != nil {
			result = ProbeResult{Component: "database_pool", Status: StatusError, Message: "pool not initialized"}
		}
	}()

	if err := r.Pools.GetAsync().Ping(pingCtx); err != nil {
		return ProbeResult{Component: "database_pool", Status: StatusError, Message: "async pool: " + err.Error()}
	}
	if err := r.Pools.GetSync().PingContext(pingCtx); err != nil {
		return ProbeResult{Component: "database_pool", Status: StatusError, Message: "sync pool: " + err.Error()}
	}
	return ProbeResult{Component: "database_pool", Status: StatusOK}
}

func (r *Reporter) probeRedis(ctx context.Context) ProbeResult {
	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := r.Redis.Ping(pingCtx).Err(); err != nil {
		return ProbeResult{Component: "redis", Status: StatusError, Message: err.Error()}
	}
	return ProbeResult{Component: "redis", Status: StatusOK}
}

func (r *Reporter) probeCatalog() ProbeResult {
	cat := r.CatalogSvc.Current()
	if cat == nil {
		return ProbeResult{Component: "catalog", Status: StatusError, Message: "catalog never loaded"}
	}
	return ProbeResult{Component: "catalog", Status: StatusOK, Message: ""}
}
