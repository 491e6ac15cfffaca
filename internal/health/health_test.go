package health

import (
	"context"
	"testing"
	"time"

	"github.com/cogserve/cogserve/internal/catalog"
	"github.com/cogserve/cogserve/internal/credential"
	"github.com/cogserve/cogserve/internal/dbpool"
)

// P5: Live and Ready never panic, even with every dependency nil.
func TestLiveNeverPanics(t *testing.T) {
	r := &Reporter{}
	res := r.Live()
	if res.Status != StatusOK {
		t.Fatalf("got %v, want StatusOK", res.Status)
	}
}

func TestReadyWithNoDependenciesReturnsEmpty(t *testing.T) {
	r := &Reporter{}
	results := r.Ready(context.Background())
	if len(results) != 0 {
		t.Fatalf("expected no probes to run, got %d", len(results))
	}
	if !IsReady(results, false) {
		t.Fatal("expected IsReady(empty, databaseRequired=false) to be true")
	}
	if IsReady(results, true) {
		t.Fatal("expected IsReady(empty, databaseRequired=true) to be false: no pool probe present")
	}
}

// P6: every probe result carries a non-empty status, never a silent
// absence of both status and message.
func TestProbeCacheReportsErrorWhenEmpty(t *testing.T) {
	r := &Reporter{MinTokenTTL: time.Minute}
	cache := credential.NewCache(credential.ScopeStorage)
	res := r.probeCache("storage_credential", cache)
	if res.Status != StatusError {
		t.Fatalf("got %v, want StatusError for an empty cache", res.Status)
	}
	if res.Message == "" {
		t.Fatal("expected a diagnostic message")
	}
}

func TestProbeCacheReportsDegradedBelowThreshold(t *testing.T) {
	r := &Reporter{MinTokenTTL: time.Hour}
	cache := credential.NewCache(credential.ScopeStorage)
	cache.Set(credential.Token{Value: "x", ExpiresAt: time.Now().Add(time.Minute)})

	res := r.probeCache("storage_credential", cache)
	if res.Status != StatusDegraded {
		t.Fatalf("got %v, want StatusDegraded", res.Status)
	}
}

func TestProbeCacheReportsOKAboveThreshold(t *testing.T) {
	r := &Reporter{MinTokenTTL: time.Minute}
	cache := credential.NewCache(credential.ScopeStorage)
	cache.Set(credential.Token{Value: "x", ExpiresAt: time.Now().Add(time.Hour)})

	res := r.probeCache("storage_credential", cache)
	if res.Status != StatusOK {
		t.Fatalf("got %v, want StatusOK", res.Status)
	}
}

func TestProbePoolRecoversFromUninitializedManagerPanic(t *testing.T) {
	r := &Reporter{Pools: dbpool.NewManager(time.Second, nil)}
	res := r.probePool(context.Background())
	if res.Status != StatusError {
		t.Fatalf("got %v, want StatusError for an uninitialized pool manager", res.Status)
	}
}

func TestProbeCatalogReportsOKWithEmptyCatalog(t *testing.T) {
	r := &Reporter{CatalogSvc: catalog.NewService(nil, nil)}
	res := r.probeCatalog()
	if res.Status != StatusOK {
		t.Fatalf("got %v, want StatusOK (B3: empty catalog is not an error)", res.Status)
	}
}

// Spec §4.7: ready iff (a) database_pool ok, OR (b) DB-optional mode and
// storage_credential ok. Non-gating components (redis, catalog,
// database_credential) must not affect the verdict either way.
func TestIsReadyPoolHealthyIgnoresOtherFailures(t *testing.T) {
	results := []ProbeResult{
		{Component: "database_pool", Status: StatusOK},
		{Component: "redis", Status: StatusError, Message: "boom"},
	}
	if !IsReady(results, true) {
		t.Fatal("expected IsReady to be true when database_pool is ok, regardless of other probes")
	}
}

func TestIsReadyDatabaseRequiredFailsOnPoolDown(t *testing.T) {
	results := []ProbeResult{
		{Component: "database_pool", Status: StatusError, Message: "connection refused"},
		{Component: "storage_credential", Status: StatusOK},
	}
	if IsReady(results, true) {
		t.Fatal("expected IsReady to be false in DB-required mode when the pool is down, even with storage healthy")
	}
}

// Scenario 2: DB-optional mode stays ready on a storage-only request
// during a database outage.
func TestIsReadyDatabaseOptionalAcceptsStorageOnly(t *testing.T) {
	results := []ProbeResult{
		{Component: "database_pool", Status: StatusError, Message: "connection refused"},
		{Component: "storage_credential", Status: StatusOK},
	}
	if !IsReady(results, false) {
		t.Fatal("expected IsReady to be true in DB-optional mode when storage is healthy")
	}
}

func TestIsReadyDatabaseOptionalStillFailsWhenStorageUnhealthy(t *testing.T) {
	results := []ProbeResult{
		{Component: "database_pool", Status: StatusError, Message: "connection refused"},
		{Component: "storage_credential", Status: StatusError, Message: "no token cached"},
	}
	if IsReady(results, false) {
		t.Fatal("expected IsReady to be false in DB-optional mode when storage is also unhealthy")
	}
}
