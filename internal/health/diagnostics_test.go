package health

import (
	"context"
	"testing"
	"time"
)

// P5-adjacent: diagnostics must never panic even with every dependency
// nil, mirroring Live/Ready's tolerance of partial configuration.
func TestDiagnosticsWithNoDependenciesDoesNotPanic(t *testing.T) {
	r := &Reporter{}
	d := r.Diagnostics(context.Background(), time.Now().Add(-time.Minute))

	if d.Version == "" {
		t.Fatal("expected a non-empty version")
	}
	if d.Hostname == "" {
		t.Fatal("expected a non-empty hostname")
	}
	if d.UptimeSeconds <= 0 {
		t.Fatalf("expected positive uptime, got %f", d.UptimeSeconds)
	}
	if d.Queries != nil {
		t.Fatalf("expected no introspection queries without a pool, got %v", d.Queries)
	}
	if d.TimedOut {
		t.Fatal("expected timed_out to be false when there is nothing to query")
	}
}

func TestRunIntrospectionQueriesNilPoolYieldsNoQueries(t *testing.T) {
	queries, timedOut := runIntrospectionQueries(context.Background(), nil)
	if queries != nil || timedOut {
		t.Fatalf("expected (nil, false) for a nil pool, got (%v, %v)", queries, timedOut)
	}
}
