package refresher

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogserve/cogserve/internal/credential"
	"github.com/cogserve/cogserve/internal/platform"
)

type sequencedSource struct {
	values []string
	idx    int
}

func (s *sequencedSource) Token(ctx context.Context) (credential.Token, error) {
	v := s.values[s.idx]
	if s.idx < len(s.values)-1 {
		s.idx++
	}
	return credential.Token{Value: v, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// fakeRotator is a poolManager stand-in that records Rotate calls
// without touching a real database, so B2 can be exercised directly.
type fakeRotator struct {
	rotateCalls int
}

func (f *fakeRotator) Rotate(ctx context.Context, cred platform.PGCredential) error {
	f.rotateCalls++
	return nil
}

func (f *fakeRotator) GetAsync() *pgxpool.Pool { return nil }

func (f *fakeRotator) ReportMetrics() {}

// B2: rotation is an idempotent interface, not an idempotent
// implementation — it must run on every managed-identity database
// refresh, even when the refreshed token's value is unchanged.
func TestRefreshDatabaseRotatesEvenWhenTokenValueUnchanged(t *testing.T) {
	cache := credential.NewCache(credential.ScopeDatabase)
	source := &sequencedSource{values: []string{"same", "same", "same"}}
	dbProvider := credential.NewProvider(credential.ScopeDatabase, cache, source, time.Second, nil)
	rotator := &fakeRotator{}

	r := &Refresher{
		database:   dbProvider,
		databaseMI: true,
		pools:      rotator,
		buildCred:  func(tok credential.Token) platform.PGCredential { return platform.PGCredential{} },
	}

	r.refreshDatabase(context.Background())
	r.refreshDatabase(context.Background())
	r.refreshDatabase(context.Background())

	if rotator.rotateCalls != 3 {
		t.Fatalf("expected rotation on every refresh regardless of token value (B2), got %d calls", rotator.rotateCalls)
	}
}

// Non-managed-identity modes (static password, secret store) never
// rotate: their "token" value is the credential itself, not a
// renewable lease.
func TestRefreshDatabaseSkipsRotationWhenNotManagedIdentity(t *testing.T) {
	cache := credential.NewCache(credential.ScopeDatabase)
	source := &sequencedSource{values: []string{"static-password"}}
	dbProvider := credential.NewProvider(credential.ScopeDatabase, cache, source, time.Second, nil)
	rotator := &fakeRotator{}

	r := &Refresher{
		database:   dbProvider,
		databaseMI: false,
		pools:      rotator,
	}

	r.refreshDatabase(context.Background())

	if rotator.rotateCalls != 0 {
		t.Fatalf("expected no rotation outside managed-identity mode, got %d calls", rotator.rotateCalls)
	}
}

func TestRefreshStorageNoopWhenProviderNil(t *testing.T) {
	r := &Refresher{}
	// Must not panic when storage auth is disabled.
	r.refreshStorage(context.Background())
}

func TestRefreshDatabaseNoopWhenProviderNil(t *testing.T) {
	r := &Refresher{}
	r.refreshDatabase(context.Background())
}
