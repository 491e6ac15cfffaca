// Package refresher runs the background loop that keeps storage and
// database credentials current, rotates database pools after every
// successful managed-identity database refresh, and reloads the
// catalog afterward (spec §4.6, C6).
package refresher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cogserve/cogserve/internal/audit"
	"github.com/cogserve/cogserve/internal/catalog"
	"github.com/cogserve/cogserve/internal/credential"
	"github.com/cogserve/cogserve/internal/platform"
	"github.com/cogserve/cogserve/internal/telemetry"
)

// cycleTimeout bounds one full refresh cycle — storage refresh, database
// refresh, pool rotation, catalog reload — so a hung identity backend or
// database cannot stall the loop indefinitely.
const cycleTimeout = 60 * time.Second

// CredentialBuilder turns a freshly acquired database token into
// connection parameters for dbpool. It exists because the database
// credential is not always a bearer token: in password/secret-store
// modes the "token" value already is the static password, and only the
// host/port/user/pool-sizing fields come from configuration.
type CredentialBuilder func(tok credential.Token) platform.PGCredential

// poolManager is the subset of *dbpool.Manager the refresher needs,
// narrowed to an interface so rotation behavior (in particular B2:
// rotating unconditionally, even with an unchanged credential) can be
// exercised without a live database.
type poolManager interface {
	Rotate(ctx context.Context, cred platform.PGCredential) error
	GetAsync() *pgxpool.Pool
	ReportMetrics()
}

// Refresher periodically refreshes the storage credential, then the
// database credential; in managed-identity mode every successful database
// refresh triggers a pool rotation followed by a catalog reload,
// preserving the ordering the spec requires (storage before database,
// rotation before reload).
type Refresher struct {
	storage     *credential.Provider
	database    *credential.Provider
	databaseMI  bool // whether database credential is managed-identity (only then does rotation apply)
	pools       poolManager
	catalogSvc  *catalog.Service
	buildCred   CredentialBuilder
	interval    time.Duration
	logger      *slog.Logger
	auditWriter *audit.Writer
}

// New builds a Refresher. storage may be nil if storage auth is
// disabled; database may be nil if no database credential rotation is
// configured (e.g. static password mode with no pool rotation needed).
func New(storage, database *credential.Provider, databaseMI bool, pools poolManager, catalogSvc *catalog.Service, buildCred CredentialBuilder, interval time.Duration, auditWriter *audit.Writer, logger *slog.Logger) *Refresher {
	return &Refresher{
		storage:     storage,
		database:    database,
		databaseMI:  databaseMI,
		pools:       pools,
		catalogSvc:  catalogSvc,
		buildCred:   buildCred,
		interval:    interval,
		auditWriter: auditWriter,
		logger:      logger,
	}
}

// Run executes one refresh cycle immediately, then repeats every
// interval until ctx is cancelled, returning once cancellation is
// observed and the in-flight cycle (if any) completes.
func (r *Refresher) Run(ctx context.Context) {
	if r.logger != nil {
		r.logger.Info("background refresher started", "interval", r.interval)
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			if r.logger != nil {
				r.logger.Info("background refresher stopped")
			}
			return
		case <-ticker.C:
			r.cycle(ctx)
		}
	}
}

func (r *Refresher) cycle(parent context.Context) {
	// The cycle's context ignores parent's cancellation, so a rotation
	// already under way at shutdown runs to completion (bounded by
	// cycleTimeout); shutdown is observed between the two substeps.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), cycleTimeout)
	defer cancel()

	r.refreshStorage(ctx)
	if parent.Err() != nil {
		return
	}
	r.refreshDatabase(ctx)

	if r.pools != nil {
		r.pools.ReportMetrics()
	}
}

func (r *Refresher) refreshStorage(ctx context.Context) {
	if r.storage == nil {
		return
	}
	_, err := r.storage.RefreshAsync(ctx)
	outcome := "success"
	if err != nil {
		outcome = "error"
		if r.logger != nil {
			r.logger.Warn("storage credential refresh failed", "error", err)
		}
	}
	r.record("credential", "refresh_storage", outcome, nil)
}

func (r *Refresher) refreshDatabase(ctx context.Context) {
	if r.database == nil {
		return
	}

	tok, err := r.database.RefreshAsync(ctx)
	if err != nil {
		r.record("credential", "refresh_database", "error", nil)
		if r.logger != nil {
			r.logger.Warn("database credential refresh failed", "error", err)
		}
		return
	}
	r.record("credential", "refresh_database", "success", nil)

	if !r.databaseMI {
		return
	}

	// Always rotate, even if tok.Value is unchanged from the previous
	// cycle (B2: rotation is an idempotent interface, not an idempotent
	// implementation — the spec's §4.6 protocol has no equality gate).
	cred := r.buildCred(tok)
	if err := r.pools.Rotate(ctx, cred); err != nil {
		r.record("dbpool", "rotate", "error", nil)
		if r.logger != nil {
			r.logger.Error("database pool rotation failed", "error", err)
		}
		return
	}
	r.record("dbpool", "rotate", "success", nil)

	r.reloadCatalog(ctx, r.pools.GetAsync())
}

func (r *Refresher) reloadCatalog(ctx context.Context, pool *pgxpool.Pool) {
	if r.catalogSvc == nil {
		return
	}
	if err := r.catalogSvc.Refresh(ctx, pool); err != nil {
		r.record("catalog", "reload", "error", nil)
		if r.logger != nil {
			r.logger.Error("catalog reload failed after pool rotation", "error", err)
		}
		return
	}
	r.record("catalog", "reload", "success", nil)
}

func (r *Refresher) record(component, action, outcome string, detail json.RawMessage) {
	telemetry.RefreshCyclesTotal.WithLabelValues(action, outcome).Inc()
	if r.auditWriter == nil {
		return
	}
	r.auditWriter.Log(audit.Entry{Component: component, Action: action, Outcome: outcome, Detail: detail})
}
