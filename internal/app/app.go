// Package app wires configuration, infrastructure clients, and the
// control-plane components (C1–C7) into a running server, and owns
// graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cogserve/cogserve/internal/audit"
	"github.com/cogserve/cogserve/internal/catalog"
	"github.com/cogserve/cogserve/internal/config"
	"github.com/cogserve/cogserve/internal/credential"
	"github.com/cogserve/cogserve/internal/dbpool"
	"github.com/cogserve/cogserve/internal/health"
	"github.com/cogserve/cogserve/internal/httpserver"
	"github.com/cogserve/cogserve/internal/platform"
	"github.com/cogserve/cogserve/internal/refresher"
	"github.com/cogserve/cogserve/internal/storageauth"
	"github.com/cogserve/cogserve/internal/telemetry"
)

// Run reads config, connects to infrastructure, starts the background
// refresher, and serves HTTP until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting cogserve", "listen", cfg.ListenAddr())

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	// --- Credential providers (C1/C2) ---

	storageCache := credential.NewCache(credential.ScopeStorage)
	databaseCache := credential.NewCache(credential.ScopeDatabase)
	minTTL := time.Duration(cfg.MinTokenTTLSec) * time.Second

	var storageProvider *credential.Provider
	if cfg.StorageAuthEnabled {
		storageProvider, err = credential.NewStorageProvider(ctx, cfg, storageCache, logger)
		if err != nil {
			return fmt.Errorf("initializing storage credential provider: %w", err)
		}
		if _, err := storageProvider.AcquireAsync(ctx, minTTL); err != nil {
			logger.Warn("initial storage credential acquisition failed, continuing degraded", "error", err)
		}
	}

	databaseProvider, databaseMI, err := credential.NewDatabaseProvider(ctx, cfg, databaseCache, rdb, logger)
	if err != nil {
		return fmt.Errorf("initializing database credential provider: %w", err)
	}
	dbToken, err := databaseProvider.AcquireAsync(ctx, minTTL)
	if err != nil {
		if cfg.DatabaseRequired {
			return fmt.Errorf("acquiring initial database credential: %w", err)
		}
		logger.Warn("initial database credential acquisition failed, continuing degraded", "error", err)
	}

	// --- Database pools (C4) ---

	pools := dbpool.NewManager(time.Duration(cfg.PoolDrainSec)*time.Second, logger)
	if dbToken.Value != "" {
		cred := buildPGCredential(cfg, dbToken.Value)
		if err := pools.Initialize(ctx, cred); err != nil {
			if cfg.DatabaseRequired {
				return fmt.Errorf("initializing database pools: %w", err)
			}
			logger.Warn("database pool initialization failed, continuing degraded", "error", err)
		} else if err := platform.RunMigrations(cred.DSN(), cfg.MigrationsDir); err != nil {
			logger.Error("running control-plane migrations", "error", err)
		}
	}

	// --- Audit writer ---

	auditWriter := audit.NewWriter(pools.GetAsyncOrNil(), logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	// --- Catalog (C5) ---

	catalogSvc := catalog.NewService(cfg.VectorSchemaList(), logger)
	if cfg.EnableVectorAPI && pools.GetAsyncOrNil() != nil {
		if err := catalogSvc.Refresh(ctx, pools.GetAsync()); err != nil {
			logger.Warn("initial catalog load failed, continuing with empty catalog", "error", err)
		}
	}

	// --- Background refresher (C6) ---

	refresh := refresher.New(
		storageProvider,
		databaseProvider,
		databaseMI,
		pools,
		catalogSvc,
		func(tok credential.Token) platform.PGCredential { return buildPGCredential(cfg, tok.Value) },
		time.Duration(cfg.BackgroundRefreshIntervalSec)*time.Second,
		auditWriter,
		logger,
	)

	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		refresh.Run(ctx)
	}()

	// --- Health (C7) ---

	var reporterStorageCache *credential.Cache
	if cfg.StorageAuthEnabled {
		reporterStorageCache = storageCache
	}
	reporter := &health.Reporter{
		StorageCache:     reporterStorageCache,
		DatabaseCache:    databaseCache,
		Pools:            pools,
		Redis:            rdb,
		CatalogSvc:       catalogSvc,
		MinTokenTTL:      time.Duration(cfg.ReadyzMinTokenTTLSec) * time.Second,
		DatabaseRequired: cfg.DatabaseRequired,
	}

	// --- HTTP server ---

	var storageMiddleware func(http.Handler) http.Handler
	if storageProvider != nil {
		storageMiddleware = storageauth.Middleware(storageProvider, func() time.Duration { return minTTL })
	}

	srv := httpserver.NewServer(cfg, logger, storageMiddleware, reporter, metricsReg)
	// Tile/metadata route handlers are external collaborators, mounted
	// onto srv.APIRouter by the deployment's own wiring, not here.

	return serveUntilDone(ctx, cfg, logger, srv, refresherDone, pools)
}

func buildPGCredential(cfg *config.Config, password string) platform.PGCredential {
	return platform.PGCredential{
		Host:     cfg.PGHost,
		Port:     cfg.PGPort,
		Database: cfg.PGDB,
		User:     cfg.PGUser,
		Password: password,
		MinConns: int32(cfg.PGPoolAsyncMinConns),
		MaxConns: int32(cfg.PGPoolAsyncMaxConns),
		Timeout:  time.Duration(cfg.PGPoolTimeoutSec) * time.Second,
	}
}

func serveUntilDone(ctx context.Context, cfg *config.Config, logger *slog.Logger, srv *httpserver.Server, refresherDone <-chan struct{}, pools *dbpool.Manager) error {
	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down, waiting for background refresher to settle")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", "error", err)
		}
		<-refresherDone
		if err := pools.Close(); err != nil {
			logger.Error("closing database pools", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
