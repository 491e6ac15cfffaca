package platform

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
)

// PGCredential carries the connection parameters the pool manager (C4)
// needs to build both logical pools. Password is either a static
// password, a secret-store value, or a managed-identity bearer token,
// depending on the configured credential mode — the pool layer does not
// care which.
type PGCredential struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	MinConns int32
	MaxConns int32
	Timeout  time.Duration
}

// DSN builds a sslmode=require connection string, per the database
// protocol requirement that TLS is never optional. Exported so callers
// needing a raw connection string (schema migrations) don't need a
// second credential-to-DSN translation. Values are single-quoted and
// backslash-escaped per libpq's keyword/value syntax, since passwords
// and secret-store values may contain spaces or '='.
func (c PGCredential) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=require connect_timeout=%d",
		quoteDSNValue(c.Host), c.Port, quoteDSNValue(c.Database), quoteDSNValue(c.User), quoteDSNValue(c.Password), int(c.Timeout.Seconds()),
	)
}

func quoteDSNValue(v string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + replacer.Replace(v) + "'"
}

// NewSyncPool opens a database/sql pool over the lib/pq driver. This is
// the pool handed to the synchronous STAC mosaic reader.
func NewSyncPool(ctx context.Context, cred PGCredential) (*sql.DB, error) {
	db, err := sql.Open("postgres", cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening sync pool: %w", err)
	}
	db.SetMaxOpenConns(int(cred.MaxConns))
	db.SetMaxIdleConns(int(cred.MinConns))
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, cred.Timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sync pool: %w", err)
	}
	return db, nil
}

// NewAsyncPool opens a pgxpool over the native pgx driver. This is the
// pool handed to the cooperative OGC features engine and the catalog
// service's introspection queries.
func NewAsyncPool(ctx context.Context, cred PGCredential) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(cred.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing async pool config: %w", err)
	}
	pgxCfg.MinConns = cred.MinConns
	pgxCfg.MaxConns = cred.MaxConns
	pgxCfg.ConnConfig.ConnectTimeout = cred.Timeout

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, fmt.Errorf("creating async pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cred.Timeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging async pool: %w", err)
	}
	return pool, nil
}
