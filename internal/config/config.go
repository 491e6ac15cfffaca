package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all process configuration, loaded once from environment
// variables at startup and never mutated afterward.
type Config struct {
	Host string `env:"COGSERVE_HOST" envDefault:"0.0.0.0"`
	Port int    `env:"COGSERVE_PORT" envDefault:"8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Storage credential path (C1/C2/C3).
	StorageAuthEnabled bool   `env:"STORAGE_AUTH_ENABLED" envDefault:"true"`
	StorageAccount     string `env:"STORAGE_ACCOUNT"`
	StorageAudience    string `env:"STORAGE_AUDIENCE" envDefault:"https://storage.azure.com/.default"`
	DevModeCredential  bool   `env:"DEV_MODE_CREDENTIAL" envDefault:"false"`

	// Identity service, used by both storage and managed-identity DB modes.
	IdentityIssuerURL    string `env:"IDENTITY_ISSUER_URL"`
	IdentityClientID     string `env:"IDENTITY_CLIENT_ID"`
	IdentityClientSecret string `env:"IDENTITY_CLIENT_SECRET"`
	IdentityTimeoutSec   int    `env:"IDENTITY_TIMEOUT_SEC" envDefault:"30"`

	// Database connection + credential mode.
	PGAuthMode string `env:"PG_AUTH_MODE" envDefault:"password"` // password | secret_store | managed_identity
	PGHost     string `env:"PG_HOST" envDefault:"localhost"`
	PGPort     int    `env:"PG_PORT" envDefault:"5432"`
	PGDB       string `env:"PG_DB" envDefault:"cogserve"`
	PGUser     string `env:"PG_USER" envDefault:"cogserve"`
	PGPassword string `env:"PG_PASSWORD"` // used iff PGAuthMode == password

	SecretStoreName string `env:"SECRET_STORE_NAME"` // used iff PGAuthMode == secret_store
	SecretStoreKey  string `env:"SECRET_STORE_KEY"`

	PGManagedIdentityClientID string `env:"PG_MI_CLIENT_ID"` // optional, managed_identity mode
	PGAudience                string `env:"PG_AUDIENCE" envDefault:"https://ossrdbms-aad.database.windows.net/.default"`

	// Pool sizing. Both pools share the same Postgres server; the sum of
	// their max connections must not exceed server capacity. Both pools
	// are built with the PG_POOL_ASYNC_* limits; the PG_POOL_SYNC_* values
	// are parsed but not applied to either pool.
	PGPoolSyncMinConns  int `env:"PG_POOL_SYNC_MIN_CONNS" envDefault:"1"`
	PGPoolSyncMaxConns  int `env:"PG_POOL_SYNC_MAX_CONNS" envDefault:"10"`
	PGPoolAsyncMinConns int `env:"PG_POOL_ASYNC_MIN_CONNS" envDefault:"1"`
	PGPoolAsyncMaxConns int `env:"PG_POOL_ASYNC_MAX_CONNS" envDefault:"10"`
	PGPoolTimeoutSec    int `env:"PG_POOL_TIMEOUT_SEC" envDefault:"10"`
	PoolDrainSec        int `env:"POOL_DRAIN_SEC" envDefault:"30"`

	// Redis backs the secret-store credential mode. Single-flight token
	// acquisition is per process; it is not coordinated across replicas.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Catalog service (C5).
	EnableVectorAPI bool     `env:"ENABLE_VECTOR_API" envDefault:"true"`
	VectorSchemas   []string `env:"VECTOR_SCHEMAS" envSeparator:","`

	// Background refresher (C6).
	BackgroundRefreshIntervalSec int `env:"BACKGROUND_REFRESH_INTERVAL_SEC" envDefault:"2700"`

	// Health/readiness (C1/C7).
	MinTokenTTLSec       int  `env:"MIN_TOKEN_TTL_SEC" envDefault:"300"`
	ReadyzMinTokenTTLSec int  `env:"READYZ_MIN_TOKEN_TTL_SEC" envDefault:"60"`
	DatabaseRequired     bool `env:"DATABASE_REQUIRED" envDefault:"true"`

	// Migrations applied to the catalog/control-plane schema.
	MigrationsDir string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config from env: %w", err)
	}
	return cfg, nil
}

// ListenAddr returns the address the HTTP server should listen on.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CredentialSource selects managed-identity vs developer-CLI acquisition,
// per the deployment-mode switch in DevModeCredential.
func (c *Config) CredentialSource() string {
	if c.DevModeCredential {
		return "developer-cli"
	}
	return "managed-identity"
}

// VectorSchemaList returns the configured PostGIS schemas with blanks
// trimmed, preserving B3: an empty VectorSchemas config yields an empty
// catalog, not an error.
func (c *Config) VectorSchemaList() []string {
	out := make([]string, 0, len(c.VectorSchemas))
	for _, s := range c.VectorSchemas {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
