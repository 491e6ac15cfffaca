package credential

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/redis/go-redis/v9"

	"github.com/cogserve/cogserve/internal/config"
)

// NewStorageProvider builds the C2 storage-scope provider from
// configuration, selecting managed-identity or developer-CLI acquisition
// per cfg.DevModeCredential (spec §4.2 "credential_source" switch).
func NewStorageProvider(ctx context.Context, cfg *config.Config, cache *Cache, logger *slog.Logger) (*Provider, error) {
	var source TokenSource
	switch {
	case cfg.DevModeCredential:
		source = &DevCLITokenSource{Command: []string{"az", "account", "get-access-token", "--resource", cfg.StorageAudience, "--query", "accessToken", "-o", "tsv"}}
	case cfg.IdentityIssuerURL != "":
		tokenURL, err := discoverTokenURL(ctx, cfg.IdentityIssuerURL)
		if err != nil {
			return nil, fmt.Errorf("discovering identity provider for storage credential: %w", err)
		}
		source = NewManagedIdentityTokenSource(ctx, tokenURL, cfg.IdentityClientID, cfg.IdentityClientSecret, cfg.StorageAudience)
	default:
		return nil, fmt.Errorf("%w: storage auth enabled but no identity issuer or dev-mode credential configured", ErrIdentityUnavailable)
	}

	timeout := time.Duration(cfg.IdentityTimeoutSec) * time.Second
	return NewProvider(ScopeStorage, cache, source, timeout, logger), nil
}

// NewDatabaseProvider builds the C2 database-scope provider. The
// returned bool reports whether the mode is managed-identity: only in
// that mode does the background refresher (C6) rotate pools.
func NewDatabaseProvider(ctx context.Context, cfg *config.Config, cache *Cache, redisClient *redis.Client, logger *slog.Logger) (provider *Provider, managedIdentity bool, err error) {
	timeout := time.Duration(cfg.IdentityTimeoutSec) * time.Second

	switch cfg.PGAuthMode {
	case "managed_identity":
		var source TokenSource
		if cfg.DevModeCredential {
			source = &DevCLITokenSource{Command: []string{"az", "account", "get-access-token", "--resource", cfg.PGAudience, "--query", "accessToken", "-o", "tsv"}}
		} else {
			if cfg.IdentityIssuerURL == "" {
				return nil, false, fmt.Errorf("%w: pg_auth_mode=managed_identity requires an identity issuer", ErrIdentityUnavailable)
			}
			tokenURL, derr := discoverTokenURL(ctx, cfg.IdentityIssuerURL)
			if derr != nil {
				return nil, false, fmt.Errorf("discovering identity provider for database credential: %w", derr)
			}
			source = NewManagedIdentityTokenSource(ctx, tokenURL, cfg.IdentityClientID, cfg.IdentityClientSecret, cfg.PGAudience)
		}
		return NewProvider(ScopeDatabase, cache, source, timeout, logger), true, nil

	case "secret_store":
		if redisClient == nil {
			return nil, false, fmt.Errorf("%w: pg_auth_mode=secret_store requires a secret store backend", ErrIdentityUnavailable)
		}
		source := &SecretStoreTokenSource{
			Store: &RedisSecretStore{Client: redisClient},
			Vault: cfg.SecretStoreName,
			Name:  cfg.SecretStoreKey,
		}
		return NewProvider(ScopeDatabase, cache, source, timeout, logger), false, nil

	case "password", "":
		source := &StaticTokenSource{Value: cfg.PGPassword}
		return NewProvider(ScopeDatabase, cache, source, timeout, logger), false, nil

	default:
		return nil, false, fmt.Errorf("%w: unknown pg_auth_mode %q", ErrIdentityMalformedToken, cfg.PGAuthMode)
	}
}

// discoverTokenURL performs OIDC discovery against the issuer and
// returns its token endpoint, reusing the same discovery mechanism the
// auth layer would use to verify inbound tokens, but here to obtain an
// outbound client-credentials token.
func discoverTokenURL(ctx context.Context, issuerURL string) (string, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	var claims struct {
		TokenEndpoint string `json:"token_endpoint"`
	}
	if err := provider.Claims(&claims); err != nil {
		return "", fmt.Errorf("%w: reading discovery document: %v", ErrIdentityUnavailable, err)
	}
	if claims.TokenEndpoint == "" {
		return "", fmt.Errorf("%w: discovery document has no token_endpoint", ErrIdentityMalformedToken)
	}
	return claims.TokenEndpoint, nil
}
