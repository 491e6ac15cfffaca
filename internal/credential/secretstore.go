package credential

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SecretStore reads a long-lived credential from an external secret
// store. In production this would be a cloud secret manager; here it is
// modeled as a Redis hash, which the rest of the pack already uses for
// cross-process coordination, so it needs no new infrastructure
// dependency to exercise the PGAuthMode=secret_store path end to end.
type SecretStore interface {
	GetSecret(ctx context.Context, vault, name string) (string, error)
}

// RedisSecretStore implements SecretStore over a Redis hash keyed by
// vault name, with secret names as hash fields.
type RedisSecretStore struct {
	Client *redis.Client
}

func (s *RedisSecretStore) GetSecret(ctx context.Context, vault, name string) (string, error) {
	val, err := s.Client.HGet(ctx, "secret_store:"+vault, name).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("%w: secret %s/%s not found", ErrIdentityUnavailable, vault, name)
		}
		return "", fmt.Errorf("%w: reading secret %s/%s: %v", ErrIdentityUnavailable, vault, name, err)
	}
	return val, nil
}

// SecretStoreTokenSource wraps a SecretStore lookup as a TokenSource
// with a sentinel far-future expiry (spec §4.2 mode 2): the "token" is
// actually a long-lived password, cached indefinitely.
type SecretStoreTokenSource struct {
	Store SecretStore
	Vault string
	Name  string
}

func (s *SecretStoreTokenSource) Token(ctx context.Context) (Token, error) {
	val, err := s.Store.GetSecret(ctx, s.Vault, s.Name)
	if err != nil {
		return Token{}, err
	}
	if val == "" {
		return Token{}, fmt.Errorf("%w: secret %s/%s is empty", ErrIdentityMalformedToken, s.Vault, s.Name)
	}
	return Token{Value: val, ExpiresAt: farFuture}, nil
}
