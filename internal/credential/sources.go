package credential

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// farFuture stands in for "no real expiry" when a credential mode is not
// actually token-based (static password, external secret store). Rotation
// logic becomes a no-op for these modes because the cached value never
// goes stale (spec §4.2).
var farFuture = time.Now().AddDate(50, 0, 0)

// OAuth2TokenSource adapts a golang.org/x/oauth2.TokenSource (managed
// identity via client-credentials, or any other OAuth2 flow) to the
// TokenSource interface used by Provider.
type OAuth2TokenSource struct {
	Underlying oauth2.TokenSource
}

// NewManagedIdentityTokenSource builds a client-credentials token source
// against an OIDC-discovered token endpoint. This models acquiring a
// platform-managed-identity token scoped to an audience without an
// embedded secret: in production the clientID/secret pair is itself
// injected by the platform's metadata endpoint, not held by this process.
func NewManagedIdentityTokenSource(ctx context.Context, tokenURL, clientID, clientSecret, audience string) TokenSource {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{audience},
	}
	return &OAuth2TokenSource{Underlying: cfg.TokenSource(ctx)}
}

func (s *OAuth2TokenSource) Token(ctx context.Context) (Token, error) {
	// The oauth2 call takes no context, so it runs in its own goroutine
	// and Token returns as soon as ctx is done.
	type result struct {
		tok *oauth2.Token
		err error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := s.Underlying.Token()
		ch <- result{t, err}
	}()
	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return Token{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, ctx.Err())
	}
	tok, err := r.tok, r.err
	if err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrIdentityUnavailable, err)
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: empty access token", ErrIdentityMalformedToken)
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = time.Now().Add(time.Hour)
	}
	return Token{Value: tok.AccessToken, ExpiresAt: expiry}, nil
}

// DevCLITokenSource shells out to a developer credential helper (the
// `credential_source = developer-cli` deployment mode), analogous to
// `az account get-access-token` / `gcloud auth print-access-token`. The
// command must print the bearer token on stdout; expiry is assumed to
// be one hour out since CLI helpers do not report it uniformly.
type DevCLITokenSource struct {
	Command []string
}

func (s *DevCLITokenSource) Token(ctx context.Context) (Token, error) {
	if len(s.Command) == 0 {
		return Token{}, fmt.Errorf("%w: no developer CLI command configured", ErrIdentityUnavailable)
	}
	cmd := exec.CommandContext(ctx, s.Command[0], s.Command[1:]...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return Token{}, fmt.Errorf("%w: developer CLI command failed: %v", ErrIdentityUnavailable, err)
	}
	value := strings.TrimSpace(out.String())
	if value == "" {
		return Token{}, fmt.Errorf("%w: developer CLI command returned no token", ErrIdentityMalformedToken)
	}
	return Token{Value: value, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

// StaticTokenSource serves one fixed value forever. Used for
// PGAuthMode=password (password read once from configuration) — the
// cache's rotation logic sees a token that never nears expiry.
type StaticTokenSource struct {
	Value string
}

func (s *StaticTokenSource) Token(ctx context.Context) (Token, error) {
	if s.Value == "" {
		return Token{}, fmt.Errorf("%w: static credential is empty", ErrIdentityMalformedToken)
	}
	return Token{Value: s.Value, ExpiresAt: farFuture}, nil
}
