// Package iap mints Google identity tokens for clients deployed behind
// Identity-Aware Proxy. Tokens are derived from a service-account key file,
// located through GOOGLE_APPLICATION_CREDENTIALS or an explicit path, and are
// scoped to the proxy's OAuth client ID as the audience.
package iap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoCredentials is returned when no service-account key file can be
// located. Callers treat this as a configuration problem rather than an
// authentication failure.
var ErrNoCredentials = errors.New("iap: no service account credentials found, set GOOGLE_APPLICATION_CREDENTIALS")

// Provider mints identity tokens from a Google service-account key. Token
// sources are cached per audience so repeated mints for the same proxy reuse
// the underlying source.
type Provider struct {
	credentialsFile string

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithCredentialsFile reads the service-account key from the given path
// instead of GOOGLE_APPLICATION_CREDENTIALS.
func WithCredentialsFile(path string) ProviderOption {
	return func(p *Provider) {
		p.credentialsFile = path
	}
}

// NewProvider creates an identity token provider. Credentials are resolved
// lazily on the first IDToken call, so constructing a Provider never fails.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{sources: make(map[string]oauth2.TokenSource)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IDToken returns an identity token for the given audience.
func (p *Provider) IDToken(ctx context.Context, audience string) (string, error) {
	source, err := p.tokenSource(ctx, audience)
	if err != nil {
		return "", err
	}

	token, err := source.Token()
	if err != nil {
		return "", fmt.Errorf("iap: failed to mint identity token: %w", err)
	}
	// With UseIDToken set, the source surfaces the id_token as the access token.
	return token.AccessToken, nil
}

// tokenSource returns the cached token source for the audience, building one
// from the service-account key on first use.
func (p *Provider) tokenSource(ctx context.Context, audience string) (oauth2.TokenSource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if source, ok := p.sources[audience]; ok {
		return source, nil
	}

	path := p.credentialsFile
	if path == "" {
		path = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if path == "" {
		return nil, ErrNoCredentials
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
	}

	config, err := google.JWTConfigFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("iap: invalid service account key: %w", err)
	}
	config.PrivateClaims = map[string]interface{}{"target_audience": audience}
	config.UseIDToken = true

	source := config.TokenSource(ctx)
	p.sources[audience] = source
	return source, nil
}
