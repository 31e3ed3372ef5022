package kalbio

import (
	"context"
	"errors"
	"fmt"

	"github.com/kaleidoscope-bio/kalbio-go/iap"
)

// IdentityTokenProvider mints bearer tokens for an access proxy sitting in
// front of the platform. The token lifecycle is independent of the primary
// auth token: the client reuses each token for a fixed window and asks the
// provider for a fresh one afterwards.
type IdentityTokenProvider interface {
	// IDToken returns a bearer token accepted by the proxy for the given
	// audience (the proxy's OAuth client ID).
	IDToken(ctx context.Context, audience string) (string, error)
}

// defaultIdentityProvider returns the provider used when an identity-proxy
// audience is configured but no provider was injected.
func defaultIdentityProvider() IdentityTokenProvider {
	return iap.NewProvider()
}

// ensureProxyToken returns a proxy token inside its reuse window, asking the
// provider for a new one when the window has lapsed. It returns "" without
// error when no identity proxy is configured.
func (c *Client) ensureProxyToken(ctx context.Context) (string, error) {
	if c.proxyAudience == "" {
		return "", nil
	}

	c.mu.RLock()
	token := c.proxyToken
	fresh := !c.proxyRefreshBefore.IsZero() && c.now().Before(c.proxyRefreshBefore)
	c.mu.RUnlock()
	if fresh {
		return token, nil
	}

	v, err, _ := c.refreshGroup.Do("identity-proxy", func() (any, error) {
		c.mu.RLock()
		token := c.proxyToken
		fresh := !c.proxyRefreshBefore.IsZero() && c.now().Before(c.proxyRefreshBefore)
		c.mu.RUnlock()
		if fresh {
			return token, nil
		}

		minted, err := c.identity.IDToken(ctx, c.proxyAudience)
		if err != nil {
			if errors.Is(err, iap.ErrNoCredentials) {
				return "", &ConfigError{Message: "identity-proxy token support is unavailable", Cause: err}
			}
			return "", fmt.Errorf("kalbio: failed to obtain identity-proxy token: %w", err)
		}

		c.mu.Lock()
		c.proxyToken = minted
		c.proxyRefreshBefore = c.now().Add(proxyTokenReuseWindow)
		c.mu.Unlock()

		return minted, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
