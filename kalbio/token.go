package kalbio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// tokenResponse is the OAuth token payload returned by the Kaleidoscope auth
// endpoint for both grant types.
type tokenResponse struct {
	// AccessToken is the bearer token used for authenticated API calls.
	AccessToken string `json:"access_token"`
	// RefreshToken obtains a new access token when the current one expires.
	// It may rotate on every response and always replaces the stored one.
	RefreshToken string `json:"refresh_token"`
	// ExpiresIn is the lifetime of the access token in seconds.
	ExpiresIn int `json:"expires_in"`
}

// ensureAccessToken returns an access token inside its refresh window,
// performing a client-credentials grant or a refresh grant when needed.
// Concurrent callers observing an expired token share a single grant.
func (c *Client) ensureAccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	token := c.accessToken
	fresh := c.tokenFresh()
	c.mu.RUnlock()
	if fresh {
		return token, nil
	}

	v, err, _ := c.refreshGroup.Do("auth", func() (any, error) {
		c.mu.RLock()
		token := c.accessToken
		fresh := c.tokenFresh()
		refreshToken := c.refreshToken
		c.mu.RUnlock()
		if fresh {
			return token, nil
		}

		if err := c.refreshAuthToken(ctx, refreshToken); err != nil {
			return "", err
		}

		c.mu.RLock()
		token = c.accessToken
		c.mu.RUnlock()
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// tokenFresh reports whether the stored access token is still inside its
// refresh window. Callers must hold at least a read lock.
func (c *Client) tokenFresh() bool {
	return !c.refreshBefore.IsZero() && c.now().Before(c.refreshBefore)
}

// refreshAuthToken renews the access token. With a refresh token on hand it
// performs a refresh grant; otherwise it falls back to the full
// client-credentials grant. On failure the previous token state is left
// untouched.
func (c *Client) refreshAuthToken(ctx context.Context, refreshToken string) error {
	form := url.Values{}
	if refreshToken == "" {
		form.Set("grant_type", "client_credentials")
		form.Set("client_id", c.clientID)
		form.Set("client_secret", c.clientSecret)
	} else {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refreshToken)
	}

	resp, err := c.tokenGrant(ctx, form)
	if err != nil {
		return err
	}
	c.updateAuthTokens(resp)
	return nil
}

// tokenGrant POSTs a form-encoded grant to the auth endpoint and parses the
// token payload. Identity-proxy and static extra headers accompany the grant
// just like every other request.
func (c *Client) tokenGrant(ctx context.Context, form url.Values) (*tokenResponse, error) {
	proxyToken, err := c.ensureProxyToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+tokenEndpointPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("kalbio: failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if proxyToken != "" {
		req.Header.Set("Authorization", "Bearer "+proxyToken)
	}
	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("kalbio: token request failed: %w", err)
	}
	defer func() {
		_ = httpResp.Body.Close()
	}()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("kalbio: failed to read token response: %w", err)
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		return nil, &AuthError{
			ClientID:   c.clientID,
			StatusCode: httpResp.StatusCode,
			Body:       body,
		}
	}

	result := newResult(body)
	if !result.Exists() {
		return nil, fmt.Errorf("kalbio: token endpoint returned an undecodable body: %q", body)
	}
	var resp tokenResponse
	if err := result.Decode(&resp); err != nil {
		return nil, fmt.Errorf("kalbio: failed to decode token response: %w", err)
	}
	return &resp, nil
}

// updateAuthTokens stores a fresh token pair and computes the next refresh
// deadline from the server-declared lifetime minus the safety buffer.
func (c *Client) updateAuthTokens(resp *tokenResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = resp.AccessToken
	c.refreshToken = resp.RefreshToken
	c.refreshBefore = c.now().Add(time.Duration(resp.ExpiresIn)*time.Second - authRefreshBuffer)
}
