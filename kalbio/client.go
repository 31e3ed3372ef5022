package kalbio

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kaleidoscope-bio/kalbio-go/internal/util"
)

// Client is a credential-managing facade over the Kaleidoscope API. It owns
// the OAuth token lifecycle and exposes the request primitives every domain
// service is built on. A Client is safe for concurrent use; token refreshes
// are deduplicated so concurrent callers observing an expired token trigger
// at most one grant.
type Client struct {
	clientID     string
	clientSecret string
	apiURL       string
	extraHeaders map[string]string

	proxyAudience string
	identity      IdentityTokenProvider

	httpClient *http.Client

	mu           sync.RWMutex
	refreshGroup singleflight.Group

	accessToken   string
	refreshToken  string
	refreshBefore time.Time

	proxyToken         string
	proxyRefreshBefore time.Time

	// now is replaceable in tests to pin refresh deadlines.
	now func() time.Time

	// Activities manages activities.
	Activities *ActivitiesService
	// Programs manages programs.
	Programs *ProgramsService
	// Records manages records.
	Records *RecordsService
	// Imports imports data into Kaleidoscope.
	Imports *ImportsService
	// Exports exports data from Kaleidoscope.
	Exports *ExportsService
}

// Option configures a Client during construction.
type Option func(*options)

type options struct {
	clientID      string
	clientSecret  string
	apiURL        string
	extraHeaders  map[string]string
	proxyAudience string
	identity      IdentityTokenProvider
	proxyURL      string
	skipTLSVerify bool
	httpClient    *http.Client
}

// WithCredentials sets the API client ID and secret explicitly instead of
// reading them from the environment.
func WithCredentials(clientID, clientSecret string) Option {
	return func(o *options) {
		o.clientID = clientID
		o.clientSecret = clientSecret
	}
}

// WithBaseURL overrides the production API URL, e.g. to target a staging
// deployment.
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.apiURL = url
	}
}

// WithExtraHeaders sets static headers merged into every request. They are
// applied last and therefore take precedence over anything the client sets
// itself.
func WithExtraHeaders(headers map[string]string) Option {
	return func(o *options) {
		o.extraHeaders = headers
	}
}

// WithIdentityProxy enables the identity-proxy token layer for deployments
// behind an access proxy such as Google Cloud IAP. The audience is the OAuth
// client ID of the proxy. Tokens are minted by the configured
// IdentityTokenProvider, defaulting to the Google service-account provider.
func WithIdentityProxy(audience string) Option {
	return func(o *options) {
		o.proxyAudience = audience
	}
}

// WithIdentityTokenProvider overrides the provider used to mint
// identity-proxy tokens.
func WithIdentityTokenProvider(p IdentityTokenProvider) Option {
	return func(o *options) {
		o.identity = p
	}
}

// WithProxyURL routes outbound requests through the given SOCKS5, HTTP, or
// HTTPS proxy.
func WithProxyURL(url string) Option {
	return func(o *options) {
		o.proxyURL = url
	}
}

// WithInsecureSkipVerify disables TLS certificate verification. Intended for
// development deployments with self-signed certificates.
func WithInsecureSkipVerify() Option {
	return func(o *options) {
		o.skipTLSVerify = true
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely. The fixed
// request timeout is still applied when the given client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// New constructs a Client. The client ID and secret are taken from the
// options or, when absent, from the KALEIDOSCOPE_API_CLIENT_ID and
// KALEIDOSCOPE_API_CLIENT_SECRET environment variables. Missing either is a
// fatal configuration error; no network call is made before both resolve.
func New(opts ...Option) (*Client, error) {
	o := &options{apiURL: ProdAPIURL}
	for _, opt := range opts {
		opt(o)
	}

	clientID := o.clientID
	if clientID == "" {
		clientID = os.Getenv(EnvClientID)
	}
	if clientID == "" {
		return nil, &ConfigError{Message: fmt.Sprintf("no client_id provided and %q was not found in the environment", EnvClientID)}
	}

	clientSecret := o.clientSecret
	if clientSecret == "" {
		clientSecret = os.Getenv(EnvClientSecret)
	}
	if clientSecret == "" {
		return nil, &ConfigError{Message: fmt.Sprintf("no client_secret provided and %q was not found in the environment", EnvClientSecret)}
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = util.NewHTTPClient(util.TransportOptions{
			ProxyURL:           o.proxyURL,
			InsecureSkipVerify: o.skipTLSVerify,
		})
	}
	if httpClient.Timeout == 0 {
		httpClient.Timeout = requestTimeout
	}

	identity := o.identity
	if o.proxyAudience != "" && identity == nil {
		identity = defaultIdentityProvider()
	}

	c := &Client{
		clientID:      clientID,
		clientSecret:  clientSecret,
		apiURL:        o.apiURL,
		extraHeaders:  o.extraHeaders,
		proxyAudience: o.proxyAudience,
		identity:      identity,
		httpClient:    httpClient,
		now:           time.Now,
	}

	c.Activities = &ActivitiesService{client: c}
	c.Programs = &ProgramsService{client: c}
	c.Records = &RecordsService{client: c}
	c.Imports = &ImportsService{client: c}
	c.Exports = &ExportsService{client: c}

	return c, nil
}

// BaseURL returns the API base URL the client was configured with.
func (c *Client) BaseURL() string {
	return c.apiURL
}
