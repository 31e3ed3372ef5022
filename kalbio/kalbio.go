// Package kalbio provides a client for the Kaleidoscope biology-data platform API.
// It handles OAuth2 client-credentials authentication, proactive token refresh,
// optional identity-proxy (IAP) bearer tokens, and exposes the request primitives
// shared by all domain services: GET, POST, PUT, DELETE, file upload, and file
// download.
package kalbio

import "time"

const (
	// ProdAPIURL is the production URL for the Kaleidoscope API. It is used as
	// the default base URL when none is configured.
	ProdAPIURL = "https://api.kaleidoscope.bio"

	// tokenEndpointPath is the path of the OAuth token endpoint, relative to the
	// API base URL. Both the client_credentials and refresh_token grants POST here.
	tokenEndpointPath = "/auth/oauth/token"

	// requestTimeout is the fixed timeout applied to every API request.
	requestTimeout = 10 * time.Second

	// authRefreshBuffer is subtracted from the server-declared token lifetime so
	// the access token is renewed well before it actually expires.
	authRefreshBuffer = 10 * time.Minute

	// proxyTokenReuseWindow is how long an identity-proxy token is reused before
	// a new one is requested. Provider tokens last about an hour; refreshing at
	// 50 minutes keeps a safety margin without tracking the exact lifetime.
	proxyTokenReuseWindow = 50 * time.Minute

	// downloadChunkSize is the buffer size used when streaming downloaded files
	// to disk.
	downloadChunkSize = 8192
)

const (
	// EnvClientID is the environment variable consulted for the API client ID
	// when none is passed explicitly.
	EnvClientID = "KALEIDOSCOPE_API_CLIENT_ID"

	// EnvClientSecret is the environment variable consulted for the API client
	// secret when none is passed explicitly.
	EnvClientSecret = "KALEIDOSCOPE_API_CLIENT_SECRET"
)

// validContentTypes lists the media types accepted for file downloads. A
// download whose response Content-Type is not in this list is discarded.
var validContentTypes = []string{
	"text/csv",
	"chemical/x-mdl-sdfile",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// validDownloadContentType reports whether mediaType is acceptable for a file
// download.
func validDownloadContentType(mediaType string) bool {
	for _, ct := range validContentTypes {
		if mediaType == ct {
			return true
		}
	}
	return false
}
