package kalbio

import (
	"errors"
	"fmt"
)

// ConfigError represents a fatal configuration problem detected before any
// request is made, such as missing credentials or a requested identity-proxy
// integration that is not available.
type ConfigError struct {
	// Message describes what is missing or misconfigured.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns a string representation of the configuration error.
func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("kalbio: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("kalbio: %s", e.Message)
}

// Unwrap returns the underlying cause of the configuration error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	var configError *ConfigError
	return errors.As(err, &configError)
}

// AuthError represents a failed token fetch or refresh against the auth
// endpoint. It carries the client ID and the raw response body so failed
// grants can be diagnosed without re-running the request.
type AuthError struct {
	// ClientID is the API client ID the grant was attempted with.
	ClientID string
	// StatusCode is the HTTP status returned by the auth endpoint.
	StatusCode int
	// Body is the raw response body returned by the auth endpoint.
	Body []byte
}

// Error returns a string representation of the auth error.
func (e *AuthError) Error() string {
	return fmt.Sprintf("kalbio: could not authenticate client_id %s: status %d: %s", e.ClientID, e.StatusCode, e.Body)
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	var authError *AuthError
	return errors.As(err, &authError)
}
