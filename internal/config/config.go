// Package config loads the YAML configuration used by the kalbio CLI. The
// SDK itself is configured through kalbio.Option values; this package only
// maps a config file onto those options plus CLI-level settings such as
// logging.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration, loaded from a YAML file.
type Config struct {
	// APIURL is the base URL of the Kaleidoscope API. Empty selects the
	// production URL.
	APIURL string `yaml:"api-url"`

	// ClientID is the API client ID. Empty defers to the
	// KALEIDOSCOPE_API_CLIENT_ID environment variable.
	ClientID string `yaml:"client-id"`

	// ClientSecret is the API client secret. Empty defers to the
	// KALEIDOSCOPE_API_CLIENT_SECRET environment variable.
	ClientSecret string `yaml:"client-secret"`

	// IAPClientID enables identity-proxy tokens for deployments behind
	// Google Cloud IAP. It is the OAuth client ID of the proxy.
	IAPClientID string `yaml:"iap-client-id"`

	// ProxyURL is the URL of an optional outbound proxy server.
	ProxyURL string `yaml:"proxy-url"`

	// SkipTLSVerify disables TLS certificate verification.
	SkipTLSVerify bool `yaml:"skip-tls-verify"`

	// ExtraHeaders are static headers merged into every request.
	ExtraHeaders map[string]string `yaml:"extra-headers"`

	// LogLevel sets the logrus level (debug|info|warn|error). Empty means info.
	LogLevel string `yaml:"log-level"`

	// LogFile enables rotating file output when set.
	LogFile string `yaml:"log-file"`
}

// Load reads and parses a YAML configuration file. A missing path yields an
// empty Config so the CLI can run on environment variables alone.
func Load(path string) (*Config, error) {
	if path == "" {
		return &Config{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}
