// Package util provides shared helpers for the Kaleidoscope client, currently
// the construction of outbound HTTP transports honoring proxy and TLS
// settings.
package util

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// TransportOptions controls how the outbound HTTP transport is built.
type TransportOptions struct {
	// ProxyURL is the URL of an optional proxy server for outbound requests.
	// SOCKS5, HTTP, and HTTPS proxies are supported.
	ProxyURL string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

// NewHTTPClient builds an HTTP client whose transport routes requests through
// the configured proxy, if any, and applies the TLS verification setting.
// An unparseable or unsupported proxy URL is logged and ignored.
func NewHTTPClient(opts TransportOptions) *http.Client {
	transport := &http.Transport{}

	if opts.ProxyURL != "" {
		proxyURL, errParse := url.Parse(opts.ProxyURL)
		if errParse != nil {
			log.Errorf("ignoring unparseable proxy url: %v", errParse)
		} else {
			switch proxyURL.Scheme {
			case "socks5":
				var proxyAuth *proxy.Auth
				if proxyURL.User != nil {
					username := proxyURL.User.Username()
					password, _ := proxyURL.User.Password()
					proxyAuth = &proxy.Auth{User: username, Password: password}
				}
				dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
				if errSOCKS5 != nil {
					log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
				} else {
					transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
						return dialer.Dial(network, addr)
					}
				}
			case "http", "https":
				transport.Proxy = http.ProxyURL(proxyURL)
			default:
				log.Errorf("ignoring proxy url with unsupported scheme %q", proxyURL.Scheme)
			}
		}
	}

	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{Transport: transport}
}
