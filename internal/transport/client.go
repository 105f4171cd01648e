// Package transport builds outbound HTTP clients bound to a selected
// proxy. The rotation manager never issues network calls itself; this
// package is the consumer side of a Selection, applying its URI as
// the client's proxy for both http and https traffic and its advisory
// timeout to the connection.
package transport

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/vyrodovalexey/avproxypool/internal/rotation"
)

// FactoryConfig contains connection pool configuration shared by all
// clients the factory builds.
type FactoryConfig struct {
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	MaxConnsPerHost       int
	IdleConnTimeout       time.Duration
	ResponseHeaderTimeout time.Duration
	ExpectContinueTimeout time.Duration
	DisableKeepAlives     bool
	DisableCompression    bool
}

// DefaultFactoryConfig returns default factory configuration.
func DefaultFactoryConfig() FactoryConfig {
	return FactoryConfig{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       100,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Factory builds HTTP clients whose transport is pinned to a selected
// proxy.
type Factory struct {
	config FactoryConfig
}

// NewFactory creates a new client factory.
func NewFactory(config FactoryConfig) *Factory {
	return &Factory{config: config}
}

// Client returns an HTTP client that routes every request through the
// selection's proxy URI. The selection's advisory timeout bounds both
// dialing and the overall request.
func (f *Factory) Client(sel rotation.Selection) (*http.Client, error) {
	proxyURL, err := url.Parse(sel.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URI %q: %w", sel.URI, err)
	}

	timeout := sel.Timeout
	if timeout <= 0 {
		timeout = rotation.DefaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyURL(proxyURL),
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          f.config.MaxIdleConns,
		MaxIdleConnsPerHost:   f.config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       f.config.MaxConnsPerHost,
		IdleConnTimeout:       f.config.IdleConnTimeout,
		ResponseHeaderTimeout: f.config.ResponseHeaderTimeout,
		ExpectContinueTimeout: f.config.ExpectContinueTimeout,
		DisableKeepAlives:     f.config.DisableKeepAlives,
		DisableCompression:    f.config.DisableCompression,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}
