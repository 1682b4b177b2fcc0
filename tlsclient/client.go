// Package tlsclient builds HTTP sessions with a real-browser TLS
// fingerprint for the registry APIs that sit behind bot detection.
package tlsclient

import (
	tls_client "github.com/bogdanfinn/tls-client"
	tls_client_profiles "github.com/bogdanfinn/tls-client/profiles"
)

// SessionFactory creates a fresh HTTP session with an isolated cookie
// jar. Adapters call it once per lookup; sessions are never shared.
type SessionFactory func() (tls_client.HttpClient, error)

// Client is a factory for Chrome-fingerprinted HTTP sessions.
type Client struct {
	timeoutSeconds int
}

// New creates a session factory with the given per-request timeout.
func New(timeoutSeconds int) *Client {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 90
	}
	return &Client{timeoutSeconds: timeoutSeconds}
}

// NewSession creates a fresh client with an isolated cookie jar and a
// Chrome_124 fingerprint.
func (c *Client) NewSession() (tls_client.HttpClient, error) {
	jar := tls_client.NewCookieJar()
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(c.timeoutSeconds),
		tls_client.WithClientProfile(tls_client_profiles.Chrome_124),
		tls_client.WithCookieJar(jar),
	}
	return tls_client.NewHttpClient(nil, options...)
}
