// Package remote is an HTTP client for a running jclserver.
package remote

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout     time.Duration
	maxRetries  int // total attempts (1 = no retry)
	retryDelay  time.Duration
	maxResponse int64
	httpClient  *http.Client
	logger      *slog.Logger
}

func defaultConfig() clientConfig {
	return clientConfig{
		timeout:     60 * time.Second,
		maxRetries:  3,
		retryDelay:  500 * time.Millisecond,
		maxResponse: 8 << 20, // 8MB
	}
}

// WithTimeout bounds one call including retries. Default: 60s.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) { c.timeout = d }
}

// WithMaxRetries sets the total number of attempts per call.
// 1 means no retry. Default: 3.
func WithMaxRetries(n int) Option {
	return func(c *clientConfig) {
		if n < 1 {
			n = 1
		}
		c.maxRetries = n
	}
}

// WithRetryDelay sets the delay before the first retry. Each later retry
// doubles it. Default: 500ms.
func WithRetryDelay(d time.Duration) Option {
	return func(c *clientConfig) { c.retryDelay = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithLogger sets the structured logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) { c.logger = l }
}
