package relay

import (
	"net/http"
	"time"

	"github.com/okian/scoreboard/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient replaces the HTTP client. Per-attempt timeouts are applied
// through the request context, not the client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.client = c
		}
	}
}

// WithBackoffUnit scales the retry schedule. The default unit of one second
// yields waits of 1s, 2s, 4s, 8s capped at 10s.
func WithBackoffUnit(unit time.Duration) Option {
	return func(d *Dispatcher) {
		if unit > 0 {
			d.unit = unit
		}
	}
}

// WithLogger sets the logger used for per-attempt failures.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Dispatcher) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}
