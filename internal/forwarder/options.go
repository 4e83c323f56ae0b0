package forwarder

import (
	"net/http"
	"time"

	"github.com/okian/scoreboard/pkg/logger"
)

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Forwarder) {
		if c != nil {
			f.client = c
		}
	}
}

// WithBackoffUnit scales the retry schedule. The default of one second waits
// 1s then 2s, capped at 8s.
func WithBackoffUnit(unit time.Duration) Option {
	return func(f *Forwarder) {
		if unit > 0 {
			f.unit = unit
		}
	}
}

// WithAttempts sets the number of delivery attempts.
func WithAttempts(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Forwarder) {
		if l != nil {
			f.log = l
		}
	}
}
