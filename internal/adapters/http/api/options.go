package api

import (
	"time"

	"github.com/okian/scoreboard/internal/domain/auth"
	"github.com/okian/scoreboard/pkg/logger"
)

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAuthPolicy sets the policy applied to POST /scoreboard.
func WithAuthPolicy(p auth.Policy) Option {
	return func(s *Server) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithPageRenderer enables the HTML leaderboard at "/".
func WithPageRenderer(r PageRenderer) Option {
	return func(s *Server) {
		if r != nil {
			s.page = r
		}
	}
}

// WithLimits sets the default list size and the cap applied to ?limit.
func WithLimits(def, maxLimit int) Option {
	return func(s *Server) {
		if maxLimit > 0 {
			s.maxLimit = maxLimit
		}
		if def > 0 {
			s.limit = def
		}
	}
}

// WithTrustProxyHeaders keys the rate limiter on Fly-Client-IP or
// X-Forwarded-For instead of the socket peer.
func WithTrustProxyHeaders(trust bool) Option {
	return func(s *Server) {
		s.trustProxy = trust
	}
}

// WithClock sets the clock used to expand since keywords.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
