package service

import (
	"github.com/okian/scoreboard/internal/adapters/repository"
	"github.com/okian/scoreboard/internal/domain/normalize"
	"github.com/okian/scoreboard/internal/domain/ratelimit"
	"github.com/okian/scoreboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore uses s instead of opening the configured SQLite file.
func WithStore(s repository.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithDispatcher replaces the GitHub relay.
func WithDispatcher(d Dispatcher) Option {
	return func(svc *Service) {
		if d != nil {
			svc.relay = d
		}
	}
}

// WithNormalizer replaces the entry normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(svc *Service) {
		if n != nil {
			svc.normalizer = n
		}
	}
}

// WithLimiter replaces the per-client rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(svc *Service) {
		if l != nil {
			svc.limiter = l
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}
