// Package ratelimit implements a per-client sliding-window request log.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	defaultMaxRequests = 60
	defaultWindow      = 60 * time.Second
)

// Limiter admits at most maxRequests per window per key. Each key keeps the
// times of its admitted requests in ascending order.
type Limiter struct {
	mu          sync.Mutex
	windows     map[string][]time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// New creates a Limiter. Defaults are 60 requests per 60 seconds.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		windows:     make(map[string][]time.Time),
		maxRequests: defaultMaxRequests,
		window:      defaultWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for key and reports whether it is within the limit.
// Rejected requests are not recorded.
func (l *Limiter) Allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	times := prune(l.windows[key], now.Add(-l.window))
	if len(times) >= l.maxRequests {
		l.windows[key] = times
		return false
	}
	l.windows[key] = append(times, now)
	return true
}

// Cleanup forgets keys with no requests inside twice the window.
func (l *Limiter) Cleanup() int {
	cutoff := l.now().Add(-2 * l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, times := range l.windows {
		times = prune(times, cutoff)
		if len(times) == 0 {
			delete(l.windows, key)
			removed++
			continue
		}
		l.windows[key] = times
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done. onSweep, when non-nil,
// receives the number of keys still tracked after each sweep.
func (l *Limiter) Run(ctx context.Context, interval time.Duration, onSweep func(tracked int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
			if onSweep != nil {
				onSweep(l.Len())
			}
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// prune drops leading times before cutoff, reusing the backing array.
func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return times
	}
	return append(times[:0], times[i:]...)
}
