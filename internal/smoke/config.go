// Package smoke drives a running scoreboard service: it submits a batch of
// random runs concurrently and checks that the leaderboard it serves back is
// consistent with them.
package smoke

import (
	"runtime"
	"time"

	"github.com/okian/scoreboard/internal/domain/model"
)

// Config holds the smoke run settings.
type Config struct {
	BaseURL string        // service root, e.g. http://localhost:8080
	Secret  string        // sent as X-Scoreboard-Secret when set
	Runs    int           // number of entries to submit
	Workers int           // concurrent submitters
	Limit   int           // leaderboard size to fetch
	Timeout time.Duration // per-request timeout
}

// Defaults.
const (
	DefaultRuns    = 50
	DefaultLimit   = 100
	DefaultTimeout = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Runs < 1 {
		c.Runs = DefaultRuns
	}
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU() * 2
	}
	c.Workers = min(c.Workers, c.Runs)
	if c.Limit < 1 {
		c.Limit = DefaultLimit
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Report summarizes a smoke run.
type Report struct {
	Generated   int
	Accepted    int
	RateLimited int
	Failed      int
	// RelayFailed counts accepted submissions the service could not relay.
	RelayFailed int
	Served      int // leaderboard count reported by the service
	Duration    time.Duration
	TopLevels   []model.Entry
	FastestRuns []model.Entry
}
