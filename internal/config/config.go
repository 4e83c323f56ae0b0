// Package config defines the scoreboard service configuration and how it is loaded.
//
// Conventions:
// - New returns a Config populated with defaults.
// - Load layers an optional YAML file and SCOREBOARD_* environment variables on top.
// - A loaded Config is treated as immutable and passed explicitly to constructors.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Relay modes.
const (
	RelayModeSync  = "sync"
	RelayModeAsync = "async"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format"`

	// Host and Port form the HTTP listen address.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// Secret is the shared secret expected in X-Scoreboard-Secret. Empty disables auth.
	Secret string `koanf:"secret"`

	// DBPath is the SQLite database file.
	DBPath string `koanf:"db_path"`

	// Repo ("owner/name") and GitHubToken enable the dispatch relay when both are set.
	Repo        string `koanf:"repo"`
	GitHubToken string `koanf:"github_token"`
	// Event is the repository_dispatch event type.
	Event string `koanf:"event"`
	// APIBase is the GitHub API root, without trailing slash.
	APIBase string `koanf:"api_base"`

	// LeaderboardLimit is the default size of each leaderboard list.
	LeaderboardLimit int `koanf:"leaderboard_limit"`
	// MaxLeaderboardLimit caps the limit query parameter.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// RateLimitRequests per RateLimitWindowSeconds per client.
	RateLimitRequests      int `koanf:"rate_limit_requests"`
	RateLimitWindowSeconds int `koanf:"rate_limit_window"`
	// RateLimitSweepSeconds is the idle-client sweep period.
	RateLimitSweepSeconds int `koanf:"rate_limit_sweep"`
	// TrustProxyHeaders keys the limiter on Fly-Client-IP / X-Forwarded-For.
	TrustProxyHeaders bool `koanf:"trust_proxy_headers"`

	// RelayRequired makes missing relay credentials a startup error.
	RelayRequired bool `koanf:"relay_required"`
	// RelayMode is sync (dispatch inside the request) or async (queue + workers).
	RelayMode string `koanf:"relay_mode"`
	// RelayAttempts bounds dispatch attempts per submission.
	RelayAttempts int `koanf:"relay_attempts"`
	// RelayTimeoutMS bounds a single dispatch attempt.
	RelayTimeoutMS int `koanf:"relay_timeout_ms"`
	// RelayQueueSize and RelayWorkers size the async relay.
	RelayQueueSize int `koanf:"relay_queue_size"`
	RelayWorkers   int `koanf:"relay_workers"`

	// OTelEndpoint enables OTLP/HTTP tracing when set.
	OTelEndpoint string `koanf:"otel_endpoint"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Host:                   "0.0.0.0",
		Port:                   8080,
		DBPath:                 "/data/scoreboard.db",
		Event:                  "scoreboard-entry",
		APIBase:                "https://api.github.com",
		LeaderboardLimit:       10,
		MaxLeaderboardLimit:    100,
		RateLimitRequests:      60,
		RateLimitWindowSeconds: 60,
		RateLimitSweepSeconds:  300,
		RelayMode:              RelayModeSync,
		RelayAttempts:          5,
		RelayTimeoutMS:         15_000,
		RelayQueueSize:         1024,
		RelayWorkers:           2,
	}
}

// Addr is the listen address, e.g. "0.0.0.0:8080".
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RelayEnabled reports whether both relay credentials are present.
func (c *Config) RelayEnabled() bool {
	return c.Repo != "" && c.GitHubToken != ""
}

// RateWindow is the limiter window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// RateSweepInterval is the limiter sweep period as a duration.
func (c *Config) RateSweepInterval() time.Duration {
	return time.Duration(c.RateLimitSweepSeconds) * time.Second
}

// RelayTimeout is the per-attempt dispatch timeout.
func (c *Config) RelayTimeout() time.Duration {
	return time.Duration(c.RelayTimeoutMS) * time.Millisecond
}

// Validate normalizes derived values and checks invariants.
func (c *Config) Validate() error {
	d := New()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Event == "" {
		c.Event = d.Event
	}
	if c.APIBase == "" {
		c.APIBase = d.APIBase
	}
	c.APIBase = strings.TrimRight(c.APIBase, "/")
	c.Repo = strings.Trim(c.Repo, "/")
	c.RelayMode = strings.ToLower(c.RelayMode)

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path must not be empty", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit < 1 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	c.LeaderboardLimit = min(max(c.LeaderboardLimit, 1), c.MaxLeaderboardLimit)

	if c.RateLimitRequests < 1 || c.RateLimitWindowSeconds < 1 || c.RateLimitSweepSeconds < 1 {
		return fmt.Errorf("%w: rate limit settings must be positive", ErrInvalidConfig)
	}

	switch c.RelayMode {
	case RelayModeSync, RelayModeAsync:
	default:
		return fmt.Errorf("%w: relay_mode %q (want sync or async)", ErrInvalidConfig, c.RelayMode)
	}
	if c.RelayAttempts < 1 || c.RelayTimeoutMS < 1 {
		return fmt.Errorf("%w: relay attempts and timeout must be positive", ErrInvalidConfig)
	}
	if c.RelayMode == RelayModeAsync && (c.RelayQueueSize < 1 || c.RelayWorkers < 1) {
		return fmt.Errorf("%w: async relay needs a positive queue size and worker count", ErrInvalidConfig)
	}
	if c.RelayRequired && !c.RelayEnabled() {
		return fmt.Errorf("%w: relay_required is set but repo or github_token is missing", ErrInvalidConfig)
	}
	return nil
}
