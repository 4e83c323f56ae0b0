// Package relay forwards accepted submissions to a GitHub repository_dispatch
// endpoint with bounded exponential backoff.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
	"github.com/okian/scoreboard/pkg/tracing"
)

const (
	defaultAttempts       = 5
	defaultAttemptTimeout = 15 * time.Second
	defaultUnit           = time.Second
	maxBackoffUnits       = 10
	maxDetailBytes        = 512
)

// Config describes the dispatch target. The relay is disabled unless both
// Repo and Token are set.
type Config struct {
	APIBase        string
	Repo           string
	Token          string
	Event          string
	Attempts       int
	AttemptTimeout time.Duration
}

// Dispatcher posts repository_dispatch events.
type Dispatcher struct {
	cfg       Config
	client    *http.Client
	unit      time.Duration
	userAgent string
	log       logger.Logger
}

type dispatchBody struct {
	EventType     string        `json:"event_type"`
	ClientPayload clientPayload `json:"client_payload"`
}

type clientPayload struct {
	LineB64 string `json:"line_b64"`
}

// New creates a Dispatcher for cfg.
func New(cfg Config, opts ...Option) *Dispatcher {
	if cfg.Attempts < 1 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	cfg.Repo = strings.Trim(cfg.Repo, "/")

	d := &Dispatcher{
		cfg:       cfg,
		client:    &http.Client{},
		unit:      defaultUnit,
		userAgent: "scoreboard-relay/1.0",
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Named("relay")
	}
	return d
}

// Enabled reports whether dispatches are sent at all.
func (d *Dispatcher) Enabled() bool {
	return d.cfg.Repo != "" && d.cfg.Token != ""
}

// Endpoint is the dispatch URL.
func (d *Dispatcher) Endpoint() string {
	return d.cfg.APIBase + "/repos/" + d.cfg.Repo + "/dispatches"
}

// Dispatch sends encodedLine as client_payload.line_b64. It returns nil
// without doing anything when the relay is disabled.
//
// Network errors, 5xx and 429 are retried up to the configured attempts,
// waiting 1, 2, 4, 8, 10 units between them. Any other 4xx stops immediately.
// Each attempt is bounded by the attempt timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, encodedLine string) (err error) {
	if !d.Enabled() {
		return nil
	}

	start := time.Now()
	ctx, span := tracing.Start(ctx, "relay.dispatch", trace.WithAttributes(
		attribute.String("relay.repo", d.cfg.Repo),
		attribute.String("relay.event", d.cfg.Event),
	))
	defer func() {
		metrics.RecordRelayDuration(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.RecordRelayFailure()
		}
		tracing.End(span, err)
	}()

	endpoint := d.Endpoint()
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("%w: parse %q: %w", ErrRelay, endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %w: %q", ErrRelay, ErrUnsupportedScheme, u.Scheme)
	}

	body, err := json.Marshal(dispatchBody{
		EventType:     d.cfg.Event,
		ClientPayload: clientPayload{LineB64: encodedLine},
	})
	if err != nil {
		return fmt.Errorf("%w: encode body: %w", ErrRelay, err)
	}

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		span.AddEvent("attempt", trace.WithAttributes(attribute.Int("relay.attempt", attempt)))
		err := d.attempt(ctx, endpoint, body)
		switch {
		case err == nil:
			metrics.RecordRelayAttempt(metrics.OutcomeSuccess)
			return struct{}{}, nil
		case isPermanent(err):
			metrics.RecordRelayAttempt(metrics.OutcomePermanent)
			d.log.Error(ctx, "dispatch rejected",
				logger.Int("attempt", attempt), logger.Int("max_attempts", d.cfg.Attempts), logger.Error(err))
			return struct{}{}, backoff.Permanent(err)
		default:
			metrics.RecordRelayAttempt(metrics.OutcomeRetry)
			d.log.Error(ctx, "dispatch attempt failed",
				logger.Int("attempt", attempt), logger.Int("max_attempts", d.cfg.Attempts), logger.Error(err))
			return struct{}{}, err
		}
	}

	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     d.unit,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         maxBackoffUnits * d.unit,
		}),
		backoff.WithMaxTries(uint(d.cfg.Attempts)),
	)
	if err != nil {
		return fmt.Errorf("%w after %d attempt(s): %w", ErrRelay, attempt, err)
	}
	return nil
}

// statusError is a non-2xx response.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("status %d %s", e.code, http.StatusText(e.code))
	}
	return fmt.Sprintf("status %d %s: %s", e.code, http.StatusText(e.code), e.detail)
}

// isPermanent reports whether a failure must not be retried: any 4xx other
// than 429.
func isPermanent(err error) bool {
	var se *statusError
	if !errors.As(err, &se) {
		return false
	}
	return se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests
}

func (d *Dispatcher) attempt(ctx context.Context, endpoint string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "token "+d.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &statusError{code: resp.StatusCode, detail: strings.TrimSpace(string(detail))}
}
