package forwarder

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

	"github.com/okian/scoreboard/pkg/logger"
)

const (
	// SecretHeader carries the shared webhook secret.
	SecretHeader = "X-Scoreboard-Secret"

	defaultAttempts   = 3
	defaultUnit       = time.Second
	maxBackoffUnits   = 8
	attemptTimeout    = 20 * time.Second
	maxResponseDetail = 1024
)

// Forwarder posts lines to the scoreboard webhook.
type Forwarder struct {
	endpoint string
	secret   string
	client   *http.Client
	attempts int
	unit     time.Duration
	log      logger.Logger
}

// New validates the webhook URL in cfg and returns a Forwarder for it.
func New(cfg Config, opts ...Option) (*Forwarder, error) {
	if cfg.WebhookURL == "" {
		return nil, ErrNoWebhook
	}
	u, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %w", ErrForward, cfg.WebhookURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	f := &Forwarder{
		endpoint: cfg.WebhookURL,
		secret:   cfg.WebhookSecret,
		client:   &http.Client{},
		attempts: defaultAttempts,
		unit:     defaultUnit,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Named("forwarder")
	}
	return f, nil
}

// Forward posts {"line": line} to the webhook. Network errors and 5xx are
// retried. Any 4xx stops immediately.
func (f *Forwarder) Forward(ctx context.Context, line string) error {
	body, err := json.Marshal(map[string]string{"line": line})
	if err != nil {
		return fmt.Errorf("%w: encode body: %w", ErrForward, err)
	}

	attempt := 0
	op := func() (int, error) {
		attempt++
		status, detail, err := f.post(ctx, body)
		switch {
		case err != nil:
			f.log.Warn(ctx, "failed to reach webhook", logger.Int("attempt", attempt), logger.Error(err))
			return 0, err
		case status >= 200 && status < 400:
			f.log.Info(ctx, "webhook responded", logger.Int("status", status), logger.String("body", detail))
			return status, nil
		}

		err = fmt.Errorf("webhook returned %d %s: %s", status, http.StatusText(status), detail)
		f.log.Warn(ctx, "webhook rejected entry", logger.Int("attempt", attempt), logger.Error(err))
		if status >= 400 && status < 500 {
			return status, backoff.Permanent(err)
		}
		return status, err
	}

	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     f.unit,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         maxBackoffUnits * f.unit,
		}),
		backoff.WithMaxTries(uint(f.attempts)),
	)
	if err != nil {
		return fmt.Errorf("%w after %d attempt(s): %w", ErrForward, attempt, err)
	}
	return nil
}

func (f *Forwarder) post(ctx context.Context, body []byte) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if f.secret != "" {
		req.Header.Set(SecretHeader, f.secret)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer func() { _ = resp.Body.Close() }()

	detail, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseDetail))
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, "", err
	}
	return resp.StatusCode, strings.TrimSpace(string(detail)), nil
}
