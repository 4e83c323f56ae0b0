// Package service composes the scoreboard components behind the operations the
// HTTP API needs: rate limiting, submission ingestion and leaderboard reads.
package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/okian/scoreboard/internal/adapters/mq/queue"
	"github.com/okian/scoreboard/internal/adapters/mq/worker"
	"github.com/okian/scoreboard/internal/adapters/relay"
	"github.com/okian/scoreboard/internal/adapters/repository"
	"github.com/okian/scoreboard/internal/config"
	"github.com/okian/scoreboard/internal/domain/normalize"
	"github.com/okian/scoreboard/internal/domain/ratelimit"
	"github.com/okian/scoreboard/internal/domain/types"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
	"github.com/okian/scoreboard/pkg/tracing"
)

// Dispatcher relays an accepted submission line.
type Dispatcher interface {
	Dispatch(ctx context.Context, encodedLine string) error
	Enabled() bool
}

// Service implements the API dependencies for the scoreboard.
type Service struct {
	mu sync.RWMutex

	cfg        *config.Config
	store      repository.Store
	normalizer *normalize.Normalizer
	limiter    *ratelimit.Limiter
	relay      Dispatcher

	// Async relay only.
	queue *queue.InMemoryQueue
	pool  *worker.Pool

	// ownsStore is set when Start opened the store; Stop then drops it.
	ownsStore bool
	started   bool
	cancel    context.CancelFunc
	loops   sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service from cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	if s.normalizer == nil {
		s.normalizer = normalize.New()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.New(
			ratelimit.WithMaxRequests(cfg.RateLimitRequests),
			ratelimit.WithWindow(cfg.RateWindow()),
		)
	}
	if s.relay == nil {
		s.relay = relay.New(relay.Config{
			APIBase:        cfg.APIBase,
			Repo:           cfg.Repo,
			Token:          cfg.GitHubToken,
			Event:          cfg.Event,
			Attempts:       cfg.RelayAttempts,
			AttemptTimeout: cfg.RelayTimeout(),
		})
	}
	return s
}

// Start opens the store and launches the background loops: the limiter sweep,
// the entries gauge refresher and, in async mode, the relay workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.store == nil {
		store, err := repository.Open(ctx, s.cfg.DBPath)
		if err != nil {
			return err
		}
		s.store = store
		s.ownsStore = true
		s.logger.Info(ctx, "sqlite store opened", logger.String("path", s.cfg.DBPath))
	}

	// Background loops must survive the caller's deadline; Stop ends them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.loops.Add(2)
	go func() {
		defer s.loops.Done()
		s.limiter.Run(runCtx, s.cfg.RateSweepInterval(), metrics.UpdateRateLimitClients)
	}()
	go func() {
		defer s.loops.Done()
		s.refreshEntriesGauge(runCtx)
	}()

	if s.cfg.RelayMode == config.RelayModeAsync && s.relay.Enabled() {
		s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.RelayQueueSize))
		s.pool = worker.NewPool(s.cfg.RelayWorkers, s.queue, s.relay)
		s.pool.Start(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "scoreboard service started",
		logger.String("relay_mode", s.cfg.RelayMode),
		logger.Bool("relay_enabled", s.relay.Enabled()),
		logger.Int("rate_limit_requests", s.cfg.RateLimitRequests),
	)
	return nil
}

// Stop drains the async relay within ctx, ends background loops and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping scoreboard service")

	var errs []error
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.cancel()
	s.loops.Wait()

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if s.ownsStore {
		s.store = nil
		s.ownsStore = false
	}

	s.started = false
	s.logger.Info(ctx, "scoreboard service stopped")
	return errors.Join(errs...)
}

// Started reports whether Start has completed and Stop has not been called.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// RelayEnabled reports whether submissions are relayed at all.
func (s *Service) RelayEnabled() bool {
	return s.relay.Enabled()
}

// Allow applies the per-client sliding window.
func (s *Service) Allow(key string) bool {
	if s.limiter.Allow(key) {
		return true
	}
	metrics.RecordRateLimitRejection()
	return false
}

// Submit handles a decoded POST body: it resolves the submitted line, stores
// the normalized entry and relays the line. Only storage failures are returned
// once the payload is valid; relay failures are reported in the receipt.
func (s *Service) Submit(ctx context.Context, body map[string]any) (rcpt types.Receipt, err error) {
	ctx, span := tracing.Start(ctx, "service.submit")
	defer func() { tracing.End(span, err) }()

	if !s.Started() {
		return types.Receipt{}, ErrNotStarted
	}

	line, encoded, err := resolveLine(body)
	if err != nil {
		return types.Receipt{}, err
	}
	raw, err := decodeObject(line)
	if err != nil {
		return types.Receipt{}, err
	}

	entry := s.normalizer.Normalize(raw)
	span.SetAttributes(attribute.String("entry.id", entry.ID))
	if err := s.store.Upsert(ctx, entry); err != nil {
		s.logger.Error(ctx, "failed to persist scoreboard entry",
			logger.String("entry_id", entry.ID), logger.Error(err))
		return types.Receipt{}, err
	}

	rcpt = types.Receipt{Entry: entry, Dispatch: s.dispatch(ctx, span, entry.ID, encoded)}
	return rcpt, nil
}

func (s *Service) dispatch(ctx context.Context, span trace.Span, entryID, encoded string) types.DispatchStatus {
	if !s.relay.Enabled() {
		return types.DispatchDisabled
	}

	if s.pool != nil {
		err := s.queue.Enqueue(ctx, queue.Job{EntryID: entryID, LineB64: encoded})
		if err != nil {
			s.logger.Warn(ctx, "relay enqueue failed (entry stored in DB)",
				logger.String("entry_id", entryID), logger.Error(err))
			return types.DispatchFailed
		}
		return types.DispatchQueued
	}

	// The relay runs to completion even if the client goes away.
	if err := s.relay.Dispatch(context.WithoutCancel(ctx), encoded); err != nil {
		span.AddEvent("dispatch failed")
		s.logger.Warn(ctx, "dispatch failed (entry stored in DB)",
			logger.String("entry_id", entryID), logger.Error(err))
		return types.DispatchFailed
	}
	return types.DispatchSent
}

// Leaderboard returns both rankings, the row count and aggregate stats.
func (s *Service) Leaderboard(ctx context.Context, limit int, since string) (types.Leaderboard, error) {
	if !s.Started() {
		return types.Leaderboard{}, ErrNotStarted
	}
	return s.store.Leaderboard(ctx, limit, since)
}

// Stats returns aggregate statistics.
func (s *Service) Stats(ctx context.Context, since string) (types.Stats, error) {
	if !s.Started() {
		return types.Stats{}, ErrNotStarted
	}
	return s.store.Stats(ctx, since)
}

func (s *Service) refreshEntriesGauge(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		n, err := s.store.Count(ctx)
		if err == nil {
			metrics.UpdateRepositoryEntriesTotal(n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// resolveLine returns the submitted JSON line and its base64 form. A truthy
// line_b64 wins; otherwise line must be a string.
func resolveLine(body map[string]any) (line, encoded string, err error) {
	if v := body["line_b64"]; normalize.Truthy(v) {
		s, ok := v.(string)
		if !ok {
			return "", "", fmt.Errorf("%w: line_b64 must be a string", ErrInvalidPayload)
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", "", fmt.Errorf("%w: invalid base64 payload: %w", ErrInvalidPayload, err)
		}
		if !utf8.Valid(decoded) {
			return "", "", fmt.Errorf("%w: invalid base64 payload: not UTF-8", ErrInvalidPayload)
		}
		return string(decoded), s, nil
	}

	s, ok := body["line"].(string)
	if !ok {
		return "", "", fmt.Errorf("%w: line or line_b64 required", ErrInvalidPayload)
	}
	return s, base64.StdEncoding.EncodeToString([]byte(s)), nil
}

// decodeObject parses line as exactly one JSON object.
func decodeObject(line string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(line)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: payload is not valid JSON: %w", ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: payload is not valid JSON: trailing data", ErrInvalidPayload)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: payload must be a JSON object", ErrInvalidPayload)
	}
	return obj, nil
}
