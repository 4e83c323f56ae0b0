package smoke

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/scoreboard/internal/domain/model"
	"github.com/okian/scoreboard/pkg/logger"
)

// Run checks the service health, submits cfg.Runs random entries with
// cfg.Workers submitters, then fetches /scoreboard and verifies it.
func Run(ctx context.Context, cfg Config) (Report, error) {
	cfg = cfg.withDefaults()
	log := logger.Named("smoke")
	start := time.Now()

	log.Info(ctx, "starting smoke run",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("runs", cfg.Runs),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	c := newClient(cfg.BaseURL, cfg.Secret, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return Report{}, fmt.Errorf("service health check: %w", err)
	}

	rng := rand.New(rand.NewPCG(uint64(start.UnixNano()), uint64(cfg.Runs)))
	entries := generate(cfg.Runs, start, rng)
	report := Report{Generated: len(entries)}

	accepted := submitAll(ctx, c, cfg.Workers, entries, &report, log)
	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("submission interrupted: %w", err)
	}
	log.Info(ctx, "submission completed",
		logger.Int("accepted", report.Accepted),
		logger.Int("relay_failed", report.RelayFailed),
		logger.Int("rate_limited", report.RateLimited),
		logger.Int("failed", report.Failed))

	limit := min(cfg.Limit, 100)
	lb, err := c.leaderboard(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("fetch leaderboard: %w", err)
	}
	report.Served = lb.Count
	report.TopLevels = lb.TopLevels
	report.FastestRuns = lb.FastestRuns
	report.Duration = time.Since(start)

	if err := verify(lb, accepted, limit); err != nil {
		return report, err
	}
	log.Info(ctx, "leaderboard verified",
		logger.Int("served", report.Served),
		logger.Duration("duration", report.Duration))
	return report, nil
}

// submitAll fans entries out to workers and returns the ones the service
// stored, in submission order.
func submitAll(ctx context.Context, c *client, workers int, entries []model.Entry, report *Report, log logger.Logger) []model.Entry {
	outcomes := make([]outcome, len(entries))
	jobs := make(chan int, workers*2)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				o, err := c.submit(ctx, entries[i])
				if err != nil {
					log.Debug(ctx, "submission failed", logger.String("entry_id", entries[i].ID), logger.Error(err))
				}
				outcomes[i] = o
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range entries {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	var accepted []model.Entry
	for i, o := range outcomes {
		switch o {
		case outcomeAccepted, outcomeRelayFailed:
			report.Accepted++
			if o == outcomeRelayFailed {
				report.RelayFailed++
			}
			accepted = append(accepted, entries[i])
		case outcomeRateLimited:
			report.RateLimited++
		default:
			report.Failed++
		}
	}
	return accepted
}
