// Package worker drains relay jobs off the queue and hands them to the dispatcher.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/scoreboard/internal/adapters/mq/queue"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

const defaultWorkers = 2

// Dispatcher forwards one encoded submission line.
type Dispatcher interface {
	Dispatch(ctx context.Context, encodedLine string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue() <-chan queue.Job
}

// Worker processes jobs until its queue is closed and drained.
type Worker interface {
	// Run starts the worker loop until the queue closes or ctx is canceled.
	Run(ctx context.Context)

	// Done is closed when Run returns.
	Done() <-chan struct{}
}

// InMemoryWorker implements Worker for relay jobs.
type InMemoryWorker struct {
	queue      Queue
	dispatcher Dispatcher
	name       string
	done       chan struct{}
	logger     logger.Logger
}

// NewInMemoryWorker creates a worker reading from q.
func NewInMemoryWorker(q Queue, d Dispatcher, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:      q,
		dispatcher: d,
		name:       "worker",
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Named(w.name)
	}
	return w
}

// Run processes jobs until the queue channel is closed or ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

// Done is closed once Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// process dispatches one job. Failures are logged; the entry is already stored.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	if err := w.dispatcher.Dispatch(ctx, job.LineB64); err != nil {
		w.logger.Error(ctx, "relay dispatch failed",
			logger.String("entry_id", job.EntryID),
			logger.Duration("queued_for", time.Since(job.EnqueuedAt)),
			logger.Error(err),
		)
		return
	}
	w.logger.Debug(ctx, "relay dispatched", logger.String("entry_id", job.EntryID))
}

// Closer is implemented by queues that can stop accepting jobs.
type Closer interface {
	Close() error
}

// Pool runs a fixed set of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	cancel  context.CancelFunc
	once    sync.Once
	logger  logger.Logger
}

// NewPool creates workerCount workers over q.
func NewPool(workerCount int, q Queue, d Dispatcher) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkers
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		cancel:  func() {},
		logger:  logger.Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, d, WithName("relay-worker-"+strconv.Itoa(i)))
	}
	return p
}

// Size is the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start launches every worker. Workers outlive ctx only until it is canceled.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateRelayWorkers(len(p.workers))
	p.logger.Info(ctx, "relay workers started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and waits for workers to drain what is buffered.
// If ctx expires first, in-flight dispatches are canceled and the remaining
// jobs are abandoned.
func (p *Pool) Shutdown(ctx context.Context) error {
	var err error
	p.once.Do(func() {
		defer metrics.UpdateRelayWorkers(0)
		defer p.cancel()

		if c, ok := p.queue.(Closer); ok {
			if cerr := c.Close(); cerr != nil {
				p.logger.Error(ctx, "error closing relay queue", logger.Error(cerr))
			}
		}

		for i, w := range p.workers {
			select {
			case <-w.Done():
			case <-ctx.Done():
				p.logger.Warn(ctx, "relay worker shutdown timed out", logger.Int("worker_id", i))
				err = fmt.Errorf("relay pool shutdown: %w", ctx.Err())
				return
			}
		}
	})
	return err
}
