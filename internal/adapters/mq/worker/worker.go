// Package worker runs post-commit delivery jobs with retry.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hackit-tw/recruit/internal/adapters/mq/queue"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultAttempts        = 5
	defaultAttemptTimeout  = 30 * time.Second
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// ErrPermanent marks a handler failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// Handler performs one delivery job. Returning an error wrapping
// ErrPermanent stops the retries for that job.
type Handler interface {
	Handle(ctx context.Context, j queue.Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, j queue.Job) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	return f(ctx, j)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker drains jobs from a queue until it is closed.
type Worker struct {
	queue   Queue
	handler Handler
	name    string

	attempts        uint
	attemptTimeout  time.Duration
	initialInterval time.Duration
	maxInterval     time.Duration

	done   chan struct{}
	logger logger.Logger
}

// NewWorker creates a worker with configuration options.
func NewWorker(q Queue, h Handler, opts ...Option) *Worker {
	w := &Worker{
		queue:           q,
		handler:         h,
		name:            "worker",
		attempts:        defaultAttempts,
		attemptTimeout:  defaultAttemptTimeout,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		done:            make(chan struct{}),
		logger:          logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run processes jobs until the queue channel closes or ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "delivery failed",
					logger.String("job_id", j.ID),
					logger.String("kind", string(j.Kind)),
					logger.String("application_id", j.ApplicationID),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed once Run returns.
func (w *Worker) Done() <-chan struct{} { return w.done }

func (w *Worker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	start := time.Now()
	kind := string(j.Kind)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.initialInterval
	b.MaxInterval = w.maxInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, w.attemptTimeout)
		defer cancel()

		if err := w.handler.Handle(attemptCtx, j); err != nil {
			if errors.Is(err, ErrPermanent) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(w.attempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RecordDeliveryRetry(kind)
			w.logger.Warn(ctx, "delivery attempt failed",
				logger.String("job_id", j.ID),
				logger.String("kind", kind),
				logger.Duration("retry_in", next),
				logger.Error(err),
			)
		}),
	)

	latency := float64(time.Since(start).Milliseconds())
	metrics.RecordWorkerProcessed()
	if err != nil {
		metrics.RecordDelivery(kind, "failed", latency)
		metrics.RecordErrorByComponent("worker", "retry_exhausted")
		return fmt.Errorf("deliver %s job %s: %w", kind, j.ID, err)
	}
	metrics.RecordDelivery(kind, "ok", latency)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*Worker
	queue   Queue

	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. Worker options apply to every worker.
func NewPool(workerCount int, q Queue, h Handler, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*Worker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewWorker(q, h, wopts...)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Start starts all workers in the pool. The workers outlive ctx: only
// Shutdown stops them, after the queue is drained or its deadline passes.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue and waits for the workers to drain it. When
// ctx expires first, in-flight jobs are canceled.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		metrics.UpdateWorkerActiveCount(0)
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out, canceling in-flight jobs")
		if p.cancel != nil {
			p.cancel()
		}
		<-drained
		metrics.UpdateWorkerActiveCount(0)
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
}
