package worker

import (
	"time"

	"github.com/hackit-tw/recruit/pkg/logger"
)

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithAttempts caps how many times a job is tried, the first try included.
func WithAttempts(n uint) Option {
	return func(w *Worker) {
		if n > 0 {
			w.attempts = n
		}
	}
}

// WithAttemptTimeout bounds a single handler call.
func WithAttemptTimeout(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.attemptTimeout = d
		}
	}
}

// WithBackoff sets the exponential backoff bounds between attempts.
func WithBackoff(initial, maxInterval time.Duration) Option {
	return func(w *Worker) {
		if initial > 0 {
			w.initialInterval = initial
		}
		if maxInterval >= initial && maxInterval > 0 {
			w.maxInterval = maxInterval
		}
	}
}
