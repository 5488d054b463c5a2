package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/domain/access"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

const (
	defaultStoreAttempts = 3
	defaultStoreInterval = 50 * time.Millisecond
	maxStoreInterval     = time.Second
	defaultStoreTimeout  = 5 * time.Second
)

// storeCall runs one store operation, retrying transient failures with
// exponential backoff. Outcomes the store reports on purpose are returned
// on the first attempt.
func storeCall[T any](ctx context.Context, s *Service, op string, call func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.storeInterval
	b.MaxInterval = maxStoreInterval

	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()

		v, err := call(attemptCtx)
		if err != nil && (!transient(err) || ctx.Err() != nil) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.storeAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			metrics.RecordErrorByComponent("store", "retry")
			s.logger.Warn(ctx, "store call failed, retrying",
				logger.String("op", op),
				logger.Duration("retry_in", next),
				logger.Error(err),
			)
		}),
	)
}

// transient reports whether a store error may succeed when repeated.
func transient(err error) bool {
	switch {
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrDuplicateID),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, access.ErrUnknownActor),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}
