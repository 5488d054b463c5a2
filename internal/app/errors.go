package service

import (
	"errors"
	"fmt"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/notify"
)

var (
	// ErrUpstreamUnavailable wraps store, channel and mail failures.
	ErrUpstreamUnavailable = notify.ErrUpstreamUnavailable

	// ErrValidation wraps payloads rejected by the validator.
	ErrValidation = errors.New("validation failed")

	// ErrQueueFull is returned when a delivery job cannot be queued. The
	// transition it belongs to is already committed.
	ErrQueueFull = errors.New("delivery queue full")

	// ErrNotConfigured is returned when an optional collaborator is missing.
	ErrNotConfigured = errors.New("not configured")

	// ErrNotMember is returned when a member check finds no matching record.
	ErrNotMember = errors.New("no matching staff record")
)

// upstream marks collaborator failures as ErrUpstreamUnavailable while
// keeping the store's own sentinel errors testable.
func upstream(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, repository.ErrDuplicateID),
		errors.Is(err, repository.ErrVersionConflict),
		errors.Is(err, ErrUpstreamUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}
