package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hackit-tw/recruit/internal/adapters/mq/queue"
	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

// Submit creates a new application from an intake form.
func (s *Service) Submit(ctx context.Context, a model.Applicant) (model.Application, error) { //nolint:gocritic // hugeParam: value semantics for form data
	a = normalizeApplicant(a)
	if err := s.validate.Struct(a); err != nil {
		return model.Application{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	hash := model.EmailFingerprint(a.Email)
	dup, err := storeCall(ctx, s, "exists_email_hash", func(ctx context.Context) (bool, error) {
		return s.store.ExistsEmailHash(ctx, hash)
	})
	if err != nil {
		return model.Application{}, upstream(err)
	}

	now := s.now()
	draft := model.Application{
		ID:            s.newID(),
		Applicant:     a,
		Stage:         model.StageSubmitted,
		DuplicateFlag: dup,
		EmailHash:     hash,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	attempt := 0
	app, err := storeCall(ctx, s, "create", func(ctx context.Context) (model.Application, error) {
		attempt++
		created, err := s.store.Create(ctx, draft)
		if attempt > 1 && errors.Is(err, repository.ErrDuplicateID) {
			// An earlier attempt committed before its reply was lost.
			return s.store.Get(ctx, draft.ID)
		}
		return created, err
	})
	if err != nil {
		return model.Application{}, upstream(err)
	}
	metrics.RecordApplicationSubmitted(dup)
	s.logger.Info(ctx, "application submitted",
		logger.String("application_id", app.ID),
		logger.Bool("duplicate", dup),
		logger.Int("teams", len(a.Teams)),
	)

	// The application is committed; a full queue only loses presentation,
	// which Repost recovers.
	s.enqueue(ctx, app.ID, queue.Job{Kind: queue.KindPost, Stage: app.Stage})
	s.enqueue(ctx, app.ID, queue.Job{Kind: queue.KindMailReceived})
	return app, nil
}

func normalizeApplicant(a model.Applicant) model.Applicant { //nolint:gocritic // hugeParam: value semantics for form data
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.SchoolStage = strings.TrimSpace(a.SchoolStage)
	a.City = strings.TrimSpace(a.City)
	a.Introduction = strings.TrimSpace(a.Introduction)
	teams := make([]string, 0, len(a.Teams))
	for _, t := range a.Teams {
		if t = strings.TrimSpace(t); t != "" {
			teams = append(teams, t)
		}
	}
	a.Teams = teams
	return a
}

// enqueue queues one delivery job and reports whether it was accepted.
func (s *Service) enqueue(ctx context.Context, applicationID string, j queue.Job) bool { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	j.ID = uuid.NewString()
	j.ApplicationID = applicationID
	j.EnqueuedAt = s.now()
	if s.queue.Enqueue(ctx, j) {
		return true
	}
	s.logger.Error(ctx, "delivery job dropped",
		logger.Error(ErrQueueFull),
		logger.String("application_id", applicationID),
		logger.String("kind", string(j.Kind)),
	)
	return false
}
