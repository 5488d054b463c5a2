package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackit-tw/recruit/internal/adapters/mq/queue"
	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/domain/access"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

// InboundAction is an action request from a channel adapter or the API.
// Either ApplicationID or MessageRef locates the application.
type InboundAction struct {
	ActorExternalID string       `json:"actor_id" validate:"required"`
	Action          model.Action `json:"action" validate:"required"`
	ApplicationID   string       `json:"application_id,omitempty"`
	MessageRef      string       `json:"message_ref,omitempty"`

	// ExpectedStage is the stage the actor saw. When empty the stage read
	// before acquiring the lock is used.
	ExpectedStage model.Stage `json:"expected_stage,omitempty"`

	Note string `json:"note,omitempty"`

	// TransferTo names the new assignee by staff id or external id.
	TransferTo string `json:"transfer_to,omitempty"`

	AdminData *model.AdminData `json:"admin_data,omitempty"`
}

// ActionOutcome is the committed result of an action.
type ActionOutcome struct {
	Application model.Application `json:"application"`
	Result      review.Result     `json:"result"`
}

// HandleAction resolves the actor and the application, applies the action
// and queues its side effects.
func (s *Service) HandleAction(ctx context.Context, in InboundAction) (ActionOutcome, error) { //nolint:gocritic // hugeParam: request value
	out, err := s.handleAction(ctx, in)
	metrics.RecordTransition(string(in.Action), resultLabel(err))
	if err != nil {
		s.logger.Warn(ctx, "action rejected",
			logger.String("action", string(in.Action)),
			logger.String("actor", in.ActorExternalID),
			logger.String("application_id", in.ApplicationID),
			logger.String("message_ref", in.MessageRef),
			logger.Error(err),
		)
	}
	return out, err
}

func (s *Service) handleAction(ctx context.Context, in InboundAction) (ActionOutcome, error) { //nolint:gocritic // hugeParam: request value
	app, err := s.locate(ctx, in)
	if err != nil {
		return ActionOutcome{}, err
	}
	staff, err := s.resolveActor(ctx, in.ActorExternalID)
	if err != nil {
		return ActionOutcome{}, err
	}

	cmd := review.Command{
		Action:        in.Action,
		Actor:         access.StaffActor(staff),
		Note:          in.Note,
		ExpectedStage: in.ExpectedStage,
		AdminData:     in.AdminData,
	}
	if cmd.ExpectedStage == "" {
		cmd.ExpectedStage = app.Stage
	}
	if in.Action == model.ActionTransfer {
		target, err := s.resolveStaff(ctx, in.TransferTo)
		if err != nil {
			return ActionOutcome{}, err
		}
		cmd.TransferTo = target
	}
	return s.apply(ctx, app.ID, cmd)
}

// apply runs cmd against the current application under the id lock. A
// version conflict from another writer is retried once on a fresh read.
func (s *Service) apply(ctx context.Context, id string, cmd review.Command) (ActionOutcome, error) { //nolint:gocritic // hugeParam: command value
	unlock := s.lock(id)
	defer unlock()

	for attempt := 0; ; attempt++ {
		current, err := storeCall(ctx, s, "get", func(ctx context.Context) (model.Application, error) {
			return s.store.Get(ctx, id)
		})
		if err != nil {
			return ActionOutcome{}, upstream(err)
		}
		cmd.At = s.now()
		next, res, err := s.engine.Apply(current, cmd)
		if err != nil {
			if errors.Is(err, review.ErrStaleState) {
				metrics.RecordStaleConflict()
			}
			return ActionOutcome{}, err
		}

		saved, err := storeCall(ctx, s, "update", func(ctx context.Context) (model.Application, error) {
			return s.store.Update(ctx, next, current.Version)
		})
		if errors.Is(err, repository.ErrVersionConflict) && attempt == 0 {
			s.logger.Debug(ctx, "version conflict, re-reading", logger.String("application_id", id))
			continue
		}
		if errors.Is(err, repository.ErrVersionConflict) {
			metrics.RecordStaleConflict()
			return ActionOutcome{}, fmt.Errorf("%w: %w", review.ErrStaleState, err)
		}
		if err != nil {
			return ActionOutcome{}, upstream(err)
		}

		s.logger.Info(ctx, "stage changed",
			logger.String("application_id", id),
			logger.String("action", string(res.Action)),
			logger.String("from", string(res.From)),
			logger.String("to", string(res.To)),
			logger.String("actor", cmd.Actor.ID()),
		)
		s.afterCommit(ctx, saved, res)
		return ActionOutcome{Application: saved, Result: res}, nil
	}
}

// afterCommit queues every side effect of a committed transition.
func (s *Service) afterCommit(ctx context.Context, app model.Application, res review.Result) { //nolint:gocritic // hugeParam: read-only aggregate
	entry := app.AuditLog[len(app.AuditLog)-1]
	s.enqueue(ctx, app.ID, queue.Job{Kind: queue.KindPost, Stage: app.Stage, Version: app.Version})
	s.enqueue(ctx, app.ID, queue.Job{Kind: queue.KindLog, Stage: app.Stage, Entry: entry, Version: app.Version})
	s.enqueue(ctx, app.ID, queue.Job{
		Kind:     queue.KindEvent,
		Stage:    app.Stage,
		Entry:    entry,
		Assignee: app.Assignee,
		Outcome:  res.Outbound,
		Version:  app.Version,
	})
	if res.Outbound != model.OutcomeNone {
		s.enqueue(ctx, app.ID, queue.Job{Kind: queue.KindOutcome, Outcome: res.Outbound, Reason: res.Reason, Version: app.Version})
	}
	if res.PromoteStaff {
		s.enqueue(ctx, app.ID, queue.Job{Kind: queue.KindPromote, Version: app.Version})
	}
}

func (s *Service) locate(ctx context.Context, in InboundAction) (model.Application, error) { //nolint:gocritic // hugeParam: request value
	var (
		app model.Application
		err error
	)
	switch {
	case in.ApplicationID != "":
		app, err = storeCall(ctx, s, "get", func(ctx context.Context) (model.Application, error) {
			return s.store.Get(ctx, in.ApplicationID)
		})
	case in.MessageRef != "":
		app, err = storeCall(ctx, s, "get_by_ref", func(ctx context.Context) (model.Application, error) {
			return s.store.GetByNotificationRef(ctx, in.MessageRef)
		})
	default:
		return model.Application{}, fmt.Errorf("%w: application id or message ref required", ErrValidation)
	}
	if err != nil {
		return model.Application{}, upstream(err)
	}
	return app, nil
}

// resolveActor maps an unknown actor to ErrUnauthorized.
func (s *Service) resolveActor(ctx context.Context, externalID string) (model.Staff, error) {
	staff, err := storeCall(ctx, s, "resolve", func(ctx context.Context) (model.Staff, error) {
		return s.resolver.Resolve(ctx, externalID)
	})
	switch {
	case err == nil:
		return staff, nil
	case errors.Is(err, access.ErrUnknownActor):
		return model.Staff{}, fmt.Errorf("%w: %w", review.ErrUnauthorized, err)
	default:
		return model.Staff{}, upstream(err)
	}
}

// resolveStaff finds a transfer target by staff id, then by external id.
// An unknown target yields nil so the engine reports it.
func (s *Service) resolveStaff(ctx context.Context, ref string) (*model.Staff, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil //nolint:nilnil // nil target is meaningful to the engine
	}
	st, err := storeCall(ctx, s, "get_staff", func(ctx context.Context) (model.Staff, error) {
		return s.store.GetStaff(ctx, ref)
	})
	if errors.Is(err, repository.ErrNotFound) {
		st, err = storeCall(ctx, s, "get_staff_by_external_id", func(ctx context.Context) (model.Staff, error) {
			return s.store.GetStaffByExternalID(ctx, ref)
		})
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil //nolint:nilnil // nil target is meaningful to the engine
	}
	if err != nil {
		return nil, upstream(err)
	}
	return &st, nil
}

// Repost re-queues the channel message of an application.
func (s *Service) Repost(ctx context.Context, actorExternalID, applicationID string) error {
	actor, err := s.resolveActor(ctx, actorExternalID)
	if err != nil {
		return err
	}
	app, err := storeCall(ctx, s, "get", func(ctx context.Context) (model.Application, error) {
		return s.store.Get(ctx, applicationID)
	})
	if err != nil {
		return upstream(err)
	}
	if !access.Authorize(actor, app, s.policy.OverrideLevel) {
		return fmt.Errorf("%w: repost needs level %d", review.ErrUnauthorized, s.policy.OverrideLevel)
	}
	if !s.enqueue(ctx, app.ID, queue.Job{Kind: queue.KindPost, Stage: app.Stage, Version: app.Version}) {
		return ErrQueueFull
	}
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, review.ErrStaleState):
		return "stale"
	case errors.Is(err, review.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, review.ErrInvalidTransition):
		return "invalid"
	case errors.Is(err, review.ErrUnknownAssignee), errors.Is(err, repository.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

