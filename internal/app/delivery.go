package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hackit-tw/recruit/internal/adapters/events"
	"github.com/hackit-tw/recruit/internal/adapters/mq/queue"
	"github.com/hackit-tw/recruit/internal/adapters/mq/worker"
	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/present"
	"github.com/hackit-tw/recruit/internal/notify"
	"github.com/hackit-tw/recruit/pkg/logger"
)

// deliver is the worker handler. It reads the current application so a
// retried job never presents an outdated copy.
func (s *Service) deliver(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	if j.Kind == queue.KindEvent {
		return s.publish(ctx, j)
	}

	app, err := s.store.Get(ctx, j.ApplicationID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %w", worker.ErrPermanent, err)
	}
	if err != nil {
		return err
	}

	switch j.Kind {
	case queue.KindPost:
		return s.post(ctx, app, j.Stage)
	case queue.KindLog:
		return s.postLog(ctx, app, j.Entry)
	case queue.KindOutcome:
		return s.sendOutcome(ctx, app, j)
	case queue.KindMailReceived:
		if s.notifier == nil {
			return nil
		}
		return ignoreAlreadySent(s.notifier.NotifyReceived(ctx, app))
	case queue.KindPromote:
		return s.promote(ctx, app)
	default:
		return fmt.Errorf("%w: unknown job kind %q", worker.ErrPermanent, j.Kind)
	}
}

// post replaces the actionable message of app. Only a post made for the
// stage the application is still in may become its notification ref.
func (s *Service) post(ctx context.Context, app model.Application, stage model.Stage) error { //nolint:gocritic // hugeParam: read-only aggregate
	if s.poster == nil || s.applyChannel == "" {
		return nil
	}
	if app.Stage != stage {
		s.logger.Debug(ctx, "skipping post for a stage already left",
			logger.String("application_id", app.ID),
			logger.String("stage", string(stage)),
		)
		return nil
	}
	previous := app.LastNotificationRef

	if stage.Terminal() {
		// Final state goes to the log channel; only the stale buttons are removed.
		if previous == "" {
			return nil
		}
		return s.poster.Delete(ctx, s.applyChannel, previous)
	}

	names, err := s.names(ctx, app)
	if err != nil {
		return err
	}
	msgs := present.Paginate(present.Present(app, names), s.budget)
	var transcript string
	if present.Truncated(msgs) {
		transcript = present.FullText(app, names)
	}
	ref, err := s.poster.Post(ctx, s.applyChannel, msgs, transcript)
	if err != nil {
		return fmt.Errorf("post %s: %w", app.ID, err)
	}

	applied, err := storeCall(ctx, s, "set_notification_ref", func(ctx context.Context) (bool, error) {
		return s.store.SetNotificationRef(ctx, app.ID, stage, ref)
	})
	if err != nil {
		// Unrecorded, the message would keep live buttons after the retry posts again.
		if derr := s.poster.Delete(ctx, s.applyChannel, ref); derr != nil {
			err = errors.Join(err, fmt.Errorf("remove unrecorded post %s: %w", ref, derr))
		}
		return fmt.Errorf("record notification ref: %w", err)
	}
	if !applied {
		// The stage moved on while posting; the newer job owns the ref.
		return s.poster.Delete(ctx, s.applyChannel, ref)
	}
	if previous != "" && previous != ref {
		if err := s.poster.Delete(ctx, s.applyChannel, previous); err != nil {
			s.logger.Warn(ctx, "failed to delete superseded message",
				logger.String("application_id", app.ID),
				logger.String("ref", previous),
				logger.Error(err),
			)
		}
	}
	return nil
}

func (s *Service) postLog(ctx context.Context, app model.Application, entry model.AuditEntry) error { //nolint:gocritic // hugeParam: read-only aggregate
	if s.poster == nil || s.logChannel == "" {
		return nil
	}
	names, err := s.names(ctx, app)
	if err != nil {
		return err
	}
	msgs := present.Paginate(present.LogView(app, entry, names), s.budget)
	if _, err := s.poster.Post(ctx, s.logChannel, msgs, ""); err != nil {
		return fmt.Errorf("post log %s: %w", app.ID, err)
	}
	return nil
}

func (s *Service) sendOutcome(ctx context.Context, app model.Application, j queue.Job) error { //nolint:gocritic // hugeParam: read-only aggregate
	if s.notifier == nil {
		s.logger.Warn(ctx, "no notifier configured, outcome not sent",
			logger.String("application_id", app.ID),
			logger.String("outcome", string(j.Outcome)),
		)
		return nil
	}
	err := s.notifier.NotifyOutcome(ctx, app, j.Outcome, j.Reason)
	if errors.Is(err, notify.ErrNoOutcome) {
		return fmt.Errorf("%w: %w", worker.ErrPermanent, err)
	}
	return ignoreAlreadySent(err)
}

func (s *Service) publish(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	e := j.Entry
	ev := events.TransitionEvent{
		EventID:       j.ID,
		ApplicationID: j.ApplicationID,
		Action:        string(e.Action),
		From:          string(e.From),
		To:            string(e.To),
		Actor:         e.Actor,
		Assignee:      j.Assignee,
		Outcome:       string(j.Outcome),
		Version:       j.Version,
		At:            e.At,
	}
	return s.publisher.Publish(ctx, ev)
}

// names resolves every staff id an application renders.
func (s *Service) names(ctx context.Context, app model.Application) (present.Names, error) { //nolint:gocritic // hugeParam: read-only aggregate
	ids := []string{app.Assignee}
	for _, e := range app.AuditLog {
		ids = append(ids, e.Actor, e.FromAssignee, e.ToAssignee)
	}
	names := present.Names{}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, done := names[id]; done {
			continue
		}
		st, err := s.store.GetStaff(ctx, id)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			names[id] = ""
		case err != nil:
			return nil, err
		default:
			names[id] = st.DisplayName()
		}
	}
	return names, nil
}

func ignoreAlreadySent(err error) error {
	if errors.Is(err, notify.ErrAlreadySent) {
		return nil
	}
	return err
}
