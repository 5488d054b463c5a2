package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/domain/access"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/internal/domain/signup"
	"github.com/hackit-tw/recruit/pkg/logger"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

// VerifyToken returns the application a form token was issued for, with its
// current state.
func (s *Service) VerifyToken(ctx context.Context, raw string) (model.Application, error) {
	if s.tokens == nil {
		return model.Application{}, fmt.Errorf("form tokens: %w", ErrNotConfigured)
	}
	id, err := s.tokens.Verify(raw)
	if err != nil {
		return model.Application{}, fmt.Errorf("%w: %w", review.ErrUnauthorized, err)
	}
	app, err := storeCall(ctx, s, "get", func(ctx context.Context) (model.Application, error) {
		return s.store.Get(ctx, id)
	})
	if err != nil {
		return model.Application{}, upstream(err)
	}
	return app, nil
}

// SubmitApplicantData runs the applicant-only register action for the
// application the token was issued for.
func (s *Service) SubmitApplicantData(ctx context.Context, rawToken string, d model.ApplicantData) (ActionOutcome, error) { //nolint:gocritic // hugeParam: form value
	d.Nickname = strings.TrimSpace(d.Nickname)
	d.School = strings.TrimSpace(d.School)
	d.EmergencyContact = strings.TrimSpace(d.EmergencyContact)
	if err := s.validate.Struct(d); err != nil {
		return ActionOutcome{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	app, err := s.VerifyToken(ctx, rawToken)
	if err != nil {
		return ActionOutcome{}, err
	}
	out, err := s.apply(ctx, app.ID, review.Command{
		Action:        model.ActionRegister,
		Actor:         access.ApplicantActor(app.ID),
		ExpectedStage: model.StagePassedAwaitingApplicantData,
		ApplicantData: &d,
	})
	metrics.RecordTransition(string(model.ActionRegister), resultLabel(err))
	return out, err
}

// promote creates the staff record of a registered applicant. The staff id
// is the application id, so a repeated promotion is a no-op.
func (s *Service) promote(ctx context.Context, app model.Application) error { //nolint:gocritic // hugeParam: read-only aggregate
	if app.Stage != model.StagePassed || app.ApplicantData == nil {
		return fmt.Errorf("promote %s in %s: %w", app.ID, app.Stage, review.ErrInvalidTransition)
	}
	now := s.now()
	st := model.Staff{
		ID:                  app.ID,
		Name:                app.Applicant.Name,
		Nickname:            app.ApplicantData.Nickname,
		Email:               app.Applicant.Email,
		Phone:               app.Applicant.Phone,
		SchoolStage:         app.Applicant.SchoolStage,
		City:                app.Applicant.City,
		School:              app.ApplicantData.School,
		EmergencyContact:    app.ApplicantData.EmergencyContact,
		Introduction:        app.Applicant.Introduction,
		PermissionLevel:     s.promotedLevel,
		EmploymentStatus:    model.EmploymentNormal,
		ActiveStatus:        model.StatusActive,
		SourceApplicationID: app.ID,
		JoinedAt:            now,
		CreatedAt:           now,
	}
	if d := app.AdminData; d != nil {
		st.OfficialEmail = d.OfficialEmail
		st.Group = d.Group
		st.Position = d.Position
	}
	_, err := s.store.CreateStaff(ctx, st)
	switch {
	case errors.Is(err, repository.ErrDuplicateID):
		metrics.RecordStaffOperation("promote", "duplicate")
		return nil
	case err != nil:
		metrics.RecordStaffOperation("promote", "error")
		return upstream(err)
	}
	metrics.RecordStaffOperation("promote", "ok")
	s.logger.Info(ctx, "applicant promoted to staff",
		logger.String("application_id", app.ID),
		logger.String("group", st.Group),
	)
	return nil
}

// SetPermissionLevel changes a staff member's level. The actor needs the
// admin level and can never grant more than their own.
func (s *Service) SetPermissionLevel(ctx context.Context, actorExternalID, staffID string, level int) (model.Staff, error) {
	if level < model.MinPermissionLevel || level > model.MaxPermissionLevel {
		return model.Staff{}, fmt.Errorf("%w: level %d out of range", ErrValidation, level)
	}
	return s.updateStaff(ctx, "set_level", actorExternalID, staffID, func(actor, target model.Staff) (model.Staff, error) {
		if !s.policy.CanAdminister(actor, target, level) {
			return target, fmt.Errorf("%w: cannot set level %d on %s", review.ErrUnauthorized, level, target.ID)
		}
		target.PermissionLevel = level
		return target, nil
	})
}

// SetActiveStatus changes a staff member's active status. Leaving records
// LeftAt; returning clears it.
func (s *Service) SetActiveStatus(ctx context.Context, actorExternalID, staffID string, status model.ActiveStatus) (model.Staff, error) {
	switch status {
	case model.StatusActive, model.StatusInactive, model.StatusSuspended:
	default:
		return model.Staff{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	return s.updateStaff(ctx, "set_status", actorExternalID, staffID, func(actor, target model.Staff) (model.Staff, error) {
		if !s.policy.CanAdminister(actor, target, target.PermissionLevel) {
			return target, fmt.Errorf("%w: cannot change status of %s", review.ErrUnauthorized, target.ID)
		}
		now := s.now()
		switch {
		case status == model.StatusActive:
			target.LeftAt = nil
		case target.ActiveStatus == model.StatusActive:
			target.LeftAt = &now
		}
		target.ActiveStatus = status
		return target, nil
	})
}

func (s *Service) updateStaff(ctx context.Context, op, actorExternalID, staffID string, mutate func(actor, target model.Staff) (model.Staff, error)) (model.Staff, error) {
	actor, err := s.resolveActor(ctx, actorExternalID)
	if err != nil {
		metrics.RecordStaffOperation(op, "unauthorized")
		return model.Staff{}, err
	}

	unlock := s.lock("staff:" + staffID)
	defer unlock()

	target, err := storeCall(ctx, s, "get_staff", func(ctx context.Context) (model.Staff, error) {
		return s.store.GetStaff(ctx, staffID)
	})
	if err != nil {
		metrics.RecordStaffOperation(op, "error")
		return model.Staff{}, upstream(err)
	}
	next, err := mutate(actor, target)
	if err != nil {
		metrics.RecordStaffOperation(op, "unauthorized")
		return model.Staff{}, err
	}
	next.UpdatedAt = s.now()
	saved, err := storeCall(ctx, s, "update_staff", func(ctx context.Context) (model.Staff, error) {
		return s.store.UpdateStaff(ctx, next, target.Version)
	})
	if err != nil {
		metrics.RecordStaffOperation(op, "error")
		return model.Staff{}, upstream(err)
	}
	metrics.RecordStaffOperation(op, "ok")
	s.logger.Info(ctx, "staff updated",
		logger.String("op", op),
		logger.String("staff_id", saved.ID),
		logger.String("actor", actor.ID),
	)
	return saved, nil
}

// VerifyMember binds a chat id to an existing staff record when the record's
// id and name both match and it has no chat id yet.
func (s *Service) VerifyMember(ctx context.Context, externalID, staffID, name string) (model.Staff, error) {
	if strings.TrimSpace(externalID) == "" || strings.TrimSpace(staffID) == "" {
		return model.Staff{}, fmt.Errorf("%w: chat id and staff id required", ErrValidation)
	}
	existing, err := storeCall(ctx, s, "get_staff_by_external_id", func(ctx context.Context) (model.Staff, error) {
		return s.store.GetStaffByExternalID(ctx, externalID)
	})
	switch {
	case err == nil && existing.ID == staffID:
		return existing, nil
	case err == nil:
		return model.Staff{}, fmt.Errorf("%w: chat id already bound to another record", ErrNotMember)
	case !errors.Is(err, repository.ErrNotFound):
		return model.Staff{}, upstream(err)
	}

	unlock := s.lock("staff:" + staffID)
	defer unlock()

	st, err := storeCall(ctx, s, "get_staff", func(ctx context.Context) (model.Staff, error) {
		return s.store.GetStaff(ctx, staffID)
	})
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordStaffOperation("verify", "mismatch")
		return model.Staff{}, ErrNotMember
	}
	if err != nil {
		return model.Staff{}, upstream(err)
	}
	if !strings.EqualFold(strings.TrimSpace(st.Name), strings.TrimSpace(name)) || st.ExternalID != "" {
		metrics.RecordStaffOperation("verify", "mismatch")
		return model.Staff{}, ErrNotMember
	}
	st.ExternalID = externalID
	st.UpdatedAt = s.now()
	saved, err := storeCall(ctx, s, "update_staff", func(ctx context.Context) (model.Staff, error) {
		return s.store.UpdateStaff(ctx, st, st.Version)
	})
	if err != nil {
		metrics.RecordStaffOperation("verify", "error")
		return model.Staff{}, upstream(err)
	}
	metrics.RecordStaffOperation("verify", "ok")
	s.logger.Info(ctx, "member verified", logger.String("staff_id", saved.ID))
	return saved, nil
}

// Signup records one step of the self-registration flow.
func (s *Service) Signup(ctx context.Context, externalID string, step signup.Step, values map[string]string) (signup.Progress, error) {
	if s.signup == nil {
		return signup.Progress{}, fmt.Errorf("signup: %w", ErrNotConfigured)
	}
	p, err := s.signup.Submit(ctx, externalID, step, values)
	if errors.Is(err, repository.ErrDuplicateID) {
		err = fmt.Errorf("%w: %w", signup.ErrAlreadySubmitted, err)
	}
	metrics.RecordSignupStep(string(step), signupResult(err))
	if err == nil && p.Done {
		s.logger.Info(ctx, "staff signed up", logger.String("staff_id", p.Staff.ID))
	}
	return p, err
}

func signupResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, signup.ErrSessionExpired):
		return "expired"
	case errors.Is(err, signup.ErrAlreadySubmitted):
		return "duplicate"
	case errors.Is(err, signup.ErrMissingField), errors.Is(err, signup.ErrOutOfOrder), errors.Is(err, signup.ErrUnknownStep):
		return "invalid"
	default:
		return "error"
	}
}
