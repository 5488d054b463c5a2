// Package review implements the application review state machine.
//
// The Engine is pure: it takes an application and a command and returns the
// next application plus a Result describing the side effects the caller has
// to perform. It never touches storage, channels or mail.
package review

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackit-tw/recruit/internal/domain/access"
	"github.com/hackit-tw/recruit/internal/domain/model"
)

// Command is one action invocation against an application.
type Command struct {
	Action model.Action
	Actor  access.Actor
	Note   string

	// ExpectedStage is the stage the actor saw when acting. Empty skips the check.
	ExpectedStage model.Stage

	// TransferTo is the resolved target of a transfer; nil when it does not exist.
	TransferTo *model.Staff

	AdminData     *model.AdminData
	ApplicantData *model.ApplicantData

	At time.Time
}

// Result describes what a successful transition requires from the caller.
type Result struct {
	Action model.Action
	From   model.Stage
	To     model.Stage

	// Repost is set when a new actionable message must be posted.
	Repost bool
	// Outbound names the applicant notification to send, if any.
	Outbound model.Outcome
	// Reason accompanies a failed outcome.
	Reason string
	// PromoteStaff is set when the applicant becomes a staff member.
	PromoteStaff bool

	PreviousAssignee string
	Assignee         string
}

// Engine applies transitions under a permission policy.
type Engine struct {
	policy access.Policy
}

// NewEngine returns an engine enforcing policy.
func NewEngine(policy access.Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the thresholds the engine enforces.
func (e *Engine) Policy() access.Policy { return e.policy }

// Apply validates cmd against app and returns the transitioned copy.
// app itself is never modified.
func (e *Engine) Apply(app model.Application, cmd Command) (model.Application, Result, error) {
	if !app.Stage.Valid() {
		return app, Result{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, app.Stage)
	}
	if cmd.ExpectedStage != "" && cmd.ExpectedStage != app.Stage {
		return app, Result{}, fmt.Errorf("%w: expected %s, application is %s", ErrStaleState, cmd.ExpectedStage, app.Stage)
	}

	r, ok := rules[cmd.Action]
	if !ok || !r.from(app.Stage) {
		return app, Result{}, fmt.Errorf("%w: %s is not allowed in %s", ErrInvalidTransition, cmd.Action, app.Stage)
	}

	if err := e.authorize(app, cmd, r); err != nil {
		return app, Result{}, err
	}

	note := strings.TrimSpace(cmd.Note)
	switch {
	case r.noteRequired && note == "":
		return app, Result{}, fmt.Errorf("%w for %s", ErrNoteRequired, cmd.Action)
	case !r.noteRequired:
		note = ""
	}

	next := app.Clone()
	entry := model.AuditEntry{
		At:     cmd.At,
		Actor:  cmd.Actor.ID(),
		Action: cmd.Action,
		From:   app.Stage,
		To:     r.to,
		Note:   note,
	}
	res := Result{
		Action:           cmd.Action,
		From:             app.Stage,
		To:               r.to,
		Repost:           !r.to.Terminal(),
		Outbound:         r.outcome,
		PreviousAssignee: app.Assignee,
	}
	if r.outcome == model.OutcomeFailed {
		res.Reason = note
	}

	switch cmd.Action {
	case model.ActionAccept:
		next.Assignee = cmd.Actor.Staff.ID
	case model.ActionTransfer:
		target := cmd.TransferTo
		if target == nil || !target.Active() {
			return app, Result{}, ErrUnknownAssignee
		}
		if target.ID == app.Assignee {
			return app, Result{}, fmt.Errorf("%w: already assigned to %s", ErrInvalidTransition, target.ID)
		}
		next.Assignee = target.ID
		entry.FromAssignee = app.Assignee
		entry.ToAssignee = target.ID
	case model.ActionAdminData:
		if cmd.AdminData == nil {
			return app, Result{}, fmt.Errorf("%w for %s", ErrMissingPayload, cmd.Action)
		}
		d := *cmd.AdminData
		next.AdminData = &d
	case model.ActionRegister:
		if cmd.ApplicantData == nil {
			return app, Result{}, fmt.Errorf("%w for %s", ErrMissingPayload, cmd.Action)
		}
		d := *cmd.ApplicantData
		next.ApplicantData = &d
		res.PromoteStaff = true
	}

	next.Stage = r.to
	next.AuditLog = append(next.AuditLog, entry)
	next.UpdatedAt = cmd.At
	res.Assignee = next.Assignee
	return next, res, nil
}

func (e *Engine) authorize(app model.Application, cmd Command, r rule) error {
	actor := cmd.Actor
	if r.applicantOnly {
		if actor.Kind != access.KindApplicant || actor.ApplicationID != app.ID {
			return fmt.Errorf("%w: %s is reserved for the applicant", ErrUnauthorized, cmd.Action)
		}
		return nil
	}
	if actor.Kind != access.KindStaff {
		return fmt.Errorf("%w: %s requires a staff member", ErrUnauthorized, cmd.Action)
	}
	if cmd.Action == model.ActionAccept && app.Assignee == "" {
		if !e.policy.CanAccept(actor.Staff) {
			return fmt.Errorf("%w: level %d below %d", ErrUnauthorized, actor.Staff.PermissionLevel, e.policy.AcceptLevel)
		}
		return nil
	}
	if !e.policy.CanAct(actor.Staff, app) {
		return fmt.Errorf("%w: %s is neither assignee nor level %d", ErrUnauthorized, actor.Staff.ID, e.policy.OverrideLevel)
	}
	return nil
}
