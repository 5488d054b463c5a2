package review

import "github.com/hackit-tw/recruit/internal/domain/model"

type rule struct {
	from          func(model.Stage) bool
	to            model.Stage
	noteRequired  bool
	applicantOnly bool
	outcome       model.Outcome
}

func only(stages ...model.Stage) func(model.Stage) bool {
	return func(s model.Stage) bool {
		for _, st := range stages {
			if st == s {
				return true
			}
		}
		return false
	}
}

func anyOpen(s model.Stage) bool { return s.Valid() && !s.Terminal() }

func assignedOpen(s model.Stage) bool { return anyOpen(s) && s != model.StageSubmitted }

// rules is the transition table. No-show and transfer are actions that land
// on an earlier stage instead of stages of their own.
var rules = map[model.Action]rule{ //nolint:gochecknoglobals // fixed transition table
	model.ActionAccept:    {from: only(model.StageSubmitted), to: model.StageAssignedNotContacted},
	model.ActionContact:   {from: only(model.StageAssignedNotContacted), to: model.StageContactAttempted},
	model.ActionSchedule:  {from: only(model.StageContactAttempted), to: model.StageInterviewScheduled},
	model.ActionNoShow:    {from: only(model.StageInterviewScheduled), to: model.StageContactAttempted},
	model.ActionAttend:    {from: only(model.StageInterviewScheduled), to: model.StageAwaitingResult},
	model.ActionPass:      {from: only(model.StageAwaitingResult), to: model.StagePassedAwaitingAdminData},
	model.ActionFail:      {from: only(model.StageAwaitingResult), to: model.StageFailed, noteRequired: true, outcome: model.OutcomeFailed},
	model.ActionAdminData: {from: only(model.StagePassedAwaitingAdminData), to: model.StagePassedAwaitingApplicantData, outcome: model.OutcomePassed},
	model.ActionRegister:  {from: only(model.StagePassedAwaitingApplicantData), to: model.StagePassed, applicantOnly: true},
	model.ActionTransfer:  {from: assignedOpen, to: model.StageAssignedNotContacted},
	model.ActionReject:    {from: anyOpen, to: model.StageFailed, noteRequired: true, outcome: model.OutcomeFailed},
	model.ActionCancel:    {from: anyOpen, to: model.StageCancelled, noteRequired: true},
	model.ActionWithdraw:  {from: anyOpen, to: model.StageWithdrawn, noteRequired: true},
}

// actionOrder fixes the order buttons are rendered in.
var actionOrder = []model.Action{ //nolint:gochecknoglobals // fixed ordering
	model.ActionAccept,
	model.ActionContact,
	model.ActionSchedule,
	model.ActionAttend,
	model.ActionNoShow,
	model.ActionPass,
	model.ActionFail,
	model.ActionAdminData,
	model.ActionRegister,
	model.ActionTransfer,
	model.ActionReject,
	model.ActionCancel,
	model.ActionWithdraw,
}

// ActionsFor returns the staff actions legal in stage, in display order.
// The result depends on stage only.
func ActionsFor(stage model.Stage) []model.Action {
	var out []model.Action
	for _, a := range actionOrder {
		r := rules[a]
		if r.applicantOnly || !r.from(stage) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Legal reports whether action may be applied in stage by anyone.
func Legal(stage model.Stage, action model.Action) bool {
	r, ok := rules[action]
	return ok && r.from(stage)
}

// NoteRequired reports whether action needs a free-text note.
func NoteRequired(action model.Action) bool {
	return rules[action].noteRequired
}

// Target returns the stage action leads to.
func Target(action model.Action) (model.Stage, bool) {
	r, ok := rules[action]
	return r.to, ok
}

// ParseAction maps an opaque action id to a known action.
func ParseAction(id string) (model.Action, bool) {
	a := model.Action(id)
	_, ok := rules[a]
	return a, ok
}
