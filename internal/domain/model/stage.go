// Package model contains the aggregates shared by the domain and adapter layers.
package model

// Stage is an application's position in the review workflow.
type Stage string

// Review stages. Passed, Failed, Cancelled and Withdrawn are terminal.
const (
	StageSubmitted                   Stage = "submitted"
	StageAssignedNotContacted        Stage = "assigned_not_contacted"
	StageContactAttempted            Stage = "contact_attempted"
	StageInterviewScheduled          Stage = "interview_scheduled"
	StageAwaitingResult              Stage = "awaiting_result"
	StagePassedAwaitingAdminData     Stage = "passed_awaiting_admin_data"
	StagePassedAwaitingApplicantData Stage = "passed_awaiting_applicant_data"
	StagePassed                      Stage = "passed"
	StageFailed                      Stage = "failed"
	StageCancelled                   Stage = "cancelled"
	StageWithdrawn                   Stage = "withdrawn"
)

// Stages lists every stage in workflow order.
var Stages = []Stage{ //nolint:gochecknoglobals // fixed enumeration
	StageSubmitted,
	StageAssignedNotContacted,
	StageContactAttempted,
	StageInterviewScheduled,
	StageAwaitingResult,
	StagePassedAwaitingAdminData,
	StagePassedAwaitingApplicantData,
	StagePassed,
	StageFailed,
	StageCancelled,
	StageWithdrawn,
}

// Valid reports whether s is a declared stage.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further action is legal from s.
func (s Stage) Terminal() bool {
	switch s {
	case StagePassed, StageFailed, StageCancelled, StageWithdrawn:
		return true
	default:
		return false
	}
}

// OpenStages returns every non-terminal stage.
func OpenStages() []Stage {
	out := make([]Stage, 0, len(Stages))
	for _, s := range Stages {
		if !s.Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// Action names an operation an actor may invoke against an application.
type Action string

// Review actions.
const (
	ActionAccept    Action = "accept"
	ActionContact   Action = "contact"
	ActionSchedule  Action = "schedule"
	ActionNoShow    Action = "no_show"
	ActionAttend    Action = "attend"
	ActionPass      Action = "pass"
	ActionFail      Action = "fail"
	ActionAdminData Action = "admin_data"
	ActionRegister  Action = "register"
	ActionTransfer  Action = "transfer"
	ActionReject    Action = "reject"
	ActionCancel    Action = "cancel"
	ActionWithdraw  Action = "withdraw"
)

// Outcome is an applicant-facing result that triggers an outbound notification.
type Outcome string

// Outcomes.
const (
	OutcomeNone   Outcome = ""
	OutcomePassed Outcome = "passed"
	OutcomeFailed Outcome = "failed"
)
