package queue

import (
	"time"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

// Kind names a delivery side effect.
type Kind string

// Delivery kinds.
const (
	// KindPost posts the actionable message for Stage.
	KindPost Kind = "post"
	// KindLog posts the transition to the log channel.
	KindLog Kind = "log"
	// KindOutcome sends the applicant-facing outcome mail.
	KindOutcome Kind = "outcome"
	// KindMailReceived confirms receipt of a new application.
	KindMailReceived Kind = "mail_received"
	// KindEvent publishes the transition event.
	KindEvent Kind = "event"
	// KindPromote creates the staff record of a registered applicant.
	KindPromote Kind = "promote"
)

// Job is one post-commit side effect. Jobs carry ids, not aggregates:
// handlers read the current application when they run.
type Job struct {
	ID            string
	Kind          Kind
	ApplicationID string

	// Stage is the stage the job was produced for.
	Stage model.Stage

	// Entry is the audit entry of the transition, for log and event jobs.
	Entry model.AuditEntry

	// Assignee is the assignee after the transition, for event jobs.
	Assignee string

	Outcome model.Outcome
	Reason  string
	Version int64

	EnqueuedAt time.Time
}
