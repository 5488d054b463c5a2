package access

import "github.com/hackit-tw/recruit/internal/domain/model"

// ActorKind distinguishes staff from applicants holding a form token.
type ActorKind int

// Actor kinds.
const (
	KindStaff ActorKind = iota
	KindApplicant
)

// Actor is whoever invokes an action.
type Actor struct {
	Kind  ActorKind
	Staff model.Staff
	// ApplicationID binds an applicant actor to the one application its
	// token was issued for.
	ApplicationID string
}

// StaffActor wraps a resolved staff record.
func StaffActor(s model.Staff) Actor {
	return Actor{Kind: KindStaff, Staff: s}
}

// ApplicantActor is an applicant proven by a verified form token.
func ApplicantActor(applicationID string) Actor {
	return Actor{Kind: KindApplicant, ApplicationID: applicationID}
}

// ID is the identifier written to audit entries.
func (a Actor) ID() string {
	if a.Kind == KindApplicant {
		return "applicant:" + a.ApplicationID
	}
	return a.Staff.ID
}
