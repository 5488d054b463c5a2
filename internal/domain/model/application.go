package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Applicant holds the data submitted with the intake form. Write-once.
type Applicant struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Email        string   `json:"email" validate:"required,email"`
	Phone        string   `json:"phone" validate:"required,max=30"`
	SchoolStage  string   `json:"school_stage" validate:"max=50"`
	City         string   `json:"city" validate:"max=50"`
	Teams        []string `json:"teams" validate:"required,min=1,dive,required"`
	Introduction string   `json:"introduction" validate:"max=4000"`
}

// AdminData is filled by the assignee after the interview is passed.
type AdminData struct {
	OfficialEmail string `json:"official_email" validate:"required,email"`
	Group         string `json:"group" validate:"required"`
	Position      string `json:"position"`
}

// ApplicantData is filled by the applicant through the second form.
type ApplicantData struct {
	Nickname         string `json:"nickname" validate:"required,max=50"`
	School           string `json:"school" validate:"required,max=100"`
	EmergencyContact string `json:"emergency_contact" validate:"required,max=200"`
}

// AuditEntry records one successful transition.
type AuditEntry struct {
	At           time.Time `json:"at"`
	Actor        string    `json:"actor"`
	Action       Action    `json:"action"`
	From         Stage     `json:"from"`
	To           Stage     `json:"to"`
	Note         string    `json:"note,omitempty"`
	FromAssignee string    `json:"from_assignee,omitempty"`
	ToAssignee   string    `json:"to_assignee,omitempty"`
}

// Application is one applicant's submission plus its review state.
type Application struct {
	ID            string         `json:"id"`
	Applicant     Applicant      `json:"applicant"`
	AdminData     *AdminData     `json:"admin_data,omitempty"`
	ApplicantData *ApplicantData `json:"applicant_data,omitempty"`
	Stage         Stage          `json:"stage"`
	Assignee      string         `json:"assignee,omitempty"`
	AuditLog      []AuditEntry   `json:"audit_log"`

	// LastNotificationRef is the id of the latest actionable channel message.
	LastNotificationRef string `json:"last_notification_ref,omitempty"`

	DuplicateFlag bool   `json:"duplicate_flag"`
	EmailHash     string `json:"-"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (a Application) Clone() Application {
	out := a
	out.Applicant.Teams = append([]string(nil), a.Applicant.Teams...)
	out.AuditLog = append([]AuditEntry(nil), a.AuditLog...)
	if a.AdminData != nil {
		d := *a.AdminData
		out.AdminData = &d
	}
	if a.ApplicantData != nil {
		d := *a.ApplicantData
		out.ApplicantData = &d
	}
	return out
}

// HasTeam reports whether team was requested by the applicant.
func (a Application) HasTeam(team string) bool {
	for _, t := range a.Applicant.Teams {
		if strings.EqualFold(t, team) {
			return true
		}
	}
	return false
}

// EmailFingerprint is the duplicate-detection key for an email address.
func EmailFingerprint(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}
