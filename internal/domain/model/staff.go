package model

import "time"

// ActiveStatus is the soft lifecycle flag of a staff member.
type ActiveStatus string

// Active statuses. Staff records are never deleted.
const (
	StatusActive    ActiveStatus = "active"
	StatusInactive  ActiveStatus = "inactive"
	StatusSuspended ActiveStatus = "suspended"
)

// EmploymentStatus reports how loaded a staff member currently is.
type EmploymentStatus string

// Employment statuses.
const (
	EmploymentBusy   EmploymentStatus = "busy"
	EmploymentNormal EmploymentStatus = "normal"
	EmploymentIdle   EmploymentStatus = "idle"
)

// Permission level bounds. Higher means more authority.
const (
	MinPermissionLevel = -1
	MaxPermissionLevel = 6
)

// Staff is the identity record of an organization member.
type Staff struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id,omitempty"`

	Name          string `json:"name"`
	Nickname      string `json:"nickname,omitempty"`
	Email         string `json:"email,omitempty"`
	OfficialEmail string `json:"official_email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	SchoolStage   string `json:"school_stage,omitempty"`
	City          string `json:"city,omitempty"`
	School        string `json:"school,omitempty"`

	EmergencyContact string `json:"emergency_contact,omitempty"`
	LineID           string `json:"line_id,omitempty"`
	IGID             string `json:"ig_id,omitempty"`
	Introduction     string `json:"introduction,omitempty"`

	Group       string `json:"group,omitempty"`
	Position    string `json:"position,omitempty"`
	PrimaryRole string `json:"primary_role,omitempty"`
	Expertise   string `json:"expertise,omitempty"`

	PermissionLevel  int              `json:"permission_level"`
	EmploymentStatus EmploymentStatus `json:"employment_status"`
	ActiveStatus     ActiveStatus     `json:"active_status"`

	IsSignup            bool   `json:"is_signup"`
	SourceApplicationID string `json:"source_application_id,omitempty"`

	JoinedAt  time.Time  `json:"joined_at"`
	LeftAt    *time.Time `json:"left_at,omitempty"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Active reports whether the staff member may act on applications.
func (s Staff) Active() bool {
	return s.ActiveStatus == StatusActive
}

// DisplayName prefers the nickname.
func (s Staff) DisplayName() string {
	if s.Nickname != "" {
		return s.Nickname
	}
	return s.Name
}
