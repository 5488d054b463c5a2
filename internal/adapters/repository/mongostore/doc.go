package mongostore

import (
	"fmt"
	"time"

	"github.com/hackit-tw/recruit/internal/adapters/repository/fieldcrypt"
	"github.com/hackit-tw/recruit/internal/domain/model"
)

type applicantDoc struct {
	Name         string   `bson:"name"`
	Email        string   `bson:"email"`
	Phone        string   `bson:"phone"`
	SchoolStage  string   `bson:"school_stage"`
	City         string   `bson:"city"`
	Teams        []string `bson:"teams"`
	Introduction string   `bson:"introduction"`
}

type adminDataDoc struct {
	OfficialEmail string `bson:"official_email"`
	Group         string `bson:"group"`
	Position      string `bson:"position"`
}

type applicantDataDoc struct {
	Nickname         string `bson:"nickname"`
	School           string `bson:"school"`
	EmergencyContact string `bson:"emergency_contact"`
}

type auditDoc struct {
	At           time.Time `bson:"at"`
	Actor        string    `bson:"actor"`
	Action       string    `bson:"action"`
	From         string    `bson:"from_stage"`
	To           string    `bson:"to_stage"`
	Note         string    `bson:"note,omitempty"`
	FromAssignee string    `bson:"from_assignee,omitempty"`
	ToAssignee   string    `bson:"to_assignee,omitempty"`
}

// applicationDoc is the stored shape of an Application. Zero-valued
// omitempty fields are left out of $set, which Update relies on.
type applicationDoc struct {
	ID            string            `bson:"_id,omitempty"`
	Applicant     applicantDoc      `bson:"applicant"`
	AdminData     *adminDataDoc     `bson:"admin_data,omitempty"`
	ApplicantData *applicantDataDoc `bson:"applicant_data,omitempty"`
	Stage         string            `bson:"stage"`
	Assignee      string            `bson:"assignee"`
	AuditLog      []auditDoc        `bson:"audit_log"`

	LastNotificationRef string   `bson:"last_notification_ref,omitempty"`
	NotificationRefs    []string `bson:"notification_refs,omitempty"`

	DuplicateFlag bool   `bson:"duplicate_flag"`
	EmailHash     string `bson:"email_hash"`

	Version   int64     `bson:"version"`
	CreatedAt time.Time `bson:"created_at,omitempty"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type staffDoc struct {
	ID         string `bson:"_id"`
	ExternalID string `bson:"external_id,omitempty"`

	Name          string `bson:"name"`
	Nickname      string `bson:"nickname"`
	Email         string `bson:"email"`
	OfficialEmail string `bson:"official_email"`
	Phone         string `bson:"phone"`
	SchoolStage   string `bson:"school_stage"`
	City          string `bson:"city"`
	School        string `bson:"school"`

	EmergencyContact string `bson:"emergency_contact"`
	LineID           string `bson:"line_id"`
	IGID             string `bson:"ig_id"`
	Introduction     string `bson:"introduction"`

	Group       string `bson:"group"`
	Position    string `bson:"position"`
	PrimaryRole string `bson:"primary_role"`
	Expertise   string `bson:"expertise"`

	PermissionLevel  int    `bson:"permission_level"`
	EmploymentStatus string `bson:"employment_status"`
	ActiveStatus     string `bson:"active_status"`

	IsSignup            bool   `bson:"is_signup"`
	SourceApplicationID string `bson:"source_application_id,omitempty"`

	JoinedAt  time.Time  `bson:"joined_at"`
	LeftAt    *time.Time `bson:"left_at,omitempty"`
	Version   int64      `bson:"version"`
	CreatedAt time.Time  `bson:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

// sealer applies one direction of the field codec to a list of fields,
// stopping at the first error.
type sealer struct {
	fn  func(string) (string, error)
	err error
}

func (s *sealer) do(fields ...*string) {
	for _, f := range fields {
		if s.err != nil {
			return
		}
		*f, s.err = s.fn(*f)
	}
}

func toApplicationDoc(c *fieldcrypt.Codec, app model.Application) (applicationDoc, error) {
	d := applicationDoc{
		ID: app.ID,
		Applicant: applicantDoc{
			Name:         app.Applicant.Name,
			Email:        app.Applicant.Email,
			Phone:        app.Applicant.Phone,
			SchoolStage:  app.Applicant.SchoolStage,
			City:         app.Applicant.City,
			Teams:        append([]string{}, app.Applicant.Teams...),
			Introduction: app.Applicant.Introduction,
		},
		Stage:               string(app.Stage),
		Assignee:            app.Assignee,
		AuditLog:            make([]auditDoc, 0, len(app.AuditLog)),
		LastNotificationRef: app.LastNotificationRef,
		DuplicateFlag:       app.DuplicateFlag,
		EmailHash:           app.EmailHash,
		Version:             app.Version,
		CreatedAt:           app.CreatedAt,
		UpdatedAt:           app.UpdatedAt,
	}
	if app.LastNotificationRef != "" {
		d.NotificationRefs = []string{app.LastNotificationRef}
	}
	for _, e := range app.AuditLog {
		d.AuditLog = append(d.AuditLog, auditDoc{
			At: e.At, Actor: e.Actor, Action: string(e.Action),
			From: string(e.From), To: string(e.To), Note: e.Note,
			FromAssignee: e.FromAssignee, ToAssignee: e.ToAssignee,
		})
	}
	if a := app.AdminData; a != nil {
		d.AdminData = &adminDataDoc{OfficialEmail: a.OfficialEmail, Group: a.Group, Position: a.Position}
	}
	if a := app.ApplicantData; a != nil {
		d.ApplicantData = &applicantDataDoc{Nickname: a.Nickname, School: a.School, EmergencyContact: a.EmergencyContact}
	}

	s := sealer{fn: c.Encrypt}
	s.do(&d.Applicant.Name, &d.Applicant.Email, &d.Applicant.Phone,
		&d.Applicant.SchoolStage, &d.Applicant.City, &d.Applicant.Introduction)
	if d.ApplicantData != nil {
		s.do(&d.ApplicantData.EmergencyContact)
	}
	if s.err != nil {
		return applicationDoc{}, fmt.Errorf("encrypt application %s: %w", app.ID, s.err)
	}
	return d, nil
}

func fromApplicationDoc(c *fieldcrypt.Codec, d applicationDoc) (model.Application, error) {
	s := sealer{fn: c.Decrypt}
	s.do(&d.Applicant.Name, &d.Applicant.Email, &d.Applicant.Phone,
		&d.Applicant.SchoolStage, &d.Applicant.City, &d.Applicant.Introduction)
	if d.ApplicantData != nil {
		s.do(&d.ApplicantData.EmergencyContact)
	}
	if s.err != nil {
		return model.Application{}, fmt.Errorf("decrypt application %s: %w", d.ID, s.err)
	}

	app := model.Application{
		ID: d.ID,
		Applicant: model.Applicant{
			Name:         d.Applicant.Name,
			Email:        d.Applicant.Email,
			Phone:        d.Applicant.Phone,
			SchoolStage:  d.Applicant.SchoolStage,
			City:         d.Applicant.City,
			Teams:        d.Applicant.Teams,
			Introduction: d.Applicant.Introduction,
		},
		Stage:               model.Stage(d.Stage),
		Assignee:            d.Assignee,
		LastNotificationRef: d.LastNotificationRef,
		DuplicateFlag:       d.DuplicateFlag,
		EmailHash:           d.EmailHash,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
	for _, e := range d.AuditLog {
		app.AuditLog = append(app.AuditLog, model.AuditEntry{
			At: e.At, Actor: e.Actor, Action: model.Action(e.Action),
			From: model.Stage(e.From), To: model.Stage(e.To), Note: e.Note,
			FromAssignee: e.FromAssignee, ToAssignee: e.ToAssignee,
		})
	}
	if a := d.AdminData; a != nil {
		app.AdminData = &model.AdminData{OfficialEmail: a.OfficialEmail, Group: a.Group, Position: a.Position}
	}
	if a := d.ApplicantData; a != nil {
		app.ApplicantData = &model.ApplicantData{Nickname: a.Nickname, School: a.School, EmergencyContact: a.EmergencyContact}
	}
	return app, nil
}

func staffSecrets(d *staffDoc) []*string {
	return []*string{&d.Name, &d.Nickname, &d.Email, &d.Phone, &d.SchoolStage, &d.City,
		&d.School, &d.EmergencyContact, &d.LineID, &d.IGID, &d.Introduction}
}

func toStaffDoc(c *fieldcrypt.Codec, st model.Staff) (staffDoc, error) {
	d := staffDoc{
		ID:                  st.ID,
		ExternalID:          st.ExternalID,
		Name:                st.Name,
		Nickname:            st.Nickname,
		Email:               st.Email,
		OfficialEmail:       st.OfficialEmail,
		Phone:               st.Phone,
		SchoolStage:         st.SchoolStage,
		City:                st.City,
		School:              st.School,
		EmergencyContact:    st.EmergencyContact,
		LineID:              st.LineID,
		IGID:                st.IGID,
		Introduction:        st.Introduction,
		Group:               st.Group,
		Position:            st.Position,
		PrimaryRole:         st.PrimaryRole,
		Expertise:           st.Expertise,
		PermissionLevel:     st.PermissionLevel,
		EmploymentStatus:    string(st.EmploymentStatus),
		ActiveStatus:        string(st.ActiveStatus),
		IsSignup:            st.IsSignup,
		SourceApplicationID: st.SourceApplicationID,
		JoinedAt:            st.JoinedAt,
		LeftAt:              st.LeftAt,
		Version:             st.Version,
		CreatedAt:           st.CreatedAt,
		UpdatedAt:           st.UpdatedAt,
	}
	s := sealer{fn: c.Encrypt}
	s.do(staffSecrets(&d)...)
	if s.err != nil {
		return staffDoc{}, fmt.Errorf("encrypt staff %s: %w", st.ID, s.err)
	}
	return d, nil
}

func fromStaffDoc(c *fieldcrypt.Codec, d staffDoc) (model.Staff, error) {
	s := sealer{fn: c.Decrypt}
	s.do(staffSecrets(&d)...)
	if s.err != nil {
		return model.Staff{}, fmt.Errorf("decrypt staff %s: %w", d.ID, s.err)
	}
	return model.Staff{
		ID:                  d.ID,
		ExternalID:          d.ExternalID,
		Name:                d.Name,
		Nickname:            d.Nickname,
		Email:               d.Email,
		OfficialEmail:       d.OfficialEmail,
		Phone:               d.Phone,
		SchoolStage:         d.SchoolStage,
		City:                d.City,
		School:              d.School,
		EmergencyContact:    d.EmergencyContact,
		LineID:              d.LineID,
		IGID:                d.IGID,
		Introduction:        d.Introduction,
		Group:               d.Group,
		Position:            d.Position,
		PrimaryRole:         d.PrimaryRole,
		Expertise:           d.Expertise,
		PermissionLevel:     d.PermissionLevel,
		EmploymentStatus:    model.EmploymentStatus(d.EmploymentStatus),
		ActiveStatus:        model.ActiveStatus(d.ActiveStatus),
		IsSignup:            d.IsSignup,
		SourceApplicationID: d.SourceApplicationID,
		JoinedAt:            d.JoinedAt,
		LeftAt:              d.LeftAt,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}, nil
}
