// Package signup implements the multi-step self-registration of existing
// members. Partial answers live in a SessionStore under a TTL; a step that
// arrives after its session expired restarts the flow.
package signup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

var (
	ErrSessionExpired   = errors.New("signup session expired, start again")
	ErrAlreadySubmitted = errors.New("signup already submitted")
	ErrOutOfOrder       = errors.New("signup step out of order")
	ErrMissingField     = errors.New("required signup field missing")
	ErrUnknownStep      = errors.New("unknown signup step")
)

// Step names one form page.
type Step string

// Steps in order.
const (
	StepBasic   Step = "basic"
	StepSchool  Step = "school"
	StepContact Step = "contact"
	StepGroup   Step = "group"
	StepJob     Step = "job"
)

// Steps lists the flow order.
var Steps = []Step{StepBasic, StepSchool, StepContact, StepGroup, StepJob} //nolint:gochecknoglobals // fixed order

// Field keys per step. Keys marked required must be non-blank.
var stepFields = map[Step][]fieldSpec{ //nolint:gochecknoglobals // fixed lookup
	StepBasic: {
		{"name", true}, {"nickname", false}, {"email", true}, {"phone", true}, {"school_stage", true},
	},
	StepSchool: {
		{"city", true}, {"school", false}, {"emergency_contact", false},
	},
	StepContact: {
		{"line_id", false}, {"ig_id", false}, {"introduction", false},
	},
	StepGroup: {
		{"group", true},
	},
	StepJob: {
		{"position", true}, {"primary_role", false}, {"expertise", false},
	},
}

type fieldSpec struct {
	key      string
	required bool
}

// Fields returns the keys accepted by step.
func Fields(step Step) []string {
	specs := stepFields[step]
	out := make([]string, len(specs))
	for i, f := range specs {
		out[i] = f.key
	}
	return out
}

// ParseStep validates a step name.
func ParseStep(s string) (Step, bool) {
	for _, st := range Steps {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Next returns the step after s.
func (s Step) Next() (Step, bool) {
	for i, st := range Steps {
		if st == s && i+1 < len(Steps) {
			return Steps[i+1], true
		}
	}
	return "", false
}

// Data is the accumulated answers of one signup session.
type Data struct {
	Completed []Step            `json:"completed"`
	Values    map[string]string `json:"values"`
}

// Expected returns the next step Data is waiting for.
func (d Data) Expected() Step {
	if len(d.Completed) == 0 {
		return StepBasic
	}
	next, ok := d.Completed[len(d.Completed)-1].Next()
	if !ok {
		return ""
	}
	return next
}

// SessionStore keeps partial signup data.
type SessionStore interface {
	// Load returns false when no session exists or it expired.
	Load(ctx context.Context, externalID string) (Data, bool, error)
	Save(ctx context.Context, externalID string, d Data) error
	Delete(ctx context.Context, externalID string) error
	// MarkSubmitted records completion. Returns false if already marked.
	MarkSubmitted(ctx context.Context, externalID string) (bool, error)
	Submitted(ctx context.Context, externalID string) (bool, error)
}

// StaffWriter creates the staff record at the end of the flow.
type StaffWriter interface {
	CreateStaff(ctx context.Context, s model.Staff) (model.Staff, error)
	GetStaffByExternalID(ctx context.Context, externalID string) (model.Staff, error)
}

// Progress reports the state after a step.
type Progress struct {
	Next  Step
	Done  bool
	Staff model.Staff
}

// Flow drives the signup steps.
type Flow struct {
	sessions SessionStore
	staff    StaffWriter
	notFound error
	newID    func() string
	now      func() time.Time
	level    int
}

// NewFlow returns a flow creating staff records with permission level 1.
// notFound is the error staff lookups wrap when no record exists; any other
// lookup failure aborts the step.
func NewFlow(sessions SessionStore, staff StaffWriter, notFound error, newID func() string, opts ...FlowOption) *Flow {
	f := &Flow{sessions: sessions, staff: staff, notFound: notFound, newID: newID, now: time.Now, level: 1}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithClock overrides the time source.
func WithClock(now func() time.Time) FlowOption {
	return func(f *Flow) { f.now = now }
}

// Submit records the answers of one step for externalID.
func (f *Flow) Submit(ctx context.Context, externalID string, step Step, values map[string]string) (Progress, error) {
	specs, ok := stepFields[step]
	if !ok {
		return Progress{}, fmt.Errorf("%w: %q", ErrUnknownStep, step)
	}
	if done, err := f.alreadySubmitted(ctx, externalID); err != nil {
		return Progress{}, err
	} else if done {
		return Progress{}, ErrAlreadySubmitted
	}

	var d Data
	if step == StepBasic {
		// The first step always starts over.
		d = Data{Values: map[string]string{}}
	} else {
		loaded, found, err := f.sessions.Load(ctx, externalID)
		if err != nil {
			return Progress{}, fmt.Errorf("load signup session: %w", err)
		}
		if !found {
			return Progress{Next: StepBasic}, ErrSessionExpired
		}
		d = loaded
		if d.Values == nil {
			d.Values = map[string]string{}
		}
		if want := d.Expected(); want != step {
			return Progress{Next: want}, fmt.Errorf("%w: expected %s, got %s", ErrOutOfOrder, want, step)
		}
	}

	for _, spec := range specs {
		v := strings.TrimSpace(values[spec.key])
		if spec.required && v == "" {
			return Progress{Next: step}, fmt.Errorf("%w: %s", ErrMissingField, spec.key)
		}
		d.Values[spec.key] = v
	}
	d.Completed = append(d.Completed, step)

	next, more := step.Next()
	if more {
		if err := f.sessions.Save(ctx, externalID, d); err != nil {
			return Progress{}, fmt.Errorf("save signup session: %w", err)
		}
		return Progress{Next: next}, nil
	}
	return f.complete(ctx, externalID, d)
}

func (f *Flow) alreadySubmitted(ctx context.Context, externalID string) (bool, error) {
	done, err := f.sessions.Submitted(ctx, externalID)
	if err != nil {
		return false, fmt.Errorf("check signup marker: %w", err)
	}
	if done {
		return true, nil
	}
	_, err = f.staff.GetStaffByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, f.notFound):
		return false, nil
	default:
		return false, fmt.Errorf("look up staff record: %w", err)
	}
}

func (f *Flow) complete(ctx context.Context, externalID string, d Data) (Progress, error) {
	now := f.now()
	v := d.Values
	st := model.Staff{
		ID:               f.newID(),
		ExternalID:       externalID,
		Name:             v["name"],
		Nickname:         v["nickname"],
		Email:            v["email"],
		Phone:            v["phone"],
		SchoolStage:      v["school_stage"],
		City:             v["city"],
		School:           v["school"],
		EmergencyContact: v["emergency_contact"],
		LineID:           v["line_id"],
		IGID:             v["ig_id"],
		Introduction:     v["introduction"],
		Group:            v["group"],
		Position:         v["position"],
		PrimaryRole:      v["primary_role"],
		Expertise:        v["expertise"],
		PermissionLevel:  f.level,
		EmploymentStatus: model.EmploymentNormal,
		ActiveStatus:     model.StatusActive,
		IsSignup:         true,
		JoinedAt:         now,
		CreatedAt:        now,
	}
	// The unique external id makes a concurrent second completion fail here.
	stored, err := f.staff.CreateStaff(ctx, st)
	if err != nil {
		return Progress{}, fmt.Errorf("create signup staff: %w", err)
	}
	if _, err := f.sessions.MarkSubmitted(ctx, externalID); err != nil {
		return Progress{}, fmt.Errorf("mark signup submitted: %w", err)
	}
	if err := f.sessions.Delete(ctx, externalID); err != nil {
		return Progress{}, fmt.Errorf("delete signup session: %w", err)
	}
	return Progress{Done: true, Staff: stored}, nil
}

// Required reports whether key must be answered in step.
func Required(step Step, key string) bool {
	for _, f := range stepFields[step] {
		if f.key == key {
			return f.required
		}
	}
	return false
}
