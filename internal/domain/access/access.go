// Package access resolves chat actors to staff records and decides whether
// an actor may act on an application. The rules here never perform I/O.
package access

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

// ErrUnknownActor is returned when an external id maps to no staff record.
var ErrUnknownActor = errors.New("actor is not a registered staff member")

// Resolver maps an external actor id to a staff record.
type Resolver interface {
	Resolve(ctx context.Context, externalID string) (model.Staff, error)
}

// Policy holds the configurable permission thresholds.
type Policy struct {
	// AcceptLevel is required to take an unassigned application.
	AcceptLevel int
	// OverrideLevel lets non-assignees act on any application.
	OverrideLevel int
	// AdminLevel is required for staff administration.
	AdminLevel int
}

// DefaultPolicy returns the stock thresholds.
func DefaultPolicy() Policy {
	return Policy{AcceptLevel: 2, OverrideLevel: 2, AdminLevel: 4}
}

// Authorize is true iff the staff member is active and either holds
// requiredLevel or is the application's assignee.
func Authorize(staff model.Staff, app model.Application, requiredLevel int) bool {
	if !staff.Active() {
		return false
	}
	if staff.PermissionLevel >= requiredLevel {
		return true
	}
	return app.Assignee != "" && staff.ID == app.Assignee
}

// CanAct reports whether staff may run a regular action on app.
func (p Policy) CanAct(staff model.Staff, app model.Application) bool {
	return Authorize(staff, app, p.OverrideLevel)
}

// CanAccept reports whether staff may take an unassigned application.
func (p Policy) CanAccept(staff model.Staff) bool {
	return staff.Active() && staff.PermissionLevel >= p.AcceptLevel
}

// CanAdminister reports whether actor may change target's level to level.
// Nobody grants a level above their own or edits someone at or above it,
// except for their own record.
func (p Policy) CanAdminister(actor, target model.Staff, level int) bool {
	if !actor.Active() || actor.PermissionLevel < p.AdminLevel {
		return false
	}
	if level > actor.PermissionLevel {
		return false
	}
	return actor.ID == target.ID || target.PermissionLevel < actor.PermissionLevel
}

// MapResolver is an in-memory Resolver keyed by external id.
type MapResolver struct {
	mu    sync.RWMutex
	staff map[string]model.Staff
}

// NewMapResolver returns a resolver seeded with staff.
func NewMapResolver(staff ...model.Staff) *MapResolver {
	r := &MapResolver{staff: make(map[string]model.Staff, len(staff))}
	for _, s := range staff {
		r.staff[s.ExternalID] = s
	}
	return r
}

// Put adds or replaces a staff record.
func (r *MapResolver) Put(s model.Staff) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staff[s.ExternalID] = s
}

// Resolve implements Resolver.
func (r *MapResolver) Resolve(_ context.Context, externalID string) (model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.staff[externalID]
	if !ok {
		return model.Staff{}, ErrUnknownActor
	}
	return s, nil
}

// StaffLookup is the slice of the staff store a StoreResolver needs.
type StaffLookup interface {
	GetStaffByExternalID(ctx context.Context, externalID string) (model.Staff, error)
}

// StoreResolver resolves actors against the staff store.
type StoreResolver struct {
	staff    StaffLookup
	notFound error
}

// NewStoreResolver returns a Resolver backed by staff. Lookup errors matching
// notFound are reported as ErrUnknownActor; any other error is passed on.
func NewStoreResolver(staff StaffLookup, notFound error) *StoreResolver {
	return &StoreResolver{staff: staff, notFound: notFound}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, externalID string) (model.Staff, error) {
	if externalID == "" {
		return model.Staff{}, ErrUnknownActor
	}
	s, err := r.staff.GetStaffByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return s, nil
	case r.notFound != nil && errors.Is(err, r.notFound):
		return model.Staff{}, fmt.Errorf("%w: %s: %w", ErrUnknownActor, externalID, err)
	default:
		return model.Staff{}, fmt.Errorf("resolve actor %s: %w", externalID, err)
	}
}
