// Package repository defines the application and staff stores and their errors.
package repository

import (
	"context"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

// DefaultFindLimit bounds Find when the query gives no limit.
const DefaultFindLimit = 100

// Query filters applications. Zero fields match everything.
type Query struct {
	Stages   []model.Stage
	Assignee string
	Team     string
	Limit    int
}

// StaffQuery filters staff records.
type StaffQuery struct {
	Group      string
	ActiveOnly bool
}

// ApplicationStore persists Application aggregates.
type ApplicationStore interface {
	// Create stores a new application with version 1 and returns the stored copy.
	// Returns ErrDuplicateID if the id exists.
	Create(ctx context.Context, app model.Application) (model.Application, error)

	// Get returns ErrNotFound if id is unknown.
	Get(ctx context.Context, id string) (model.Application, error)

	// GetByNotificationRef finds the application a posted message belongs
	// to, including superseded messages.
	GetByNotificationRef(ctx context.Context, ref string) (model.Application, error)

	ListByAssignee(ctx context.Context, staffID string, stages ...model.Stage) ([]model.Application, error)
	ListByStage(ctx context.Context, stages ...model.Stage) ([]model.Application, error)
	Find(ctx context.Context, q Query) ([]model.Application, error)

	// Update replaces the aggregate if its stored version equals
	// expectedVersion. The stored version becomes expectedVersion+1.
	// LastNotificationRef is owned by SetNotificationRef and is not
	// overwritten. Returns ErrVersionConflict on mismatch.
	Update(ctx context.Context, app model.Application, expectedVersion int64) (model.Application, error)

	// SetNotificationRef records ref only while the application is in stage.
	// Returns false when the stage moved on. The version is not bumped.
	SetNotificationRef(ctx context.Context, id string, stage model.Stage, ref string) (bool, error)

	ExistsEmailHash(ctx context.Context, hash string) (bool, error)
	CountByStage(ctx context.Context) (map[model.Stage]int, error)
}

// StaffStore persists Staff records. Staff are never deleted.
type StaffStore interface {
	// CreateStaff returns ErrDuplicateID when the id or external id is taken.
	CreateStaff(ctx context.Context, s model.Staff) (model.Staff, error)
	GetStaff(ctx context.Context, id string) (model.Staff, error)
	GetStaffByExternalID(ctx context.Context, externalID string) (model.Staff, error)
	UpdateStaff(ctx context.Context, s model.Staff, expectedVersion int64) (model.Staff, error)
	ListStaff(ctx context.Context, q StaffQuery) ([]model.Staff, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	ApplicationStore
	StaffStore
}

// Matches reports whether app satisfies q.
func (q Query) Matches(app model.Application) bool {
	if len(q.Stages) > 0 && !containsStage(q.Stages, app.Stage) {
		return false
	}
	if q.Assignee != "" && app.Assignee != q.Assignee {
		return false
	}
	if q.Team != "" && !app.HasTeam(q.Team) {
		return false
	}
	return true
}

// EffectiveLimit returns the limit Find applies.
func (q Query) EffectiveLimit() int {
	if q.Limit <= 0 || q.Limit > DefaultFindLimit {
		return DefaultFindLimit
	}
	return q.Limit
}

// Matches reports whether s satisfies q.
func (q StaffQuery) Matches(s model.Staff) bool {
	if q.Group != "" && s.Group != q.Group {
		return false
	}
	return !q.ActiveOnly || s.Active()
}

func containsStage(stages []model.Stage, s model.Stage) bool {
	for _, st := range stages {
		if st == s {
			return true
		}
	}
	return false
}
