package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

func newApp(id string, stage model.Stage) model.Application {
	return model.Application{
		ID:        id,
		Stage:     stage,
		Applicant: model.Applicant{Name: "n-" + id, Email: id + "@example.org", Teams: []string{"design"}},
		EmailHash: model.EmailFingerprint(id + "@example.org"),
	}
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(context.Background(), WithMetricsUpdateInterval(time.Hour))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stored, err := s.Create(ctx, newApp("a1", model.StageSubmitted))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Version != 1 {
		t.Errorf("expected version 1, got %d", stored.Version)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("expected created_at to be set")
	}

	if _, err := s.Create(ctx, newApp("a1", model.StageSubmitted)); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}

	got, err := s.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got.Applicant.Teams[0] = "mutated"
	again, _ := s.Get(ctx, "a1")
	if again.Applicant.Teams[0] != "design" {
		t.Error("store leaked internal state through Get")
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateVersioning(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	app, _ := s.Create(ctx, newApp("a1", model.StageSubmitted))

	app.Stage = model.StageAssignedNotContacted
	app.Assignee = "s1"
	updated, err := s.Update(ctx, app, app.Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}

	// A writer holding the old version loses.
	app.Stage = model.StageCancelled
	if _, err := s.Update(ctx, app, 1); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}
	got, _ := s.Get(ctx, "a1")
	if got.Stage != model.StageAssignedNotContacted {
		t.Errorf("conflicting update was applied: %s", got.Stage)
	}

	if _, err := s.Update(ctx, newApp("nope", model.StageSubmitted), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_ConcurrentUpdatesOneWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	app, _ := s.Create(ctx, newApp("a1", model.StageSubmitted))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := app.Clone()
			next.Assignee = fmt.Sprintf("s%d", i)
			if _, err := s.Update(ctx, next, app.Version); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if wins != 1 {
		t.Errorf("expected exactly one winner, got %d", wins)
	}
}

func TestMemoryStore_NotificationRef(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	app, _ := s.Create(ctx, newApp("a1", model.StageSubmitted))

	ok, err := s.SetNotificationRef(ctx, "a1", model.StageSubmitted, "m1")
	if err != nil || !ok {
		t.Fatalf("expected ref to apply, got %v %v", ok, err)
	}
	got, err := s.GetByNotificationRef(ctx, "m1")
	if err != nil || got.ID != "a1" {
		t.Fatalf("lookup by ref failed: %v %v", got.ID, err)
	}
	if got.Version != app.Version {
		t.Errorf("ref patch must not bump the version")
	}

	// Update never clobbers the ref recorded by the poster.
	app.Stage = model.StageAssignedNotContacted
	updated, err := s.Update(ctx, app, app.Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.LastNotificationRef != "m1" {
		t.Errorf("expected ref m1 to survive update, got %q", updated.LastNotificationRef)
	}

	// The stage moved on, so a late ref for the old stage is ignored.
	ok, err = s.SetNotificationRef(ctx, "a1", model.StageSubmitted, "late")
	if err != nil || ok {
		t.Errorf("expected stale ref to be ignored, got %v %v", ok, err)
	}
	if _, err := s.GetByNotificationRef(ctx, "late"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an ignored ref, got %v", err)
	}

	ok, _ = s.SetNotificationRef(ctx, "a1", model.StageAssignedNotContacted, "m2")
	if !ok {
		t.Fatal("expected ref for the current stage to apply")
	}
	old, err := s.GetByNotificationRef(ctx, "m1")
	if err != nil || old.ID != "a1" {
		t.Errorf("superseded ref should still resolve, got %v", err)
	}
	if old.LastNotificationRef != "m2" {
		t.Errorf("expected latest ref m2, got %q", old.LastNotificationRef)
	}
}

func TestMemoryStore_Queries(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t)

	for i, st := range []model.Stage{model.StageSubmitted, model.StageSubmitted, model.StageContactAttempted, model.StagePassed} {
		app := newApp(fmt.Sprintf("a%d", i), st)
		app.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if st != model.StageSubmitted {
			app.Assignee = "s1"
		}
		if i == 2 {
			app.Applicant.Teams = []string{"IT"}
		}
		if _, err := s.Create(ctx, app); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	open, _ := s.ListByStage(ctx, model.StageSubmitted)
	if len(open) != 2 || open[0].ID != "a0" || open[1].ID != "a1" {
		t.Errorf("unexpected ListByStage result: %+v", open)
	}

	mine, _ := s.ListByAssignee(ctx, "s1", model.OpenStages()...)
	if len(mine) != 1 || mine[0].ID != "a2" {
		t.Errorf("unexpected ListByAssignee result: %+v", mine)
	}

	all, _ := s.ListByAssignee(ctx, "s1")
	if len(all) != 2 {
		t.Errorf("expected all stages without a filter, got %d", len(all))
	}

	byTeam, _ := s.Find(ctx, Query{Team: "it"})
	if len(byTeam) != 1 || byTeam[0].ID != "a2" {
		t.Errorf("unexpected team search: %+v", byTeam)
	}

	limited, _ := s.Find(ctx, Query{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "a0" {
		t.Errorf("unexpected limited search: %+v", limited)
	}

	counts, _ := s.CountByStage(ctx)
	if counts[model.StageSubmitted] != 2 || counts[model.StagePassed] != 1 {
		t.Errorf("unexpected counts: %v", counts)
	}

	dup, _ := s.ExistsEmailHash(ctx, model.EmailFingerprint(" A0@example.org "))
	if !dup {
		t.Error("expected fingerprint to match regardless of case and spaces")
	}
	none, _ := s.ExistsEmailHash(ctx, model.EmailFingerprint("other@example.org"))
	if none {
		t.Error("unexpected fingerprint match")
	}
}

func TestMemoryStore_Staff(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.CreateStaff(ctx, model.Staff{ID: "s1", ExternalID: "d1", Name: "Lin", Group: "it", ActiveStatus: model.StatusActive})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.CreateStaff(ctx, model.Staff{ID: "s2", ExternalID: "d1"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID for a taken external id, got %v", err)
	}
	if _, err := s.CreateStaff(ctx, model.Staff{ID: "s3", Group: "it", ActiveStatus: model.StatusInactive}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetStaffByExternalID(ctx, "d1")
	if err != nil || got.ID != "s1" {
		t.Fatalf("lookup by external id failed: %v", err)
	}
	if _, err := s.GetStaffByExternalID(ctx, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("empty external id must not resolve, got %v", err)
	}

	st.PermissionLevel = 3
	st, err = s.UpdateStaff(ctx, st, st.Version)
	if err != nil || st.Version != 2 {
		t.Fatalf("update failed: %v (version %d)", err, st.Version)
	}
	if _, err := s.UpdateStaff(ctx, st, 1); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	s3, _ := s.GetStaff(ctx, "s3")
	s3.ExternalID = "d2"
	if _, err := s.UpdateStaff(ctx, s3, s3.Version); err != nil {
		t.Fatalf("binding an external id failed: %v", err)
	}
	if got, err := s.GetStaffByExternalID(ctx, "d2"); err != nil || got.ID != "s3" {
		t.Errorf("expected d2 to resolve to s3, got %v", err)
	}

	active, _ := s.ListStaff(ctx, StaffQuery{Group: "it", ActiveOnly: true})
	if len(active) != 1 || active[0].ID != "s1" {
		t.Errorf("unexpected active staff: %+v", active)
	}
	everyone, _ := s.ListStaff(ctx, StaffQuery{})
	if len(everyone) != 2 {
		t.Errorf("expected 2 staff, got %d", len(everyone))
	}
}
