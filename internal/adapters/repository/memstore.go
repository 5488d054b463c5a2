package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

const storeLabel = "memory"

// MemoryStore is an in-process Store. Every read and write goes through a
// deep copy so callers never alias stored state. byRef keeps every ref ever
// recorded so clicks on superseded messages still resolve.
type MemoryStore struct {
	mu           sync.RWMutex
	apps         map[string]model.Application
	byRef        map[string]string
	staff        map[string]model.Staff
	byExternalID map[string]string

	metricsUpdateInterval time.Duration
	now                   func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewMemoryStore constructs a memory store. The background gauge updater
// stops when ctx is done or Close is called.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		apps:                  make(map[string]model.Application),
		byRef:                 make(map[string]string),
		staff:                 make(map[string]model.Staff),
		byExternalID:          make(map[string]string),
		metricsUpdateInterval: 5 * time.Second,
		now:                   time.Now,
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the background goroutine.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(storeLabel, op, float64(time.Since(start).Microseconds())/1000)
}

// Create implements ApplicationStore.
func (s *MemoryStore) Create(_ context.Context, app model.Application) (model.Application, error) {
	defer observe("create", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[app.ID]; ok {
		return model.Application{}, fmt.Errorf("%w: application %s", ErrDuplicateID, app.ID)
	}
	stored := app.Clone()
	stored.Version = 1
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.UpdatedAt = stored.CreatedAt
	s.apps[stored.ID] = stored
	if stored.LastNotificationRef != "" {
		s.byRef[stored.LastNotificationRef] = stored.ID
	}
	return stored.Clone(), nil
}

// Get implements ApplicationStore.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Application, error) {
	defer observe("get", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return model.Application{}, fmt.Errorf("%w: application %s", ErrNotFound, id)
	}
	return app.Clone(), nil
}

// GetByNotificationRef implements ApplicationStore.
func (s *MemoryStore) GetByNotificationRef(_ context.Context, ref string) (model.Application, error) {
	defer observe("get_by_ref", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byRef[ref]
	if !ok || ref == "" {
		return model.Application{}, fmt.Errorf("%w: notification %s", ErrNotFound, ref)
	}
	return s.apps[id].Clone(), nil
}

// ListByAssignee implements ApplicationStore.
func (s *MemoryStore) ListByAssignee(_ context.Context, staffID string, stages ...model.Stage) ([]model.Application, error) {
	defer observe("list_by_assignee", time.Now())
	return s.collect(Query{Assignee: staffID, Stages: stages}, 0), nil
}

// ListByStage implements ApplicationStore.
func (s *MemoryStore) ListByStage(_ context.Context, stages ...model.Stage) ([]model.Application, error) {
	defer observe("list_by_stage", time.Now())
	return s.collect(Query{Stages: stages}, 0), nil
}

// Find implements ApplicationStore.
func (s *MemoryStore) Find(_ context.Context, q Query) ([]model.Application, error) {
	defer observe("find", time.Now())
	return s.collect(q, q.EffectiveLimit()), nil
}

func (s *MemoryStore) collect(q Query, limit int) []model.Application {
	s.mu.RLock()
	out := make([]model.Application, 0)
	for _, app := range s.apps {
		if q.Matches(app) {
			out = append(out, app.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Update implements ApplicationStore.
func (s *MemoryStore) Update(_ context.Context, app model.Application, expectedVersion int64) (model.Application, error) {
	defer observe("update", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.apps[app.ID]
	if !ok {
		return model.Application{}, fmt.Errorf("%w: application %s", ErrNotFound, app.ID)
	}
	if cur.Version != expectedVersion {
		metrics.RecordErrorByComponent("repository", "version_conflict")
		return model.Application{}, fmt.Errorf("%w: application %s at version %d, expected %d",
			ErrVersionConflict, app.ID, cur.Version, expectedVersion)
	}
	stored := app.Clone()
	stored.Version = expectedVersion + 1
	stored.CreatedAt = cur.CreatedAt
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = s.now()
	}
	stored.LastNotificationRef = cur.LastNotificationRef
	s.apps[stored.ID] = stored
	return stored.Clone(), nil
}

// SetNotificationRef implements ApplicationStore.
func (s *MemoryStore) SetNotificationRef(_ context.Context, id string, stage model.Stage, ref string) (bool, error) {
	defer observe("set_notification_ref", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return false, fmt.Errorf("%w: application %s", ErrNotFound, id)
	}
	if app.Stage != stage {
		return false, nil
	}
	app.LastNotificationRef = ref
	s.apps[id] = app
	if ref != "" {
		s.byRef[ref] = id
	}
	return true, nil
}

// ExistsEmailHash implements ApplicationStore.
func (s *MemoryStore) ExistsEmailHash(_ context.Context, hash string) (bool, error) {
	defer observe("exists_email_hash", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, app := range s.apps {
		if app.EmailHash == hash {
			return true, nil
		}
	}
	return false, nil
}

// CountByStage implements ApplicationStore.
func (s *MemoryStore) CountByStage(_ context.Context) (map[model.Stage]int, error) {
	defer observe("count_by_stage", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countLocked(), nil
}

func (s *MemoryStore) countLocked() map[model.Stage]int {
	out := make(map[model.Stage]int, len(model.Stages))
	for _, app := range s.apps {
		out[app.Stage]++
	}
	return out
}

// CreateStaff implements StaffStore.
func (s *MemoryStore) CreateStaff(_ context.Context, st model.Staff) (model.Staff, error) {
	defer observe("create_staff", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.staff[st.ID]; ok {
		return model.Staff{}, fmt.Errorf("%w: staff %s", ErrDuplicateID, st.ID)
	}
	if st.ExternalID != "" {
		if _, ok := s.byExternalID[st.ExternalID]; ok {
			return model.Staff{}, fmt.Errorf("%w: external id %s", ErrDuplicateID, st.ExternalID)
		}
	}
	st.Version = 1
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}
	st.UpdatedAt = st.CreatedAt
	s.staff[st.ID] = st
	if st.ExternalID != "" {
		s.byExternalID[st.ExternalID] = st.ID
	}
	return cloneStaff(st), nil
}

// GetStaff implements StaffStore.
func (s *MemoryStore) GetStaff(_ context.Context, id string) (model.Staff, error) {
	defer observe("get_staff", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[id]
	if !ok {
		return model.Staff{}, fmt.Errorf("%w: staff %s", ErrNotFound, id)
	}
	return cloneStaff(st), nil
}

// GetStaffByExternalID implements StaffStore.
func (s *MemoryStore) GetStaffByExternalID(_ context.Context, externalID string) (model.Staff, error) {
	defer observe("get_staff_by_external_id", time.Now())

	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternalID[externalID]
	if !ok || externalID == "" {
		return model.Staff{}, fmt.Errorf("%w: external id %s", ErrNotFound, externalID)
	}
	return cloneStaff(s.staff[id]), nil
}

// UpdateStaff implements StaffStore.
func (s *MemoryStore) UpdateStaff(_ context.Context, st model.Staff, expectedVersion int64) (model.Staff, error) {
	defer observe("update_staff", time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.staff[st.ID]
	if !ok {
		return model.Staff{}, fmt.Errorf("%w: staff %s", ErrNotFound, st.ID)
	}
	if cur.Version != expectedVersion {
		return model.Staff{}, fmt.Errorf("%w: staff %s at version %d, expected %d",
			ErrVersionConflict, st.ID, cur.Version, expectedVersion)
	}
	if st.ExternalID != cur.ExternalID && st.ExternalID != "" {
		if owner, taken := s.byExternalID[st.ExternalID]; taken && owner != st.ID {
			return model.Staff{}, fmt.Errorf("%w: external id %s", ErrDuplicateID, st.ExternalID)
		}
	}
	st.Version = expectedVersion + 1
	st.CreatedAt = cur.CreatedAt
	st.UpdatedAt = s.now()
	if cur.ExternalID != st.ExternalID {
		delete(s.byExternalID, cur.ExternalID)
		if st.ExternalID != "" {
			s.byExternalID[st.ExternalID] = st.ID
		}
	}
	s.staff[st.ID] = st
	return cloneStaff(st), nil
}

// ListStaff implements StaffStore.
func (s *MemoryStore) ListStaff(_ context.Context, q StaffQuery) ([]model.Staff, error) {
	defer observe("list_staff", time.Now())

	s.mu.RLock()
	out := make([]model.Staff, 0, len(s.staff))
	for _, st := range s.staff {
		if q.Matches(st) {
			out = append(out, cloneStaff(st))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneStaff(s model.Staff) model.Staff {
	if s.LeftAt != nil {
		t := *s.LeftAt
		s.LeftAt = &t
	}
	return s
}

// startMetricsUpdater publishes per-stage gauges on an interval.
func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	counts := s.countLocked()
	s.mu.RUnlock()

	snapshot := make(map[string]int, len(counts))
	for stage, n := range counts {
		snapshot[string(stage)] = n
	}
	metrics.UpdateApplicationsByStage(snapshot)
}

var _ Store = (*MemoryStore)(nil)
