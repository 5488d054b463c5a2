// Package mongostore implements the repository stores and the outcome
// ledger on MongoDB. PII fields are encrypted with fieldcrypt.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/adapters/repository/fieldcrypt"
	"github.com/hackit-tw/recruit/internal/domain/dedupe"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/pkg/metrics"
)

// Collection names.
const (
	ApplicationsCollection = "applications"
	StaffCollection        = "staff"
	LedgerCollection       = "outcome_ledger"
)

const storeLabel = "mongo"

// Store is a MongoDB backed repository.Store and dedupe.Ledger.
type Store struct {
	client *mongo.Client
	apps   *mongo.Collection
	staff  *mongo.Collection
	ledger *mongo.Collection
	codec  *fieldcrypt.Codec
	now    func() time.Time
}

// Connect dials uri, selects database and prepares the indexes.
func Connect(ctx context.Context, uri, database string, codec *fieldcrypt.Codec) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := New(client.Database(database), codec)
	s.client = client
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle.
func New(db *mongo.Database, codec *fieldcrypt.Codec) *Store {
	return &Store{
		apps:   db.Collection(ApplicationsCollection),
		staff:  db.Collection(StaffCollection),
		ledger: db.Collection(LedgerCollection),
		codec:  codec,
		now:    time.Now,
	}
}

// Close disconnects the client when the store owns it.
func (s *Store) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the indexes the queries rely on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	appIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "notification_refs", Value: 1}}},
		{Keys: bson.D{{Key: "assignee", Value: 1}, {Key: "stage", Value: 1}}},
		{Keys: bson.D{{Key: "stage", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "applicant.teams", Value: 1}}},
		{Keys: bson.D{{Key: "email_hash", Value: 1}}},
	}
	if _, err := s.apps.Indexes().CreateMany(ctx, appIndexes); err != nil {
		return fmt.Errorf("mongo indexes %s: %w", ApplicationsCollection, err)
	}
	staffIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "external_id", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		{Keys: bson.D{{Key: "group", Value: 1}, {Key: "active_status", Value: 1}}},
	}
	if _, err := s.staff.Indexes().CreateMany(ctx, staffIndexes); err != nil {
		return fmt.Errorf("mongo indexes %s: %w", StaffCollection, err)
	}
	return nil
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(storeLabel, op, float64(time.Since(start).Microseconds())/1000)
}

// Create implements repository.ApplicationStore.
func (s *Store) Create(ctx context.Context, app model.Application) (model.Application, error) {
	defer observe("create", time.Now())

	app = app.Clone()
	app.Version = 1
	if app.CreatedAt.IsZero() {
		app.CreatedAt = s.now()
	}
	app.UpdatedAt = app.CreatedAt
	doc, err := toApplicationDoc(s.codec, app)
	if err != nil {
		return model.Application{}, err
	}
	if _, err := s.apps.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Application{}, fmt.Errorf("%w: application %s", repository.ErrDuplicateID, app.ID)
		}
		return model.Application{}, fmt.Errorf("insert application: %w", err)
	}
	return app, nil
}

// Get implements repository.ApplicationStore.
func (s *Store) Get(ctx context.Context, id string) (model.Application, error) {
	defer observe("get", time.Now())
	return s.findOneApp(ctx, bson.M{"_id": id}, "application "+id)
}

// GetByNotificationRef implements repository.ApplicationStore.
func (s *Store) GetByNotificationRef(ctx context.Context, ref string) (model.Application, error) {
	defer observe("get_by_ref", time.Now())
	if ref == "" {
		return model.Application{}, fmt.Errorf("%w: empty notification ref", repository.ErrNotFound)
	}
	return s.findOneApp(ctx, bson.M{"notification_refs": ref}, "notification "+ref)
}

func (s *Store) findOneApp(ctx context.Context, filter bson.M, what string) (model.Application, error) {
	var doc applicationDoc
	if err := s.apps.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Application{}, fmt.Errorf("%w: %s", repository.ErrNotFound, what)
		}
		return model.Application{}, fmt.Errorf("find %s: %w", what, err)
	}
	return fromApplicationDoc(s.codec, doc)
}

// ListByAssignee implements repository.ApplicationStore.
func (s *Store) ListByAssignee(ctx context.Context, staffID string, stages ...model.Stage) ([]model.Application, error) {
	defer observe("list_by_assignee", time.Now())
	return s.findApps(ctx, queryFilter(repository.Query{Assignee: staffID, Stages: stages}), 0)
}

// ListByStage implements repository.ApplicationStore.
func (s *Store) ListByStage(ctx context.Context, stages ...model.Stage) ([]model.Application, error) {
	defer observe("list_by_stage", time.Now())
	return s.findApps(ctx, queryFilter(repository.Query{Stages: stages}), 0)
}

// Find implements repository.ApplicationStore.
func (s *Store) Find(ctx context.Context, q repository.Query) ([]model.Application, error) {
	defer observe("find", time.Now())
	return s.findApps(ctx, queryFilter(q), q.EffectiveLimit())
}

func (s *Store) findApps(ctx context.Context, filter bson.M, limit int) ([]model.Application, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.apps.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find applications: %w", err)
	}
	var docs []applicationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode applications: %w", err)
	}
	out := make([]model.Application, 0, len(docs))
	for _, d := range docs {
		app, err := fromApplicationDoc(s.codec, d)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, nil
}

// Update implements repository.ApplicationStore.
func (s *Store) Update(ctx context.Context, app model.Application, expectedVersion int64) (model.Application, error) {
	defer observe("update", time.Now())

	next := app.Clone()
	next.Version = expectedVersion + 1
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = s.now()
	}
	doc, err := toApplicationDoc(s.codec, next)
	if err != nil {
		return model.Application{}, err
	}
	// Fields owned by Create and SetNotificationRef stay untouched.
	doc.ID = ""
	doc.CreatedAt = time.Time{}
	doc.LastNotificationRef = ""
	doc.NotificationRefs = nil

	var stored applicationDoc
	err = s.apps.FindOneAndUpdate(ctx,
		bson.M{"_id": app.ID, "version": expectedVersion},
		bson.M{"$set": doc},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&stored)
	if err == nil {
		return fromApplicationDoc(s.codec, stored)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return model.Application{}, fmt.Errorf("update application %s: %w", app.ID, err)
	}
	n, cerr := s.apps.CountDocuments(ctx, bson.M{"_id": app.ID})
	switch {
	case cerr != nil:
		return model.Application{}, fmt.Errorf("update application %s: %w", app.ID, cerr)
	case n == 0:
		return model.Application{}, fmt.Errorf("%w: application %s", repository.ErrNotFound, app.ID)
	default:
		metrics.RecordErrorByComponent("repository", "version_conflict")
		return model.Application{}, fmt.Errorf("%w: application %s, expected version %d",
			repository.ErrVersionConflict, app.ID, expectedVersion)
	}
}

// SetNotificationRef implements repository.ApplicationStore.
func (s *Store) SetNotificationRef(ctx context.Context, id string, stage model.Stage, ref string) (bool, error) {
	defer observe("set_notification_ref", time.Now())

	update := bson.M{"$set": bson.M{"last_notification_ref": ref}}
	if ref != "" {
		update["$addToSet"] = bson.M{"notification_refs": ref}
	}
	res, err := s.apps.UpdateOne(ctx, bson.M{"_id": id, "stage": string(stage)}, update)
	if err != nil {
		return false, fmt.Errorf("set notification ref %s: %w", id, err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	n, err := s.apps.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("set notification ref %s: %w", id, err)
	}
	if n == 0 {
		return false, fmt.Errorf("%w: application %s", repository.ErrNotFound, id)
	}
	return false, nil
}

// ExistsEmailHash implements repository.ApplicationStore.
func (s *Store) ExistsEmailHash(ctx context.Context, hash string) (bool, error) {
	defer observe("exists_email_hash", time.Now())

	n, err := s.apps.CountDocuments(ctx, bson.M{"email_hash": hash}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count email hash: %w", err)
	}
	return n > 0, nil
}

// CountByStage implements repository.ApplicationStore.
func (s *Store) CountByStage(ctx context.Context) (map[model.Stage]int, error) {
	defer observe("count_by_stage", time.Now())

	cur, err := s.apps.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$stage"}, {Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("count by stage: %w", err)
	}
	var rows []struct {
		Stage string `bson:"_id"`
		N     int    `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("count by stage: %w", err)
	}
	out := make(map[model.Stage]int, len(rows))
	for _, r := range rows {
		out[model.Stage(r.Stage)] = r.N
	}
	return out, nil
}

// CreateStaff implements repository.StaffStore.
func (s *Store) CreateStaff(ctx context.Context, st model.Staff) (model.Staff, error) {
	defer observe("create_staff", time.Now())

	st.Version = 1
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}
	st.UpdatedAt = st.CreatedAt
	doc, err := toStaffDoc(s.codec, st)
	if err != nil {
		return model.Staff{}, err
	}
	if _, err := s.staff.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Staff{}, fmt.Errorf("%w: staff %s", repository.ErrDuplicateID, st.ID)
		}
		return model.Staff{}, fmt.Errorf("insert staff: %w", err)
	}
	return st, nil
}

// GetStaff implements repository.StaffStore.
func (s *Store) GetStaff(ctx context.Context, id string) (model.Staff, error) {
	defer observe("get_staff", time.Now())
	return s.findOneStaff(ctx, bson.M{"_id": id}, "staff "+id)
}

// GetStaffByExternalID implements repository.StaffStore.
func (s *Store) GetStaffByExternalID(ctx context.Context, externalID string) (model.Staff, error) {
	defer observe("get_staff_by_external_id", time.Now())
	if externalID == "" {
		return model.Staff{}, fmt.Errorf("%w: empty external id", repository.ErrNotFound)
	}
	return s.findOneStaff(ctx, bson.M{"external_id": externalID}, "external id "+externalID)
}

func (s *Store) findOneStaff(ctx context.Context, filter bson.M, what string) (model.Staff, error) {
	var doc staffDoc
	if err := s.staff.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return model.Staff{}, fmt.Errorf("%w: %s", repository.ErrNotFound, what)
		}
		return model.Staff{}, fmt.Errorf("find %s: %w", what, err)
	}
	return fromStaffDoc(s.codec, doc)
}

// UpdateStaff implements repository.StaffStore.
func (s *Store) UpdateStaff(ctx context.Context, st model.Staff, expectedVersion int64) (model.Staff, error) {
	defer observe("update_staff", time.Now())

	cur, err := s.GetStaff(ctx, st.ID)
	if err != nil {
		return model.Staff{}, err
	}
	st.Version = expectedVersion + 1
	st.CreatedAt = cur.CreatedAt
	st.UpdatedAt = s.now()
	doc, err := toStaffDoc(s.codec, st)
	if err != nil {
		return model.Staff{}, err
	}
	res, err := s.staff.ReplaceOne(ctx, bson.M{"_id": st.ID, "version": expectedVersion}, doc)
	switch {
	case mongo.IsDuplicateKeyError(err):
		return model.Staff{}, fmt.Errorf("%w: external id %s", repository.ErrDuplicateID, st.ExternalID)
	case err != nil:
		return model.Staff{}, fmt.Errorf("update staff %s: %w", st.ID, err)
	case res.MatchedCount == 0:
		return model.Staff{}, fmt.Errorf("%w: staff %s, expected version %d",
			repository.ErrVersionConflict, st.ID, expectedVersion)
	}
	return st, nil
}

// ListStaff implements repository.StaffStore.
func (s *Store) ListStaff(ctx context.Context, q repository.StaffQuery) ([]model.Staff, error) {
	defer observe("list_staff", time.Now())

	cur, err := s.staff.Find(ctx, staffFilter(q), options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find staff: %w", err)
	}
	var docs []staffDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode staff: %w", err)
	}
	out := make([]model.Staff, 0, len(docs))
	for _, d := range docs {
		st, err := fromStaffDoc(s.codec, d)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

func queryFilter(q repository.Query) bson.M {
	f := bson.M{}
	if len(q.Stages) > 0 {
		stages := make([]string, len(q.Stages))
		for i, st := range q.Stages {
			stages[i] = string(st)
		}
		f["stage"] = bson.M{"$in": stages}
	}
	if q.Assignee != "" {
		f["assignee"] = q.Assignee
	}
	if q.Team != "" {
		// Teams are stored in plain text so they can be matched here.
		f["applicant.teams"] = bson.M{"$regex": "^" + regexp.QuoteMeta(q.Team) + "$", "$options": "i"}
	}
	return f
}

func staffFilter(q repository.StaffQuery) bson.M {
	f := bson.M{}
	if q.Group != "" {
		f["group"] = q.Group
	}
	if q.ActiveOnly {
		f["active_status"] = string(model.StatusActive)
	}
	return f
}

var (
	_ repository.Store = (*Store)(nil)
	_ dedupe.Ledger    = (*Store)(nil)
)
