package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	"github.com/hackit-tw/recruit/internal/domain/dedupe"
)

var (
	_ repository.Store = (*Store)(nil)
	_ dedupe.Ledger    = (*Store)(nil)
)

type ledgerDoc struct {
	Key       string    `bson:"_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// SeenAndRecord implements dedupe.Ledger with a unique-key insert.
func (s *Store) SeenAndRecord(ctx context.Context, key string) (bool, error) {
	defer observe("ledger_record", time.Now())

	_, err := s.ledger.InsertOne(ctx, ledgerDoc{Key: key, CreatedAt: s.now()})
	switch {
	case err == nil:
		return false, nil
	case mongo.IsDuplicateKeyError(err):
		return true, nil
	default:
		return false, fmt.Errorf("ledger insert %s: %w", key, err)
	}
}

// Unrecord implements dedupe.Ledger.
func (s *Store) Unrecord(ctx context.Context, key string) error {
	defer observe("ledger_unrecord", time.Now())

	if _, err := s.ledger.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("ledger delete %s: %w", key, err)
	}
	return nil
}
