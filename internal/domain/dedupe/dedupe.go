// Package dedupe tracks which applicant-facing outcomes were already sent.
//
// A Ledger entry is claimed before a notification goes out and released
// when sending fails, so a later retry can claim it again. Durable
// implementations live next to the record store.
package dedupe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

// ErrLedgerFull is returned by a bounded in-memory ledger at capacity.
var ErrLedgerFull = errors.New("outcome ledger is full")

// Ledger records outcome keys to ensure at-most-once delivery.
type Ledger interface {
	// SeenAndRecord atomically checks if key was recorded and records it if not.
	// Returns true if key was already recorded.
	SeenAndRecord(ctx context.Context, key string) (bool, error)

	// Unrecord removes key so a failed send can be retried.
	Unrecord(ctx context.Context, key string) error
}

// Key is the ledger key of one outcome of one application.
func Key(applicationID string, outcome model.Outcome) string {
	return applicationID + ":" + string(outcome)
}

// MemoryLedger keeps keys in a map. It never evicts: forgetting a key
// would allow a second send.
type MemoryLedger struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	maxSize int
	size    atomic.Int64
}

// NewMemoryLedger creates an in-memory ledger.
func NewMemoryLedger(opts ...Option) *MemoryLedger {
	l := &MemoryLedger{}
	for _, opt := range opts {
		opt(l)
	}
	l.seen = make(map[string]struct{})
	return l
}

// SeenAndRecord implements Ledger.
func (l *MemoryLedger) SeenAndRecord(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[key]; ok {
		return true, nil
	}
	if l.maxSize > 0 && len(l.seen) >= l.maxSize {
		return false, ErrLedgerFull
	}
	l.seen[key] = struct{}{}
	l.size.Add(1)
	return false, nil
}

// Unrecord implements Ledger. Unknown keys are ignored.
func (l *MemoryLedger) Unrecord(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[key]; ok {
		delete(l.seen, key)
		l.size.Add(-1)
	}
	return nil
}

// Size returns the number of recorded keys.
func (l *MemoryLedger) Size() int64 {
	return l.size.Load()
}
