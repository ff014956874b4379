package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// Ensure RecordStore implements the interface.
var _ driven.RecordStore = (*RecordStore)(nil)

// RecordStore is an in-memory implementation of driven.RecordStore, used
// when persistence is disabled and in tests.
type RecordStore struct {
	mu      sync.RWMutex
	records map[domain.ObjectID]domain.ObjectRecord
	applies int
}

// NewRecordStore creates an empty record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		records: make(map[domain.ObjectID]domain.ObjectRecord),
	}
}

// Load returns every record sorted by identifier.
func (s *RecordStore) Load(_ context.Context) ([]domain.ObjectRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := slices.SortedFunc(maps.Keys(s.records), func(a, b domain.ObjectID) int {
		return strings.Compare(a.String(), b.String())
	})
	out := make([]domain.ObjectRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out, nil
}

// Apply upserts and deletes records.
func (s *RecordStore) Apply(ctx context.Context, upserts []domain.ObjectRecord, deletes []domain.ObjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range upserts {
		s.records[rec.ID] = rec
	}
	for _, id := range deletes {
		delete(s.records, id)
	}
	s.applies++
	return nil
}

// Applies returns how many times Apply succeeded.
func (s *RecordStore) Applies() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applies
}

// Close is a no-op.
func (s *RecordStore) Close() error {
	return nil
}
