package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// Ensure FetchLogStore implements the interface.
var _ driven.FetchLogStore = (*FetchLogStore)(nil)

// FetchLogStore is an in-memory implementation of driven.FetchLogStore.
type FetchLogStore struct {
	mu      sync.RWMutex
	records map[string][]domain.FetchRecord
}

// NewFetchLogStore creates a new in-memory fetch log.
func NewFetchLogStore() *FetchLogStore {
	return &FetchLogStore{
		records: make(map[string][]domain.FetchRecord),
	}
}

// Record appends an entry.
func (s *FetchLogStore) Record(_ context.Context, rec *domain.FetchRecord) error {
	if rec == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Source] = append(s.records[rec.Source], *rec)
	return nil
}

// List returns the newest entries of source first.
func (s *FetchLogStore) List(_ context.Context, source string, limit int) ([]domain.FetchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.records[source])
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Prune keeps the newest keep entries per source.
func (s *FetchLogStore) Prune(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for source, recs := range s.records {
		if len(recs) > keep {
			s.records[source] = slices.Clone(recs[len(recs)-keep:])
		}
	}
	return nil
}
