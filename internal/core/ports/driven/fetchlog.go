package driven

import (
	"context"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// FetchLogStore persists the fetch history of sources.
type FetchLogStore interface {
	// Record appends an entry.
	Record(ctx context.Context, rec *domain.FetchRecord) error

	// List returns the most recent entries of source, newest first.
	// A limit of zero returns every entry.
	List(ctx context.Context, source string, limit int) ([]domain.FetchRecord, error)

	// Prune keeps the newest keep entries per source.
	Prune(ctx context.Context, keep int) error
}
