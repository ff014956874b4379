package driving

import (
	"context"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// SourceService reads and edits source definitions.
type SourceService interface {
	// List returns all configured sources sorted by name. Tokens are
	// redacted.
	List(ctx context.Context) ([]domain.Source, error)

	// Get returns one source with its token redacted.
	Get(ctx context.Context, name string) (*domain.Source, error)

	// SetToken stores the bearer token of a source.
	SetToken(ctx context.Context, name, token string) error
}
