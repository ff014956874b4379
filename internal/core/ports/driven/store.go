package driven

import (
	"context"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// Store is the local, transactional object-graph store.
//
// Mutating calls made by the engine happen inside Perform. The store owns
// the serialisation of concurrent mutators; the engine never locks it.
type Store interface {
	// Perform runs fn exclusively with respect to every other Perform call
	// on the same store.
	Perform(ctx context.Context, fn func(ctx context.Context) error) error

	// Model returns the entity model of the store.
	Model() *domain.Model

	// ObjectID returns the current identifier of obj. Identifiers of newly
	// inserted objects stay temporary until CommitIdentifiers runs.
	ObjectID(obj domain.Object) domain.ObjectID

	// Object resolves an identifier, temporary or permanent.
	Object(id domain.ObjectID) (domain.Object, error)

	// Insert creates a new object of entity with a temporary identifier.
	Insert(entity *domain.Entity) (domain.Object, error)

	// Delete removes obj. The handle must not be used afterwards.
	Delete(obj domain.Object) error

	// Value returns an attribute value and whether it is set.
	Value(obj domain.Object, attribute string) (any, bool)

	// SetValue sets an attribute. A nil value clears it.
	SetValue(obj domain.Object, attribute string, value any) error

	// Related returns the members of a relationship in order.
	Related(obj domain.Object, relationship string) []domain.Object

	// SetRelated replaces the members of a relationship. A nil or empty
	// slice clears it.
	SetRelated(obj domain.Object, relationship string, objs []domain.Object) error

	// FetchByUniquingKeys returns the objects of entity (subentities
	// included) whose attribute value is one of keys.
	FetchByUniquingKeys(entity *domain.Entity, attribute string, keys []any) ([]domain.Object, error)

	// Fetch returns the objects matching req.
	Fetch(req *domain.FetchRequest) ([]domain.Object, error)

	// Count returns the number of objects matching req.
	Count(req *domain.FetchRequest) (int, error)

	// CommitIdentifiers makes the identifiers of objs permanent in one batch.
	CommitIdentifiers(objs []domain.Object) error

	ChangeTracker
}

// ChangeTracker exposes the unsaved changes of a store.
type ChangeTracker interface {
	// HasChanges reports whether anything changed since the last save.
	HasChanges() bool

	// Changes returns the objects changed since the last save.
	Changes() Changes

	// Save persists pending changes.
	Save(ctx context.Context) error

	// Rollback discards pending changes.
	Rollback() error
}

// Changes groups the objects changed since the last save.
type Changes struct {
	Inserted []domain.Object
	Updated  []domain.Object
	Deleted  []domain.Object
}

// RecordStore persists object records between runs.
type RecordStore interface {
	// Load returns every persisted record.
	Load(ctx context.Context) ([]domain.ObjectRecord, error)

	// Apply upserts records and removes deleted identifiers atomically.
	Apply(ctx context.Context, upserts []domain.ObjectRecord, deletes []domain.ObjectID) error

	// Close releases resources.
	Close() error
}
