package driven

import (
	"context"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// BackOperation is one remote call prepared by a bridge. The engine runs it
// on the remote-call queue and hands the finished operation back to the
// bridge for extraction.
type BackOperation interface {
	// Run performs the remote call. Errors are also reported through
	// Bridge.OperationError, which the engine treats as authoritative.
	Run(ctx context.Context) error
}

// Bridge converts between local intents and remote operations.
//
// R is the remote representation of one object, RR the raw remote value of
// a relationship, and M the bridge metadata attached to results (for
// example pagination state). User info is an opaque per-part value created
// by NewUserInfo and threaded through every call of that part.
//
// Forward conversions return a nil entity or a nil operation to drop the
// part without error.
type Bridge[R, RR, M any] interface {
	// NewUserInfo returns a fresh user info value for one part.
	NewUserInfo() any

	// ExpectedEntityForFetch returns the entity a fetch part will import.
	ExpectedEntityForFetch(req *domain.FetchRequest, info any) *domain.Entity

	// ExpectedEntityForObject returns the entity an object part will import.
	ExpectedEntityForObject(obj domain.Object, info any) *domain.Entity

	// FetchOperation prepares the remote call for a fetch part.
	FetchOperation(req *domain.FetchRequest, info any, userInfo *any) (BackOperation, error)

	// InsertOperation prepares the remote call for an insert part.
	InsertOperation(obj domain.Object, info any, userInfo *any) (BackOperation, error)

	// UpdateOperation prepares the remote call for an update part.
	UpdateOperation(obj domain.Object, info any, userInfo *any) (BackOperation, error)

	// DeleteOperation prepares the remote call for a delete part.
	DeleteOperation(obj domain.Object, info any, userInfo *any) (BackOperation, error)

	// OperationError returns the backend error of a finished operation.
	OperationError(op BackOperation) error

	// OperationUserInfo returns the user info to use after op finished.
	OperationUserInfo(op BackOperation, userInfo any) any

	// OperationMetadata returns the metadata of a finished operation.
	OperationMetadata(op BackOperation, userInfo any) *M

	// OperationRepresentations returns the remote records of a finished
	// operation. ok is false when nothing should be imported.
	OperationRepresentations(op BackOperation, userInfo any) (reps []R, ok bool)

	// MixedRepresentation bridges one remote record against the expected
	// entity.
	MixedRepresentation(rep R, expected *domain.Entity, userInfo any) (*domain.MixedRepresentation[RR], error)

	// SubUserInfo returns the user info for a relationship of entity.
	SubUserInfo(relationship string, entity *domain.Entity, userInfo any) any

	// RelationshipMetadata returns the metadata of a relationship value.
	RelationshipMetadata(raw RR, userInfo any) *M

	// RelationshipRepresentations returns the remote records of a
	// relationship value. ok is false to clear the relationship.
	RelationshipRepresentations(raw RR, userInfo any) (reps []R, ok bool)

	// RelationshipMergeType returns how a relationship of entity is merged.
	RelationshipMergeType(relationship string, entity *domain.Entity) domain.MergeType
}

// Paginator is implemented by bridges whose fetch results span pages.
type Paginator[M any] interface {
	// NextPage returns the fetch info for the page after the one described
	// by metadata, or false on the last page.
	NextPage(metadata *M) (info any, ok bool)
}
