package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent engine-level failures.
// These are distinct from backend errors reported by a bridge.
var (
	// ErrCancelled indicates a request or one of its parts was cancelled
	// before the import reached the store.
	ErrCancelled = errors.New("operation cancelled")

	// ErrNotFinished indicates a result was read before it was produced.
	ErrNotFinished = errors.New("operation not finished")

	// ErrAlreadyStarted indicates Start was called more than once.
	ErrAlreadyStarted = errors.New("operation already started")

	// Import Errors.

	// ErrTooManyRepresentations indicates more than one root representation
	// was given while forcing the update of a single object.
	ErrTooManyRepresentations = errors.New("too many representations to update one object")

	// ErrEntityMismatch indicates the forced-update target is not kind-of
	// the entity of its representation.
	ErrEntityMismatch = errors.New("updated object and represented object entities do not match")

	// ErrUniquingConflict indicates a representation carries its uniquing key
	// inconsistently (as a relationship, or with a different attribute value).
	ErrUniquingConflict = errors.New("uniquing key conflict")

	// ErrUnknownRelationship indicates a representation names a relationship
	// its entity does not declare.
	ErrUnknownRelationship = errors.New("unknown relationship")

	// ErrMissingRepresentation indicates a bridge could not produce a mixed
	// representation for a remote record.
	ErrMissingRepresentation = errors.New("missing representation")

	// Model and Store Errors.

	// ErrUnknownEntity indicates an entity name is not part of the model.
	ErrUnknownEntity = errors.New("unknown entity")

	// ErrInvalidModel indicates a model definition is inconsistent.
	ErrInvalidModel = errors.New("invalid model")

	// ErrObjectNotFound indicates no object exists for an identifier.
	ErrObjectNotFound = errors.New("object not found")

	// ErrObjectDeleted indicates an object handle was used after deletion.
	ErrObjectDeleted = errors.New("object deleted")

	// Request Errors.

	// ErrUnsupportedWorkflow indicates a save workflow that is not supported.
	ErrUnsupportedWorkflow = errors.New("unsupported save workflow")

	// ErrSourceNotFound indicates a configured source does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrFetchInProgress indicates a fetch for the same source is running.
	ErrFetchInProgress = errors.New("fetch in progress")
)

// ImportError is a structural import failure. It aborts the current
// import pass and unwraps to one of the import sentinels.
type ImportError struct {
	// Kind is the sentinel describing the failure.
	Kind error

	// Entity is the entity of the offending representation.
	Entity string

	// Detail carries free-form context.
	Detail string
}

func (e *ImportError) Error() string {
	msg := e.Kind.Error()
	if e.Entity != "" {
		msg = fmt.Sprintf("%s: entity %s", msg, e.Entity)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Detail)
	}
	return msg
}

// Unwrap returns the sentinel kind.
func (e *ImportError) Unwrap() error {
	return e.Kind
}

// NewImportError creates an ImportError for entity.
func NewImportError(kind error, entity, detail string) *ImportError {
	return &ImportError{Kind: kind, Entity: entity, Detail: detail}
}

// IsCancelled reports whether err is a cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsStructural reports whether err aborted an import pass.
func IsStructural(err error) bool {
	var ie *ImportError
	return errors.As(err, &ie)
}
