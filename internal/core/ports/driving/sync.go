package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// Synchronizer fetches remote data of configured sources into their local
// stores.
type Synchronizer interface {
	// Sources returns the configured source names, sorted.
	Sources() []string

	// Fetch imports the remote objects of entity from source.
	Fetch(ctx context.Context, source, entity string, policy domain.FetchPolicy) (*FetchReport, error)

	// Objects returns the local objects of entity in source.
	Objects(ctx context.Context, source, entity string) ([]domain.ObjectRecord, error)

	// Create inserts a local object of entity and pushes it to source.
	Create(ctx context.Context, source, entity string, values map[string]any) (*PushReport, error)

	// Update edits a local object and pushes the change to source.
	Update(ctx context.Context, source string, id domain.ObjectID, values map[string]any) (*PushReport, error)

	// Status returns fetch statistics for a source.
	Status(source string) (*SyncStatus, error)

	// History returns the most recent fetches of a source, newest first.
	History(ctx context.Context, source string, limit int) ([]domain.FetchRecord, error)
}

// FetchTarget is one entity a scheduler keeps fetching.
type FetchTarget struct {
	Source string
	Entity string
	Policy domain.FetchPolicy
}

// PushReport describes one push of local changes.
type PushReport struct {
	// Source is the source the changes were pushed to.
	Source string

	// Object is the identifier of the edited object after the push.
	Object domain.ObjectID

	// Failed maps objects whose remote call failed to the error.
	Failed map[domain.ObjectID]error
}

// FetchReport describes one completed fetch.
type FetchReport struct {
	// Source and Entity identify what was fetched.
	Source string
	Entity string

	// Skipped is true when the policy kept the remote side out.
	Skipped bool

	// Objects are the identifiers of the imported root objects.
	Objects []domain.ObjectID

	// Metadata is the bridge metadata rendered for display.
	Metadata string

	// Duration is the wall time of the fetch.
	Duration time.Duration
}

// SyncStatus represents the state of a source's fetches.
type SyncStatus struct {
	// Source identifies the source.
	Source string

	// Running indicates if a fetch is currently in progress.
	Running bool

	// Fetches is the number of completed fetches.
	Fetches int

	// ObjectsImported is the number of root objects imported.
	ObjectsImported int

	// ErrorCount is the number of failed fetches.
	ErrorCount int

	// LastError is the message of the most recent failure.
	LastError string
}
