package driven

import (
	"context"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// Request is one logical operation against the remote side. K is the
// request-part identifier type.
//
// The engine calls EnterBridge, Parts and LeaveBridge in that order. Each
// of the first two runs inside Store().Perform when the matching InStore
// method returns true. ProcessBridgeError runs before any error from these
// steps is surfaced.
type Request[K comparable] interface {
	// Store returns the store the request reads from.
	Store() Store

	// EnterBridgeInStore reports whether EnterBridge must run in Perform.
	EnterBridgeInStore() bool

	// PartsInStore reports whether Parts must run in Perform.
	PartsInStore() bool

	// EnterBridge gates the request; false completes it with an empty result.
	EnterBridge(ctx context.Context) (bool, error)

	// Parts decomposes the request.
	Parts(ctx context.Context) (map[K]domain.RequestPart, error)

	// LeaveBridge runs after the remote operations are prepared; false
	// completes the request with an empty result.
	LeaveBridge(ctx context.Context) (bool, error)

	// ProcessBridgeError cleans up after a failed enter/parts/leave step.
	ProcessBridgeError(err error)

	// ImportStore returns the store results of part id are imported into,
	// or nil to skip the import.
	ImportStore(id K, part domain.RequestPart) Store
}

// ImportLifecycle is implemented by requests that want callbacks around
// each part's import. All methods run inside the import store's Perform.
type ImportLifecycle[K comparable] interface {
	// PrepareResultsImport may veto the import; a veto cancels the part.
	PrepareResultsImport(ctx context.Context, id K, part domain.RequestPart, store Store) (bool, error)

	// EndResultsImport runs after a successful import.
	EndResultsImport(ctx context.Context, id K, part domain.RequestPart, store Store, result domain.ImportResult) error

	// ProcessResultsImportError runs before an import error is surfaced.
	ProcessResultsImportError(id K, part domain.RequestPart, store Store, err error)
}
