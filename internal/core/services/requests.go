package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// FetchPartID is the part identifier of the single part of a FetchRequest.
const FetchPartID = ""

// FetchRequest fetches objects of one entity and imports them into a store.
type FetchRequest struct {
	store  driven.Store
	fetch  *domain.FetchRequest
	policy domain.FetchPolicy
	info   any
	log    *logger.Logger

	// LeaveBridgeHook, if set, can abort the request after the remote
	// operation was prepared.
	LeaveBridgeHook func() bool

	// PreImportHook, if set, can veto the import. A veto cancels the part.
	PreImportHook func(store driven.Store) bool

	// PreCompletionHook, if set, runs after the import and before the
	// store is saved. An error rolls the import back.
	PreCompletionHook func(result domain.ImportResult) error
}

// NewFetchRequest creates a fetch request. info is handed to the bridge.
func NewFetchRequest(store driven.Store, fetch *domain.FetchRequest, policy domain.FetchPolicy, info any, log *logger.Logger) *FetchRequest {
	return &FetchRequest{
		store:  store,
		fetch:  fetch,
		policy: policy,
		info:   info,
		log:    logger.OrNop(log),
	}
}

// Policy returns the fetch policy.
func (r *FetchRequest) Policy() domain.FetchPolicy {
	return r.policy
}

// Store returns the store the fetch imports into.
func (r *FetchRequest) Store() driven.Store {
	return r.store
}

// EnterBridgeInStore is true when the policy needs a local count.
func (r *FetchRequest) EnterBridgeInStore() bool {
	return r.policy == domain.FetchIfNoLocalResults
}

// PartsInStore is false: the single part needs no store access.
func (r *FetchRequest) PartsInStore() bool {
	return false
}

// EnterBridge applies the fetch policy.
func (r *FetchRequest) EnterBridge(context.Context) (bool, error) {
	switch r.policy {
	case domain.FetchNever:
		return false, nil
	case domain.FetchIfNoLocalResults:
		n, err := r.store.Count(r.fetch)
		if err != nil {
			return false, fmt.Errorf("count local %s: %w", entityName(r.fetch.Entity), err)
		}
		if n > 0 {
			r.log.Debug("%d local %s objects, skipping remote fetch", n, entityName(r.fetch.Entity))
			return false, nil
		}
		return true, nil
	default:
		return true, nil
	}
}

// Parts returns the single fetch part keyed by FetchPartID.
func (r *FetchRequest) Parts(context.Context) (map[string]domain.RequestPart, error) {
	return map[string]domain.RequestPart{
		FetchPartID: domain.NewFetchPart(r.fetch, r.info),
	}, nil
}

// LeaveBridge consults LeaveBridgeHook when set.
func (r *FetchRequest) LeaveBridge(context.Context) (bool, error) {
	if r.LeaveBridgeHook != nil {
		return r.LeaveBridgeHook(), nil
	}
	return true, nil
}

// ProcessBridgeError logs err. Nothing was written yet.
func (r *FetchRequest) ProcessBridgeError(err error) {
	r.log.Debug("fetch %s: bridge error: %v", entityName(r.fetch.Entity), err)
}

// ImportStore returns the request store.
func (r *FetchRequest) ImportStore(string, domain.RequestPart) driven.Store {
	return r.store
}

// PrepareResultsImport consults PreImportHook. A veto cancels the part
// without touching the store.
func (r *FetchRequest) PrepareResultsImport(_ context.Context, _ string, _ domain.RequestPart, store driven.Store) (bool, error) {
	if r.PreImportHook != nil {
		return r.PreImportHook(store), nil
	}
	return true, nil
}

// EndResultsImport runs PreCompletionHook and saves the store.
func (r *FetchRequest) EndResultsImport(ctx context.Context, _ string, _ domain.RequestPart, store driven.Store, result domain.ImportResult) error {
	if r.PreCompletionHook != nil {
		if err := r.PreCompletionHook(result); err != nil {
			return err
		}
	}
	if err := store.Save(ctx); err != nil {
		return fmt.Errorf("save fetched %s: %w", entityName(r.fetch.Entity), err)
	}
	return nil
}

// ProcessResultsImportError rolls back a failed import.
func (r *FetchRequest) ProcessResultsImportError(_ string, _ domain.RequestPart, store driven.Store, err error) {
	r.log.Debug("fetch %s: import failed, rolling back: %v", entityName(r.fetch.Entity), err)
	if rbErr := store.Rollback(); rbErr != nil {
		r.log.Warn("rollback after failed import: %v", rbErr)
	}
}

// SaveWorkflow decides what happens to local changes around the remote
// calls of a SaveRequest.
type SaveWorkflow uint8

const (
	// SaveBeforeRemote saves the store before contacting the remote side.
	SaveBeforeRemote SaveWorkflow = iota
	// SaveAfterRemote would save through a child context once the remote
	// side answered. It is not supported.
	SaveAfterRemote
	// RollbackBeforeRemote discards local changes once the parts are built.
	RollbackBeforeRemote
	// LeaveLocalChanges leaves the store untouched.
	LeaveLocalChanges
)

// String returns the workflow name.
func (w SaveWorkflow) String() string {
	switch w {
	case SaveBeforeRemote:
		return "save-before-remote"
	case SaveAfterRemote:
		return "save-after-remote"
	case RollbackBeforeRemote:
		return "rollback-before-remote"
	case LeaveLocalChanges:
		return "leave-local-changes"
	default:
		return "unknown"
	}
}

// SaveRequest pushes the unsaved changes of a store to the remote side and
// imports the responses back. Parts are keyed by object identifier.
type SaveRequest struct {
	store    driven.Store
	workflow SaveWorkflow
	info     any
	log      *logger.Logger
}

// NewSaveRequest creates a save request.
func NewSaveRequest(store driven.Store, workflow SaveWorkflow, info any, log *logger.Logger) (*SaveRequest, error) {
	if workflow == SaveAfterRemote {
		return nil, fmt.Errorf("%s: %w", workflow, domain.ErrUnsupportedWorkflow)
	}
	return &SaveRequest{store: store, workflow: workflow, info: info, log: logger.OrNop(log)}, nil
}

// Store returns the store whose changes are pushed.
func (r *SaveRequest) Store() driven.Store {
	return r.store
}

// EnterBridgeInStore is true: entering reads and commits the changes.
func (r *SaveRequest) EnterBridgeInStore() bool {
	return true
}

// PartsInStore is true: parts are built from the pending changes.
func (r *SaveRequest) PartsInStore() bool {
	return true
}

// EnterBridge makes the identifiers of inserted objects permanent so parts
// can be keyed by them. Without changes the request completes empty.
func (r *SaveRequest) EnterBridge(context.Context) (bool, error) {
	if !r.store.HasChanges() {
		return false, nil
	}
	inserted := r.store.Changes().Inserted
	if len(inserted) == 0 {
		return true, nil
	}
	if err := r.store.CommitIdentifiers(inserted); err != nil {
		return false, fmt.Errorf("commit identifiers: %w", err)
	}
	return true, nil
}

// Parts returns one part per deleted, inserted and updated object.
func (r *SaveRequest) Parts(context.Context) (map[domain.ObjectID]domain.RequestPart, error) {
	changes := r.store.Changes()
	parts := make(map[domain.ObjectID]domain.RequestPart,
		len(changes.Inserted)+len(changes.Updated)+len(changes.Deleted))

	add := func(kind domain.PartKind, objs []domain.Object) {
		for _, obj := range objs {
			parts[r.store.ObjectID(obj)] = domain.NewObjectPart(kind, obj, r.info)
		}
	}
	add(domain.PartDelete, changes.Deleted)
	add(domain.PartInsert, changes.Inserted)
	add(domain.PartUpdate, changes.Updated)
	return parts, nil
}

// LeaveBridge applies the workflow.
func (r *SaveRequest) LeaveBridge(ctx context.Context) (bool, error) {
	switch r.workflow {
	case SaveBeforeRemote:
		if err := r.store.Save(ctx); err != nil {
			return false, fmt.Errorf("save before remote: %w", err)
		}
	case RollbackBeforeRemote:
		if err := r.store.Rollback(); err != nil {
			return false, fmt.Errorf("rollback before remote: %w", err)
		}
	case SaveAfterRemote:
		return false, domain.ErrUnsupportedWorkflow
	}
	return true, nil
}

// ProcessBridgeError rolls back local changes, except for an unsupported
// workflow which never touched them.
func (r *SaveRequest) ProcessBridgeError(err error) {
	if errors.Is(err, domain.ErrUnsupportedWorkflow) {
		return
	}
	r.log.Debug("save: bridge error, rolling back: %v", err)
	if rbErr := r.store.Rollback(); rbErr != nil {
		r.log.Warn("rollback after bridge error: %v", rbErr)
	}
}

// ImportStore imports insert and update responses back into the store.
// Delete parts are not imported.
func (r *SaveRequest) ImportStore(_ domain.ObjectID, part domain.RequestPart) driven.Store {
	if part.Kind == domain.PartDelete {
		return nil
	}
	return r.store
}

// PrepareResultsImport always lets the response in.
func (r *SaveRequest) PrepareResultsImport(context.Context, domain.ObjectID, domain.RequestPart, driven.Store) (bool, error) {
	return true, nil
}

// EndResultsImport saves the imported response.
func (r *SaveRequest) EndResultsImport(ctx context.Context, id domain.ObjectID, _ domain.RequestPart, store driven.Store, _ domain.ImportResult) error {
	if err := store.Save(ctx); err != nil {
		return fmt.Errorf("save response for %s: %w", id, err)
	}
	return nil
}

// ProcessResultsImportError rolls back a failed response import.
func (r *SaveRequest) ProcessResultsImportError(id domain.ObjectID, _ domain.RequestPart, store driven.Store, err error) {
	r.log.Debug("save: import of %s failed, rolling back: %v", id, err)
	if rbErr := store.Rollback(); rbErr != nil {
		r.log.Warn("rollback after failed import: %v", rbErr)
	}
}

var (
	_ driven.Request[string]                  = (*FetchRequest)(nil)
	_ driven.ImportLifecycle[string]          = (*FetchRequest)(nil)
	_ driven.Request[domain.ObjectID]         = (*SaveRequest)(nil)
	_ driven.ImportLifecycle[domain.ObjectID] = (*SaveRequest)(nil)
)
