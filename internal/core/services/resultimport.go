package services

import (
	"context"
	"errors"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// resultImport feeds the output of one finished remote operation into the
// importer. Cancellation is honoured up to the moment the import starts
// writing to the store.
type resultImport[K comparable, R, RR, M any] struct {
	bridge            driven.Bridge[R, RR, M]
	request           driven.Request[K]
	id                K
	part              domain.RequestPart
	store             driven.Store
	expected          *domain.Entity
	op                driven.BackOperation
	userInfo          any
	uniquingAttribute string
	log               *logger.Logger
}

func (ri *resultImport[K, R, RR, M]) run(ctx context.Context) (*domain.BridgeResult[M], error) {
	cancelled := func() bool { return ctx.Err() != nil }

	if err := ri.bridge.OperationError(ri.op); err != nil {
		return nil, asCancellation(ctx, err)
	}

	userInfo := ri.bridge.OperationUserInfo(ri.op, ri.userInfo)
	if cancelled() {
		return nil, domain.ErrCancelled
	}

	metadata := ri.bridge.OperationMetadata(ri.op, userInfo)
	if cancelled() {
		return nil, domain.ErrCancelled
	}

	remote, ok := ri.bridge.OperationRepresentations(ri.op, userInfo)
	if !ok {
		remote = nil
	}
	if cancelled() {
		return nil, domain.ErrCancelled
	}

	reps, err := BuildRepresentations(ri.bridge, remote, ri.expected, userInfo, func() bool { return !cancelled() })
	if err != nil {
		return nil, err
	}
	if cancelled() {
		return nil, domain.ErrCancelled
	}

	lifecycle, hasLifecycle := ri.request.(driven.ImportLifecycle[K])
	if len(reps) == 0 && !hasLifecycle {
		return &domain.BridgeResult[M]{Metadata: metadata, Objects: []domain.ReturnedObject[M]{}}, nil
	}

	var result *domain.BridgeResult[M]
	err = ri.store.Perform(context.WithoutCancel(ctx), func(pctx context.Context) error {
		proceed, err := ri.prepare(pctx, cancelled, lifecycle)
		if err == nil && !proceed {
			return domain.ErrCancelled
		}
		if err == nil {
			result, err = ri.importInStore(pctx, lifecycle, reps, metadata)
		}
		if err != nil && hasLifecycle {
			lifecycle.ProcessResultsImportError(ri.id, ri.part, ri.store, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// prepare is the last cancellation point. A veto or a cancellation leaves
// the store untouched and skips the error hook.
func (ri *resultImport[K, R, RR, M]) prepare(ctx context.Context, cancelled func() bool, lifecycle driven.ImportLifecycle[K]) (bool, error) {
	if cancelled() {
		return false, nil
	}
	if lifecycle == nil {
		return true, nil
	}
	ok, err := lifecycle.PrepareResultsImport(ctx, ri.id, ri.part, ri.store)
	if err != nil {
		return false, err
	}
	return ok && !cancelled(), nil
}

func (ri *resultImport[K, R, RR, M]) importInStore(
	ctx context.Context,
	lifecycle driven.ImportLifecycle[K],
	reps []*domain.FastImportRepresentation[M],
	metadata *M,
) (*domain.BridgeResult[M], error) {
	// From here on the import runs to completion.
	importer := NewImporter[M](ri.store, ri.uniquingAttribute, ri.log)
	if err := importer.Prepare(reps); err != nil {
		return nil, err
	}
	builder := NewSummaryBuilder(ri.store, metadata)
	if _, err := importer.Import(ri.updatedObject(), builder); err != nil {
		return nil, err
	}

	importResult, err := builder.ImportResult()
	if err != nil {
		return nil, err
	}
	if lifecycle != nil {
		if err := lifecycle.EndResultsImport(ctx, ri.id, ri.part, ri.store, importResult); err != nil {
			return nil, err
		}
	}
	return builder.Summary()
}

// updatedObject resolves the object an insert or update part targets in
// the import store.
func (ri *resultImport[K, R, RR, M]) updatedObject() domain.Object {
	if ri.part.Object == nil || (ri.part.Kind != domain.PartInsert && ri.part.Kind != domain.PartUpdate) {
		return nil
	}
	id := ri.request.Store().ObjectID(ri.part.Object)
	obj, err := ri.store.Object(id)
	if err != nil {
		ri.log.Debug("updated object %s not available: %v", id, err)
		return nil
	}
	return obj
}

// asCancellation maps context cancellation to domain.ErrCancelled.
func asCancellation(ctx context.Context, err error) error {
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return domain.ErrCancelled
	}
	return err
}
