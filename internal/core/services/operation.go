package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// OperationState is the lifecycle state of a RequestOperation.
type OperationState int32

const (
	OperationCreated OperationState = iota
	OperationRunning
	OperationFinished
)

// String returns the state name.
func (s OperationState) String() string {
	switch s {
	case OperationCreated:
		return "created"
	case OperationRunning:
		return "running"
	case OperationFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// CompletionHandler receives the outcome of a request operation exactly
// once. It runs after Done is closed, so Result and Wait return at once
// from inside it.
type CompletionHandler[K comparable, M any] func(result *domain.RequestResult[K, M], err error)

// partTask is one scheduled part: the remote operation and everything
// needed to import its output.
type partTask[K comparable] struct {
	id          K
	part        domain.RequestPart
	expected    *domain.Entity
	op          driven.BackOperation
	userInfo    any
	importStore driven.Store
}

// RequestOperation executes one request: it decomposes the request into
// parts, chains remote call, import and result collation per part, and
// completes once every part reported.
type RequestOperation[K comparable, R, RR, M any] struct {
	id                string
	request           driven.Request[K]
	bridge            driven.Bridge[R, RR, M]
	queues            *queueSet
	uniquingAttribute string
	log               *logger.Logger
	handler           CompletionHandler[K, M]
	onFinish          func()

	ctx    context.Context
	cancel context.CancelFunc

	state      atomic.Int32
	finishOnce sync.Once
	done       chan struct{}
	result     *domain.RequestResult[K, M]
	err        error
}

// ID returns the operation identifier.
func (o *RequestOperation[K, R, RR, M]) ID() string {
	return o.id
}

// State returns the current lifecycle state.
func (o *RequestOperation[K, R, RR, M]) State() OperationState {
	return OperationState(o.state.Load())
}

// Start moves the operation to running and schedules it.
func (o *RequestOperation[K, R, RR, M]) Start() error {
	if !o.state.CompareAndSwap(int32(OperationCreated), int32(OperationRunning)) {
		return domain.ErrAlreadyStarted
	}
	go o.run()
	return nil
}

// Cancel cancels every remote call and import that has not reached the
// store yet. Result collation still runs for every part, so the operation
// always finishes.
func (o *RequestOperation[K, R, RR, M]) Cancel() {
	o.cancel()
}

// Done is closed once the operation finished.
func (o *RequestOperation[K, R, RR, M]) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until the operation finished or ctx is done.
func (o *RequestOperation[K, R, RR, M]) Wait(ctx context.Context) (*domain.RequestResult[K, M], error) {
	select {
	case <-o.done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a finished operation.
func (o *RequestOperation[K, R, RR, M]) Result() (*domain.RequestResult[K, M], error) {
	if o.State() != OperationFinished {
		return nil, domain.ErrNotFinished
	}
	<-o.done
	return o.result, o.err
}

func (o *RequestOperation[K, R, RR, M]) run() {
	if o.ctx.Err() != nil {
		o.finish(nil, domain.ErrCancelled)
		return
	}

	tasks, proceed, err := o.prepare()
	switch {
	case err != nil:
		o.finish(nil, asCancellation(o.ctx, err))
	case !proceed:
		o.log.Debug("request short-circuited before scheduling")
		o.finish(domain.NewRequestResult[K, M](), nil)
	default:
		o.schedule(tasks)
	}
}

// prepare runs the enter/parts/leave gates and prepares one remote
// operation per part.
//
//nolint:gocyclo // Sequential gates with store confinement variants
func (o *RequestOperation[K, R, RR, M]) prepare() ([]*partTask[K], bool, error) {
	req := o.request

	if !req.EnterBridgeInStore() {
		ok, err := req.EnterBridge(o.ctx)
		if err != nil {
			req.ProcessBridgeError(err)
			return nil, false, err
		}
		if !ok {
			return nil, false, nil
		}
	}

	var parts map[K]domain.RequestPart
	if !req.PartsInStore() {
		var err error
		if parts, err = req.Parts(o.ctx); err != nil {
			req.ProcessBridgeError(err)
			return nil, false, err
		}
		if len(parts) == 0 && !req.EnterBridgeInStore() {
			return nil, true, nil
		}
	}

	var tasks []*partTask[K]
	proceed := true
	err := req.Store().Perform(o.ctx, func(ctx context.Context) error {
		if req.EnterBridgeInStore() {
			ok, err := req.EnterBridge(ctx)
			if err != nil {
				return err
			}
			if !ok {
				proceed = false
				return nil
			}
		}
		if req.PartsInStore() {
			var err error
			if parts, err = req.Parts(ctx); err != nil {
				return err
			}
		}

		for id, part := range parts {
			if ctx.Err() != nil {
				return domain.ErrCancelled
			}
			task, err := o.bridgeTask(id, part)
			if err != nil {
				return err
			}
			if task != nil {
				tasks = append(tasks, task)
			}
		}

		ok, err := req.LeaveBridge(ctx)
		if err != nil {
			return err
		}
		proceed = ok
		return nil
	})
	if err != nil {
		req.ProcessBridgeError(err)
		return nil, false, err
	}
	return tasks, proceed, nil
}

// bridgeTask converts one part into a remote operation. A nil task means
// the bridge dropped the part.
func (o *RequestOperation[K, R, RR, M]) bridgeTask(id K, part domain.RequestPart) (*partTask[K], error) {
	userInfo := o.bridge.NewUserInfo()

	var (
		expected *domain.Entity
		op       driven.BackOperation
		err      error
	)
	switch part.Kind {
	case domain.PartFetch:
		expected = o.bridge.ExpectedEntityForFetch(part.Fetch, part.Info)
		op, err = o.bridge.FetchOperation(part.Fetch, part.Info, &userInfo)
	case domain.PartInsert:
		expected = o.bridge.ExpectedEntityForObject(part.Object, part.Info)
		op, err = o.bridge.InsertOperation(part.Object, part.Info, &userInfo)
	case domain.PartUpdate:
		expected = o.bridge.ExpectedEntityForObject(part.Object, part.Info)
		op, err = o.bridge.UpdateOperation(part.Object, part.Info, &userInfo)
	case domain.PartDelete:
		expected = o.bridge.ExpectedEntityForObject(part.Object, part.Info)
		op, err = o.bridge.DeleteOperation(part.Object, part.Info, &userInfo)
	default:
		return nil, fmt.Errorf("part %v: unknown kind %s", id, part.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s part %v: %w", part.Kind, id, err)
	}
	if expected == nil || op == nil {
		o.log.Debug("dropping %s part %v: bridge has no operation", part.Kind, id)
		return nil, nil
	}

	return &partTask[K]{
		id:          id,
		part:        part,
		expected:    expected,
		op:          op,
		userInfo:    userInfo,
		importStore: o.request.ImportStore(id, part),
	}, nil
}

// schedule builds the task graph: remote -> [import ->] collation per part,
// and one completion step joining every collation.
func (o *RequestOperation[K, R, RR, M]) schedule(tasks []*partTask[K]) {
	result := domain.NewRequestResult[K, M]()
	collations := make([]*Future, 0, len(tasks))
	background := context.Background()

	for _, t := range tasks {
		remote := o.queues.remote.Submit(o.ctx, nil, func(ctx context.Context) error {
			return t.op.Run(ctx)
		})

		if t.importStore == nil {
			collations = append(collations, o.queues.collation.Submit(background, []*Future{remote},
				func(context.Context) error {
					result.Parts[t.id] = o.remoteOnlyResult(t, remote)
					return nil
				}))
			continue
		}

		var imported domain.PartResult[M]
		imp := o.queues.imports.Submit(o.ctx, []*Future{remote}, func(ctx context.Context) error {
			ri := &resultImport[K, R, RR, M]{
				bridge:            o.bridge,
				request:           o.request,
				id:                t.id,
				part:              t.part,
				store:             t.importStore,
				expected:          t.expected,
				op:                t.op,
				userInfo:          t.userInfo,
				uniquingAttribute: o.uniquingAttribute,
				log:               o.log,
			}
			value, err := ri.run(ctx)
			imported = domain.PartResult[M]{Value: value, Err: err}
			return err
		})

		collations = append(collations, o.queues.collation.Submit(background, []*Future{imp},
			func(context.Context) error {
				if !imp.Ran() {
					imported = domain.PartResult[M]{Err: domain.ErrCancelled}
				}
				result.Parts[t.id] = imported
				return nil
			}))
	}

	o.queues.collation.Submit(background, collations, func(context.Context) error {
		o.finish(result, nil)
		return nil
	})
}

func (o *RequestOperation[K, R, RR, M]) remoteOnlyResult(t *partTask[K], remote *Future) domain.PartResult[M] {
	if !remote.Ran() {
		return domain.PartResult[M]{Err: domain.ErrCancelled}
	}
	if err := o.bridge.OperationError(t.op); err != nil {
		return domain.PartResult[M]{Err: asCancellation(o.ctx, err)}
	}
	return domain.PartResult[M]{Value: &domain.BridgeResult[M]{Objects: []domain.ReturnedObject[M]{}}}
}

func (o *RequestOperation[K, R, RR, M]) finish(result *domain.RequestResult[K, M], err error) {
	o.finishOnce.Do(func() {
		o.result = result
		o.err = err
		o.state.Store(int32(OperationFinished))

		if err != nil {
			o.log.Debug("request finished with error: %v", err)
		} else {
			o.log.Debug("request finished with %d part results", len(result.Parts))
		}
		close(o.done)
		if o.handler != nil {
			o.handler(result, err)
		}
		o.cancel()
		if o.onFinish != nil {
			o.onFinish()
		}
	})
}

// newOperationID returns a fresh operation identifier.
func newOperationID() string {
	return uuid.NewString()
}
