package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// maxPages bounds the pages followed by one fetch.
const maxPages = 1000

// FetchOutcome is the result of one fetch through a Source.
type FetchOutcome struct {
	// Skipped is set when the request completed without contacting the
	// remote side.
	Skipped bool

	// Objects are the identifiers of the fetched root objects.
	Objects []domain.ObjectID

	// Metadata is the bridge metadata rendered as text.
	Metadata string
}

// Source binds a store to a bridge. It hides the bridge's representation
// types from callers.
type Source interface {
	Name() string
	Store() driven.Store
	Fetch(ctx context.Context, entity string, policy domain.FetchPolicy) (*FetchOutcome, error)
	Save(ctx context.Context, workflow SaveWorkflow) (map[domain.ObjectID]error, error)
	Close() error
}

// BridgeSource is the Source of a typed bridge.
type BridgeSource[R, RR, M any] struct {
	name    string
	store   driven.Store
	bridge  driven.Bridge[R, RR, M]
	manager *RequestManager
	log     *logger.Logger
	closers []func() error
}

// NewBridgeSource creates a source. closers run on Close.
func NewBridgeSource[R, RR, M any](
	name string,
	store driven.Store,
	bridge driven.Bridge[R, RR, M],
	manager *RequestManager,
	log *logger.Logger,
	closers ...func() error,
) *BridgeSource[R, RR, M] {
	return &BridgeSource[R, RR, M]{
		name:    name,
		store:   store,
		bridge:  bridge,
		manager: manager,
		log:     logger.OrNop(log).With("source", name),
		closers: closers,
	}
}

func (s *BridgeSource[R, RR, M]) Name() string {
	return s.name
}

func (s *BridgeSource[R, RR, M]) Store() driven.Store {
	return s.store
}

// Fetch fetches every object of entity. Paginated bridges are followed
// page by page; the policy only gates the first page.
func (s *BridgeSource[R, RR, M]) Fetch(ctx context.Context, entity string, policy domain.FetchPolicy) (*FetchOutcome, error) {
	e, err := s.store.Model().Entity(entity)
	if err != nil {
		return nil, err
	}
	pager, _ := any(s.bridge).(driven.Paginator[M])

	outcome := &FetchOutcome{}
	var info any
	for page := 0; page < maxPages; page++ {
		part, entered, err := s.fetchPage(ctx, e, policy, info)
		if err != nil {
			return nil, fmt.Errorf("fetch %s from %s: %w", entity, s.name, err)
		}
		if !entered {
			outcome.Skipped = page == 0
			return outcome, nil
		}

		outcome.Objects = append(outcome.Objects, part.IDs()...)
		if part == nil || part.Metadata == nil {
			return outcome, nil
		}
		outcome.Metadata = fmt.Sprintf("%+v", *part.Metadata)

		if pager == nil {
			return outcome, nil
		}
		next, ok := pager.NextPage(part.Metadata)
		if !ok {
			return outcome, nil
		}
		s.log.Debug("fetching next %s page: %+v", entity, next)
		info = next
		policy = domain.FetchAlways
	}

	s.log.Warn("fetch %s: stopped after %d pages", entity, maxPages)
	return outcome, nil
}

func (s *BridgeSource[R, RR, M]) fetchPage(
	ctx context.Context, e *domain.Entity, policy domain.FetchPolicy, info any,
) (*domain.BridgeResult[M], bool, error) {
	req := NewFetchRequest(s.store, &domain.FetchRequest{Entity: e}, policy, info, s.log)
	entered := false
	req.LeaveBridgeHook = func() bool {
		entered = true
		return true
	}

	result, err := Execute(ctx, s.manager, driven.Request[string](req), s.bridge)
	if err != nil {
		return nil, false, err
	}
	if !entered {
		return nil, false, nil
	}

	part := result.Part(FetchPartID)
	if part.Err != nil {
		return nil, true, part.Err
	}
	return part.Value, true, nil
}

// Save pushes the unsaved changes of the store to the remote side and
// returns the identifiers of the objects that failed.
func (s *BridgeSource[R, RR, M]) Save(ctx context.Context, workflow SaveWorkflow) (map[domain.ObjectID]error, error) {
	req, err := NewSaveRequest(s.store, workflow, nil, s.log)
	if err != nil {
		return nil, err
	}
	result, err := Execute(ctx, s.manager, driven.Request[domain.ObjectID](req), s.bridge)
	if err != nil {
		return nil, fmt.Errorf("save to %s: %w", s.name, err)
	}
	return result.Errors(), nil
}

// Close runs the closers and returns the first error.
func (s *BridgeSource[R, RR, M]) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ Source = (*BridgeSource[any, any, struct{}])(nil)
