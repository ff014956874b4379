package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// queueSet holds the three queues every operation of a manager shares.
type queueSet struct {
	remote    *OperationQueue
	imports   *OperationQueue
	collation *OperationQueue
}

// cancellable is the non-generic view of a live operation.
type cancellable interface {
	ID() string
	Cancel()
}

// RequestManager owns the remote-call, import and collation queues and
// tracks live operations so they can be cancelled together.
type RequestManager struct {
	cfg    domain.EngineConfig
	queues *queueSet
	log    *logger.Logger

	mu   sync.Mutex
	live map[string]cancellable
}

// NewRequestManager creates a manager. Zero config values fall back to
// domain defaults.
func NewRequestManager(cfg domain.EngineConfig, log *logger.Logger) *RequestManager {
	cfg = cfg.WithDefaults()
	log = logger.OrNop(log)

	return &RequestManager{
		cfg: cfg,
		queues: &queueSet{
			remote:    NewOperationQueue("remote", cfg.RemoteConcurrency, log, WithRateLimit(cfg.RemoteRatePerSecond)),
			imports:   NewOperationQueue("import", cfg.ImportConcurrency, log),
			collation: NewOperationQueue("collation", 1, log),
		},
		log:  log,
		live: make(map[string]cancellable),
	}
}

// Config returns the effective engine configuration.
func (m *RequestManager) Config() domain.EngineConfig {
	return m.cfg
}

// Live returns the number of operations that have not finished.
func (m *RequestManager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// CancelAll cancels every live operation. Each still completes.
func (m *RequestManager) CancelAll() {
	m.mu.Lock()
	ops := make([]cancellable, 0, len(m.live))
	for _, op := range m.live {
		ops = append(ops, op)
	}
	m.mu.Unlock()

	m.log.Debug("cancelling %d live operations", len(ops))
	for _, op := range ops {
		op.Cancel()
	}
}

func (m *RequestManager) track(op cancellable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live[op.ID()] = op
}

func (m *RequestManager) untrack(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.live, id)
}

// NewOperation creates an operation for request against bridge. handler,
// if not nil, is called exactly once when the operation finishes.
func NewOperation[K comparable, R, RR, M any](
	m *RequestManager,
	request driven.Request[K],
	bridge driven.Bridge[R, RR, M],
	handler CompletionHandler[K, M],
) *RequestOperation[K, R, RR, M] {
	ctx, cancel := context.WithCancel(context.Background())
	id := newOperationID()

	op := &RequestOperation[K, R, RR, M]{
		id:                id,
		request:           request,
		bridge:            bridge,
		queues:            m.queues,
		uniquingAttribute: m.cfg.UniquingAttribute,
		log:               m.log.With("request", id),
		handler:           handler,
		ctx:               ctx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
	op.onFinish = func() { m.untrack(id) }
	m.track(op)
	return op
}

// Execute starts an operation and waits for it. If ctx is done first the
// operation is cancelled and its final outcome is still awaited.
func Execute[K comparable, R, RR, M any](
	ctx context.Context,
	m *RequestManager,
	request driven.Request[K],
	bridge driven.Bridge[R, RR, M],
) (*domain.RequestResult[K, M], error) {
	op := NewOperation(m, request, bridge, nil)
	if err := op.Start(); err != nil {
		return nil, err
	}

	select {
	case <-op.Done():
	case <-ctx.Done():
		op.Cancel()
		<-op.Done()
	}
	return op.Result()
}
