package services

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/backsync/internal/logger"
)

// Future completes once its task has run or has been skipped.
// Dependents always observe completion, whether or not the task ran.
type Future struct {
	done chan struct{}
	ran  bool
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(ran bool, err error) {
	f.ran = ran
	f.err = err
	close(f.done)
}

// Done is closed when the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Ran reports whether the task was executed. Only valid after Done.
func (f *Future) Ran() bool {
	<-f.done
	return f.ran
}

// Err returns the task error, or the reason it was skipped.
func (f *Future) Err() error {
	<-f.done
	return f.err
}

// Wait blocks until the future completes or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OperationQueue runs tasks on a bounded pool of workers. A task starts
// once all its dependencies completed and a worker slot is free.
type OperationQueue struct {
	name    string
	limit   int
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	log     *logger.Logger
	wg      sync.WaitGroup
}

// QueueOption configures an OperationQueue.
type QueueOption func(*OperationQueue)

// WithRateLimit throttles task starts to perSecond. Zero disables it.
func WithRateLimit(perSecond float64) QueueOption {
	return func(q *OperationQueue) {
		if perSecond > 0 {
			q.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewOperationQueue creates a queue running at most concurrency tasks at once.
func NewOperationQueue(name string, concurrency int, log *logger.Logger, opts ...QueueOption) *OperationQueue {
	if concurrency < 1 {
		concurrency = 1
	}
	q := &OperationQueue{
		name:  name,
		limit: concurrency,
		sem:   semaphore.NewWeighted(int64(concurrency)),
		log:   logger.OrNop(log),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Name returns the queue name.
func (q *OperationQueue) Name() string {
	return q.name
}

// Concurrency returns the worker limit.
func (q *OperationQueue) Concurrency() int {
	return q.limit
}

// Submit schedules task after deps. If ctx is done before the task gets a
// worker, the task is skipped and the future completes with ctx.Err().
func (q *OperationQueue) Submit(ctx context.Context, deps []*Future, task func(ctx context.Context) error) *Future {
	f := newFuture()
	q.wg.Add(1)

	go func() {
		defer q.wg.Done()

		for _, d := range deps {
			<-d.Done()
		}

		if err := ctx.Err(); err != nil {
			f.complete(false, err)
			return
		}
		if err := q.sem.Acquire(ctx, 1); err != nil {
			f.complete(false, err)
			return
		}
		defer q.sem.Release(1)

		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				q.log.Debug("%s queue: task skipped while throttled: %v", q.name, err)
				f.complete(false, err)
				return
			}
		}

		f.complete(true, task(ctx))
	}()

	return f
}

// Wait blocks until every submitted task completed.
func (q *OperationQueue) Wait() {
	q.wg.Wait()
}
