package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/backsync/internal/core/ports/driving"
	"github.com/custodia-labs/backsync/internal/logger"
)

var _ driving.Scheduler = (*Scheduler)(nil)

// Scheduler refetches a set of targets on a fixed interval.
type Scheduler struct {
	interval time.Duration
	targets  []driving.FetchTarget
	sync     driving.Synchronizer
	log      *logger.Logger

	// OnReport, if set, receives every completed fetch.
	OnReport func(report *driving.FetchReport, err error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	busy    atomic.Bool
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler.
func NewScheduler(interval time.Duration, syncer driving.Synchronizer, log *logger.Logger, targets ...driving.FetchTarget) *Scheduler {
	return &Scheduler{
		interval: interval,
		targets:  targets,
		sync:     syncer,
		log:      logger.OrNop(log),
	}
}

// Start runs the scheduler loop. It blocks until Stop is called or ctx is
// done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	return s.run(ctx, stopCh)
}

// Stop shuts the loop down and waits for running fetches.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.runDue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue fetches every target in order. A tick is skipped while the
// previous round is still running.
func (s *Scheduler) runDue(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Debug("previous scheduled round still running, skipping tick")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Store(false)

		for _, target := range s.targets {
			if ctx.Err() != nil {
				return
			}
			report, err := s.sync.Fetch(ctx, target.Source, target.Entity, target.Policy)
			if err != nil {
				s.log.Warn("scheduled fetch %s/%s: %v", target.Source, target.Entity, err)
			}
			if s.OnReport != nil {
				s.OnReport(report, err)
			}
		}
	}()
}
