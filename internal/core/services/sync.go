package services

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
	"github.com/custodia-labs/backsync/internal/logger"
)

// Ensure SyncService implements the interface.
var _ driving.Synchronizer = (*SyncService)(nil)

// SyncService coordinates fetches across configured sources.
type SyncService struct {
	sources  map[string]Source
	log      *logger.Logger
	fetchLog driven.FetchLogStore
	keep     int

	// Status tracking
	mu     sync.RWMutex
	status map[string]*driving.SyncStatus
}

// NewSyncService creates a sync service over sources.
func NewSyncService(log *logger.Logger, sources ...Source) *SyncService {
	s := &SyncService{
		sources: make(map[string]Source, len(sources)),
		log:     logger.OrNop(log),
		status:  make(map[string]*driving.SyncStatus, len(sources)),
	}
	for _, src := range sources {
		s.sources[src.Name()] = src
		s.status[src.Name()] = &driving.SyncStatus{Source: src.Name()}
	}
	return s
}

// SetFetchLog records every fetch in store, keeping the newest keep
// entries per source. A keep of zero keeps everything.
func (s *SyncService) SetFetchLog(store driven.FetchLogStore, keep int) {
	s.fetchLog = store
	s.keep = keep
}

// Sources returns the source names, sorted.
func (s *SyncService) Sources() []string {
	return slices.Sorted(maps.Keys(s.sources))
}

// Fetch imports the remote objects of entity from source. Only one fetch
// per source runs at a time.
func (s *SyncService) Fetch(ctx context.Context, source, entity string, policy domain.FetchPolicy) (*driving.FetchReport, error) {
	src, ok := s.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, source)
	}
	if !s.begin(source) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFetchInProgress, source)
	}

	s.log.Section("Fetch " + source + "/" + entity)
	start := time.Now()

	outcome, err := src.Fetch(ctx, entity, policy)
	s.end(source, outcome, err)
	s.record(ctx, source, entity, policy, start, outcome, err)
	if err != nil {
		return nil, err
	}

	report := &driving.FetchReport{
		Source:   source,
		Entity:   entity,
		Skipped:  outcome.Skipped,
		Objects:  outcome.Objects,
		Metadata: outcome.Metadata,
		Duration: time.Since(start),
	}
	if report.Skipped {
		s.log.Info("%s/%s: remote fetch skipped (policy %s)", source, entity, policy)
	} else {
		s.log.Info("%s/%s: imported %d objects in %s", source, entity, len(report.Objects), report.Duration)
	}
	return report, nil
}

// Objects returns the local objects of entity in source, subentities
// included.
func (s *SyncService) Objects(ctx context.Context, source, entity string) ([]domain.ObjectRecord, error) {
	src, ok := s.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, source)
	}
	store := src.Store()
	e, err := store.Model().Entity(entity)
	if err != nil {
		return nil, err
	}

	var records []domain.ObjectRecord
	err = store.Perform(ctx, func(context.Context) error {
		objs, err := store.Fetch(&domain.FetchRequest{Entity: e})
		if err != nil {
			return err
		}
		records = make([]domain.ObjectRecord, 0, len(objs))
		for _, obj := range objs {
			records = append(records, Snapshot(store, obj))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Create inserts a local object and pushes it to the remote side. The
// response is imported back into the new object.
func (s *SyncService) Create(ctx context.Context, source, entity string, values map[string]any) (*driving.PushReport, error) {
	return s.push(ctx, source, func(store driven.Store) (domain.Object, error) {
		e, err := store.Model().Entity(entity)
		if err != nil {
			return nil, err
		}
		obj, err := store.Insert(e)
		if err != nil {
			return nil, err
		}
		return obj, setValues(store, obj, values)
	})
}

// Update edits a local object and pushes the change to the remote side.
func (s *SyncService) Update(ctx context.Context, source string, id domain.ObjectID, values map[string]any) (*driving.PushReport, error) {
	return s.push(ctx, source, func(store driven.Store) (domain.Object, error) {
		obj, err := store.Object(id)
		if err != nil {
			return nil, err
		}
		return obj, setValues(store, obj, values)
	})
}

func (s *SyncService) push(
	ctx context.Context, source string, edit func(store driven.Store) (domain.Object, error),
) (*driving.PushReport, error) {
	src, ok := s.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, source)
	}
	if !s.begin(source) {
		return nil, fmt.Errorf("%w: %s", domain.ErrFetchInProgress, source)
	}
	defer s.release(source)

	store := src.Store()
	var obj domain.Object
	err := store.Perform(ctx, func(context.Context) error {
		var err error
		if obj, err = edit(store); err != nil {
			if rbErr := store.Rollback(); rbErr != nil {
				s.log.Warn("rollback after failed edit: %v", rbErr)
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	failed, err := src.Save(ctx, SaveBeforeRemote)
	if err != nil {
		return nil, err
	}

	report := &driving.PushReport{Source: source, Failed: failed}
	_ = store.Perform(context.WithoutCancel(ctx), func(context.Context) error {
		report.Object = store.ObjectID(obj)
		return nil
	})
	return report, nil
}

func setValues(store driven.Store, obj domain.Object, values map[string]any) error {
	for _, attr := range slices.Sorted(maps.Keys(values)) {
		if err := store.SetValue(obj, attr, values[attr]); err != nil {
			return err
		}
	}
	return nil
}

// Status returns fetch statistics for a source.
func (s *SyncService) Status(source string) (*driving.SyncStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.status[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, source)
	}
	out := *status
	return &out, nil
}

// History returns the most recent fetches of a source, newest first.
func (s *SyncService) History(ctx context.Context, source string, limit int) ([]domain.FetchRecord, error) {
	if _, ok := s.sources[source]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSourceNotFound, source)
	}
	if s.fetchLog == nil {
		return nil, nil
	}
	return s.fetchLog.List(ctx, source, limit)
}

// Close closes every source.
func (s *SyncService) Close() error {
	var first error
	for _, name := range s.Sources() {
		if err := s.sources[name].Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", name, err)
		}
	}
	return first
}

func (s *SyncService) begin(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status[source]
	if status.Running {
		return false
	}
	status.Running = true
	return true
}

func (s *SyncService) release(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[source].Running = false
}

func (s *SyncService) record(
	ctx context.Context, source, entity string, policy domain.FetchPolicy,
	start time.Time, outcome *FetchOutcome, err error,
) {
	if s.fetchLog == nil {
		return
	}
	rec := &domain.FetchRecord{
		Source:    source,
		Entity:    entity,
		Policy:    policy.String(),
		StartedAt: start,
		EndedAt:   time.Now(),
		Success:   err == nil,
	}
	if err != nil {
		rec.Error = err.Error()
	} else {
		rec.Skipped = outcome.Skipped
		rec.Objects = len(outcome.Objects)
	}

	ctx = context.WithoutCancel(ctx)
	if err := s.fetchLog.Record(ctx, rec); err != nil {
		s.log.Warn("recording fetch of %s/%s: %v", source, entity, err)
		return
	}
	if s.keep > 0 {
		if err := s.fetchLog.Prune(ctx, s.keep); err != nil {
			s.log.Warn("pruning fetch log: %v", err)
		}
	}
}

func (s *SyncService) end(source string, outcome *FetchOutcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := s.status[source]
	status.Running = false
	if err != nil {
		status.ErrorCount++
		status.LastError = err.Error()
		return
	}
	status.Fetches++
	status.ObjectsImported += len(outcome.Objects)
}

// Snapshot captures the attributes and relationships of obj. It must run
// inside store.Perform.
func Snapshot(store driven.Store, obj domain.Object) domain.ObjectRecord {
	rec := domain.ObjectRecord{
		ID:      store.ObjectID(obj),
		Values:  make(map[string]any),
		Related: make(map[string][]domain.ObjectID),
	}
	entity := obj.Entity()
	for _, attr := range entity.AllAttributes() {
		if v, ok := store.Value(obj, attr); ok {
			rec.Values[attr] = v
		}
	}
	for _, rel := range entity.AllRelationships() {
		members := store.Related(obj, rel.Name)
		if len(members) == 0 {
			continue
		}
		ids := make([]domain.ObjectID, len(members))
		for i, m := range members {
			ids[i] = store.ObjectID(m)
		}
		rec.Related[rel.Name] = ids
	}
	return rec
}
