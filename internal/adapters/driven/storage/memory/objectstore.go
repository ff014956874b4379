package memory

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Object is a local object of a Store.
type Object struct {
	entity    *domain.Entity
	key       string
	temporary bool
	seq       uint64
	values    map[string]any
	related   map[string][]*Object
	deleted   bool
}

// Entity returns the concrete entity of the object.
func (o *Object) Entity() *domain.Entity {
	return o.entity
}

func (o *Object) id() domain.ObjectID {
	return domain.ObjectID{Entity: o.entity.Name, Key: o.key, Temporary: o.temporary}
}

// Store is an in-memory object graph with change tracking. Saves are
// forwarded to an optional RecordStore.
type Store struct {
	model   *domain.Model
	records driven.RecordStore
	log     *logger.Logger

	// perform serialises Perform blocks.
	perform sync.Mutex

	mu       sync.RWMutex
	objects  map[domain.ObjectID]*Object
	aliases  map[domain.ObjectID]*Object
	nextTemp uint64
	nextSeq  uint64
	journal  *journal
}

// Option configures a Store.
type Option func(*Store)

// WithPersistence forwards saves to records.
func WithPersistence(records driven.RecordStore) Option {
	return func(s *Store) {
		s.records = records
	}
}

// WithLogger sets the store logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// NewStore creates an empty store for model.
func NewStore(model *domain.Model, opts ...Option) *Store {
	s := &Store{
		model:   model,
		log:     logger.Nop(),
		objects: make(map[domain.ObjectID]*Object),
		aliases: make(map[domain.ObjectID]*Object),
		journal: newJournal(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)
	return s
}

// Open creates a store and loads the persisted graph, if any.
func Open(ctx context.Context, model *domain.Model, opts ...Option) (*Store, error) {
	s := NewStore(model, opts...)
	if s.records == nil {
		return s, nil
	}
	recs, err := s.records.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	if err := s.restore(recs); err != nil {
		return nil, err
	}
	s.log.Debug("loaded %d objects", len(s.objects))
	return s, nil
}

func (s *Store) restore(recs []domain.ObjectRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		entity, err := s.model.Entity(rec.ID.Entity)
		if err != nil {
			s.log.Warn("skipping persisted object %s: %v", rec.ID, err)
			continue
		}
		s.nextSeq++
		obj := &Object{
			entity:  entity,
			key:     rec.ID.Key,
			seq:     s.nextSeq,
			values:  make(map[string]any, len(rec.Values)),
			related: make(map[string][]*Object),
		}
		for attr, v := range rec.Values {
			if entity.HasAttribute(attr) {
				obj.values[attr] = v
			}
		}
		s.objects[obj.id()] = obj
	}

	for _, rec := range recs {
		obj, ok := s.objects[domain.ObjectID{Entity: rec.ID.Entity, Key: rec.ID.Key}]
		if !ok {
			continue
		}
		for name, ids := range rec.Related {
			if _, ok := obj.entity.Relationship(name); !ok {
				continue
			}
			for _, id := range ids {
				target, ok := s.objects[id]
				if !ok {
					return fmt.Errorf("object %s: %s references %s: %w", rec.ID, name, id, domain.ErrObjectNotFound)
				}
				obj.related[name] = append(obj.related[name], target)
			}
		}
	}
	return nil
}

// Perform runs fn exclusively. Perform blocks must not be nested.
func (s *Store) Perform(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.perform.Lock()
	defer s.perform.Unlock()
	return fn(ctx)
}

// Model returns the entity model.
func (s *Store) Model() *domain.Model {
	return s.model
}

// ObjectID returns the current identifier of obj.
func (s *Store) ObjectID(obj domain.Object) domain.ObjectID {
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return domain.ObjectID{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return o.id()
}

// Object resolves an identifier. Temporary identifiers keep resolving after
// the object got a permanent one.
func (s *Store) Object(id domain.ObjectID) (domain.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[id]
	if !ok {
		obj, ok = s.aliases[id]
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrObjectNotFound)
	}
	if obj.deleted {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrObjectDeleted)
	}
	return obj, nil
}

// Insert creates an object with a temporary identifier.
func (s *Store) Insert(entity *domain.Entity) (domain.Object, error) {
	if entity == nil {
		return nil, fmt.Errorf("insert: %w", domain.ErrUnknownEntity)
	}
	if _, err := s.model.Entity(entity.Name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTemp++
	s.nextSeq++
	obj := &Object{
		entity:    entity,
		key:       "t" + strconv.FormatUint(s.nextTemp, 10),
		temporary: true,
		seq:       s.nextSeq,
		values:    make(map[string]any),
		related:   make(map[string][]*Object),
	}
	s.objects[obj.id()] = obj
	s.journal.insert(obj)
	return obj, nil
}

// Delete removes obj and every reference to it.
func (s *Store) Delete(obj domain.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.live(obj)
	if err != nil {
		return err
	}

	for _, other := range s.objects {
		for name, members := range other.related {
			if !slices.Contains(members, o) {
				continue
			}
			s.journal.touch(other)
			rest := slices.DeleteFunc(slices.Clone(members), func(m *Object) bool { return m == o })
			if len(rest) == 0 {
				delete(other.related, name)
			} else {
				other.related[name] = rest
			}
		}
	}

	s.journal.touch(o)
	o.deleted = true
	delete(s.objects, o.id())
	return nil
}

// Value returns an attribute value.
func (s *Store) Value(obj domain.Object, attribute string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := s.live(obj)
	if err != nil {
		return nil, false
	}
	v, ok := o.values[attribute]
	return v, ok
}

// SetValue sets an attribute. A nil value clears it. Setting an equal
// value is not a change.
func (s *Store) SetValue(obj domain.Object, attribute string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.live(obj)
	if err != nil {
		return err
	}
	if !o.entity.HasAttribute(attribute) {
		return fmt.Errorf("%s has no attribute %q: %w", o.entity, attribute, domain.ErrInvalidModel)
	}

	old, had := o.values[attribute]
	if value == nil {
		if !had {
			return nil
		}
		s.journal.touch(o)
		delete(o.values, attribute)
		return nil
	}
	if had && reflect.DeepEqual(old, value) {
		return nil
	}
	s.journal.touch(o)
	o.values[attribute] = value
	return nil
}

// Related returns a copy of the members of a relationship.
func (s *Store) Related(obj domain.Object, relationship string) []domain.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, err := s.live(obj)
	if err != nil {
		return nil
	}
	members := o.related[relationship]
	out := make([]domain.Object, len(members))
	for i, m := range members {
		out[i] = m
	}
	return out
}

// SetRelated replaces the members of a relationship.
func (s *Store) SetRelated(obj domain.Object, relationship string, objs []domain.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.live(obj)
	if err != nil {
		return err
	}
	rel, ok := o.entity.Relationship(relationship)
	if !ok {
		return fmt.Errorf("%s.%s: %w", o.entity, relationship, domain.ErrUnknownRelationship)
	}
	if !rel.ToMany && len(objs) > 1 {
		return fmt.Errorf("%s.%s is to-one, got %d objects: %w", o.entity, relationship, len(objs), domain.ErrInvalidModel)
	}

	members := make([]*Object, 0, len(objs))
	for _, obj := range objs {
		m, err := s.live(obj)
		if err != nil {
			return err
		}
		if dest := rel.DestinationEntity(); dest != nil && !m.entity.IsKindOf(dest) {
			return fmt.Errorf("%s.%s expects %s, got %s: %w", o.entity, relationship, dest, m.entity, domain.ErrEntityMismatch)
		}
		members = append(members, m)
	}

	if slices.Equal(o.related[relationship], members) {
		return nil
	}
	s.journal.touch(o)
	if len(members) == 0 {
		delete(o.related, relationship)
	} else {
		o.related[relationship] = members
	}
	return nil
}

// FetchByUniquingKeys returns the objects of entity whose attribute value is
// one of keys.
func (s *Store) FetchByUniquingKeys(entity *domain.Entity, attribute string, keys []any) ([]domain.Object, error) {
	wanted := make(map[any]struct{}, len(keys))
	for _, k := range keys {
		if k == nil || !reflect.TypeOf(k).Comparable() {
			return nil, fmt.Errorf("uniquing key %v of %s is not comparable", k, entity)
		}
		wanted[k] = struct{}{}
	}

	return s.collect(entity, -1, func(o *Object) bool {
		v, ok := o.values[attribute]
		if !ok || v == nil || !reflect.TypeOf(v).Comparable() {
			return false
		}
		_, hit := wanted[v]
		return hit
	}), nil
}

// Fetch returns the objects matching req in insertion order.
func (s *Store) Fetch(req *domain.FetchRequest) ([]domain.Object, error) {
	if req == nil || req.Entity == nil {
		return nil, fmt.Errorf("fetch: %w", domain.ErrUnknownEntity)
	}
	return s.collect(req.Entity, req.Limit, func(o *Object) bool {
		return req.Matches(o.values)
	}), nil
}

// Count returns the number of objects matching req.
func (s *Store) Count(req *domain.FetchRequest) (int, error) {
	objs, err := s.Fetch(req)
	if err != nil {
		return 0, err
	}
	return len(objs), nil
}

func (s *Store) collect(entity *domain.Entity, limit int, match func(*Object) bool) []domain.Object {
	s.mu.RLock()
	var hits []*Object
	for _, o := range s.objects {
		if o.entity.IsKindOf(entity) && match(o) {
			hits = append(hits, o)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b *Object) int { return cmp.Compare(a.seq, b.seq) })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]domain.Object, len(hits))
	for i, o := range hits {
		out[i] = o
	}
	return out
}

// CommitIdentifiers gives every temporary object in objs a permanent
// identifier.
func (s *Store) CommitIdentifiers(objs []domain.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, obj := range objs {
		o, err := s.live(obj)
		if err != nil {
			return err
		}
		s.commit(o)
	}
	return nil
}

func (s *Store) commit(o *Object) {
	if !o.temporary {
		return
	}
	tmp := o.id()
	delete(s.objects, tmp)
	o.key = uuid.NewString()
	o.temporary = false
	s.objects[o.id()] = o
	s.aliases[tmp] = o
}

// HasChanges reports whether anything changed since the last save.
func (s *Store) HasChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.journal.empty()
}

// Changes returns the objects changed since the last save.
func (s *Store) Changes() driven.Changes {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.journal.changes()
}

// Save commits temporary identifiers, writes changed objects to the record
// store and clears the journal.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.journal.empty() {
		return nil
	}
	for _, o := range s.journal.inserted {
		if !o.deleted {
			s.commit(o)
		}
	}

	if s.records != nil {
		changes := s.journal.changes()
		upserts := make([]domain.ObjectRecord, 0, len(changes.Inserted)+len(changes.Updated))
		for _, obj := range slices.Concat(changes.Inserted, changes.Updated) {
			upserts = append(upserts, record(obj.(*Object)))
		}
		deletes := make([]domain.ObjectID, 0, len(changes.Deleted))
		for _, obj := range changes.Deleted {
			deletes = append(deletes, obj.(*Object).id())
		}
		if err := s.records.Apply(ctx, upserts, deletes); err != nil {
			return fmt.Errorf("persist changes: %w", err)
		}
		s.log.Debug("persisted %d objects, deleted %d", len(upserts), len(deletes))
	}

	s.journal = newJournal()
	return nil
}

// Rollback restores the state of the last save.
func (s *Store) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.journal.inserted {
		delete(s.objects, o.id())
		for alias, target := range s.aliases {
			if target == o {
				delete(s.aliases, alias)
			}
		}
		o.deleted = true
	}
	for _, o := range s.journal.touched {
		saved := s.journal.original[o]
		o.values = saved.values
		o.related = saved.related
		o.deleted = saved.deleted
		if !o.deleted {
			s.objects[o.id()] = o
		}
	}
	s.journal = newJournal()
	return nil
}

// Len returns the number of live objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// live returns the store object behind obj. Callers hold s.mu.
func (s *Store) live(obj domain.Object) (*Object, error) {
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return nil, fmt.Errorf("foreign object %T: %w", obj, domain.ErrObjectNotFound)
	}
	if o.deleted {
		return nil, fmt.Errorf("%s: %w", o.id(), domain.ErrObjectDeleted)
	}
	return o, nil
}

func record(o *Object) domain.ObjectRecord {
	rec := domain.ObjectRecord{
		ID:      o.id(),
		Values:  make(map[string]any, len(o.values)),
		Related: make(map[string][]domain.ObjectID, len(o.related)),
	}
	for k, v := range o.values {
		rec.Values[k] = v
	}
	for name, members := range o.related {
		ids := make([]domain.ObjectID, len(members))
		for i, m := range members {
			ids[i] = m.id()
		}
		rec.Related[name] = ids
	}
	return rec
}
