package services

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
	"github.com/custodia-labs/backsync/internal/logger"
)

// uniquingKey identifies an object of one entity within an import pass.
type uniquingKey struct {
	entity string
	key    any
}

// uniquingMap resolves uniquing keys to objects. Objects are kept in an
// arena and the index maps keys to arena slots; a forgotten object leaves
// a nil slot behind.
type uniquingMap struct {
	objects []domain.Object
	index   map[uniquingKey]int
}

func newUniquingMap() *uniquingMap {
	return &uniquingMap{index: make(map[uniquingKey]int)}
}

func (m *uniquingMap) lookup(entity *domain.Entity, key any) (domain.Object, bool) {
	slot, ok := m.index[uniquingKey{entity: entity.Name, key: key}]
	if !ok || m.objects[slot] == nil {
		return nil, false
	}
	return m.objects[slot], true
}

func (m *uniquingMap) register(entity *domain.Entity, key any, obj domain.Object) {
	k := uniquingKey{entity: entity.Name, key: key}
	if slot, ok := m.index[k]; ok {
		m.objects[slot] = obj
		return
	}
	m.index[k] = len(m.objects)
	m.objects = append(m.objects, obj)
}

func (m *uniquingMap) forget(obj domain.Object) {
	for i, o := range m.objects {
		if o == obj {
			m.objects[i] = nil
		}
	}
}

// Importer merges fast-import representations into a store. One Importer
// serves one import pass: Prepare, then Import inside the store's Perform.
type Importer[M any] struct {
	store             driven.Store
	uniquingAttribute string
	log               *logger.Logger

	reps     []*domain.FastImportRepresentation[M]
	pending  map[*domain.Entity]map[any]struct{}
	uniq     *uniquingMap
	inserted []domain.Object
	prepared bool
}

// NewImporter creates an importer writing to store. uniquingAttribute is
// used for entities that do not name their own.
func NewImporter[M any](store driven.Store, uniquingAttribute string, log *logger.Logger) *Importer[M] {
	if uniquingAttribute == "" {
		uniquingAttribute = domain.DefaultUniquingAttribute
	}
	return &Importer[M]{
		store:             store,
		uniquingAttribute: uniquingAttribute,
		log:               logger.OrNop(log),
		pending:           make(map[*domain.Entity]map[any]struct{}),
		uniq:              newUniquingMap(),
	}
}

// Prepare walks the representation trees once, validating them and
// collecting the uniquing keys per entity.
func (im *Importer[M]) Prepare(reps []*domain.FastImportRepresentation[M]) error {
	for _, r := range reps {
		if err := im.scan(r); err != nil {
			return err
		}
	}
	im.reps = reps
	im.prepared = true
	return nil
}

func (im *Importer[M]) scan(r *domain.FastImportRepresentation[M]) error {
	if r.Entity == nil {
		return domain.NewImportError(domain.ErrMissingRepresentation, "", "representation without entity")
	}

	if r.UniquingKey != nil {
		if !reflect.TypeOf(r.UniquingKey).Comparable() {
			return domain.NewImportError(domain.ErrUniquingConflict, r.Entity.Name,
				fmt.Sprintf("key of type %T is not comparable", r.UniquingKey))
		}
		attr := r.Entity.UniquingKeyAttribute(im.uniquingAttribute)
		if _, clash := r.Relationships[attr]; clash {
			return domain.NewImportError(domain.ErrUniquingConflict, r.Entity.Name,
				fmt.Sprintf("%s is used as a relationship", attr))
		}
		if f, ok := r.Attributes[attr]; ok {
			if v, has := f.Get(); !has || v != r.UniquingKey {
				return domain.NewImportError(domain.ErrUniquingConflict, r.Entity.Name,
					fmt.Sprintf("%s=%v differs from key %v", attr, v, r.UniquingKey))
			}
		}

		keys, ok := im.pending[r.Entity]
		if !ok {
			keys = make(map[any]struct{})
			im.pending[r.Entity] = keys
		}
		keys[r.UniquingKey] = struct{}{}
	}

	for name, rel := range r.Relationships {
		if _, ok := r.Entity.Relationship(name); !ok {
			return domain.NewImportError(domain.ErrUnknownRelationship, r.Entity.Name, name)
		}
		children, _ := rel.Values.Get()
		for _, c := range children {
			if err := im.scan(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// Import merges the prepared representations and returns the top-level
// objects. updating, when not nil, is the object the single root
// representation must update. Must run inside the store's Perform.
func (im *Importer[M]) Import(updating domain.Object, builder ResultBuilder[M]) ([]domain.Object, error) {
	if !im.prepared {
		return nil, fmt.Errorf("import: %w", domain.ErrNotFinished)
	}
	if updating != nil && len(im.reps) > 1 {
		return nil, domain.NewImportError(domain.ErrTooManyRepresentations, entityName(updating.Entity()),
			fmt.Sprintf("%d representations", len(im.reps)))
	}
	if err := im.prefetch(); err != nil {
		return nil, err
	}
	return im.importList(im.reps, updating, builder, true)
}

// prefetch loads the existing objects of every pending uniquing key with
// one lookup per entity.
func (im *Importer[M]) prefetch() error {
	entities := slices.SortedFunc(maps.Keys(im.pending), func(a, b *domain.Entity) int {
		return strings.Compare(a.Name, b.Name)
	})

	for _, entity := range entities {
		keys := slices.Collect(maps.Keys(im.pending[entity]))
		attr := entity.UniquingKeyAttribute(im.uniquingAttribute)

		existing, err := im.store.FetchByUniquingKeys(entity, attr, keys)
		if err != nil {
			return fmt.Errorf("fetch existing %s: %w", entity.Name, err)
		}
		for _, obj := range existing {
			if v, ok := im.store.Value(obj, attr); ok && v != nil && reflect.TypeOf(v).Comparable() {
				im.uniq.register(entity, v, obj)
			}
		}
		im.log.Debug("prefetched %d/%d existing %s objects", len(existing), len(keys), entity.Name)
	}
	return nil
}

func (im *Importer[M]) importList(
	reps []*domain.FastImportRepresentation[M],
	updating domain.Object,
	builder ResultBuilder[M],
	root bool,
) ([]domain.Object, error) {
	if updating != nil && len(reps) == 1 {
		var err error
		if updating, err = im.adoptUpdatedObject(reps[0], updating, builder); err != nil {
			return nil, err
		}
	}

	objects := make([]domain.Object, 0, len(reps))
	for _, rep := range reps {
		obj, err := im.importOne(rep, updating, builder)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}

	if root && len(im.inserted) > 0 {
		if err := im.store.CommitIdentifiers(im.inserted); err != nil {
			return nil, fmt.Errorf("commit identifiers: %w", err)
		}
	}
	if err := builder.FinishedImport(); err != nil {
		return nil, err
	}
	return objects, nil
}

// adoptUpdatedObject binds the forced-update target to the representation.
// It returns the target, or nil if it was deleted in favour of an existing
// object carrying the same uniquing key.
func (im *Importer[M]) adoptUpdatedObject(
	rep *domain.FastImportRepresentation[M],
	updating domain.Object,
	builder ResultBuilder[M],
) (domain.Object, error) {
	if !updating.Entity().IsKindOf(rep.Entity) {
		return nil, domain.NewImportError(domain.ErrEntityMismatch, rep.Entity.Name,
			fmt.Sprintf("updated object is %s", updating.Entity().Name))
	}
	if rep.UniquingKey == nil {
		return updating, nil
	}

	if existing, ok := im.uniq.lookup(rep.Entity, rep.UniquingKey); ok && existing != updating {
		im.log.Debug("%s %v already exists, deleting updated object", rep.Entity.Name, rep.UniquingKey)
		builder.Deleted(updating)
		im.uniq.forget(updating)
		if err := im.store.Delete(updating); err != nil {
			return nil, fmt.Errorf("delete updated object: %w", err)
		}
		return nil, nil
	}

	attr := rep.Entity.UniquingKeyAttribute(im.uniquingAttribute)
	if current, _ := im.store.Value(updating, attr); current != rep.UniquingKey {
		if current != nil {
			im.log.Warn("%s: updated object has %s=%v, overwriting with %v",
				rep.Entity.Name, attr, current, rep.UniquingKey)
		}
		if err := im.store.SetValue(updating, attr, rep.UniquingKey); err != nil {
			return nil, err
		}
	}
	im.uniq.register(rep.Entity, rep.UniquingKey, updating)
	return updating, nil
}

func (im *Importer[M]) importOne(
	rep *domain.FastImportRepresentation[M],
	updating domain.Object,
	builder ResultBuilder[M],
) (domain.Object, error) {
	obj, err := im.resolve(rep, updating, builder)
	if err != nil {
		return nil, err
	}

	builder.StartedImporting(obj)

	for _, name := range slices.Sorted(maps.Keys(rep.Attributes)) {
		field := rep.Attributes[name]
		switch {
		case field.IsUnset():
			continue
		case field.IsNull():
			err = im.store.SetValue(obj, name, nil)
		default:
			v, _ := field.Get()
			err = im.store.SetValue(obj, name, v)
		}
		if err != nil {
			return nil, fmt.Errorf("set %s.%s: %w", rep.Entity.Name, name, err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(rep.Relationships)) {
		rel := rep.Relationships[name]
		if rel.Values.IsUnset() {
			continue
		}

		sub := builder.StartImporting(name, rel.Metadata)
		children, ok := rel.Values.Get()
		if !ok {
			if err := im.store.SetRelated(obj, name, nil); err != nil {
				return nil, fmt.Errorf("clear %s.%s: %w", rep.Entity.Name, name, err)
			}
			if err := sub.FinishedImport(); err != nil {
				return nil, err
			}
			continue
		}

		related, err := im.importList(children, nil, sub, false)
		if err != nil {
			return nil, err
		}
		if err := im.applyRelationship(obj, name, related, rel.MergeType); err != nil {
			return nil, err
		}
	}

	builder.FinishedImportingCurrentObject()
	return obj, nil
}

// resolve finds the object a representation maps to: a uniquing hit, the
// forced-update target, or a new object.
func (im *Importer[M]) resolve(
	rep *domain.FastImportRepresentation[M],
	updating domain.Object,
	builder ResultBuilder[M],
) (domain.Object, error) {
	if rep.UniquingKey != nil {
		if obj, ok := im.uniq.lookup(rep.Entity, rep.UniquingKey); ok {
			builder.Updated(obj)
			return obj, nil
		}

		obj, err := im.insert(rep.Entity, builder)
		if err != nil {
			return nil, err
		}
		attr := rep.Entity.UniquingKeyAttribute(im.uniquingAttribute)
		if err := im.store.SetValue(obj, attr, rep.UniquingKey); err != nil {
			return nil, err
		}
		im.uniq.register(rep.Entity, rep.UniquingKey, obj)
		return obj, nil
	}

	if updating != nil {
		builder.Updated(updating)
		return updating, nil
	}
	return im.insert(rep.Entity, builder)
}

func (im *Importer[M]) insert(entity *domain.Entity, builder ResultBuilder[M]) (domain.Object, error) {
	obj, err := im.store.Insert(entity)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", entity.Name, err)
	}
	im.inserted = append(im.inserted, obj)
	builder.Inserted(obj)
	return obj, nil
}

// applyRelationship merges resolved objects into a relationship of obj.
func (im *Importer[M]) applyRelationship(
	obj domain.Object, name string, values []domain.Object, mt domain.MergeType,
) error {
	rel, ok := obj.Entity().Relationship(name)
	if !ok {
		return domain.NewImportError(domain.ErrUnknownRelationship, obj.Entity().Name, name)
	}

	if !rel.ToMany {
		if mt.Kind != domain.MergeKindReplace {
			im.log.Warn("%s.%s is to-one, using replace instead of %s", obj.Entity().Name, name, mt)
		}
		if len(values) > 1 {
			im.log.Warn("%s.%s is to-one, keeping the first of %d values", obj.Entity().Name, name, len(values))
			values = values[:1]
		}
		return im.store.SetRelated(obj, name, values)
	}

	values = uniqueObjects(values)

	switch mt.Kind {
	case domain.MergeKindReplace:
		return im.store.SetRelated(obj, name, values)

	case domain.MergeKindAppend:
		existing := im.store.Related(obj, name)
		return im.store.SetRelated(obj, name, append(existing, missingFrom(existing, values)...))

	case domain.MergeKindInsertAtBeginning:
		existing := im.store.Related(obj, name)
		if !rel.Ordered {
			im.log.Warn("%s.%s is unordered, appending instead of inserting at beginning", obj.Entity().Name, name)
			return im.store.SetRelated(obj, name, append(existing, missingFrom(existing, values)...))
		}
		return im.store.SetRelated(obj, name, append(missingFrom(existing, values), existing...))

	case domain.MergeKindCustom:
		if mt.Custom == nil {
			return fmt.Errorf("%s.%s: custom merge without handler", obj.Entity().Name, name)
		}
		return mt.Custom(obj, name, values)
	}

	return fmt.Errorf("%s.%s: unknown merge kind %d", obj.Entity().Name, name, mt.Kind)
}

// uniqueObjects drops repeated objects, keeping the first occurrence.
func uniqueObjects(objs []domain.Object) []domain.Object {
	seen := make(map[domain.Object]struct{}, len(objs))
	out := make([]domain.Object, 0, len(objs))
	for _, o := range objs {
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out
}

// missingFrom returns the members of values not in existing, in order.
func missingFrom(existing, values []domain.Object) []domain.Object {
	have := make(map[domain.Object]struct{}, len(existing))
	for _, o := range existing {
		have[o] = struct{}{}
	}
	out := make([]domain.Object, 0, len(values))
	for _, o := range values {
		if _, ok := have[o]; !ok {
			out = append(out, o)
		}
	}
	return out
}
