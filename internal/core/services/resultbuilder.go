package services

import (
	"fmt"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// ResultBuilder accumulates what an import pass wrote. The importer keeps
// one builder per level: the root builder for the top-level objects and a
// child builder for every relationship it opens.
type ResultBuilder[M any] interface {
	// StartedImporting makes obj the current object.
	StartedImporting(obj domain.Object)

	// StartImporting opens a relationship of the current object.
	StartImporting(relationship string, metadata *M) ResultBuilder[M]

	// FinishedImportingCurrentObject closes the current object.
	FinishedImportingCurrentObject()

	// Inserted, Updated and Deleted record bookkeeping events.
	Inserted(obj domain.Object)
	Updated(obj domain.Object)
	Deleted(obj domain.Object)

	// FinishedImport closes the level. Results must not be read before.
	FinishedImport() error
}

// summaryEntry is one finished object of a level.
type summaryEntry struct {
	object domain.Object
	id     domain.ObjectID
	rels   []relationshipScope
}

// relationshipScope links a relationship name to the arena index of the
// level that imported it.
type relationshipScope struct {
	name  string
	child int
}

// summaryLevel is the state of one builder.
type summaryLevel[M any] struct {
	parent       int
	metadata     *M
	finished     bool
	hasTemporary bool
	current      domain.Object
	currentRels  []relationshipScope
	entries      []summaryEntry
	inserted     []domain.Object
	updated      []domain.Object
	deleted      []domain.Object
}

// summaryArena owns every level of one import pass. Levels refer to each
// other by index only.
type summaryArena[M any] struct {
	store  driven.Store
	levels []summaryLevel[M]
}

// SummaryBuilder produces both the internal import tree and the
// caller-facing summary.
type SummaryBuilder[M any] struct {
	arena *summaryArena[M]
	idx   int
}

var _ ResultBuilder[struct{}] = (*SummaryBuilder[struct{}])(nil)

// NewSummaryBuilder returns a root builder. metadata is reported in the
// summary as is.
func NewSummaryBuilder[M any](store driven.Store, metadata *M) *SummaryBuilder[M] {
	arena := &summaryArena[M]{store: store}
	arena.levels = append(arena.levels, summaryLevel[M]{parent: -1, metadata: metadata})
	return &SummaryBuilder[M]{arena: arena, idx: 0}
}

func (b *SummaryBuilder[M]) level() *summaryLevel[M] {
	return &b.arena.levels[b.idx]
}

// IsRoot reports whether b has no parent.
func (b *SummaryBuilder[M]) IsRoot() bool {
	return b.level().parent < 0
}

// StartedImporting makes obj the current object.
func (b *SummaryBuilder[M]) StartedImporting(obj domain.Object) {
	lvl := b.level()
	lvl.current = obj
	lvl.currentRels = nil
}

// StartImporting opens a child level for relationship.
func (b *SummaryBuilder[M]) StartImporting(relationship string, metadata *M) ResultBuilder[M] {
	child := len(b.arena.levels)
	b.arena.levels = append(b.arena.levels, summaryLevel[M]{parent: b.idx, metadata: metadata})

	lvl := b.level()
	lvl.currentRels = append(lvl.currentRels, relationshipScope{name: relationship, child: child})
	return &SummaryBuilder[M]{arena: b.arena, idx: child}
}

// FinishedImportingCurrentObject records the current object with the
// identifier it has right now.
func (b *SummaryBuilder[M]) FinishedImportingCurrentObject() {
	lvl := b.level()
	if lvl.current == nil {
		return
	}
	id := b.arena.store.ObjectID(lvl.current)
	lvl.entries = append(lvl.entries, summaryEntry{object: lvl.current, id: id, rels: lvl.currentRels})
	if id.Temporary {
		lvl.hasTemporary = true
	}
	lvl.current = nil
	lvl.currentRels = nil
}

// Inserted records an insertion.
func (b *SummaryBuilder[M]) Inserted(obj domain.Object) {
	b.level().inserted = append(b.level().inserted, obj)
}

// Updated records an update.
func (b *SummaryBuilder[M]) Updated(obj domain.Object) {
	b.level().updated = append(b.level().updated, obj)
}

// Deleted records a deletion.
func (b *SummaryBuilder[M]) Deleted(obj domain.Object) {
	b.level().deleted = append(b.level().deleted, obj)
}

// FinishedImport closes the level. The root level re-resolves temporary
// identifiers, which are permanent once the importer committed them.
func (b *SummaryBuilder[M]) FinishedImport() error {
	lvl := b.level()
	lvl.finished = true
	if lvl.parent >= 0 || !lvl.hasTemporary {
		return nil
	}

	lvl.hasTemporary = false
	for i := range lvl.entries {
		id := b.arena.store.ObjectID(lvl.entries[i].object)
		if id.IsZero() {
			return fmt.Errorf("resolve identifier of %s: %w", lvl.entries[i].id, domain.ErrObjectNotFound)
		}
		lvl.entries[i].id = id
		if id.Temporary {
			lvl.hasTemporary = true
		}
	}
	return nil
}

// HasTemporaryIDs reports whether any recorded identifier is temporary.
func (b *SummaryBuilder[M]) HasTemporaryIDs() bool {
	return b.level().hasTemporary
}

// ImportResult returns the tree of objects written at this level.
func (b *SummaryBuilder[M]) ImportResult() (domain.ImportResult, error) {
	if !b.level().finished {
		return domain.ImportResult{}, domain.ErrNotFinished
	}
	return b.arena.importResult(b.idx), nil
}

func (a *summaryArena[M]) importResult(idx int) domain.ImportResult {
	lvl := &a.levels[idx]
	out := domain.ImportResult{Nodes: make([]domain.ImportNode, 0, len(lvl.entries))}
	for _, e := range lvl.entries {
		node := domain.ImportNode{Object: e.object}
		if len(e.rels) > 0 {
			node.Relationships = make(map[string]domain.ImportResult, len(e.rels))
			for _, rel := range e.rels {
				node.Relationships[rel.name] = a.importResult(rel.child)
			}
		}
		out.Nodes = append(out.Nodes, node)
	}
	return out
}

// Summary returns the bridge-facing summary: metadata and returned
// identifiers without relationship detail.
func (b *SummaryBuilder[M]) Summary() (*domain.BridgeResult[M], error) {
	if !b.level().finished {
		return nil, domain.ErrNotFinished
	}
	return b.arena.summary(b.idx, false), nil
}

// DetailedSummary returns the summary including relationship detail. Child
// identifiers are reported as captured and may still be temporary.
func (b *SummaryBuilder[M]) DetailedSummary() (*domain.BridgeResult[M], error) {
	if !b.level().finished {
		return nil, domain.ErrNotFinished
	}
	return b.arena.summary(b.idx, true), nil
}

func (a *summaryArena[M]) summary(idx int, detailed bool) *domain.BridgeResult[M] {
	lvl := &a.levels[idx]
	out := &domain.BridgeResult[M]{
		Metadata: lvl.metadata,
		Objects:  make([]domain.ReturnedObject[M], 0, len(lvl.entries)),
	}
	for _, e := range lvl.entries {
		obj := domain.ReturnedObject[M]{ID: e.id}
		if detailed && len(e.rels) > 0 {
			obj.Relationships = make(map[string]*domain.BridgeResult[M], len(e.rels))
			for _, rel := range e.rels {
				obj.Relationships[rel.name] = a.summary(rel.child, true)
			}
		}
		out.Objects = append(out.Objects, obj)
	}
	return out
}

// Changes returns the bookkeeping events recorded at this level and below,
// with identifiers resolved at call time.
func (b *SummaryBuilder[M]) Changes() domain.ChangesDescription {
	var out domain.ChangesDescription
	b.arena.collectChanges(b.idx, &out)
	return out
}

func (a *summaryArena[M]) collectChanges(idx int, out *domain.ChangesDescription) {
	lvl := &a.levels[idx]
	for _, o := range lvl.inserted {
		out.Inserted = append(out.Inserted, a.store.ObjectID(o))
	}
	for _, o := range lvl.updated {
		out.Updated = append(out.Updated, a.store.ObjectID(o))
	}
	for _, o := range lvl.deleted {
		out.Deleted = append(out.Deleted, a.store.ObjectID(o))
	}
	for i := range a.levels {
		if a.levels[i].parent == idx {
			a.collectChanges(i, out)
		}
	}
}
