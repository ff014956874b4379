package memory

import (
	"maps"
	"slices"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// objectState is the saved state of an object that existed at the last save.
type objectState struct {
	values  map[string]any
	related map[string][]*Object
	deleted bool
}

// journal records changes since the last save.
type journal struct {
	inserted    []*Object
	insertedSet map[*Object]struct{}
	touched     []*Object
	original    map[*Object]objectState
}

func newJournal() *journal {
	return &journal{
		insertedSet: make(map[*Object]struct{}),
		original:    make(map[*Object]objectState),
	}
}

func (j *journal) insert(o *Object) {
	j.inserted = append(j.inserted, o)
	j.insertedSet[o] = struct{}{}
}

// touch snapshots o before its first change. Inserted objects need no
// snapshot.
func (j *journal) touch(o *Object) {
	if _, ok := j.insertedSet[o]; ok {
		return
	}
	if _, ok := j.original[o]; ok {
		return
	}
	related := make(map[string][]*Object, len(o.related))
	for name, members := range o.related {
		related[name] = slices.Clone(members)
	}
	j.original[o] = objectState{
		values:  maps.Clone(o.values),
		related: related,
		deleted: o.deleted,
	}
	j.touched = append(j.touched, o)
}

// empty ignores objects inserted and deleted since the last save.
func (j *journal) empty() bool {
	if len(j.touched) > 0 {
		return false
	}
	for _, o := range j.inserted {
		if !o.deleted {
			return false
		}
	}
	return true
}

func (j *journal) changes() driven.Changes {
	var c driven.Changes
	for _, o := range j.inserted {
		if !o.deleted {
			c.Inserted = append(c.Inserted, domain.Object(o))
		}
	}
	for _, o := range j.touched {
		if o.deleted {
			c.Deleted = append(c.Deleted, domain.Object(o))
		} else {
			c.Updated = append(c.Updated, domain.Object(o))
		}
	}
	return c
}
