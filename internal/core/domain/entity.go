package domain

import (
	"fmt"
	"sort"
)

// Relationship describes a named link from one entity to another.
type Relationship struct {
	// Name is the relationship name on the source entity.
	Name string `toml:"name"`

	// Destination is the target entity name.
	Destination string `toml:"destination"`

	// ToMany marks a collection relationship.
	ToMany bool `toml:"to_many"`

	// Ordered marks a to-many relationship whose members keep their order.
	Ordered bool `toml:"ordered"`

	destination *Entity
}

// DestinationEntity returns the resolved target entity.
// Only valid for relationships of an entity that belongs to a Model.
func (r *Relationship) DestinationEntity() *Entity {
	return r.destination
}

// Entity is a kind of local object. Entities form single-rooted
// hierarchies: a subentity inherits every attribute and relationship of
// its parent.
type Entity struct {
	// Name uniquely identifies the entity within its model.
	Name string `toml:"name"`

	// Parent is the name of the superentity, if any.
	Parent string `toml:"parent"`

	// UniquingAttribute names the attribute holding the uniquing key.
	// Empty means inherit from the parent or use the importer default.
	UniquingAttribute string `toml:"uniquing_attribute"`

	// Attributes declared by this entity (not including inherited ones).
	Attributes []string `toml:"attributes"`

	// Relationships declared by this entity (not including inherited ones).
	Relationships []*Relationship `toml:"relationships"`

	super       *Entity
	subentities []*Entity
}

// String returns the entity name.
func (e *Entity) String() string {
	return e.Name
}

// Super returns the superentity, or nil for a root entity.
func (e *Entity) Super() *Entity {
	return e.super
}

// Subentities returns the direct subentities.
func (e *Entity) Subentities() []*Entity {
	return e.subentities
}

// IsKindOf reports whether e is other or one of its descendants.
func (e *Entity) IsKindOf(other *Entity) bool {
	if other == nil {
		return false
	}
	for cur := e; cur != nil; cur = cur.super {
		if cur == other {
			return true
		}
	}
	return false
}

// HasAttribute reports whether e declares or inherits the attribute.
func (e *Entity) HasAttribute(name string) bool {
	for cur := e; cur != nil; cur = cur.super {
		for _, a := range cur.Attributes {
			if a == name {
				return true
			}
		}
	}
	return false
}

// Relationship looks up a declared or inherited relationship.
func (e *Entity) Relationship(name string) (*Relationship, bool) {
	for cur := e; cur != nil; cur = cur.super {
		for _, r := range cur.Relationships {
			if r.Name == name {
				return r, true
			}
		}
	}
	return nil, false
}

// AllAttributes returns inherited attributes first, then e's own.
func (e *Entity) AllAttributes() []string {
	if e.super == nil {
		return append([]string(nil), e.Attributes...)
	}
	return append(e.super.AllAttributes(), e.Attributes...)
}

// AllRelationships returns inherited relationships first, then e's own.
func (e *Entity) AllRelationships() []*Relationship {
	if e.super == nil {
		return append([]*Relationship(nil), e.Relationships...)
	}
	return append(e.super.AllRelationships(), e.Relationships...)
}

// UniquingKeyAttribute returns the attribute storing uniquing keys for e,
// falling back to def when neither e nor its ancestors name one.
func (e *Entity) UniquingKeyAttribute(def string) string {
	for cur := e; cur != nil; cur = cur.super {
		if cur.UniquingAttribute != "" {
			return cur.UniquingAttribute
		}
	}
	return def
}

// Model is a resolved set of entities.
type Model struct {
	entities map[string]*Entity
}

// NewModel links entity parents and relationship destinations and
// validates the result.
func NewModel(entities ...*Entity) (*Model, error) {
	m := &Model{entities: make(map[string]*Entity, len(entities))}

	for _, e := range entities {
		if e == nil || e.Name == "" {
			return nil, fmt.Errorf("%w: entity without name", ErrInvalidModel)
		}
		if _, dup := m.entities[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate entity %s", ErrInvalidModel, e.Name)
		}
		m.entities[e.Name] = e
	}

	for _, e := range entities {
		e.super = nil
		e.subentities = nil
	}
	for _, e := range entities {
		if e.Parent == "" {
			continue
		}
		parent, ok := m.entities[e.Parent]
		if !ok {
			return nil, fmt.Errorf("%w: %s has unknown parent %s", ErrInvalidModel, e.Name, e.Parent)
		}
		e.super = parent
		parent.subentities = append(parent.subentities, e)
	}

	for _, e := range entities {
		seen := map[*Entity]bool{}
		for cur := e; cur != nil; cur = cur.super {
			if seen[cur] {
				return nil, fmt.Errorf("%w: inheritance cycle through %s", ErrInvalidModel, e.Name)
			}
			seen[cur] = true
		}
	}

	for _, e := range entities {
		for _, r := range e.Relationships {
			dest, ok := m.entities[r.Destination]
			if !ok {
				return nil, fmt.Errorf("%w: %s.%s targets unknown entity %s",
					ErrInvalidModel, e.Name, r.Name, r.Destination)
			}
			if e.HasAttribute(r.Name) {
				return nil, fmt.Errorf("%w: %s.%s is both attribute and relationship",
					ErrInvalidModel, e.Name, r.Name)
			}
			r.destination = dest
		}
	}

	return m, nil
}

// Entity returns the entity with the given name.
func (m *Model) Entity(name string) (*Entity, error) {
	e, ok := m.entities[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, name)
	}
	return e, nil
}

// Entities returns all entities sorted by name.
func (m *Model) Entities() []*Entity {
	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
