package domain

import (
	"fmt"
)

// MergeKind selects how imported relationship values meet existing ones.
type MergeKind uint8

const (
	// MergeKindReplace overwrites the relationship.
	MergeKindReplace MergeKind = iota
	// MergeKindAppend adds new members after the existing ones.
	MergeKindAppend
	// MergeKindInsertAtBeginning adds new members before the existing ones.
	MergeKindInsertAtBeginning
	// MergeKindCustom delegates to a caller-supplied function.
	MergeKindCustom
)

// CustomMergeFunc applies imported values to a relationship of obj.
type CustomMergeFunc func(obj Object, relationship string, values []Object) error

// MergeType is the policy for reconciling imported relationship values
// with the existing ones.
type MergeType struct {
	Kind   MergeKind
	Custom CustomMergeFunc
}

// Predefined merge types.
var (
	MergeReplace           = MergeType{Kind: MergeKindReplace}
	MergeAppend            = MergeType{Kind: MergeKindAppend}
	MergeInsertAtBeginning = MergeType{Kind: MergeKindInsertAtBeginning}
)

// CustomMerge returns a merge type delegating to fn.
func CustomMerge(fn CustomMergeFunc) MergeType {
	return MergeType{Kind: MergeKindCustom, Custom: fn}
}

// String returns the configuration name of the merge type.
func (m MergeType) String() string {
	switch m.Kind {
	case MergeKindAppend:
		return "append"
	case MergeKindInsertAtBeginning:
		return "insert_at_beginning"
	case MergeKindCustom:
		return "custom"
	default:
		return "replace"
	}
}

// ParseMergeType parses a configuration name. Custom merges cannot be
// configured by name.
func ParseMergeType(s string) (MergeType, error) {
	switch s {
	case "", "replace":
		return MergeReplace, nil
	case "append":
		return MergeAppend, nil
	case "insert_at_beginning":
		return MergeInsertAtBeginning, nil
	default:
		return MergeType{}, fmt.Errorf("unknown merge type %q", s)
	}
}

// MixedRelationship is a relationship value before conversion: the entity
// expected at the other end and the raw remote sub-representation.
type MixedRelationship[RR any] struct {
	Entity *Entity
	Raw    RR
}

// MixedRepresentation is one remote record bridged against an expected
// entity. A missing attribute or relationship key leaves the local value
// untouched.
type MixedRepresentation[RR any] struct {
	Entity        *Entity
	UniquingKey   any
	Attributes    map[string]Field[any]
	Relationships map[string]Field[MixedRelationship[RR]]
}

// NewMixedRepresentation builds a mixed representation from a decoded
// record. Only names declared by entity are kept; a nil value clears the
// attribute or relationship.
func NewMixedRepresentation(entity *Entity, key any, values map[string]any) *MixedRepresentation[any] {
	mixed := &MixedRepresentation[any]{
		Entity:        entity,
		UniquingKey:   key,
		Attributes:    make(map[string]Field[any]),
		Relationships: make(map[string]Field[MixedRelationship[any]]),
	}

	for _, name := range entity.AllAttributes() {
		v, ok := values[name]
		if !ok {
			continue
		}
		if v == nil {
			mixed.Attributes[name] = Null[any]()
		} else {
			mixed.Attributes[name] = Set(v)
		}
	}

	for _, rel := range entity.AllRelationships() {
		v, ok := values[rel.Name]
		if !ok {
			continue
		}
		if v == nil {
			mixed.Relationships[rel.Name] = Null[MixedRelationship[any]]()
			continue
		}
		mixed.Relationships[rel.Name] = Set(MixedRelationship[any]{
			Entity: rel.DestinationEntity(),
			Raw:    v,
		})
	}

	return mixed
}

// RelationshipImport is a converted relationship value: Null clears the
// relationship, a value list is merged according to MergeType. Metadata is
// bridge-specific (for example pagination state) and may be nil.
type RelationshipImport[M any] struct {
	Values    Field[[]*FastImportRepresentation[M]]
	MergeType MergeType
	Metadata  *M
}

// FastImportRepresentation is the fully converted, recursive form of a
// remote record, ready for the importer.
type FastImportRepresentation[M any] struct {
	Entity        *Entity
	UniquingKey   any
	Attributes    map[string]Field[any]
	Relationships map[string]RelationshipImport[M]
}

// Count returns the number of representations in the tree rooted at r.
func (r *FastImportRepresentation[M]) Count() int {
	n := 1
	for _, rel := range r.Relationships {
		children, _ := rel.Values.Get()
		for _, c := range children {
			n += c.Count()
		}
	}
	return n
}
