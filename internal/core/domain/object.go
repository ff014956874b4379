package domain

import (
	"fmt"
	"strings"
)

// Object is a local object owned by a store. The importer never holds on to
// an Object beyond one import pass.
type Object interface {
	// Entity returns the concrete entity of the object.
	Entity() *Entity
}

// ObjectID identifies a local object. Temporary identifiers are issued on
// insert and replaced by permanent ones when the store commits identifiers.
type ObjectID struct {
	// Entity is the concrete entity name.
	Entity string

	// Key is the store-assigned key.
	Key string

	// Temporary marks an identifier that has not been committed yet.
	Temporary bool
}

// temporaryMarker prefixes the key of temporary identifiers in String.
const temporaryMarker = "~"

// IsZero reports whether id is the zero identifier.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

// String renders the identifier as Entity/Key, with a ~ before temporary keys.
func (id ObjectID) String() string {
	if id.Temporary {
		return id.Entity + "/" + temporaryMarker + id.Key
	}
	return id.Entity + "/" + id.Key
}

// ParseObjectID parses the output of ObjectID.String.
func ParseObjectID(s string) (ObjectID, error) {
	entity, key, ok := strings.Cut(s, "/")
	if !ok || entity == "" || key == "" || key == temporaryMarker {
		return ObjectID{}, fmt.Errorf("invalid object id %q", s)
	}
	id := ObjectID{Entity: entity, Key: key}
	if strings.HasPrefix(key, temporaryMarker) {
		id.Key = strings.TrimPrefix(key, temporaryMarker)
		id.Temporary = true
	}
	return id, nil
}

// ObjectRecord is the persisted form of an object.
type ObjectRecord struct {
	ID      ObjectID
	Values  map[string]any
	Related map[string][]ObjectID
}
