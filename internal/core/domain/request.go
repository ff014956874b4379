package domain

import "fmt"

// PartKind is the kind of work a request part asks the remote side to do.
type PartKind uint8

const (
	PartFetch PartKind = iota
	PartInsert
	PartUpdate
	PartDelete
)

// String returns the lower-case name of the kind.
func (k PartKind) String() string {
	switch k {
	case PartFetch:
		return "fetch"
	case PartInsert:
		return "insert"
	case PartUpdate:
		return "update"
	case PartDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FetchRequest describes which objects of an entity to fetch.
type FetchRequest struct {
	// Entity is the entity to fetch, subentities included.
	Entity *Entity

	// Predicate restricts results to objects whose attributes equal the
	// given values.
	Predicate map[string]any

	// Limit caps the number of results. Zero means no limit.
	Limit int
}

// Matches reports whether values satisfy the predicate.
func (f *FetchRequest) Matches(values map[string]any) bool {
	for k, want := range f.Predicate {
		if got, ok := values[k]; !ok || got != want {
			return false
		}
	}
	return true
}

// RequestPart is one independently schedulable unit of a request. Fetch
// parts carry a FetchRequest; insert, update and delete parts carry the
// local object. Info is request-specific extra data handed to the bridge.
type RequestPart struct {
	Kind   PartKind
	Fetch  *FetchRequest
	Object Object
	Info   any
}

// NewFetchPart returns a fetch part.
func NewFetchPart(req *FetchRequest, info any) RequestPart {
	return RequestPart{Kind: PartFetch, Fetch: req, Info: info}
}

// NewObjectPart returns an insert, update or delete part for obj.
func NewObjectPart(kind PartKind, obj Object, info any) RequestPart {
	return RequestPart{Kind: kind, Object: obj, Info: info}
}

// FetchPolicy decides when a fetch request contacts the remote side.
type FetchPolicy uint8

const (
	// FetchAlways always contacts the remote side.
	FetchAlways FetchPolicy = iota
	// FetchIfNoLocalResults contacts the remote side only when nothing
	// local matches the fetch request.
	FetchIfNoLocalResults
	// FetchNever only uses local results.
	FetchNever
)

// String returns the flag name of the policy.
func (p FetchPolicy) String() string {
	switch p {
	case FetchIfNoLocalResults:
		return "if-empty"
	case FetchNever:
		return "never"
	default:
		return "always"
	}
}

// ParseFetchPolicy parses a flag name.
func ParseFetchPolicy(s string) (FetchPolicy, error) {
	switch s {
	case "", "always":
		return FetchAlways, nil
	case "if-empty":
		return FetchIfNoLocalResults, nil
	case "never":
		return FetchNever, nil
	default:
		return FetchAlways, fmt.Errorf("unknown fetch policy %q", s)
	}
}
