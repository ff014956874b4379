package domain

// ImportNode is one object written by an import pass together with the
// results of its imported relationships.
type ImportNode struct {
	Object        Object
	Relationships map[string]ImportResult
}

// ImportResult mirrors the object graph written by one import pass.
type ImportResult struct {
	Nodes []ImportNode
}

// Objects returns the top-level objects in import order.
func (r ImportResult) Objects() []Object {
	out := make([]Object, len(r.Nodes))
	for i, n := range r.Nodes {
		out[i] = n.Object
	}
	return out
}

// ChangesDescription lists objects changed as a side effect of a request.
type ChangesDescription struct {
	Inserted []ObjectID
	Updated  []ObjectID
	Deleted  []ObjectID
}

// ReturnedObject is one object in a caller-facing summary. Relationships
// is nil in the bridge-facing view.
type ReturnedObject[M any] struct {
	ID            ObjectID
	Relationships map[string]*BridgeResult[M]
}

// BridgeResult is the caller-facing summary of one part: bridge metadata
// and the identifiers of the returned objects.
type BridgeResult[M any] struct {
	Metadata     *M
	Objects      []ReturnedObject[M]
	AsyncChanges *ChangesDescription
}

// IDs returns the identifiers of the returned objects.
func (r *BridgeResult[M]) IDs() []ObjectID {
	if r == nil {
		return nil
	}
	ids := make([]ObjectID, len(r.Objects))
	for i, o := range r.Objects {
		ids[i] = o.ID
	}
	return ids
}

// PartResult is either a summary or an error.
type PartResult[M any] struct {
	Value *BridgeResult[M]
	Err   error
}

// RequestResult maps every scheduled part to its result.
type RequestResult[K comparable, M any] struct {
	Parts map[K]PartResult[M]
}

// NewRequestResult returns an empty result.
func NewRequestResult[K comparable, M any]() *RequestResult[K, M] {
	return &RequestResult[K, M]{Parts: make(map[K]PartResult[M])}
}

// Part returns the result for id. Parts without an entry were dropped
// before scheduling and count as an empty success.
func (r *RequestResult[K, M]) Part(id K) PartResult[M] {
	if p, ok := r.Parts[id]; ok {
		return p
	}
	return PartResult[M]{Value: &BridgeResult[M]{}}
}

// HasErrors reports whether any part failed.
func (r *RequestResult[K, M]) HasErrors() bool {
	for _, p := range r.Parts {
		if p.Err != nil {
			return true
		}
	}
	return false
}

// Errors returns the failed parts.
func (r *RequestResult[K, M]) Errors() map[K]error {
	out := make(map[K]error)
	for id, p := range r.Parts {
		if p.Err != nil {
			out[id] = p.Err
		}
	}
	return out
}
