package domain

// presence is the state of a Field.
type presence uint8

const (
	unset presence = iota
	null
	value
)

// Field is a tri-state value: Unset means "leave untouched", Null means
// "clear", and Value carries a new value.
type Field[T any] struct {
	state presence
	v     T
}

// Unset returns a field that leaves its target untouched.
func Unset[T any]() Field[T] {
	return Field[T]{}
}

// Null returns a field that clears its target.
func Null[T any]() Field[T] {
	return Field[T]{state: null}
}

// Set returns a field carrying v.
func Set[T any](v T) Field[T] {
	return Field[T]{state: value, v: v}
}

// IsUnset reports whether the field leaves its target untouched.
func (f Field[T]) IsUnset() bool {
	return f.state == unset
}

// IsNull reports whether the field clears its target.
func (f Field[T]) IsNull() bool {
	return f.state == null
}

// Get returns the carried value and whether one is present.
func (f Field[T]) Get() (T, bool) {
	return f.v, f.state == value
}

// ValueOr returns the carried value or def.
func (f Field[T]) ValueOr(def T) T {
	if f.state == value {
		return f.v
	}
	return def
}

// String names the state, for logs.
func (f Field[T]) String() string {
	switch f.state {
	case null:
		return "null"
	case value:
		return "value"
	default:
		return "unset"
	}
}
