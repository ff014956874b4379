// Package config holds the value handling shared by the configuration
// stores.
package config

import (
	"strings"

	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// Values is configuration keyed by dotted names, as decoded from TOML:
// integers arrive as int64 and arrays as []any.
type Values map[string]any

// String returns the string at key, or "".
func (v Values) String(key string) string {
	s, _ := v[key].(string)
	return s
}

// Int returns the integer at key, or 0.
func (v Values) Int(key string) int {
	switch n := v[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Float returns the number at key, or 0. Integers are converted.
func (v Values) Float(key string) float64 {
	switch n := v[key].(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}

// Bool returns the boolean at key, or false.
func (v Values) Bool(key string) bool {
	b, _ := v[key].(bool)
	return b
}

// StringSlice returns the strings at key. Non-string items are dropped.
func (v Values) StringSlice(key string) []string {
	switch s := v[key].(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Flatten turns nested tables into dotted keys: {"a": {"b": 1}} becomes
// {"a.b": 1}.
func Flatten(m map[string]any) Values {
	out := make(Values)
	flattenInto(out, m, "")
	return out
}

func flattenInto(out Values, m map[string]any, prefix string) {
	for key, value := range m {
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			flattenInto(out, nested, key)
			continue
		}
		out[key] = value
	}
}

// Unflatten reverses Flatten.
func (v Values) Unflatten() map[string]any {
	out := make(map[string]any)
	for key, value := range v {
		parts := strings.Split(key, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return out
}

// Under returns the keys below prefix with the prefix removed.
func (v Values) Under(prefix string) Values {
	out := make(Values)
	for key, value := range v {
		if rest, ok := strings.CutPrefix(key, prefix); ok {
			out[rest] = value
		}
	}
	return out
}

// Reader is the typed read side of a configuration store.
type Reader interface {
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
}

// Engine reads the engine settings from r and applies defaults.
func Engine(r Reader) domain.EngineConfig {
	return domain.EngineConfig{
		RemoteConcurrency:   r.GetInt(driven.KeyRemoteConcurrency),
		ImportConcurrency:   r.GetInt(driven.KeyImportConcurrency),
		RemoteRatePerSecond: r.GetFloat(driven.KeyRemoteRate),
		UniquingAttribute:   r.GetString(driven.KeyUniquingAttribute),
	}.WithDefaults()
}
