package domain

import (
	"fmt"
	"strings"
)

// SourceKind identifies the bridge implementation of a source.
type SourceKind string

const (
	// SourceREST is a JSON-over-HTTP service described by entity mappings.
	SourceREST SourceKind = "rest"

	// SourceGitHub is the issues of one GitHub repository.
	SourceGitHub SourceKind = "github"
)

// Source is a configured remote data service together with the local
// model its data is imported into.
type Source struct {
	// Name is the configuration key of the source.
	Name string `toml:"-"`

	// Kind selects the bridge.
	Kind SourceKind `toml:"kind"`

	// BaseURL is the service root. For GitHub an empty value means the
	// public API.
	BaseURL string `toml:"base_url"`

	// Token is an optional bearer token.
	Token string `toml:"token"`

	// RatePerSecond throttles requests to this source. Zero uses the
	// bridge default.
	RatePerSecond float64 `toml:"rate_per_second"`

	// PageSize is the number of records requested per call.
	PageSize int `toml:"page_size"`

	// Paginator is "offset", "max_id" or empty for none.
	Paginator string `toml:"paginator"`

	// Repository is "owner/name" for GitHub sources.
	Repository string `toml:"repository"`

	// Entities is the local model. GitHub sources use a built-in model.
	Entities []*Entity `toml:"entities"`

	// Mappings maps local entity names to remote endpoints.
	Mappings map[string]EntityMapping `toml:"mappings"`
}

// EntityMapping describes how one local entity maps onto the remote side.
type EntityMapping struct {
	// Path is the collection endpoint, relative to the base URL.
	Path string `toml:"path"`

	// Key is the remote field holding the uniquing key.
	Key string `toml:"key"`

	// ResultsKey is the response field holding the record list. Empty
	// means the response body is the list (or a single record).
	ResultsKey string `toml:"results_key"`

	// Fields maps local attribute names to remote field names. Attributes
	// not listed map to the field of the same name.
	Fields map[string]string `toml:"fields"`

	// Relationships maps local relationship names to remote fields.
	Relationships map[string]RelationshipMapping `toml:"relationships"`
}

// RelationshipMapping maps one relationship onto a remote field.
type RelationshipMapping struct {
	// Field is the remote field. Empty means the relationship name.
	Field string `toml:"field"`

	// Merge is the merge type name (see ParseMergeType).
	Merge string `toml:"merge"`
}

// RemoteField returns the remote field name for a local attribute.
func (m EntityMapping) RemoteField(attribute string) string {
	if f, ok := m.Fields[attribute]; ok && f != "" {
		return f
	}
	return attribute
}

// Validate checks the source definition.
func (s *Source) Validate() error {
	switch s.Kind {
	case SourceREST:
		if s.BaseURL == "" {
			return fmt.Errorf("source %s: base_url is required", s.Name)
		}
		if len(s.Entities) == 0 {
			return fmt.Errorf("source %s: at least one entity is required", s.Name)
		}
		for name, m := range s.Mappings {
			if m.Path == "" {
				return fmt.Errorf("source %s: mapping %s has no path", s.Name, name)
			}
			for rel, rm := range m.Relationships {
				if _, err := ParseMergeType(rm.Merge); err != nil {
					return fmt.Errorf("source %s: mapping %s.%s: %w", s.Name, name, rel, err)
				}
			}
		}
	case SourceGitHub:
		owner, repo, ok := strings.Cut(s.Repository, "/")
		if !ok || owner == "" || repo == "" {
			return fmt.Errorf("source %s: repository must be owner/name", s.Name)
		}
	default:
		return fmt.Errorf("source %s: unknown kind %q", s.Name, s.Kind)
	}
	return nil
}

// Model builds the entity model declared by the source.
func (s *Source) Model() (*Model, error) {
	return NewModel(s.Entities...)
}
