package memory

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/backsync/internal/adapters/driven/config"
	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore is an in-memory implementation of driven.ConfigStore for testing.
// Source definitions are held decoded; only the token of a source can be
// changed through Set.
type ConfigStore struct {
	mu      sync.RWMutex
	values  config.Values
	sources map[string]domain.Source
}

// NewConfigStore creates a new in-memory config store holding sources.
func NewConfigStore(sources ...domain.Source) *ConfigStore {
	s := &ConfigStore{
		values:  make(config.Values),
		sources: make(map[string]domain.Source, len(sources)),
	}
	for _, src := range sources {
		s.sources[src.Name] = src
	}
	return s
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.String(key)
}

func (s *ConfigStore) GetInt(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Int(key)
}

func (s *ConfigStore) GetFloat(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Float(key)
}

func (s *ConfigStore) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.Bool(key)
}

func (s *ConfigStore) GetStringSlice(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values.StringSlice(key)
}

// Set stores a configuration value. sources.<name>.token updates the token
// of a held source.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rest, ok := strings.CutPrefix(key, driven.SourcesPrefix); ok {
		if name, ok := strings.CutSuffix(rest, ".token"); ok {
			if src, exists := s.sources[name]; exists {
				src.Token, _ = value.(string)
				s.sources[name] = src
			}
		}
	}
	s.values[key] = value
	return nil
}

// Save does nothing.
func (s *ConfigStore) Save() error { return nil }

// Load does nothing.
func (s *ConfigStore) Load() error { return nil }

// Engine returns the engine configuration with defaults applied.
func (s *ConfigStore) Engine() domain.EngineConfig {
	return config.Engine(s)
}

// Sources returns the held sources sorted by name.
func (s *ConfigStore) Sources() ([]domain.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Source, 0, len(s.sources))
	for _, name := range slices.Sorted(maps.Keys(s.sources)) {
		out = append(out, s.sources[name])
	}
	return out, nil
}

// Path reports that the configuration is not on disk.
func (s *ConfigStore) Path() string { return ":memory:" }
