package file

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/backsync/internal/adapters/driven/config"
	"github.com/custodia-labs/backsync/internal/core/domain"
	"github.com/custodia-labs/backsync/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// fileName is the configuration file inside the config directory.
const fileName = "config.toml"

// ConfigStore is a TOML file holding engine settings and [sources.<name>]
// tables. Keys are dotted paths into the file's tables.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	data     config.Values
}

// NewConfigStore opens configDir/config.toml, creating the directory. An
// empty configDir means ~/.backsync. A missing file is an empty
// configuration.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		configDir = filepath.Join(home, ".backsync")
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, fileName),
		data:     make(config.Values),
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.data[key]
	return val, ok
}

func (s *ConfigStore) GetString(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.String(key)
}

func (s *ConfigStore) GetInt(key string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Int(key)
}

func (s *ConfigStore) GetFloat(key string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Float(key)
}

func (s *ConfigStore) GetBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Bool(key)
}

func (s *ConfigStore) GetStringSlice(key string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.StringSlice(key)
}

// Set stores a value and writes the file.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return s.write()
}

// Save writes the file.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write()
}

// write encodes the configuration back into tables. Callers hold s.mu.
func (s *ConfigStore) write() error {
	data, err := toml.Marshal(s.data.Unflatten())
	if err != nil {
		return fmt.Errorf("encoding %s: %w", s.filePath, err)
	}
	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", s.filePath, err)
	}
	return nil
}

// Load rereads the file, discarding unsaved values.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		s.data = make(config.Values)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.filePath, err)
	}

	var tables map[string]any
	if err := toml.Unmarshal(raw, &tables); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}
	s.data = config.Flatten(tables)
	return nil
}

// Engine returns the engine configuration with defaults applied.
func (s *ConfigStore) Engine() domain.EngineConfig {
	return config.Engine(s)
}

// Sources decodes the [sources.<name>] tables, validated and sorted by name.
func (s *ConfigStore) Sources() ([]domain.Source, error) {
	s.mu.RLock()
	tables := s.data.Under(driven.SourcesPrefix).Unflatten()
	s.mu.RUnlock()

	return decodeSources(tables)
}

// decodeSources round-trips the tables through TOML so the struct tags of
// domain.Source apply.
func decodeSources(tables map[string]any) ([]domain.Source, error) {
	data, err := toml.Marshal(tables)
	if err != nil {
		return nil, fmt.Errorf("encoding sources: %w", err)
	}

	var decoded map[string]domain.Source
	if err := toml.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("decoding sources: %w", err)
	}

	sources := make([]domain.Source, 0, len(decoded))
	for _, name := range slices.Sorted(maps.Keys(decoded)) {
		src := decoded[name]
		src.Name = name
		if err := src.Validate(); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}
