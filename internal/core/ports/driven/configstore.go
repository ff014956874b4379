package driven

import "github.com/custodia-labs/backsync/internal/core/domain"

// Configuration keys.
const (
	KeyRemoteConcurrency = "engine.remote_concurrency"
	KeyImportConcurrency = "engine.import_concurrency"
	KeyRemoteRate        = "engine.remote_rate_per_second"
	KeyUniquingAttribute = "engine.uniquing_attribute"
	KeyDataDir           = "storage.data_dir"
	KeyPersist           = "storage.persist"
	KeyHistoryKeep       = "storage.history_keep"

	// SourcesPrefix starts the keys of [sources.<name>] tables.
	SourcesPrefix = "sources."
)

// ConfigStore holds engine settings and source definitions under dotted
// keys. Typed getters return the zero value for a missing key or a value of
// another type; GetFloat also accepts integers.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Set stores value under key. File-backed stores write through.
	Set(key string, value any) error
	Save() error
	// Load discards unsaved values and rereads the backing file.
	Load() error

	// Engine returns the engine settings with defaults applied.
	Engine() domain.EngineConfig
	// Sources decodes and validates the sources, sorted by name.
	Sources() ([]domain.Source, error)
	// Path is where the configuration lives, or ":memory:".
	Path() string
}
