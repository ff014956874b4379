package domain

import "runtime"

// DefaultUniquingAttribute is the attribute that stores uniquing keys for
// entities that do not name one.
const DefaultUniquingAttribute = "remoteID"

// EngineConfig sizes the request engine.
type EngineConfig struct {
	// RemoteConcurrency bounds concurrent remote calls.
	RemoteConcurrency int

	// ImportConcurrency bounds concurrent result imports.
	ImportConcurrency int

	// RemoteRatePerSecond throttles remote calls. Zero disables throttling.
	RemoteRatePerSecond float64

	// UniquingAttribute is the default uniquing attribute name.
	UniquingAttribute string
}

// DefaultEngineConfig returns the default engine configuration.
func DefaultEngineConfig() EngineConfig {
	cpus := runtime.NumCPU()
	return EngineConfig{
		RemoteConcurrency: cpus * 8,
		ImportConcurrency: cpus,
		UniquingAttribute: DefaultUniquingAttribute,
	}
}

// WithDefaults fills zero fields from DefaultEngineConfig.
func (c EngineConfig) WithDefaults() EngineConfig {
	def := DefaultEngineConfig()
	if c.RemoteConcurrency <= 0 {
		c.RemoteConcurrency = def.RemoteConcurrency
	}
	if c.ImportConcurrency <= 0 {
		c.ImportConcurrency = def.ImportConcurrency
	}
	if c.RemoteRatePerSecond < 0 {
		c.RemoteRatePerSecond = 0
	}
	if c.UniquingAttribute == "" {
		c.UniquingAttribute = def.UniquingAttribute
	}
	return c
}
