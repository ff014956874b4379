package mcp

import (
	"github.com/custodia-labs/backsync/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Sync fetches and reads objects.
	Sync driving.Synchronizer

	// Source lists source definitions. Optional.
	Source driving.SourceService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Sync == nil {
		return ErrMissingSyncService
	}
	return nil
}
