// Package mcp provides an MCP (Model Context Protocol) server adapter for backsync.
// It lets AI assistants fetch remote data into the local stores and read it back.
package mcp

import "errors"

// ErrMissingSyncService is returned when the synchronizer is not provided.
var ErrMissingSyncService = errors.New("mcp: sync service is required")
