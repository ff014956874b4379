// Package domain defines the core types of backsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Entity / Model: the typed schema of the local object graph
//   - Field: tri-state Unset / Null / Value wrapper
//   - MixedRepresentation / FastImportRepresentation: remote data on its way in
//   - RequestPart: one schedulable unit of a logical request
//   - ImportResult / BridgeResult / RequestResult: what a request produced
//   - Source / EngineConfig: configured remote services and engine tuning
//   - FetchRecord: one entry of the fetch history
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
