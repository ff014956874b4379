// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Store: the local object graph (entities, objects, identifiers, changes)
//   - Bridge: conversions between local intents and remote operations
//   - BackOperation: one prepared remote call
//   - Request: a logical operation decomposed into parts
//   - ConfigStore: application configuration
//
// # Optional Interfaces
//
//   - ImportLifecycle: callbacks around a part's import
//   - Paginator: follow-up requests for paged remote results
//   - ChangeTracker: pending changes of a Store, for save requests
//   - RecordStore: persistence behind a Store
//   - FetchLogStore: history of finished fetches
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or bridge package
package driven
