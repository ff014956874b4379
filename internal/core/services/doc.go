// Package services holds the sync engine and the services behind the driving
// ports.
//
// The engine decomposes a request into parts and schedules them on the
// operation queues shared by every live request: remote calls, imports and
// collation. Remote calls are throttled with golang.org/x/time/rate and queue
// concurrency is bounded by golang.org/x/sync/semaphore. Results are folded
// into the store through the uniquing importer and reported back as a
// hierarchical RequestResult.
//
// Synchronizer, Scheduler and SourceService sit on top of the engine and
// implement the driving ports used by the CLI and the MCP server.
package services
