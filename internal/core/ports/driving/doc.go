// Package driving defines the interfaces that the outside world calls INTO core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI and the MCP server use them; core services implement them.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: driven ports, adapters, services
package driving
