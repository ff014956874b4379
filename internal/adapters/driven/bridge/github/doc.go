// Package github implements a bridge to the issues and labels of one
// GitHub repository.
//
// # Model
//
// The bridge imports into a built-in model (see Model):
//
//	Issue  remoteID number title body state url createdAt updatedAt
//	       author -> User, labels -> [Label], assignees -> [User]
//	User   remoteID login
//	Label  remoteID name color description
//
// Every entity is uniqued by its GitHub database id, stored in remoteID as
// an int64. Users are only reachable through issues.
//
// # Operations
//
// Fetching Issue lists every issue of the repository, state "all" unless a
// state predicate is given. Pull requests, which GitHub lists as issues,
// are skipped. Fetching Label lists the repository labels.
//
// Inserting an Issue opens it and updating it edits title, body and state.
// Deleting an Issue closes it, since the REST API cannot delete issues.
// Labels are created, edited and deleted by name.
//
// # Rate Limiting
//
// Requests are throttled proactively by a token bucket and reactively by
// the quota GitHub reports in X-RateLimit-* headers: when fewer than
// MinBuffer requests remain, calls wait for the reset time.
package github
