package driving

import "context"

// Scheduler runs fetches in the background.
type Scheduler interface {
	// Start begins running scheduled fetches.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the loop and waits for running fetches.
	Stop() error
}
