package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrNoIssueNumber indicates an update targets an issue that was never
	// fetched from or created on GitHub.
	ErrNoIssueNumber = errors.New("github: issue has no number")

	// ErrNoLabelName indicates a label mutation without a label name.
	ErrNoLabelName = errors.New("github: label has no name")

	ErrRateLimited  = errors.New("github: rate limited")
	ErrNotFound     = errors.New("github: not found")
	ErrUnauthorized = errors.New("github: unauthorized")
)

// CallError is a failed API call.
type CallError struct {
	// Op names the call, for example "list issues".
	Op string

	// Status is the HTTP status, zero when no response arrived.
	Status int

	Message string

	// RetryAt is set for rate limited calls.
	RetryAt time.Time

	err error
}

func (e *CallError) Error() string {
	switch {
	case !e.RetryAt.IsZero():
		return fmt.Sprintf("github: %s: rate limited until %s", e.Op, e.RetryAt.Format(time.RFC3339))
	case e.Status != 0:
		return fmt.Sprintf("github: %s: %d %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("github: %s: %v", e.Op, e.err)
	}
}

// Unwrap returns the matching sentinel and the transport error.
func (e *CallError) Unwrap() []error {
	var out []error
	switch {
	case !e.RetryAt.IsZero():
		out = append(out, ErrRateLimited)
	case e.Status == http.StatusNotFound:
		out = append(out, ErrNotFound)
	case e.Status == http.StatusUnauthorized:
		out = append(out, ErrUnauthorized)
	}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}
