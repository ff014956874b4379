package domain

import "time"

// FetchRecord is one entry of the fetch history of a source.
type FetchRecord struct {
	Source    string
	Entity    string
	Policy    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Skipped   bool
	Objects   int
	Error     string
}

// Duration returns the wall time of the fetch.
func (r FetchRecord) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
