package github

import (
	"context"

	gh "github.com/google/go-github/v80/github"
)

// Record is one GitHub object. Exactly one field is set.
type Record struct {
	Issue *gh.Issue
	User  *gh.User
	Label *gh.Label
}

// Page is the metadata of a fetch.
type Page struct {
	// Number is the fetched page, starting at 1.
	Number int

	// Next is the following page, or 0 on the last page.
	Next int

	// Count is the number of records imported from the page.
	Count int

	// Remaining is the API quota left after the call.
	Remaining int
}

// operation is one GitHub call. call returns the records to import and the
// next page number.
type operation struct {
	client  *Client
	page    int
	imports bool
	call    func(ctx context.Context) ([]Record, *gh.Response, error)

	records []Record
	next    int
	err     error
}

// Run performs the call.
func (op *operation) Run(ctx context.Context) error {
	records, resp, err := op.call(ctx)
	if resp != nil {
		op.next = resp.NextPage
	}
	op.records, op.err = records, err
	return err
}

func (op *operation) metadata() *Page {
	if op.page == 0 {
		return nil
	}
	return &Page{
		Number:    op.page,
		Next:      op.next,
		Count:     len(op.records),
		Remaining: op.client.Quota().Remaining,
	}
}
