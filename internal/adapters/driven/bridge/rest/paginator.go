package rest

import (
	"fmt"
	"net/url"
	"strconv"
)

// Paginator names.
const (
	PaginatorNone   = ""
	PaginatorOffset = "offset"
	PaginatorMaxID  = "max_id"
)

// DefaultPageSize is used when the source does not set a page size.
const DefaultPageSize = 100

// PageInfo describes one fetched page. It is the metadata of fetch results
// and, passed back as fetch info, selects the page to fetch.
type PageInfo struct {
	// Paginator is the pagination scheme.
	Paginator string

	// Offset is the index of the first record (offset paginator).
	Offset int

	// Limit is the page size.
	Limit int

	// MaxID bounds the keys of the page (max_id paginator). Nil means the
	// newest page.
	MaxID any

	// Count is the number of records returned.
	Count int

	// LastKey is the uniquing key of the last record.
	LastKey any
}

// HasMore reports whether another page may follow.
func (p PageInfo) HasMore() bool {
	if p.Paginator == PaginatorNone || p.Count == 0 {
		return false
	}
	return p.Count >= p.Limit
}

// Next returns the page after p.
func (p PageInfo) Next() (*PageInfo, bool) {
	if !p.HasMore() {
		return nil, false
	}
	next := &PageInfo{Paginator: p.Paginator, Limit: p.Limit}
	switch p.Paginator {
	case PaginatorOffset:
		next.Offset = p.Offset + p.Count
	case PaginatorMaxID:
		if p.LastKey == nil {
			return nil, false
		}
		next.MaxID = p.LastKey
	}
	return next, true
}

// String renders the page for display.
func (p PageInfo) String() string {
	switch p.Paginator {
	case PaginatorOffset:
		return fmt.Sprintf("offset=%d limit=%d count=%d", p.Offset, p.Limit, p.Count)
	case PaginatorMaxID:
		return fmt.Sprintf("max_id=%v limit=%d count=%d", p.MaxID, p.Limit, p.Count)
	default:
		return fmt.Sprintf("count=%d", p.Count)
	}
}

// apply sets the query parameters of the page.
func (p PageInfo) apply(q url.Values) {
	switch p.Paginator {
	case PaginatorOffset:
		q.Set("offset", strconv.Itoa(p.Offset))
		q.Set("limit", strconv.Itoa(p.Limit))
	case PaginatorMaxID:
		if p.MaxID != nil {
			q.Set("max_id", fmt.Sprint(p.MaxID))
		}
		q.Set("limit", strconv.Itoa(p.Limit))
	}
}

func validPaginator(name string) error {
	switch name {
	case PaginatorNone, PaginatorOffset, PaginatorMaxID:
		return nil
	default:
		return fmt.Errorf("unknown paginator %q", name)
	}
}
