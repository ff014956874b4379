// Package rest implements a bridge to JSON-over-HTTP services described by
// entity mappings in the source configuration.
//
// Each mapped entity has a collection endpoint. Fetches issue GET requests
// against it, inserts POST, updates PATCH and deletes DELETE the member
// endpoint named by the object's uniquing key. Responses are decoded into
// records, one per object; nested objects and arrays become relationship
// values, and scalar relationship values are treated as references by key.
//
// Pagination is driven by the caller: the metadata of each fetch is a
// PageInfo whose Next method yields the fetch info of the following page.
package rest
