package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"
)

// Record is one decoded remote object.
type Record = map[string]any

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("rest: %s %s: status %d: %s", e.Method, e.URL, e.Code, e.Body)
}

// maxErrorBody caps the response body kept in a StatusError.
const maxErrorBody = 512

// operation is one HTTP call. Its results are only read after Run.
type operation struct {
	client     *http.Client
	limiter    *rate.Limiter
	method     string
	url        string
	body       Record
	resultsKey string
	page       *PageInfo
	keyField   string

	err     error
	records []Record
	decoded bool
}

// Run performs the call and decodes the response.
func (op *operation) Run(ctx context.Context) error {
	op.err = op.do(ctx)
	return op.err
}

func (op *operation) do(ctx context.Context) error {
	if err := op.limiter.Wait(ctx); err != nil {
		return err
	}

	var body io.Reader
	if op.body != nil {
		data, err := json.Marshal(op.body)
		if err != nil {
			return fmt.Errorf("rest: encoding body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, op.method, op.url, body)
	if err != nil {
		return fmt.Errorf("rest: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := op.client.Do(req)
	if err != nil {
		return fmt.Errorf("rest: %s %s: %w", op.method, op.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: op.method, URL: op.url, Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if resp.StatusCode == http.StatusNoContent || op.method == http.MethodDelete {
		return nil
	}

	records, err := decodeRecords(resp.Body, op.resultsKey)
	if err != nil {
		return fmt.Errorf("rest: decoding %s: %w", op.url, err)
	}
	op.records = records
	op.decoded = true

	if op.page != nil {
		op.page.Count = len(records)
		if n := len(records); n > 0 {
			op.page.LastKey = normalize(records[n-1][op.keyField])
		}
	}
	return nil
}

// decodeRecords decodes a JSON body into records. The body is either a
// list, a single object, or an object holding the list under resultsKey.
func decodeRecords(r io.Reader, resultsKey string) ([]Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var body any
	if err := dec.Decode(&body); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	body = normalize(body)

	if resultsKey != "" {
		obj, ok := body.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected an object holding %q", resultsKey)
		}
		body, ok = obj[resultsKey]
		if !ok {
			return nil, fmt.Errorf("missing results key %q", resultsKey)
		}
	}
	return toRecords(body)
}

func toRecords(v any) ([]Record, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []Record{t}, nil
	case []any:
		out := make([]Record, 0, len(t))
		for i, item := range t {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d is %T, not an object", i, item)
			}
			out = append(out, rec)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected %T", v)
	}
}

// normalize converts json.Number values: integral numbers become int64,
// others float64.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = normalize(t[k])
		}
		return t
	default:
		return v
	}
}
