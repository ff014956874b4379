package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/backsync/internal/core/domain"
)

// defaultObjectLimit caps the objects tool when no limit is given.
const defaultObjectLimit = 50

// FetchInput is the input schema for the fetch tool.
type FetchInput struct {
	Source string `json:"source" jsonschema:"the configured source name"`
	Entity string `json:"entity" jsonschema:"the entity to fetch"`
	Policy string `json:"policy,omitempty" jsonschema:"always, if-empty or never (default always)"`
}

// FetchOutput is the output schema for the fetch tool.
type FetchOutput struct {
	Skipped    bool     `json:"skipped"`
	Objects    []string `json:"objects"`
	Count      int      `json:"count"`
	Metadata   string   `json:"metadata,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

// ObjectsInput is the input schema for the objects tool.
type ObjectsInput struct {
	Source string `json:"source" jsonschema:"the configured source name"`
	Entity string `json:"entity" jsonschema:"the entity to list"`
	Limit  int    `json:"limit,omitempty" jsonschema:"maximum number of objects to return (default 50)"`
}

// ObjectsOutput is the output schema for the objects tool.
type ObjectsOutput struct {
	Objects []ObjectOutput `json:"objects"`
	Count   int            `json:"count"`
	Total   int            `json:"total"`
}

// ObjectOutput is one local object.
type ObjectOutput struct {
	ID      string              `json:"id"`
	Values  map[string]any      `json:"values"`
	Related map[string][]string `json:"related,omitempty"`
}

// StatusInput is the input schema for the status tool.
type StatusInput struct {
	Source string `json:"source" jsonschema:"the configured source name"`
}

// StatusOutput is the output schema for the status tool.
type StatusOutput struct {
	Running         bool   `json:"running"`
	Fetches         int    `json:"fetches"`
	ObjectsImported int    `json:"objects_imported"`
	ErrorCount      int    `json:"error_count"`
	LastError       string `json:"last_error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "fetch",
		Description: "Fetch the remote objects of an entity into the local store",
	}, s.handleFetch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "objects",
		Description: "List the local objects of an entity",
	}, s.handleObjects)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "status",
		Description: "Show fetch statistics of a source",
	}, s.handleStatus)
}

func (s *Server) handleFetch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FetchInput,
) (*mcp.CallToolResult, FetchOutput, error) {
	policy, err := domain.ParseFetchPolicy(input.Policy)
	if err != nil {
		return nil, FetchOutput{}, err
	}

	report, err := s.ports.Sync.Fetch(ctx, input.Source, input.Entity, policy)
	if err != nil {
		return nil, FetchOutput{}, err
	}

	output := FetchOutput{
		Skipped:    report.Skipped,
		Objects:    make([]string, len(report.Objects)),
		Count:      len(report.Objects),
		Metadata:   report.Metadata,
		DurationMS: report.Duration.Milliseconds(),
	}
	for i, id := range report.Objects {
		output.Objects[i] = id.String()
	}
	return nil, output, nil
}

func (s *Server) handleObjects(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ObjectsInput,
) (*mcp.CallToolResult, ObjectsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultObjectLimit
	}

	records, err := s.ports.Sync.Objects(ctx, input.Source, input.Entity)
	if err != nil {
		return nil, ObjectsOutput{}, err
	}

	output := ObjectsOutput{Total: len(records)}
	for _, rec := range records[:min(limit, len(records))] {
		output.Objects = append(output.Objects, objectOutput(rec))
	}
	output.Count = len(output.Objects)
	return nil, output, nil
}

func objectOutput(rec domain.ObjectRecord) ObjectOutput {
	out := ObjectOutput{ID: rec.ID.String(), Values: rec.Values}
	if len(rec.Related) > 0 {
		out.Related = make(map[string][]string, len(rec.Related))
		for name, ids := range rec.Related {
			strs := make([]string, len(ids))
			for i, id := range ids {
				strs[i] = id.String()
			}
			out.Related[name] = strs
		}
	}
	return out
}

func (s *Server) handleStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	status, err := s.ports.Sync.Status(input.Source)
	if err != nil {
		return nil, StatusOutput{}, fmt.Errorf("status of %s: %w", input.Source, err)
	}
	return nil, StatusOutput{
		Running:         status.Running,
		Fetches:         status.Fetches,
		ObjectsImported: status.ObjectsImported,
		ErrorCount:      status.ErrorCount,
		LastError:       status.LastError,
	}, nil
}
