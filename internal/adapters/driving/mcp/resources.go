package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for backsync resources.
	uriScheme = "backsync://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sources",
		Name:        "sources",
		Description: "List of all configured data sources",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sources/{source}/history",
		Name:        "source-history",
		Description: "Recent fetches of a specific source",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)
}

// handleSourcesResource returns a list of all configured sources.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	type sourceInfo struct {
		Name       string   `json:"name"`
		Kind       string   `json:"kind,omitempty"`
		BaseURL    string   `json:"base_url,omitempty"`
		Repository string   `json:"repository,omitempty"`
		Entities   []string `json:"entities,omitempty"`
	}

	var infos []sourceInfo
	if s.ports.Source == nil {
		for _, name := range s.ports.Sync.Sources() {
			infos = append(infos, sourceInfo{Name: name})
		}
	} else {
		sources, err := s.ports.Source.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing sources: %w", err)
		}
		for _, src := range sources {
			info := sourceInfo{
				Name:       src.Name,
				Kind:       string(src.Kind),
				BaseURL:    src.BaseURL,
				Repository: src.Repository,
			}
			for _, e := range src.Entities {
				info.Entities = append(info.Entities, e.Name)
			}
			infos = append(infos, info)
		}
	}
	if infos == nil {
		infos = []sourceInfo{}
	}

	return jsonResource(req.Params.URI, infos)
}

// historyLimit is the number of fetches returned by the history resource.
const historyLimit = 20

// handleHistoryResource returns the recent fetches of a source.
func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	source := extractSource(req.Params.URI)
	if source == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	records, err := s.ports.Sync.History(ctx, source, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}

	type fetchInfo struct {
		Entity     string `json:"entity"`
		Policy     string `json:"policy"`
		StartedAt  string `json:"started_at"`
		DurationMS int64  `json:"duration_ms"`
		Success    bool   `json:"success"`
		Skipped    bool   `json:"skipped,omitempty"`
		Objects    int    `json:"objects"`
		Error      string `json:"error,omitempty"`
	}

	infos := make([]fetchInfo, len(records))
	for i, r := range records {
		infos[i] = fetchInfo{
			Entity:     r.Entity,
			Policy:     r.Policy,
			StartedAt:  r.StartedAt.Format("2006-01-02T15:04:05Z07:00"),
			DurationMS: r.Duration().Milliseconds(),
			Success:    r.Success,
			Skipped:    r.Skipped,
			Objects:    r.Objects,
			Error:      r.Error,
		}
	}
	return jsonResource(req.Params.URI, infos)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSource extracts the source name from a URI like backsync://sources/{source}/history.
func extractSource(uri string) string {
	const prefix = uriScheme + "sources/"
	const suffix = "/history"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(uri, suffix)
}
