package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/content/query"
)

const (
	defaultListContentLimit = 50
	maxListContentLimit     = 200
)

// PacksResourceURI addresses the loaded pack catalog.
const PacksResourceURI = "spar://packs"

// ListContentInput represents the MCP tool input for listing entries.
type ListContentInput struct {
	Query         string   `json:"query,omitempty" jsonschema:"AIP-160 filter, e.g. severity_hi >= 8 AND tags:\"hazard\""`
	GeneratorType string   `json:"generator_type,omitempty" jsonschema:"event or loot; omitted lists both"`
	Packs         []string `json:"packs,omitempty" jsonschema:"restrict to these packs"`
	Limit         int      `json:"limit,omitempty" jsonschema:"maximum entries returned (default 50, max 200)"`
}

// ContentEntry is a summary of one authored entry.
type ContentEntry struct {
	EventID       string   `json:"event_id" jsonschema:"entry identifier"`
	Title         string   `json:"title" jsonschema:"entry title"`
	Pack          string   `json:"pack" jsonschema:"pack the entry came from"`
	GeneratorType string   `json:"generator_type" jsonschema:"event or loot"`
	Tags          []string `json:"tags" jsonschema:"entry tags"`
	SeverityBand  [2]int   `json:"severity_band" jsonschema:"lowest and highest severity the entry fits"`
	Weight        float64  `json:"weight" jsonschema:"selection weight"`
}

// ListContentResult represents the MCP tool output for listing entries.
type ListContentResult struct {
	Entries []ContentEntry `json:"entries" jsonschema:"matching entries in load order"`
	Total   int            `json:"total" jsonschema:"matches before the limit was applied"`
}

// ListContentTool defines the MCP tool schema for listing entries.
func ListContentTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_content",
		Description: "Lists loaded content entries, optionally filtered by an AIP-160 query over event_id, title, pack, generator_type, severity_lo, severity_hi, cooldown_event, weight and tags",
	}
}

// ListContentHandler filters the entries in catalog.
func ListContentHandler(catalog *content.Store) mcp.ToolHandlerFor[ListContentInput, ListContentResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ListContentInput) (*mcp.CallToolResult, ListContentResult, error) {
		if catalog == nil {
			return nil, ListContentResult{}, fmt.Errorf("content store is not configured")
		}
		entries := catalog.Entries(input.Packs...)
		if input.GeneratorType != "" {
			generator, err := parseGenerator(input.GeneratorType)
			if err != nil {
				return nil, ListContentResult{}, err
			}
			entries = catalog.EntriesOfType(generator, input.Packs...)
		}
		if input.Query != "" {
			filtered, err := query.Apply(entries, input.Query)
			if err != nil {
				return nil, ListContentResult{}, err
			}
			entries = filtered
		}

		limit := input.Limit
		if limit <= 0 {
			limit = defaultListContentLimit
		}
		limit = min(limit, maxListContentLimit)

		result := ListContentResult{Entries: []ContentEntry{}, Total: len(entries)}
		for _, e := range entries[:min(limit, len(entries))] {
			tags := e.Tags
			if tags == nil {
				tags = []string{}
			}
			result.Entries = append(result.Entries, ContentEntry{
				EventID:       e.ID,
				Title:         e.Title,
				Pack:          e.Pack,
				GeneratorType: string(e.GeneratorType),
				Tags:          tags,
				SeverityBand:  [2]int{e.SeverityBand.Lo, e.SeverityBand.Hi},
				Weight:        e.Weight,
			})
		}
		return nil, result, nil
	}
}

// PacksResource defines the pack catalog resource.
func PacksResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "packs",
		Title:       "Loaded content packs",
		Description: "Name, generator type and description of every loaded pack",
		MIMEType:    "application/json",
		URI:         PacksResourceURI,
	}
}

// PacksResourceHandler returns the pack metadata in catalog as JSON.
func PacksResourceHandler(catalog *content.Store) mcp.ResourceHandler {
	return func(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if catalog == nil {
			return nil, fmt.Errorf("content store is not configured")
		}
		uri := PacksResourceURI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}
		data, err := json.MarshalIndent(struct {
			Packs []content.Metadata `json:"packs"`
		}{Packs: catalog.Packs()}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal packs: %w", err)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: uri, MIMEType: "application/json", Text: string(data)},
			},
		}, nil
	}
}
