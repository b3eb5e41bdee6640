package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/grpc"

	"github.com/louisbranch/spar/internal/services/session/api/grpc/sessions"
	"github.com/louisbranch/spar/internal/spar/scene"
)

// SessionClient is the part of the session gRPC client the tools use.
type SessionClient interface {
	CreateSession(ctx context.Context, req sessions.CreateSessionRequest, opts ...grpc.CallOption) (sessions.Session, error)
	GetSession(ctx context.Context, id string, opts ...grpc.CallOption) (sessions.Session, error)
	Generate(ctx context.Context, req sessions.GenerateRequest, opts ...grpc.CallOption) (sessions.GenerateResponse, error)
	ListEvents(ctx context.Context, req sessions.ListEventsRequest, opts ...grpc.CallOption) (sessions.ListEventsResponse, error)
}

// Context is the MCP connection's current session.
type Context struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"current session identifier"`
}

// SessionCreateInput represents the MCP tool input for creating a session.
type SessionCreateInput struct {
	Name          string          `json:"name,omitempty" jsonschema:"display name"`
	Seed          string          `json:"seed,omitempty" jsonschema:"decimal seed; omitted means random"`
	GeneratorType string          `json:"generator_type,omitempty" jsonschema:"event or loot (default event)"`
	Locale        string          `json:"locale,omitempty" jsonschema:"locale for cutoff framing"`
	Scene         SceneInput      `json:"scene" jsonschema:"initial scene"`
	Selection     scene.Selection `json:"selection,omitempty" jsonschema:"pack, tag and rarity filters"`
}

// SessionResult represents an MCP tool output carrying a session.
type SessionResult struct {
	Session sessions.Session `json:"session" jsonschema:"session after the call"`
}

// SessionGenerateInput represents the MCP tool input for session generation.
type SessionGenerateInput struct {
	SessionID    string      `json:"session_id,omitempty" jsonschema:"session identifier; omitted uses the current context"`
	Count        int         `json:"count,omitempty" jsonschema:"events to generate (default 1)"`
	TicksBefore  int         `json:"ticks_before,omitempty" jsonschema:"turns elapsed since the last call"`
	TicksBetween int         `json:"ticks_between,omitempty" jsonschema:"turns between events in this call"`
	Scene        *SceneInput `json:"scene,omitempty" jsonschema:"replacement scene, e.g. a new phase"`
	ForceEventID string      `json:"force_event_id,omitempty" jsonschema:"generate this entry instead of sampling one"`
}

// SessionEventsInput represents the MCP tool input for reading history.
type SessionEventsInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"session identifier; omitted uses the current context"`
	PageSize  int    `json:"page_size,omitempty" jsonschema:"events per page (default 20)"`
	PageToken string `json:"page_token,omitempty" jsonschema:"token from a previous page"`
	Newest    bool   `json:"newest,omitempty" jsonschema:"list newest first"`
}

// SetContextInput represents the MCP tool input for setting the context.
type SetContextInput struct {
	SessionID string `json:"session_id" jsonschema:"session to use for later calls"`
}

// SetContextResult represents the MCP tool output for setting the context.
type SetContextResult struct {
	Context Context `json:"context" jsonschema:"current context"`
}

// SessionCreateTool defines the MCP tool schema for creating a session.
func SessionCreateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_create",
		Description: "Creates a persistent session and makes it the current context",
	}
}

// SessionGenerateTool defines the MCP tool schema for session generation.
func SessionGenerateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_generate",
		Description: "Generates events in a session; the server keeps state between calls",
	}
}

// SessionEventsTool defines the MCP tool schema for reading history.
func SessionEventsTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "session_events",
		Description: "Lists the events generated in a session",
	}
}

// SetContextTool defines the MCP tool schema for setting the context.
func SetContextTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "set_context",
		Description: "Sets the current session for later session tool calls",
	}
}

// SessionCreateHandler creates a session and records it as the context.
func SessionCreateHandler(client SessionClient, setContext func(Context)) mcp.ToolHandlerFor[SessionCreateInput, SessionResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionCreateInput) (*mcp.CallToolResult, SessionResult, error) {
		if client == nil {
			return nil, SessionResult{}, fmt.Errorf("session client is not configured")
		}
		sc, err := input.Scene.Context()
		if err != nil {
			return nil, SessionResult{}, fmt.Errorf("invalid scene: %w", err)
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		created, err := client.CreateSession(runCtx, sessions.CreateSessionRequest{
			Name:          input.Name,
			Seed:          input.Seed,
			GeneratorType: input.GeneratorType,
			Locale:        input.Locale,
			Scene:         sc,
			Selection:     input.Selection,
		})
		if err != nil {
			return nil, SessionResult{}, fmt.Errorf("create session: %w", err)
		}
		if setContext != nil {
			setContext(Context{SessionID: created.SessionID})
		}
		return nil, SessionResult{Session: created}, nil
	}
}

// SessionGenerateHandler generates events in the requested or current session.
func SessionGenerateHandler(client SessionClient, getContext func() Context) mcp.ToolHandlerFor[SessionGenerateInput, sessions.GenerateResponse] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionGenerateInput) (*mcp.CallToolResult, sessions.GenerateResponse, error) {
		if client == nil {
			return nil, sessions.GenerateResponse{}, fmt.Errorf("session client is not configured")
		}
		id, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, sessions.GenerateResponse{}, err
		}
		req := sessions.GenerateRequest{
			SessionID:    id,
			Count:        input.Count,
			TicksBefore:  input.TicksBefore,
			TicksBetween: input.TicksBetween,
			ForceEventID: input.ForceEventID,
		}
		if input.Scene != nil {
			sc, err := input.Scene.Context()
			if err != nil {
				return nil, sessions.GenerateResponse{}, fmt.Errorf("invalid scene: %w", err)
			}
			req.Scene = &sc
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcGenerateTimeout)
		defer cancel()

		resp, err := client.Generate(runCtx, req)
		if err != nil {
			return nil, sessions.GenerateResponse{}, fmt.Errorf("generate: %w", err)
		}
		return nil, resp, nil
	}
}

// SessionEventsHandler lists a session's events.
func SessionEventsHandler(client SessionClient, getContext func() Context) mcp.ToolHandlerFor[SessionEventsInput, sessions.ListEventsResponse] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SessionEventsInput) (*mcp.CallToolResult, sessions.ListEventsResponse, error) {
		if client == nil {
			return nil, sessions.ListEventsResponse{}, fmt.Errorf("session client is not configured")
		}
		id, err := resolveSessionID(input.SessionID, getContext)
		if err != nil {
			return nil, sessions.ListEventsResponse{}, err
		}
		orderBy := ""
		if input.Newest {
			orderBy = "sequence desc"
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()

		resp, err := client.ListEvents(runCtx, sessions.ListEventsRequest{
			SessionID: id,
			PageSize:  input.PageSize,
			PageToken: input.PageToken,
			OrderBy:   orderBy,
		})
		if err != nil {
			return nil, sessions.ListEventsResponse{}, fmt.Errorf("list events: %w", err)
		}
		return nil, resp, nil
	}
}

// SetContextHandler checks the session exists and makes it current.
func SetContextHandler(client SessionClient, setContext func(Context)) mcp.ToolHandlerFor[SetContextInput, SetContextResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SetContextInput) (*mcp.CallToolResult, SetContextResult, error) {
		if client == nil {
			return nil, SetContextResult{}, fmt.Errorf("session client is not configured")
		}
		id := strings.TrimSpace(input.SessionID)
		if id == "" {
			return nil, SetContextResult{}, fmt.Errorf("session_id is required")
		}
		runCtx, cancel := context.WithTimeout(ctx, grpcCallTimeout)
		defer cancel()
		if _, err := client.GetSession(runCtx, id); err != nil {
			return nil, SetContextResult{}, fmt.Errorf("get session: %w", err)
		}
		next := Context{SessionID: id}
		if setContext != nil {
			setContext(next)
		}
		return nil, SetContextResult{Context: next}, nil
	}
}

var _ SessionClient = (*sessions.Client)(nil)

func resolveSessionID(explicit string, getContext func() Context) (string, error) {
	if id := strings.TrimSpace(explicit); id != "" {
		return id, nil
	}
	if getContext != nil {
		if id := getContext().SessionID; id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("session_id is required; call set_context or session_create first")
}
