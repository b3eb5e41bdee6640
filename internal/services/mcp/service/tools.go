package service

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spar/internal/services/mcp/domain"
	"github.com/louisbranch/spar/internal/services/session/api/grpc/sessions"
	"github.com/louisbranch/spar/internal/spar/content"
)

type mcpRegistrationTarget interface {
	AddTool(*mcp.Tool, any) error
	AddResource(*mcp.Resource, mcp.ResourceHandler)
}

type mcpRegistrationModule struct {
	name     string
	register func(mcpRegistrationTarget) error
}

type mcpServerRegistrationAdapter struct {
	server *mcp.Server
}

func (r mcpServerRegistrationAdapter) AddTool(tool *mcp.Tool, handler any) error {
	return addMCPTool(r.server, tool, handler)
}

func (r mcpServerRegistrationAdapter) AddResource(resource *mcp.Resource, handler mcp.ResourceHandler) {
	r.server.AddResource(resource, handler)
}

// mcpToolRegistrar binds one handler type to the generic mcp.AddTool.
type mcpToolRegistrar struct {
	matches func(any) bool
	add     func(*mcp.Server, *mcp.Tool, any)
}

func newMCPToolRegistrar[I any, O any]() mcpToolRegistrar {
	return mcpToolRegistrar{
		matches: func(handler any) bool {
			_, ok := handler.(mcp.ToolHandlerFor[I, O])
			return ok
		},
		add: func(server *mcp.Server, tool *mcp.Tool, handler any) {
			mcp.AddTool(server, tool, handler.(mcp.ToolHandlerFor[I, O]))
		},
	}
}

var mcpToolRegistrars = []mcpToolRegistrar{
	newMCPToolRegistrar[domain.GenerateComplicationInput, domain.GenerateComplicationResult](),
	newMCPToolRegistrar[domain.ApplyDeltaInput, domain.StateResult](),
	newMCPToolRegistrar[domain.TickStateInput, domain.StateResult](),
	newMCPToolRegistrar[domain.ListContentInput, domain.ListContentResult](),
	newMCPToolRegistrar[domain.SessionCreateInput, domain.SessionResult](),
	newMCPToolRegistrar[domain.SessionGenerateInput, sessions.GenerateResponse](),
	newMCPToolRegistrar[domain.SessionEventsInput, sessions.ListEventsResponse](),
	newMCPToolRegistrar[domain.SetContextInput, domain.SetContextResult](),
}

func addMCPTool(server *mcp.Server, tool *mcp.Tool, handler any) error {
	for _, registrar := range mcpToolRegistrars {
		if registrar.matches(handler) {
			registrar.add(server, tool, handler)
			return nil
		}
	}
	toolName := "<nil>"
	if tool != nil {
		toolName = tool.Name
	}
	return fmt.Errorf("mcp registration adapter does not support handler type %T for tool %q", handler, toolName)
}

func registerContentTools(registrar mcpRegistrationTarget, catalog *content.Store) error {
	if err := registrar.AddTool(domain.GenerateComplicationTool(), domain.GenerateComplicationHandler(catalog)); err != nil {
		return err
	}
	return registrar.AddTool(domain.ListContentTool(), domain.ListContentHandler(catalog))
}

func registerStateTools(registrar mcpRegistrationTarget) error {
	if err := registrar.AddTool(domain.ApplyDeltaTool(), domain.ApplyDeltaHandler()); err != nil {
		return err
	}
	return registrar.AddTool(domain.TickStateTool(), domain.TickStateHandler())
}

func registerSessionTools(registrar mcpRegistrationTarget, client domain.SessionClient, setContext func(domain.Context), getContext func() domain.Context) error {
	registrations := []struct {
		tool    *mcp.Tool
		handler any
	}{
		{tool: domain.SessionCreateTool(), handler: domain.SessionCreateHandler(client, setContext)},
		{tool: domain.SessionGenerateTool(), handler: domain.SessionGenerateHandler(client, getContext)},
		{tool: domain.SessionEventsTool(), handler: domain.SessionEventsHandler(client, getContext)},
		{tool: domain.SetContextTool(), handler: domain.SetContextHandler(client, setContext)},
	}
	for _, registration := range registrations {
		if err := registrar.AddTool(registration.tool, registration.handler); err != nil {
			return err
		}
	}
	return nil
}
