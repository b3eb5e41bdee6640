package domain

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spar/internal/spar/state"
)

// ApplyDeltaInput represents the MCP tool input for applying a state delta.
type ApplyDeltaInput struct {
	State    *state.State `json:"state,omitempty" jsonschema:"state to update; omitted means a fresh state"`
	Delta    state.Delta  `json:"delta" jsonschema:"delta from a generated event"`
	ClockMax int          `json:"clock_max,omitempty" jsonschema:"upper clamp for clocks (default 12)"`
}

// StateResult represents an MCP tool output carrying a state.
type StateResult struct {
	State state.State `json:"state" jsonschema:"resulting state"`
}

// TickStateInput represents the MCP tool input for advancing a state.
type TickStateInput struct {
	State *state.State `json:"state,omitempty" jsonschema:"state to advance; omitted means a fresh state"`
	Ticks int          `json:"ticks" jsonschema:"turns to advance"`
}

// ApplyDeltaTool defines the MCP tool schema for applying a delta.
func ApplyDeltaTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "apply_delta",
		Description: "Applies an event's state delta: clocks, recent events, tag cooldowns and flags",
	}
}

// TickStateTool defines the MCP tool schema for advancing a state.
func TickStateTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "tick_state",
		Description: "Advances a state by a number of turns, expiring cooldowns and recent events",
	}
}

// ApplyDeltaHandler applies a delta to the supplied state.
func ApplyDeltaHandler() mcp.ToolHandlerFor[ApplyDeltaInput, StateResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ApplyDeltaInput) (*mcp.CallToolResult, StateResult, error) {
		limits := state.DefaultLimits()
		if input.ClockMax < 0 {
			return nil, StateResult{}, fmt.Errorf("clock_max must not be negative")
		}
		if input.ClockMax > 0 {
			limits.ClockMax = input.ClockMax
		}
		return nil, StateResult{State: state.ApplyDelta(stateOrDefault(input.State), input.Delta, limits)}, nil
	}
}

// TickStateHandler advances the supplied state.
func TickStateHandler() mcp.ToolHandlerFor[TickStateInput, StateResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input TickStateInput) (*mcp.CallToolResult, StateResult, error) {
		if input.Ticks < 0 {
			return nil, StateResult{}, fmt.Errorf("ticks must not be negative")
		}
		return nil, StateResult{State: state.Tick(stateOrDefault(input.State), input.Ticks)}, nil
	}
}

func stateOrDefault(s *state.State) state.State {
	if s == nil {
		return state.Default()
	}
	return s.Clone()
}
