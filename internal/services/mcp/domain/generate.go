package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

// maxGenerateCount bounds one generate_complication call.
const maxGenerateCount = 50

// GenerateComplicationInput represents the MCP tool input for stateless
// generation.
type GenerateComplicationInput struct {
	Scene         SceneInput      `json:"scene" jsonschema:"scene the complications land in"`
	Selection     scene.Selection `json:"selection,omitempty" jsonschema:"pack, tag and rarity filters"`
	State         *state.State    `json:"state,omitempty" jsonschema:"state from a previous call; omitted means a fresh state"`
	GeneratorType string          `json:"generator_type,omitempty" jsonschema:"event or loot (default event)"`
	Seed          *int64          `json:"seed,omitempty" jsonschema:"seed for a reproducible run; omitted means random"`
	Count         int             `json:"count,omitempty" jsonschema:"events to generate, 1..50 (default 1)"`
	TicksBetween  int             `json:"ticks_between,omitempty" jsonschema:"turns to advance between events (minimum 1)"`
	ForceEventID  string          `json:"force_event_id,omitempty" jsonschema:"generate this entry instead of sampling one"`
	Locale        string          `json:"locale,omitempty" jsonschema:"locale for cutoff framing, e.g. en-US or pt-BR"`
}

// GenerateComplicationResult represents the MCP tool output for stateless
// generation.
type GenerateComplicationResult struct {
	Seed   int64          `json:"seed" jsonschema:"seed used; pass it back to replay"`
	Events []engine.Event `json:"events" jsonschema:"generated events in order"`
	State  state.State    `json:"state" jsonschema:"state after the last event"`
}

// GenerateComplicationTool defines the MCP tool schema for stateless generation.
func GenerateComplicationTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "generate_complication",
		Description: "Generates one or more complications for a scene. Pass the returned state back in to keep cooldowns and clocks between calls",
	}
}

// GenerateComplicationHandler runs the engine against catalog.
func GenerateComplicationHandler(catalog *content.Store) mcp.ToolHandlerFor[GenerateComplicationInput, GenerateComplicationResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input GenerateComplicationInput) (*mcp.CallToolResult, GenerateComplicationResult, error) {
		if catalog == nil {
			return nil, GenerateComplicationResult{}, fmt.Errorf("content store is not configured")
		}
		sc, err := input.Scene.Context()
		if err != nil {
			return nil, GenerateComplicationResult{}, apperrors.Wrap(apperrors.CodeInvalidScene, "invalid scene", err)
		}
		generator, err := parseGenerator(input.GeneratorType)
		if err != nil {
			return nil, GenerateComplicationResult{}, err
		}
		count := input.Count
		if count == 0 {
			count = 1
		}
		if count < 0 || count > maxGenerateCount {
			return nil, GenerateComplicationResult{}, fmt.Errorf("count must be between 1 and %d", maxGenerateCount)
		}

		var seed int64
		if input.Seed != nil {
			seed = *input.Seed
		} else if seed, err = random.NewSeed(); err != nil {
			return nil, GenerateComplicationResult{}, fmt.Errorf("generate seed: %w", err)
		}
		current := state.Default()
		if input.State != nil {
			current = input.State.Clone()
		}

		result, err := engine.Batch(engine.Input{
			Scene:        sc,
			State:        current,
			Selection:    input.Selection,
			Entries:      catalog.EntriesOfType(generator, input.Selection.EnabledPacks...),
			Profile:      engine.ProfileFor(generator),
			ForceEventID: strings.TrimSpace(input.ForceEventID),
			Locale:       input.Locale,
		}, random.New(seed), engine.BatchOptions{Count: count, TicksBetween: input.TicksBetween})
		if err != nil {
			return nil, GenerateComplicationResult{}, err
		}
		return nil, GenerateComplicationResult{Seed: seed, Events: result.Events, State: result.State}, nil
	}
}

func parseGenerator(value string) (content.GeneratorType, error) {
	return content.ParseGeneratorType(value)
}
