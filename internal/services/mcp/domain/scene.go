package domain

import (
	"fmt"
	"strings"

	"github.com/louisbranch/spar/internal/spar/scene"
)

// SceneInput describes a scene for MCP tools. A preset fills environment
// and constraints; explicit values override it.
type SceneInput struct {
	SceneID      string   `json:"scene_id,omitempty" jsonschema:"scene identifier"`
	Phase        string   `json:"scene_phase,omitempty" jsonschema:"approach, engage or aftermath (default engage)"`
	Preset       string   `json:"preset,omitempty" jsonschema:"morphology preset: confined, populated, open or derelict"`
	Environment  []string `json:"environment,omitempty" jsonschema:"environment tags"`
	Tone         []string `json:"tone,omitempty" jsonschema:"tone tags"`
	Spotlight    []string `json:"spotlight,omitempty" jsonschema:"spotlighted characters"`
	PartyBand    string   `json:"party_band,omitempty" jsonschema:"party strength: low, mid or high (default mid)"`
	Confinement  *float64 `json:"confinement,omitempty" jsonschema:"0..1, how enclosed the space is"`
	Connectivity *float64 `json:"connectivity,omitempty" jsonschema:"0..1, how many routes lead in and out"`
	Visibility   *float64 `json:"visibility,omitempty" jsonschema:"0..1, how exposed the party is"`
}

// Context resolves the input into a validated scene context.
func (in SceneInput) Context() (scene.Context, error) {
	phase := scene.PhaseEngage
	if strings.TrimSpace(in.Phase) != "" {
		parsed, err := scene.ParsePhase(in.Phase)
		if err != nil {
			return scene.Context{}, err
		}
		phase = parsed
	}
	band := scene.PartyMid
	if strings.TrimSpace(in.PartyBand) != "" {
		parsed, err := scene.ParsePartyBand(in.PartyBand)
		if err != nil {
			return scene.Context{}, err
		}
		band = parsed
	}

	constraints := scene.DefaultConstraints
	environment := in.Environment
	if strings.TrimSpace(in.Preset) != "" {
		preset, ok := scene.LookupPreset(in.Preset)
		if !ok {
			return scene.Context{}, fmt.Errorf("unknown preset %q", in.Preset)
		}
		constraints = preset.Constraints
		if len(environment) == 0 {
			environment = []string{preset.Environment}
		}
	}
	if in.Confinement != nil {
		constraints.Confinement = *in.Confinement
	}
	if in.Connectivity != nil {
		constraints.Connectivity = *in.Connectivity
	}
	if in.Visibility != nil {
		constraints.Visibility = *in.Visibility
	}

	sc := scene.Context{
		SceneID:     strings.TrimSpace(in.SceneID),
		Phase:       phase,
		Environment: environment,
		Tone:        in.Tone,
		Constraints: constraints.Clamped(),
		PartyBand:   band,
		Spotlight:   in.Spotlight,
	}
	if sc.SceneID == "" {
		sc.SceneID = "mcp"
	}
	return sc, sc.Validate()
}
