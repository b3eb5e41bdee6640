package scenario

import (
	"fmt"
	"strings"

	"github.com/louisbranch/spar/internal/spar/scene"
)

// sceneFromArgs applies a scene{} table over base. A preset replaces the
// constraints and, unless environment is given, the environment.
func sceneFromArgs(base scene.Context, args map[string]any) (scene.Context, error) {
	sc := base
	if id := stringArg(args, "id"); id != "" {
		sc.SceneID = id
	}
	if value := stringArg(args, "phase"); value != "" {
		phase, err := scene.ParsePhase(value)
		if err != nil {
			return scene.Context{}, err
		}
		sc.Phase = phase
	}
	if value := stringArg(args, "party_band"); value != "" {
		band, err := scene.ParsePartyBand(value)
		if err != nil {
			return scene.Context{}, err
		}
		sc.PartyBand = band
	}
	if name := stringArg(args, "preset"); name != "" {
		preset, ok := scene.LookupPreset(name)
		if !ok {
			return scene.Context{}, fmt.Errorf("unknown preset %q", name)
		}
		sc.Constraints = preset.Constraints
		sc.Environment = []string{preset.Environment}
	}
	if env, ok := stringsArg(args, "environment"); ok {
		sc.Environment = env
	}
	if tone, ok := stringsArg(args, "tone"); ok {
		sc.Tone = tone
	}
	if spotlight, ok := stringsArg(args, "spotlight"); ok {
		sc.Spotlight = spotlight
	}
	if v, ok := floatArg(args, "confinement"); ok {
		sc.Constraints.Confinement = v
	}
	if v, ok := floatArg(args, "connectivity"); ok {
		sc.Constraints.Connectivity = v
	}
	if v, ok := floatArg(args, "visibility"); ok {
		sc.Constraints.Visibility = v
	}
	sc.Constraints = sc.Constraints.Clamped()
	return sc, sc.Validate()
}

// selectionFromArgs builds a selection from a selection{} table.
func selectionFromArgs(args map[string]any) (scene.Selection, error) {
	mode, err := scene.ParseRarityMode(stringArg(args, "rarity"))
	if err != nil {
		return scene.Selection{}, err
	}
	sel := scene.Selection{RarityMode: mode}
	sel.EnabledPacks, _ = stringsArg(args, "packs")
	sel.IncludeTags, _ = stringsArg(args, "include_tags")
	sel.ExcludeTags, _ = stringsArg(args, "exclude_tags")
	sel.FactionsPresent, _ = stringsArg(args, "factions")
	return sel, nil
}

func stringArg(args map[string]any, key string) string {
	value, _ := args[key].(string)
	return strings.TrimSpace(value)
}

func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case int:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// stringsArg accepts a single string or a list of strings.
func stringsArg(args map[string]any, key string) ([]string, bool) {
	switch v := args[key].(type) {
	case string:
		return []string{v}, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}
