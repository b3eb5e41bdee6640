// Package scene defines the caller-supplied context for one generation call:
// where the party is, how tight the space is, and which content is allowed.
package scene

import (
	"fmt"
	"strings"
)

// Phase is the beat of the scene a complication lands in.
type Phase string

const (
	PhaseApproach  Phase = "approach"
	PhaseEngage    Phase = "engage"
	PhaseAftermath Phase = "aftermath"
)

// Phases lists every phase in scene order.
var Phases = []Phase{PhaseApproach, PhaseEngage, PhaseAftermath}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseApproach, PhaseEngage, PhaseAftermath:
		return true
	default:
		return false
	}
}

// ParsePhase parses a phase label, case-insensitively.
func ParsePhase(value string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(value)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown scene phase %q", value)
	}
	return p, nil
}

// RarityMode controls how heavy the severity tail is.
type RarityMode string

const (
	RarityCalm   RarityMode = "calm"
	RarityNormal RarityMode = "normal"
	RaritySpiky  RarityMode = "spiky"
)

// Valid reports whether m is a known rarity mode.
func (m RarityMode) Valid() bool {
	switch m {
	case RarityCalm, RarityNormal, RaritySpiky:
		return true
	default:
		return false
	}
}

// ParseRarityMode parses a rarity label. Empty means normal.
func ParseRarityMode(value string) (RarityMode, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return RarityNormal, nil
	}
	m := RarityMode(v)
	if !m.Valid() {
		return "", fmt.Errorf("unknown rarity mode %q", value)
	}
	return m, nil
}

// PartyBand is the coarse strength of the party.
type PartyBand string

const (
	PartyLow     PartyBand = "low"
	PartyMid     PartyBand = "mid"
	PartyHigh    PartyBand = "high"
	PartyUnknown PartyBand = "unknown"
)

// ParsePartyBand parses a party band label. Empty means unknown.
func ParsePartyBand(value string) (PartyBand, error) {
	v := PartyBand(strings.ToLower(strings.TrimSpace(value)))
	switch v {
	case "":
		return PartyUnknown, nil
	case PartyLow, PartyMid, PartyHigh, PartyUnknown:
		return v, nil
	default:
		return "", fmt.Errorf("unknown party band %q", value)
	}
}

// Constraints describes the shape of the space, each axis in [0,1].
type Constraints struct {
	Confinement  float64 `json:"confinement"`
	Connectivity float64 `json:"connectivity"`
	Visibility   float64 `json:"visibility"`
}

// Clamped returns a copy with every axis clamped to [0,1].
func (c Constraints) Clamped() Constraints {
	return Constraints{
		Confinement:  clamp01(c.Confinement),
		Connectivity: clamp01(c.Connectivity),
		Visibility:   clamp01(c.Visibility),
	}
}

func clamp01(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	return min(1, max(0, v))
}

// Context is the immutable scene input to a generation call.
type Context struct {
	SceneID     string      `json:"scene_id"`
	Phase       Phase       `json:"scene_phase"`
	Environment []string    `json:"environment"`
	Tone        []string    `json:"tone,omitempty"`
	Constraints Constraints `json:"constraints"`
	PartyBand   PartyBand   `json:"party_band,omitempty"`
	Spotlight   []string    `json:"spotlight,omitempty"`
}

// Validate checks the fields generation depends on.
func (c Context) Validate() error {
	if !c.Phase.Valid() {
		return fmt.Errorf("unknown scene phase %q", c.Phase)
	}
	if c.PartyBand != "" {
		if _, err := ParsePartyBand(string(c.PartyBand)); err != nil {
			return err
		}
	}
	return nil
}

// Band returns the party band, defaulting to unknown.
func (c Context) Band() PartyBand {
	if c.PartyBand == "" {
		return PartyUnknown
	}
	return c.PartyBand
}

// Selection is the caller's filtering policy for one generation call.
type Selection struct {
	EnabledPacks    []string   `json:"enabled_packs,omitempty"`
	IncludeTags     []string   `json:"include_tags,omitempty"`
	ExcludeTags     []string   `json:"exclude_tags,omitempty"`
	FactionsPresent []string   `json:"factions_present,omitempty"`
	RarityMode      RarityMode `json:"rarity_mode,omitempty"`
}

// Mode returns the rarity mode, defaulting to normal.
func (s Selection) Mode() RarityMode {
	if s.RarityMode == "" {
		return RarityNormal
	}
	return s.RarityMode
}

// Validate checks the rarity mode.
func (s Selection) Validate() error {
	if !s.Mode().Valid() {
		return fmt.Errorf("unknown rarity mode %q", s.RarityMode)
	}
	return nil
}

// Preset is a named scene morphology with a default environment tag.
type Preset struct {
	Name        string
	Environment string
	Constraints Constraints
}

var presets = map[string]Preset{
	"confined":  {Name: "confined", Environment: "confined", Constraints: Constraints{Confinement: 0.8, Connectivity: 0.3, Visibility: 0.6}},
	"populated": {Name: "populated", Environment: "populated", Constraints: Constraints{Confinement: 0.4, Connectivity: 0.8, Visibility: 0.7}},
	"open":      {Name: "open", Environment: "open", Constraints: Constraints{Confinement: 0.3, Connectivity: 0.5, Visibility: 0.4}},
	"derelict":  {Name: "derelict", Environment: "derelict", Constraints: Constraints{Confinement: 0.6, Connectivity: 0.4, Visibility: 0.5}},
}

// DefaultConstraints is used when neither a preset nor explicit values are given.
var DefaultConstraints = Constraints{Confinement: 0.5, Connectivity: 0.5, Visibility: 0.5}

// LookupPreset returns the named preset.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}
