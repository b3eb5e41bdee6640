// Package content loads authored complication packs and narrows them to the
// entries eligible for a scene.
package content

import (
	"slices"
	"strings"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/scene"
)

// GeneratorType names the generator profile a pack feeds.
type GeneratorType string

const (
	GeneratorEvent GeneratorType = "event"
	GeneratorLoot  GeneratorType = "loot"
)

// ParseGeneratorType parses a generator label, case-insensitively. Empty
// means event.
func ParseGeneratorType(value string) (GeneratorType, error) {
	switch g := GeneratorType(strings.ToLower(strings.TrimSpace(value))); g {
	case "":
		return GeneratorEvent, nil
	case GeneratorEvent, GeneratorLoot:
		return g, nil
	default:
		return "", apperrors.WithMetadata(apperrors.CodeInvalidSelection, "unknown generator type", map[string]string{
			"generator_type": value,
		})
	}
}

// Severity bounds for authored content.
const (
	SeverityMin = 1
	SeverityMax = 10
)

// SeverityBand is an inclusive severity range.
type SeverityBand struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Contains reports whether severity falls inside the band.
func (b SeverityBand) Contains(severity int) bool {
	return severity >= b.Lo && severity <= b.Hi
}

// Range is an inclusive integer range for one effect dimension.
type Range struct {
	Lo int `json:"lo"`
	Hi int `json:"hi"`
}

// Fiction is the authored narrative payload of an entry.
type Fiction struct {
	Prompt          string   `json:"prompt"`
	Sensory         []string `json:"sensory,omitempty"`
	ImmediateChoice []string `json:"immediate_choice,omitempty"`
}

// AdapterHints are optional hints for system adapters.
type AdapterHints struct {
	DifficultyHint string `json:"difficulty_hint,omitempty"`
	ScaleHint      string `json:"scale_hint,omitempty"`
	DurationHint   string `json:"duration_hint,omitempty"`
}

// Entry is one authored complication. Entries are immutable once loaded.
type Entry struct {
	ID                  string           `json:"event_id"`
	Title               string           `json:"title"`
	Tags                []string         `json:"tags,omitempty"`
	AllowedEnvironments []string         `json:"allowed_environments,omitempty"`
	AllowedPhases       []scene.Phase    `json:"allowed_scene_phases,omitempty"`
	SeverityBand        SeverityBand     `json:"severity_band"`
	Weight              float64          `json:"weight"`
	CooldownEvent       int              `json:"cooldown_event,omitempty"`
	CooldownTags        map[string]int   `json:"cooldown_tags,omitempty"`
	EffectTemplate      map[string]Range `json:"effect_vector_template,omitempty"`
	Fiction             Fiction          `json:"fiction"`
	AdapterHints        *AdapterHints    `json:"adapter_hints,omitempty"`
	Pack                string           `json:"pack,omitempty"`
	GeneratorType       GeneratorType    `json:"generator_type,omitempty"`
}

// HasTag reports whether the entry carries tag.
func (e Entry) HasTag(tag string) bool {
	return slices.Contains(e.Tags, tag)
}

// HasAnyTag reports whether the entry carries any of tags.
func (e Entry) HasAnyTag(tags ...string) bool {
	for _, tag := range tags {
		if e.HasTag(tag) {
			return true
		}
	}
	return false
}

// Metadata describes a pack without its entries.
type Metadata struct {
	Name          string        `json:"name"`
	GeneratorType GeneratorType `json:"generator_type"`
	Description   string        `json:"description,omitempty"`
}

// Pack is a named, loaded set of entries.
type Pack struct {
	Metadata
	Extra   map[string]any `json:"metadata,omitempty"`
	Entries []Entry        `json:"entries"`
}
