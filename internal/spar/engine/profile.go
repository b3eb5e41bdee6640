package engine

import (
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

// Profile holds what differs between generator types: the trace label of
// the entry pick and the clock pressure an outcome adds.
type Profile struct {
	Generator      content.GeneratorType
	SelectionLabel string
	Clocks         func(e content.Entry, severity int, phase scene.Phase) map[string]int
}

// EventProfile generates complications.
var EventProfile = Profile{
	Generator:      content.GeneratorEvent,
	SelectionLabel: "content_entry",
	Clocks:         eventClocks,
}

// LootProfile generates loot and windfalls.
var LootProfile = Profile{
	Generator:      content.GeneratorLoot,
	SelectionLabel: "loot_entry",
	Clocks:         lootClocks,
}

// ProfileFor returns the profile for a generator type; unknown types use
// the event profile.
func ProfileFor(generator content.GeneratorType) Profile {
	if generator == content.GeneratorLoot {
		return LootProfile
	}
	return EventProfile
}

// eventClocks always reports tension; heat only when the entry draws
// attention.
func eventClocks(e content.Entry, severity int, phase scene.Phase) map[string]int {
	clocks := map[string]int{}
	switch phase {
	case scene.PhaseEngage:
		clocks[state.ClockTension] = boolInt(severity >= 3)
	case scene.PhaseApproach:
		clocks[state.ClockTension] = boolInt(severity >= 5)
	default:
		clocks[state.ClockTension] = 0
	}
	if e.HasAnyTag("reinforcements", "visibility") {
		clocks[state.ClockHeat] = boolInt(severity >= 4)
	}
	return clocks
}

func lootClocks(e content.Entry, severity int, _ scene.Phase) map[string]int {
	clocks := map[string]int{}
	if e.HasAnyTag("visibility", "obligation") {
		clocks[state.ClockHeat] = boolInt(severity >= 5)
	}
	return clocks
}

func (p Profile) delta(e content.Entry, severity int, phase scene.Phase) state.Delta {
	cooldowns := make(map[string]int, len(e.CooldownTags))
	for tag, turns := range e.CooldownTags {
		cooldowns[tag] = turns
	}
	return state.Delta{
		Clocks:            p.Clocks(e, severity, phase),
		RecentEventIDsAdd: []string{e.ID},
		TagCooldownsSet:   cooldowns,
		FlagsSet:          map[string]bool{},
	}
}

func (p Profile) withDefaults() Profile {
	if p.Generator == "" {
		return EventProfile
	}
	base := ProfileFor(p.Generator)
	if p.SelectionLabel == "" {
		p.SelectionLabel = base.SelectionLabel
	}
	if p.Clocks == nil {
		p.Clocks = base.Clocks
	}
	return p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
