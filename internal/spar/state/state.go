// Package state tracks the persistent pressure of a session: clocks,
// recently seen events, tag cooldowns and flags.
//
// Every operation here is pure. ApplyDelta and Tick return new values and
// never mutate their inputs.
package state

import (
	"maps"
	"slices"
)

// Well-known clocks.
const (
	ClockTension    = "tension"
	ClockHeat       = "heat"
	ClockAttrition  = "attrition"
	ClockMysticFlux = "mystic_flux"
)

// Well-known flags.
const (
	FlagAlarmRaised            = "alarm_raised"
	FlagReinforcementsPossible = "reinforcements_possible"
	FlagExitAvailable          = "exit_available"
)

// State is the session state carried between generation calls.
// RecentEventIDs is ordered newest first.
type State struct {
	Clocks         map[string]int  `json:"clocks"`
	RecentEventIDs []string        `json:"recent_event_ids"`
	TagCooldowns   map[string]int  `json:"tag_cooldowns"`
	Flags          map[string]bool `json:"flags"`
}

// Default returns a fresh session state.
func Default() State {
	return State{
		Clocks: map[string]int{
			ClockTension:    0,
			ClockHeat:       0,
			ClockAttrition:  0,
			ClockMysticFlux: 0,
		},
		RecentEventIDs: []string{},
		TagCooldowns:   map[string]int{},
		Flags: map[string]bool{
			FlagAlarmRaised:            false,
			FlagReinforcementsPossible: true,
			FlagExitAvailable:          true,
		},
	}
}

// Clone returns a deep copy with non-nil collections.
func (s State) Clone() State {
	return State{
		Clocks:         cloneMap(s.Clocks),
		RecentEventIDs: cloneSlice(s.RecentEventIDs),
		TagCooldowns:   cloneMap(s.TagCooldowns),
		Flags:          cloneMap(s.Flags),
	}
}

// RecencyIndex returns the position of id in RecentEventIDs, or -1.
func (s State) RecencyIndex(id string) int {
	return slices.Index(s.RecentEventIDs, id)
}

// Delta is the change one event applies to the state.
type Delta struct {
	Clocks            map[string]int  `json:"clocks,omitempty"`
	RecentEventIDsAdd []string        `json:"recent_event_ids_add,omitempty"`
	TagCooldownsSet   map[string]int  `json:"tag_cooldowns_set,omitempty"`
	FlagsSet          map[string]bool `json:"flags_set,omitempty"`
}

// Limits bound the state.
type Limits struct {
	RecentMaxLen int
	ClockMin     int
	ClockMax     int
}

// DefaultLimits returns the standard bounds.
func DefaultLimits() Limits {
	return Limits{RecentMaxLen: 12, ClockMin: 0, ClockMax: 12}
}

// ApplyDelta returns s with d applied:
//
//   - clocks add the delta (missing clocks start at zero) then clamp to
//     [ClockMin, ClockMax];
//   - recent ids become the delta ids followed by the existing ones,
//     de-duplicated keeping the first occurrence and truncated;
//   - tag cooldowns take the larger of the existing and delta values;
//   - flags in the delta overwrite.
func ApplyDelta(s State, d Delta, limits Limits) State {
	out := s.Clone()

	for name, inc := range d.Clocks {
		out.Clocks[name] = min(limits.ClockMax, max(limits.ClockMin, out.Clocks[name]+inc))
	}

	combined := make([]string, 0, len(d.RecentEventIDsAdd)+len(s.RecentEventIDs))
	combined = append(combined, d.RecentEventIDsAdd...)
	combined = append(combined, s.RecentEventIDs...)
	seen := make(map[string]bool, len(combined))
	recent := make([]string, 0, min(len(combined), max(0, limits.RecentMaxLen)))
	for _, id := range combined {
		if len(recent) >= limits.RecentMaxLen {
			break
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		recent = append(recent, id)
	}
	out.RecentEventIDs = recent

	for tag, turns := range d.TagCooldownsSet {
		out.TagCooldowns[tag] = max(out.TagCooldowns[tag], turns)
	}

	maps.Copy(out.Flags, d.FlagsSet)
	return out
}

// Tick advances time by n turns. Tag cooldowns drop by n and are removed
// once they reach zero, and the n oldest recent ids are forgotten. Clocks
// and flags are untouched. n <= 0 returns an unchanged copy.
func Tick(s State, n int) State {
	out := s.Clone()
	if n <= 0 {
		return out
	}

	cooldowns := make(map[string]int, len(out.TagCooldowns))
	for tag, turns := range out.TagCooldowns {
		if left := turns - n; left > 0 {
			cooldowns[tag] = left
		}
	}
	out.TagCooldowns = cooldowns

	drop := min(n, len(out.RecentEventIDs))
	out.RecentEventIDs = out.RecentEventIDs[:len(out.RecentEventIDs)-drop]
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return make(map[K]V)
	}
	return maps.Clone(m)
}

func cloneSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}
