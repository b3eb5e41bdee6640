package content

import (
	"slices"

	"github.com/louisbranch/spar/internal/spar/scene"
)

// FilterParams narrows a candidate pool.
type FilterParams struct {
	Environment  []string
	Phase        scene.Phase
	IncludeTags  []string
	ExcludeTags  []string
	RecentIDs    []string
	TagCooldowns map[string]int
}

// Filter returns the entries eligible under params, in input order.
//
// Checks run in this order: recency exclusion, excluded tags, included
// tags (empty means no restriction), allowed phases, allowed environments,
// then any tag with a positive cooldown.
func Filter(entries []Entry, params FilterParams) []Entry {
	recent := toSet(params.RecentIDs)
	exclude := toSet(params.ExcludeTags)
	include := toSet(params.IncludeTags)
	env := toSet(params.Environment)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if recent[e.ID] {
			continue
		}
		if len(exclude) > 0 && intersects(exclude, e.Tags) {
			continue
		}
		if len(include) > 0 && !intersects(include, e.Tags) {
			continue
		}
		if len(e.AllowedPhases) > 0 && !slices.Contains(e.AllowedPhases, params.Phase) {
			continue
		}
		if len(e.AllowedEnvironments) > 0 && !intersects(env, e.AllowedEnvironments) {
			continue
		}
		if onCooldown(e, params.TagCooldowns) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// CooldownExclusions returns the ids in recent that are still inside their
// own event cooldown: an id at recency index i is excluded while
// i < CooldownEvent. Ids without a matching entry are ignored.
func CooldownExclusions(entries []Entry, recent []string) []string {
	cooldowns := make(map[string]int, len(entries))
	for _, e := range entries {
		cooldowns[e.ID] = max(cooldowns[e.ID], e.CooldownEvent)
	}
	var out []string
	for i, id := range recent {
		if i < cooldowns[id] {
			out = append(out, id)
		}
	}
	return out
}

func onCooldown(e Entry, cooldowns map[string]int) bool {
	for _, tag := range e.Tags {
		if cooldowns[tag] > 0 {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func intersects(set map[string]bool, values []string) bool {
	for _, v := range values {
		if set[v] {
			return true
		}
	}
	return false
}
