// Package engine assembles complications: it filters content for a scene,
// samples a severity, caps it, picks an entry and derives the state change.
package engine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/cutoff"
	"github.com/louisbranch/spar/internal/spar/narrative"
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/selection"
	"github.com/louisbranch/spar/internal/spar/severity"
	"github.com/louisbranch/spar/internal/spar/state"
)

// Input is everything one generation call reads. None of it is mutated.
type Input struct {
	Scene     scene.Context
	State     state.State
	Selection scene.Selection
	Entries   []content.Entry
	Profile   Profile
	// ForceEventID narrows the pool to one id before filtering.
	ForceEventID string
	// Locale selects the overlay language; empty means the base locale.
	Locale string
	// Tuning overrides the severity curve; nil uses the default.
	Tuning *severity.Tuning
}

// Generate produces one event.
//
// # Determinism
//
// Given the same input and an RNG with the same seed and position,
// Generate returns the same event and appends the same trace records. The
// draws happen in a fixed order: severity, entry pick, then effect
// dimensions.
//
// # Trace
//
// Event.RNGTrace is the RNG's full trace at return. Callers generating
// several events on one RNG reset the trace between calls.
func Generate(in Input, rng *random.TraceRNG) (Event, error) {
	if rng == nil {
		return Event{}, apperrors.New(apperrors.CodeInvalidRandomInput, "random source is required")
	}
	sc := in.Scene
	sc.Constraints = sc.Constraints.Clamped()
	if err := sc.Validate(); err != nil {
		return Event{}, apperrors.Wrap(apperrors.CodeInvalidScene, "invalid scene", err)
	}
	if err := in.Selection.Validate(); err != nil {
		return Event{}, apperrors.Wrap(apperrors.CodeInvalidSelection, "invalid selection", err)
	}
	profile := in.Profile.withDefaults()
	tuning := severity.DefaultTuning()
	if in.Tuning != nil {
		tuning = *in.Tuning
	}
	mode := in.Selection.Mode()

	entries := in.Entries
	if in.ForceEventID != "" {
		entries = forced(entries, in.ForceEventID)
		if len(entries) == 0 {
			return Event{}, apperrors.WithMetadata(apperrors.CodeUnknownEventID, "event id not found", map[string]string{
				"event_id": in.ForceEventID,
			})
		}
	}

	params := content.FilterParams{
		Environment:  sc.Environment,
		Phase:        sc.Phase,
		IncludeTags:  in.Selection.IncludeTags,
		ExcludeTags:  in.Selection.ExcludeTags,
		RecentIDs:    content.CooldownExclusions(entries, in.State.RecentEventIDs),
		TagCooldowns: in.State.TagCooldowns,
	}
	candidates := content.Filter(entries, params)
	if len(candidates) == 0 {
		return Event{}, exhausted(len(entries), sc, in.Selection, in.State, params.RecentIDs)
	}

	alpha := tuning.Alpha(mode, sc.Constraints)
	sampled, err := severity.SampleSeverity(rng, alpha, severity.Min, severity.Max)
	if err != nil {
		return Event{}, fmt.Errorf("sample severity: %w", err)
	}
	limit := tuning.Cap(sc.Band(), sc.Phase, sc.Constraints, in.State, mode)
	result := cutoff.Apply(sampled, limit, sc.Phase)

	entry, err := selection.Select(rng, candidates, result.Final, in.State.RecentEventIDs, profile.SelectionLabel)
	if err != nil {
		return Event{}, err
	}
	effects, err := rollEffects(rng, entry.EffectTemplate)
	if err != nil {
		return Event{}, fmt.Errorf("roll effects for %s: %w", entry.ID, err)
	}

	fiction := entry.Fiction
	if result.Applied {
		fiction = narrative.NewNarrator(in.Locale).Overlay(entry.Fiction, result.Resolution, profile.Generator)
	}

	return Event{
		EventID:          entry.ID,
		Title:            entry.Title,
		Tags:             append([]string{}, entry.Tags...),
		Severity:         result.Final,
		Cap:              limit,
		CutoffApplied:    result.Applied,
		CutoffResolution: result.Resolution,
		OriginalSeverity: result.Original,
		EffectVector:     effects,
		Fiction:          fiction,
		StateDelta:       profile.delta(entry, result.Final, sc.Phase),
		Followups:        narrative.Followups(result.Resolution, result.Applied, profile.Generator),
		RNGTrace:         rng.Trace(),
		GeneratorType:    profile.Generator,
		Pack:             entry.Pack,
		AdapterHints:     entry.AdapterHints,
	}, nil
}

func forced(entries []content.Entry, id string) []content.Entry {
	var out []content.Entry
	for _, e := range entries {
		if e.ID == id {
			out = append(out, e)
		}
	}
	return out
}

func exhausted(total int, sc scene.Context, sel scene.Selection, s state.State, recentExcluded []string) error {
	var cooldowns []string
	for tag, turns := range s.TagCooldowns {
		if turns > 0 {
			cooldowns = append(cooldowns, tag+"="+strconv.Itoa(turns))
		}
	}
	sort.Strings(cooldowns)
	return apperrors.WithMetadata(apperrors.CodeContentExhausted, "no content matches the scene and selection", map[string]string{
		"candidates":      strconv.Itoa(total),
		"phase":           string(sc.Phase),
		"environment":     strings.Join(sc.Environment, ","),
		"include_tags":    strings.Join(sel.IncludeTags, ","),
		"exclude_tags":    strings.Join(sel.ExcludeTags, ","),
		"tag_cooldowns":   strings.Join(cooldowns, ","),
		"recent_excluded": strings.Join(recentExcluded, ","),
	})
}
