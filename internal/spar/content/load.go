package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/scene"
)

type rawPack struct {
	Name          string            `json:"name"`
	GeneratorType string            `json:"generator_type"`
	Description   string            `json:"description"`
	Metadata      map[string]any    `json:"metadata"`
	Entries       []json.RawMessage `json:"entries"`
}

type rawEntry struct {
	EventID             string           `json:"event_id"`
	Title               string           `json:"title"`
	Tags                []string         `json:"tags"`
	AllowedEnvironments []string         `json:"allowed_environments"`
	AllowedPhases       []string         `json:"allowed_scene_phases"`
	SeverityBand        []int            `json:"severity_band"`
	Weight              *float64         `json:"weight"`
	Cooldown            rawCooldown      `json:"cooldown"`
	EffectTemplate      map[string][]int `json:"effect_vector_template"`
	Fiction             Fiction          `json:"fiction"`
	AdapterHints        *AdapterHints    `json:"adapter_hints"`
}

type rawCooldown struct {
	Event int            `json:"event"`
	Tags  map[string]int `json:"tags"`
}

// LoadFile reads a pack from disk. The pack name defaults to the file stem.
func LoadFile(path string) (Pack, error) {
	f, err := os.Open(path)
	if err != nil {
		return Pack{}, fmt.Errorf("open pack %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, fileStem(path))
}

// Load parses a pack from r. The input is either a bare JSON array of
// entries or an object with pack metadata and an entries array. name is
// used when the pack does not name itself.
//
// Validation is eager: any malformed entry fails the whole pack with a
// MALFORMED_CONTENT error naming the pack, entry index and field.
func Load(r io.Reader, name string) (Pack, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Pack{}, fmt.Errorf("read pack %s: %w", name, err)
	}

	raw, err := decodePack(data, name)
	if err != nil {
		return Pack{}, err
	}

	pack := Pack{
		Metadata: Metadata{
			Name:          raw.Name,
			GeneratorType: GeneratorType(raw.GeneratorType),
			Description:   raw.Description,
		},
		Extra: raw.Metadata,
	}
	if pack.Name == "" {
		pack.Name = name
	}
	if pack.GeneratorType == "" {
		pack.GeneratorType = GeneratorEvent
	}

	seen := make(map[string]int, len(raw.Entries))
	pack.Entries = make([]Entry, 0, len(raw.Entries))
	for i, msg := range raw.Entries {
		entry, err := parseEntry(msg, pack.Name, i)
		if err != nil {
			return Pack{}, err
		}
		if first, ok := seen[entry.ID]; ok {
			return Pack{}, malformed(pack.Name, i, "event_id",
				fmt.Sprintf("duplicate event_id %q (first at entry %d)", entry.ID, first))
		}
		seen[entry.ID] = i
		entry.Pack = pack.Name
		entry.GeneratorType = pack.GeneratorType
		pack.Entries = append(pack.Entries, entry)
	}
	return pack, nil
}

// ReadMetadata returns pack metadata without validating entries.
func ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("read pack %s: %w", path, err)
	}
	raw, err := decodePack(data, fileStem(path))
	if err != nil {
		return Metadata{}, err
	}
	meta := Metadata{
		Name:          raw.Name,
		GeneratorType: GeneratorType(raw.GeneratorType),
		Description:   raw.Description,
	}
	if meta.Name == "" {
		meta.Name = fileStem(path)
	}
	if meta.GeneratorType == "" {
		meta.GeneratorType = GeneratorEvent
	}
	return meta, nil
}

// LoadMany loads every path in order and concatenates their entries.
// Entries sharing an id across packs are all kept; see Duplicates and
// DedupeLastWins.
func LoadMany(paths []string) ([]Entry, error) {
	packs, err := LoadPacks(paths)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, p := range packs {
		entries = append(entries, p.Entries...)
	}
	return entries, nil
}

// LoadPacks loads every path in order.
func LoadPacks(paths []string) ([]Pack, error) {
	packs := make([]Pack, 0, len(paths))
	for _, path := range paths {
		p, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		packs = append(packs, p)
	}
	return packs, nil
}

// LoadByGeneratorType loads only the packs whose metadata names
// generatorType. Packs whose metadata cannot be read are skipped and logged.
func LoadByGeneratorType(paths []string, generatorType GeneratorType) ([]Entry, error) {
	matching := make([]string, 0, len(paths))
	for _, path := range paths {
		meta, err := ReadMetadata(path)
		if err != nil {
			log.Printf("skip pack %s: %v", path, err)
			continue
		}
		if meta.GeneratorType == generatorType {
			matching = append(matching, path)
		}
	}
	return LoadMany(matching)
}

// Duplicates returns ids that occur more than once, mapped to the packs
// they came from in load order.
func Duplicates(entries []Entry) map[string][]string {
	packs := make(map[string][]string)
	for _, e := range entries {
		packs[e.ID] = append(packs[e.ID], e.Pack)
	}
	for id, p := range packs {
		if len(p) < 2 {
			delete(packs, id)
		}
	}
	return packs
}

// DedupeLastWins keeps the last entry for each id, at the position of its
// first occurrence.
func DedupeLastWins(entries []Entry) []Entry {
	last := make(map[string]Entry, len(entries))
	for _, e := range entries {
		last[e.ID] = e
	}
	out := make([]Entry, 0, len(last))
	emitted := make(map[string]bool, len(last))
	for _, e := range entries {
		if emitted[e.ID] {
			continue
		}
		emitted[e.ID] = true
		out = append(out, last[e.ID])
	}
	return out
}

func decodePack(data []byte, name string) (rawPack, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return rawPack{}, apperrors.WithMetadata(apperrors.CodeMalformedContent,
			fmt.Sprintf("pack %q: empty document", name), map[string]string{"pack": name})
	}

	var raw rawPack
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw.Entries); err != nil {
			return rawPack{}, decodeError(name, err)
		}
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return rawPack{}, decodeError(name, err)
		}
		if _, ok := probe["entries"]; !ok {
			return rawPack{}, apperrors.WithMetadata(apperrors.CodeMalformedContent,
				fmt.Sprintf("pack %q: object pack has no entries", name),
				map[string]string{"pack": name, "field": "entries"})
		}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return rawPack{}, decodeError(name, err)
		}
	default:
		return rawPack{}, apperrors.WithMetadata(apperrors.CodeMalformedContent,
			fmt.Sprintf("pack %q: expected array or object", name), map[string]string{"pack": name})
	}
	return raw, nil
}

func decodeError(name string, err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeMalformedContent,
		fmt.Sprintf("pack %q: invalid JSON", name), map[string]string{"pack": name}, err)
}

func parseEntry(msg json.RawMessage, pack string, index int) (Entry, error) {
	var raw rawEntry
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Entry{}, apperrors.WrapWithMetadata(apperrors.CodeMalformedContent,
			fmt.Sprintf("pack %q entry %d: invalid entry", pack, index),
			map[string]string{"pack": pack, "index": strconv.Itoa(index)}, err)
	}

	if strings.TrimSpace(raw.EventID) == "" {
		return Entry{}, malformed(pack, index, "event_id", "required")
	}
	if strings.TrimSpace(raw.Title) == "" {
		return Entry{}, malformed(pack, index, "title", "required")
	}

	band := SeverityBand{Lo: SeverityMin, Hi: SeverityMax}
	if raw.SeverityBand != nil {
		if len(raw.SeverityBand) != 2 {
			return Entry{}, malformed(pack, index, "severity_band", "expected [lo, hi]")
		}
		band = SeverityBand{Lo: raw.SeverityBand[0], Hi: raw.SeverityBand[1]}
		if band.Lo < SeverityMin || band.Hi > SeverityMax || band.Lo > band.Hi {
			return Entry{}, malformed(pack, index, "severity_band",
				fmt.Sprintf("must satisfy %d <= lo <= hi <= %d, got [%d, %d]", SeverityMin, SeverityMax, band.Lo, band.Hi))
		}
	}

	weight := 1.0
	if raw.Weight != nil {
		weight = *raw.Weight
		if weight < 0 {
			return Entry{}, malformed(pack, index, "weight", "must be >= 0")
		}
	}

	if raw.Cooldown.Event < 0 {
		return Entry{}, malformed(pack, index, "cooldown.event", "must be >= 0")
	}
	for tag, turns := range raw.Cooldown.Tags {
		if turns < 0 {
			return Entry{}, malformed(pack, index, "cooldown.tags."+tag, "must be >= 0")
		}
	}

	phases := make([]scene.Phase, 0, len(raw.AllowedPhases))
	for _, p := range raw.AllowedPhases {
		phase := scene.Phase(p)
		if !phase.Valid() {
			return Entry{}, malformed(pack, index, "allowed_scene_phases", fmt.Sprintf("unknown phase %q", p))
		}
		phases = append(phases, phase)
	}

	var template map[string]Range
	if len(raw.EffectTemplate) > 0 {
		template = make(map[string]Range, len(raw.EffectTemplate))
		for dim, bounds := range raw.EffectTemplate {
			if len(bounds) != 2 || bounds[0] > bounds[1] {
				return Entry{}, malformed(pack, index, "effect_vector_template."+dim, "expected [lo, hi] with lo <= hi")
			}
			template[dim] = Range{Lo: bounds[0], Hi: bounds[1]}
		}
	}

	return Entry{
		ID:                  raw.EventID,
		Title:               raw.Title,
		Tags:                orEmpty(raw.Tags),
		AllowedEnvironments: orEmpty(raw.AllowedEnvironments),
		AllowedPhases:       phases,
		SeverityBand:        band,
		Weight:              weight,
		CooldownEvent:       raw.Cooldown.Event,
		CooldownTags:        raw.Cooldown.Tags,
		EffectTemplate:      template,
		Fiction:             raw.Fiction,
		AdapterHints:        raw.AdapterHints,
	}, nil
}

// orEmpty keeps omitted lists encoding as [] rather than null.
func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func malformed(pack string, index int, field, msg string) error {
	return apperrors.WithMetadata(apperrors.CodeMalformedContent,
		fmt.Sprintf("pack %q entry %d: %s: %s", pack, index, field, msg),
		map[string]string{
			"pack":  pack,
			"index": strconv.Itoa(index),
			"field": field,
		})
}

func fileStem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
