package content

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
)

func testdata(name string) string {
	return filepath.Join("testdata", name)
}

// TestLoadFileLegacyArray ensures bare arrays load with defaults applied.
func TestLoadFileLegacyArray(t *testing.T) {
	pack, err := LoadFile(testdata("legacy.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if pack.Name != "legacy" || pack.GeneratorType != GeneratorEvent {
		t.Fatalf("metadata = %+v", pack.Metadata)
	}
	if len(pack.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(pack.Entries))
	}

	a := pack.Entries[0]
	if a.Weight != 1.0 {
		t.Fatalf("default weight = %v, want 1", a.Weight)
	}
	if a.SeverityBand != (SeverityBand{Lo: 1, Hi: 10}) {
		t.Fatalf("default band = %+v", a.SeverityBand)
	}
	if a.Pack != "legacy" {
		t.Fatalf("entry pack = %q", a.Pack)
	}

	b := pack.Entries[1]
	if b.CooldownEvent != 2 || b.CooldownTags["visibility"] != 1 {
		t.Fatalf("cooldowns = %d %v", b.CooldownEvent, b.CooldownTags)
	}
	if b.EffectTemplate["heat"] != (Range{Lo: 1, Hi: 2}) {
		t.Fatalf("template = %v", b.EffectTemplate)
	}
	if len(b.Fiction.ImmediateChoice) != 2 {
		t.Fatalf("fiction = %+v", b.Fiction)
	}
}

// TestLoadUntaggedEntryHasEmptyLists ensures omitted lists decode as empty
// slices so events built from them encode [] instead of null.
func TestLoadUntaggedEntryHasEmptyLists(t *testing.T) {
	pack, err := Load(strings.NewReader(`[{"event_id": "quiet_draft", "title": "A quiet draft"}]`), "quiet")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e := pack.Entries[0]
	if e.Tags == nil || len(e.Tags) != 0 {
		t.Fatalf("tags = %#v, want empty slice", e.Tags)
	}
	if e.AllowedEnvironments == nil || len(e.AllowedEnvironments) != 0 {
		t.Fatalf("environments = %#v, want empty slice", e.AllowedEnvironments)
	}
}

func TestLoadFileObjectPack(t *testing.T) {
	pack, err := LoadFile(testdata("loot.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if pack.Name != "test_loot" || pack.GeneratorType != GeneratorLoot || pack.Description != "loot fixture" {
		t.Fatalf("metadata = %+v", pack.Metadata)
	}
	for _, e := range pack.Entries {
		if e.GeneratorType != GeneratorLoot {
			t.Fatalf("entry %s generator = %q", e.ID, e.GeneratorType)
		}
	}
}

func TestLoadObjectWithoutNameUsesStem(t *testing.T) {
	pack, err := LoadFile(testdata("events.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if pack.Name != "events" {
		t.Fatalf("name = %q, want events", pack.Name)
	}
	if pack.Entries[0].AdapterHints == nil || pack.Entries[0].AdapterHints.DifficultyHint != "hard" {
		t.Fatalf("adapter hints = %+v", pack.Entries[0].AdapterHints)
	}
}

func TestLoadRejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"missing id", `[{"title": "x"}]`, "event_id"},
		{"missing title", `[{"event_id": "x"}]`, "title"},
		{"duplicate id", `[{"event_id": "x", "title": "x"}, {"event_id": "x", "title": "y"}]`, "event_id"},
		{"band order", `[{"event_id": "x", "title": "x", "severity_band": [6, 2]}]`, "severity_band"},
		{"band range", `[{"event_id": "x", "title": "x", "severity_band": [0, 11]}]`, "severity_band"},
		{"band arity", `[{"event_id": "x", "title": "x", "severity_band": [2]}]`, "severity_band"},
		{"negative weight", `[{"event_id": "x", "title": "x", "weight": -1}]`, "weight"},
		{"negative cooldown", `[{"event_id": "x", "title": "x", "cooldown": {"event": -1}}]`, "cooldown.event"},
		{"negative tag cooldown", `[{"event_id": "x", "title": "x", "cooldown": {"tags": {"hazard": -2}}}]`, "cooldown.tags.hazard"},
		{"template order", `[{"event_id": "x", "title": "x", "effect_vector_template": {"heat": [3, 1]}}]`, "effect_vector_template.heat"},
		{"unknown phase", `[{"event_id": "x", "title": "x", "allowed_scene_phases": ["climax"]}]`, "allowed_scene_phases"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tc.input), "fixture")
			if !apperrors.HasCode(err, apperrors.CodeMalformedContent) {
				t.Fatalf("err = %v, want malformed content", err)
			}
			var domainErr *apperrors.Error
			if !errors.As(err, &domainErr) {
				t.Fatalf("expected domain error, got %T", err)
			}
			if domainErr.Metadata["field"] != tc.field {
				t.Fatalf("field = %q, want %q", domainErr.Metadata["field"], tc.field)
			}
			if domainErr.Metadata["pack"] != "fixture" {
				t.Fatalf("pack = %q", domainErr.Metadata["pack"])
			}
		})
	}
}

func TestLoadRejectsBadDocuments(t *testing.T) {
	for _, input := range []string{"", "42", `{"name": "x"}`, `[{"event_id": 3}]`} {
		if _, err := Load(strings.NewReader(input), "doc"); !apperrors.HasCode(err, apperrors.CodeMalformedContent) {
			t.Fatalf("Load(%q) err = %v", input, err)
		}
	}
	if _, err := LoadFile(testdata("broken.json")); !apperrors.HasCode(err, apperrors.CodeMalformedContent) {
		t.Fatalf("broken.json err = %v", err)
	}
}

func TestLoadManyKeepsDuplicates(t *testing.T) {
	entries, err := LoadMany([]string{testdata("legacy.json"), testdata("loot.json")})
	if err != nil {
		t.Fatalf("LoadMany: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}

	dups := Duplicates(entries)
	if len(dups) != 1 || strings.Join(dups["b"], ",") != "legacy,test_loot" {
		t.Fatalf("Duplicates = %v", dups)
	}

	merged := DedupeLastWins(entries)
	if len(merged) != 3 {
		t.Fatalf("deduped = %d, want 3", len(merged))
	}
	if merged[1].ID != "b" || merged[1].Title != "Loot B override" {
		t.Fatalf("last-wins entry = %+v", merged[1])
	}
}

func TestLoadManyEmpty(t *testing.T) {
	entries, err := LoadMany(nil)
	if err != nil || len(entries) != 0 {
		t.Fatalf("LoadMany(nil) = %v, %v", entries, err)
	}
}

func TestLoadByGeneratorType(t *testing.T) {
	paths := []string{testdata("legacy.json"), testdata("loot.json"), testdata("broken.json"), testdata("missing.json")}

	loot, err := LoadByGeneratorType(paths, GeneratorLoot)
	if err != nil {
		t.Fatalf("LoadByGeneratorType: %v", err)
	}
	if len(loot) != 2 {
		t.Fatalf("loot entries = %d, want 2", len(loot))
	}

	events, err := LoadByGeneratorType(paths, GeneratorEvent)
	if err != nil {
		t.Fatalf("LoadByGeneratorType: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("event entries = %d, want 2", len(events))
	}
}

func TestReadMetadata(t *testing.T) {
	meta, err := ReadMetadata(testdata("legacy.json"))
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if meta.Name != "legacy" || meta.GeneratorType != GeneratorEvent || meta.Description != "" {
		t.Fatalf("meta = %+v", meta)
	}
}

func TestEntryHelpers(t *testing.T) {
	e := Entry{Tags: []string{"hazard", "terrain"}, SeverityBand: SeverityBand{Lo: 3, Hi: 5}}
	if !e.HasTag("terrain") || e.HasTag("mystic") {
		t.Fatal("HasTag mismatch")
	}
	if !e.HasAnyTag("mystic", "hazard") {
		t.Fatal("HasAnyTag mismatch")
	}
	for sev, want := range map[int]bool{2: false, 3: true, 5: true, 6: false} {
		if got := e.SeverityBand.Contains(sev); got != want {
			t.Fatalf("Contains(%d) = %v", sev, got)
		}
	}
}
