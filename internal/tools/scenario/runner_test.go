package scenario

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
)

const heistPack = `{
  "name": "heist",
  "generator_type": "event",
  "entries": [
    {"event_id": "guard_rotation", "title": "Guard rotation", "tags": ["patrol"], "weight": 1, "cooldown": {"event": 1}},
    {"event_id": "laser_grid", "title": "Laser grid", "tags": ["hazard"], "weight": 1, "cooldown": {"event": 1}},
    {"event_id": "vault_timer", "title": "Vault timer", "tags": ["time_pressure"], "weight": 1, "cooldown": {"event": 1}},
    {"event_id": "inside_man_balks", "title": "Inside man balks", "tags": ["social"], "weight": 1, "cooldown": {"event": 1}},
    {"event_id": "dog_in_the_vents", "title": "Dog in the vents", "tags": ["hazard"], "weight": 1, "cooldown": {"event": 1}}
  ]
}`

// writeHeist writes the pack next to a script and returns the script path.
func writeHeist(t *testing.T, script string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "heist.json"), []byte(heistPack), 0o644); err != nil {
		t.Fatalf("write pack: %v", err)
	}
	path := filepath.Join(dir, "heist.lua")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestRunFileReportsFrequencies(t *testing.T) {
	path := writeHeist(t, `local s = Scenario.new("heist")
s:pack("heist.json")
s:scene{preset = "confined", phase = "engage", party_band = "mid"}
s:seed(42)
s:generate(200)
s:expect_max_share(0.5)
s:expect_no_cutoff_above(10)
return s
`)

	report, err := RunFile(context.Background(), DefaultConfig(), path)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	if report.Name != "heist" || report.Seed != 42 || report.Events != 200 {
		t.Fatalf("report = %+v", report)
	}
	total := 0
	for _, f := range report.Frequencies {
		total += f.Count
	}
	if total != 200 || len(report.Frequencies) != 5 {
		t.Fatalf("frequencies = %+v", report.Frequencies)
	}
	for i := 1; i < len(report.Frequencies); i++ {
		if report.Frequencies[i].Count > report.Frequencies[i-1].Count {
			t.Fatalf("frequencies not sorted: %+v", report.Frequencies)
		}
	}

	var out bytes.Buffer
	if err := report.WriteText(&out); err != nil {
		t.Fatalf("write report: %v", err)
	}
	if !strings.Contains(out.String(), "scenario heist: 200 events, seed 42") {
		t.Fatalf("report text = %s", out.String())
	}
}

func TestRunFileIsDeterministic(t *testing.T) {
	path := writeHeist(t, `return Scenario.new("d"):pack("heist.json"):seed(7):generate(40, {ticks_between = 2}):tick(2):generate(10)`)

	first, err := RunFile(context.Background(), DefaultConfig(), path)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := RunFile(context.Background(), DefaultConfig(), path)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Events != 50 {
		t.Fatalf("events = %d, want 50", first.Events)
	}
	if len(first.Frequencies) != len(second.Frequencies) || first.Severities != second.Severities {
		t.Fatalf("runs differ: %+v vs %+v", first, second)
	}
	for i := range first.Frequencies {
		if first.Frequencies[i] != second.Frequencies[i] {
			t.Fatalf("frequency %d differs: %+v vs %+v", i, first.Frequencies[i], second.Frequencies[i])
		}
	}
}

func TestExpectationModes(t *testing.T) {
	path := writeHeist(t, `return Scenario.new("tight"):pack("heist.json"):seed(1):generate(20):expect_max_share(0.05):expect_no_cutoff_above(0)`)

	_, err := RunFile(context.Background(), DefaultConfig(), path)
	if err == nil || !strings.Contains(err.Error(), "expect_max_share") {
		t.Fatalf("strict err = %v, want expect_max_share failure", err)
	}

	var logs bytes.Buffer
	cfg := Config{Assertions: AssertionLogOnly, Logger: log.New(&logs, "", 0)}
	report, err := RunFile(context.Background(), cfg, path)
	if err != nil {
		t.Fatalf("log-only run: %v", err)
	}
	if report.Events != 20 {
		t.Fatalf("events = %d, want 20", report.Events)
	}
	if strings.Count(logs.String(), "expectation failed") != 2 {
		t.Fatalf("logs = %s", logs.String())
	}
}

func TestRunUsesShippedPacks(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new("loot")
s:generator("loot")
s:scene{preset = "derelict", phase = "aftermath"}
s:seed(3)
s:generate(5, {ticks_between = 3})
return s
`)
	report, err := RunFile(context.Background(), DefaultConfig(), path)
	if err != nil {
		t.Fatalf("run scenario: %v", err)
	}
	for _, f := range report.Frequencies {
		if !strings.HasPrefix(f.EventID, "loot_") {
			t.Fatalf("non-loot event %s in loot run", f.EventID)
		}
	}

	named := writeScenarioFixture(t, `return Scenario.new("core"):pack("core_complications"):seed(3):generate(3, {ticks_between = 3})`)
	if _, err := RunFile(context.Background(), DefaultConfig(), named); err != nil {
		t.Fatalf("run with shipped pack name: %v", err)
	}
}

func TestRunStepErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		check  func(error) bool
	}{
		{
			name:   "unknown forced id",
			script: `return Scenario.new("x"):pack("heist.json"):seed(1):generate(1, {force = "laser_grd"})`,
			check:  func(err error) bool { return apperrors.HasCode(err, apperrors.CodeUnknownEventID) },
		},
		{
			name:   "bad phase",
			script: `return Scenario.new("x"):scene{phase = "lunch"}`,
			check:  func(err error) bool { return err != nil && strings.Contains(err.Error(), "step 1 (scene)") },
		},
		{
			name:   "bad generator",
			script: `return Scenario.new("x"):generator("treasure")`,
			check:  func(err error) bool { return apperrors.HasCode(err, apperrors.CodeInvalidSelection) },
		},
		{
			name:   "missing pack",
			script: `return Scenario.new("x"):pack("missing.json"):generate(1)`,
			check:  func(err error) bool { return err != nil && strings.Contains(err.Error(), "step 2 (generate)") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunFile(context.Background(), DefaultConfig(), writeHeist(t, tt.script))
			if !tt.check(err) {
				t.Fatalf("unexpected err: %v", err)
			}
		})
	}
}

func TestRunScenarioRequiresScenario(t *testing.T) {
	if _, err := NewRunner(DefaultConfig()).RunScenario(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil scenario")
	}
}

func TestRunScenarioStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(DefaultConfig()).RunScenario(ctx, &Scenario{Name: "x", Steps: []Step{{Kind: StepTick, Args: map[string]any{"ticks": 1}}}})
	if err == nil {
		t.Fatal("expected context error")
	}
}
