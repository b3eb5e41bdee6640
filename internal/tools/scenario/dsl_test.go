package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeScenarioFixture(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.lua")
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestLoadScenarioRecordsSteps(t *testing.T) {
	path := writeScenarioFixture(t, `-- Setup
local s = Scenario.new("vault")
s:pack("heist.json")
s:scene{preset = "confined", phase = "engage", environment = {"confined", "urban"}, visibility = 0.25}
s:selection{include_tags = {"hazard"}, rarity = "spiky"}
s:seed(42)

-- Run
s:generate(10, {ticks_between = 2})
s:tick(3)
s:expect_max_share(0.5)
s:expect_no_cutoff_above(9)

return s
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "vault" {
		t.Fatalf("name = %q, want vault", scenario.Name)
	}
	if scenario.Dir != filepath.Dir(path) {
		t.Fatalf("dir = %q, want %q", scenario.Dir, filepath.Dir(path))
	}

	var kinds []string
	for _, step := range scenario.Steps {
		kinds = append(kinds, step.Kind)
	}
	want := "pack,scene,selection,seed,generate,tick,expect_max_share,expect_no_cutoff_above"
	if got := strings.Join(kinds, ","); got != want {
		t.Fatalf("steps = %s, want %s", got, want)
	}

	sceneArgs := scenario.Steps[1].Args
	env, ok := sceneArgs["environment"].([]any)
	if !ok || len(env) != 2 || env[1] != "urban" {
		t.Fatalf("environment = %#v", sceneArgs["environment"])
	}
	if sceneArgs["visibility"] != 0.25 {
		t.Fatalf("visibility = %#v, want 0.25", sceneArgs["visibility"])
	}

	generate := scenario.Steps[4].Args
	if generate["count"] != 10 || generate["ticks_between"] != 2 {
		t.Fatalf("generate args = %#v", generate)
	}
	if scenario.Steps[3].Args["seed"] != 42 {
		t.Fatalf("seed args = %#v", scenario.Steps[3].Args)
	}
}

func TestLoadScenarioChainsCalls(t *testing.T) {
	path := writeScenarioFixture(t, `return Scenario.new("chain"):seed(7):generate(3):tick()`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(scenario.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(scenario.Steps))
	}
	if scenario.Steps[2].Args["ticks"] != 1 {
		t.Fatalf("tick default = %#v, want 1", scenario.Steps[2].Args["ticks"])
	}
}

func TestLoadScenarioDefaultsNameToFile(t *testing.T) {
	path := writeScenarioFixture(t, `return Scenario.new()`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "fixture" {
		t.Fatalf("name = %q, want fixture", scenario.Name)
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{name: "no return", script: `local s = Scenario.new("x")`, want: "must return Scenario"},
		{name: "wrong return", script: `return 42`, want: "must return Scenario"},
		{name: "syntax", script: `return Scenario.new(`, want: "load lua"},
		{name: "bad count", script: `return Scenario.new("x"):generate(0)`, want: "run lua"},
		{name: "bad share", script: `return Scenario.new("x"):expect_max_share(1.5)`, want: "run lua"},
		{name: "negative tick", script: `return Scenario.new("x"):tick(-1)`, want: "run lua"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenarioFromFile(writeScenarioFixture(t, tt.script))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}
