package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/spar/internal/tools/scenario"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if !cfg.Assertions {
		t.Fatal("expected assertions to default to true")
	}
	if cfg.Scenario != "" || cfg.JSON || cfg.Verbose {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseConfigPositionalPath(t *testing.T) {
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-assert=false", "vault.lua"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Scenario != "vault.lua" || cfg.Assertions {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestRunRequiresScenario(t *testing.T) {
	if err := Run(context.Background(), Config{}, nil, nil); err == nil {
		t.Fatal("expected error without a scenario path")
	}
}

func TestRunWritesReport(t *testing.T) {
	t.Setenv("SPAR_OTEL_ENABLED", "false")
	path := filepath.Join(t.TempDir(), "core.lua")
	script := `return Scenario.new("core"):scene{preset = "confined"}:seed(11):generate(12, {ticks_between = 3}):expect_no_cutoff_above(10)`
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	var out bytes.Buffer
	if err := Run(context.Background(), Config{Scenario: path, Assertions: true}, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "scenario core: 12 events, seed 11") {
		t.Fatalf("output = %s", out.String())
	}

	out.Reset()
	if err := Run(context.Background(), Config{Scenario: path, Assertions: true, JSON: true}, &out, nil); err != nil {
		t.Fatalf("run json: %v", err)
	}
	var report scenario.Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Events != 12 || report.Seed != 11 {
		t.Fatalf("report = %+v", report)
	}
}
