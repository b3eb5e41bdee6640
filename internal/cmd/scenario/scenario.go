// Package scenario parses scenario command flags and runs a Lua script.
package scenario

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"

	entrypoint "github.com/louisbranch/spar/internal/platform/cmd"
	"github.com/louisbranch/spar/internal/tools/scenario"
)

// Config holds scenario command configuration.
type Config struct {
	Scenario   string `env:"SCENARIO_FILE"`
	Assertions bool   `env:"SCENARIO_ASSERT"  envDefault:"true"`
	Verbose    bool   `env:"SCENARIO_VERBOSE"`
	Locale     string `env:"LOCALE"`
	JSON       bool   `env:"SCENARIO_JSON"`
}

// ParseConfig parses environment and flags into a Config. A single
// positional argument is taken as the scenario path.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, func(fs *flag.FlagSet, cfg *Config) {
		fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
		fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
		fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
		fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for cutoff framing")
		fs.BoolVar(&cfg.JSON, "json", cfg.JSON, "print the report as JSON")
	}); err != nil {
		return Config{}, err
	}
	if cfg.Scenario == "" && fs.NArg() == 1 {
		cfg.Scenario = fs.Arg(0)
	}
	return cfg, nil
}

// Run executes the scenario and writes its report to out.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		report, err := scenario.RunFile(ctx, scenario.Config{
			Assertions: mode,
			Verbose:    cfg.Verbose,
			Logger:     log.New(errOut, "", 0),
			Locale:     cfg.Locale,
		}, cfg.Scenario)
		if err != nil {
			return err
		}
		if cfg.JSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			return nil
		}
		return report.WriteText(out)
	})
}
