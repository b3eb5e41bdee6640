// Package spar parses the generator CLI flags and prints generated events.
package spar

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	entrypoint "github.com/louisbranch/spar/internal/platform/cmd"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/content/packs"
	"github.com/louisbranch/spar/internal/spar/content/query"
	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

// Output formats.
const (
	FormatPretty = "pretty"
	FormatJSONL  = "jsonl"
)

// Config holds CLI configuration.
type Config struct {
	SceneID     string `env:"SCENE_ID" envDefault:"cli"`
	Phase       string `env:"PHASE"    envDefault:"engage"`
	Preset      string `env:"PRESET"`
	Environment string `env:"ENV"`
	Tone        string `env:"TONE"`
	Spotlight   string `env:"SPOTLIGHT"`
	PartyBand   string `env:"PARTY"    envDefault:"mid"`
	// Constraints is "confinement,connectivity,visibility"; it overrides
	// the preset.
	Constraints string `env:"CONSTRAINTS"`

	Rarity    string `env:"RARITY" envDefault:"normal"`
	Include   string `env:"INCLUDE_TAGS"`
	Exclude   string `env:"EXCLUDE_TAGS"`
	Packs     string `env:"PACKS"`
	PackFiles string `env:"PACK_PATHS"`
	Generator string `env:"GENERATOR" envDefault:"event"`
	Query     string `env:"QUERY"`
	Force     string `env:"FORCE_EVENT_ID"`

	Seed         string `env:"SEED"`
	Count        int    `env:"COUNT"         envDefault:"1"`
	TicksBetween int    `env:"TICKS_BETWEEN"`
	Format       string `env:"FORMAT"        envDefault:"pretty"`
	ShowTrace    bool   `env:"SHOW_TRACE"`
	StateIn      string `env:"STATE_IN"`
	StateOut     string `env:"STATE_OUT"`
	Locale       string `env:"LOCALE"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfigFromArgs(&cfg, fs, args, bindFlags); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.SceneID, "scene", cfg.SceneID, "scene identifier")
	fs.StringVar(&cfg.Phase, "phase", cfg.Phase, "scene phase: approach, engage or aftermath")
	fs.StringVar(&cfg.Preset, "preset", cfg.Preset, "morphology preset: confined, populated, open or derelict")
	fs.StringVar(&cfg.Environment, "env", cfg.Environment, "comma-separated environment tags")
	fs.StringVar(&cfg.Tone, "tone", cfg.Tone, "comma-separated tone tags")
	fs.StringVar(&cfg.Spotlight, "spotlight", cfg.Spotlight, "comma-separated spotlighted characters")
	fs.StringVar(&cfg.PartyBand, "party", cfg.PartyBand, "party band: low, mid, high or unknown")
	fs.StringVar(&cfg.Constraints, "constraints", cfg.Constraints, "confinement,connectivity,visibility in [0,1]")
	fs.StringVar(&cfg.Rarity, "rarity", cfg.Rarity, "rarity mode: calm, normal or spiky")
	fs.StringVar(&cfg.Include, "include", cfg.Include, "comma-separated tags an entry must share one of")
	fs.StringVar(&cfg.Exclude, "exclude", cfg.Exclude, "comma-separated tags that reject an entry")
	fs.StringVar(&cfg.Packs, "packs", cfg.Packs, "comma-separated pack names to enable (default all)")
	fs.StringVar(&cfg.PackFiles, "pack-files", cfg.PackFiles, "comma-separated pack files loaded after the shipped packs")
	fs.StringVar(&cfg.Generator, "generator", cfg.Generator, "generator type: event or loot")
	fs.StringVar(&cfg.Query, "query", cfg.Query, "AIP-160 filter narrowing entries before generation")
	fs.StringVar(&cfg.Force, "force", cfg.Force, "generate this event id instead of sampling")
	fs.StringVar(&cfg.Seed, "seed", cfg.Seed, "decimal seed (default random)")
	fs.IntVar(&cfg.Count, "count", cfg.Count, "number of events")
	fs.IntVar(&cfg.TicksBetween, "ticks-between", cfg.TicksBetween, "turns elapsed between events")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "output format: pretty or jsonl")
	fs.BoolVar(&cfg.ShowTrace, "trace", cfg.ShowTrace, "print the RNG trace of each event")
	fs.StringVar(&cfg.StateIn, "state-in", cfg.StateIn, "read the starting state from this JSON file")
	fs.StringVar(&cfg.StateOut, "state-out", cfg.StateOut, "write the final state to this JSON file")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for cutoff framing, e.g. pt-BR")
}

// Run generates events for cfg and writes them to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	format := strings.ToLower(strings.TrimSpace(cfg.Format))
	if format != FormatPretty && format != FormatJSONL {
		return fmt.Errorf("unknown format %q", cfg.Format)
	}
	if cfg.Count < 1 {
		return errors.New("count must be >= 1")
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCLI, func(context.Context) error {
		return generate(cfg, format, out)
	})
}

func generate(cfg Config, format string, out io.Writer) error {
	sc, err := cfg.scene()
	if err != nil {
		return err
	}
	sel, err := cfg.selection()
	if err != nil {
		return err
	}
	generator, err := content.ParseGeneratorType(cfg.Generator)
	if err != nil {
		return err
	}
	seed, err := cfg.seed()
	if err != nil {
		return err
	}

	catalog, err := packs.StoreWith(splitList(cfg.PackFiles)...)
	if err != nil {
		return err
	}
	force := strings.TrimSpace(cfg.Force)
	if force != "" {
		if _, err := catalog.Lookup(force); err != nil {
			return err
		}
	}
	entries := catalog.EntriesOfType(generator, sel.EnabledPacks...)
	if q := strings.TrimSpace(cfg.Query); q != "" {
		if entries, err = query.Apply(entries, q); err != nil {
			return err
		}
	}

	current := state.Default()
	if cfg.StateIn != "" {
		if current, err = state.ReadFile(cfg.StateIn); err != nil {
			return err
		}
	}

	result, genErr := engine.Batch(engine.Input{
		Scene:        sc,
		State:        current,
		Selection:    sel,
		Entries:      entries,
		Profile:      engine.ProfileFor(generator),
		ForceEventID: force,
		Locale:       cfg.Locale,
	}, random.New(seed), engine.BatchOptions{Count: cfg.Count, TicksBetween: cfg.TicksBetween})

	w := newWriter(format, out, cfg.ShowTrace)
	if err := w.header(seed, sc); err != nil {
		return err
	}
	for i, e := range result.Events {
		if err := w.event(i+1, e); err != nil {
			return err
		}
	}
	if genErr != nil {
		return genErr
	}
	if cfg.StateOut != "" {
		if err := state.WriteFile(cfg.StateOut, result.State); err != nil {
			return err
		}
	}
	return w.footer(result.State)
}

func (c Config) scene() (scene.Context, error) {
	phase, err := scene.ParsePhase(c.Phase)
	if err != nil {
		return scene.Context{}, err
	}
	band, err := scene.ParsePartyBand(c.PartyBand)
	if err != nil {
		return scene.Context{}, err
	}
	sc := scene.Context{
		SceneID:     strings.TrimSpace(c.SceneID),
		Phase:       phase,
		Environment: splitList(c.Environment),
		Tone:        splitList(c.Tone),
		Spotlight:   splitList(c.Spotlight),
		Constraints: scene.DefaultConstraints,
		PartyBand:   band,
	}
	if name := strings.TrimSpace(c.Preset); name != "" {
		preset, ok := scene.LookupPreset(name)
		if !ok {
			return scene.Context{}, fmt.Errorf("unknown preset %q", name)
		}
		sc.Constraints = preset.Constraints
		if len(sc.Environment) == 0 {
			sc.Environment = []string{preset.Environment}
		}
	}
	if strings.TrimSpace(c.Constraints) != "" {
		constraints, err := parseConstraints(c.Constraints)
		if err != nil {
			return scene.Context{}, err
		}
		sc.Constraints = constraints
	}
	sc.Constraints = sc.Constraints.Clamped()
	return sc, sc.Validate()
}

func (c Config) selection() (scene.Selection, error) {
	mode, err := scene.ParseRarityMode(c.Rarity)
	if err != nil {
		return scene.Selection{}, err
	}
	return scene.Selection{
		EnabledPacks: splitList(c.Packs),
		IncludeTags:  splitList(c.Include),
		ExcludeTags:  splitList(c.Exclude),
		RarityMode:   mode,
	}, nil
}

func (c Config) seed() (int64, error) {
	value := strings.TrimSpace(c.Seed)
	if value == "" {
		return random.NewSeed()
	}
	seed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seed %q: %w", c.Seed, err)
	}
	return seed, nil
}

func parseConstraints(value string) (scene.Constraints, error) {
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return scene.Constraints{}, fmt.Errorf("constraints %q: want confinement,connectivity,visibility", value)
	}
	var axes [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return scene.Constraints{}, fmt.Errorf("constraints %q: %w", value, err)
		}
		axes[i] = v
	}
	return scene.Constraints{Confinement: axes[0], Connectivity: axes[1], Visibility: axes[2]}, nil
}

func splitList(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
