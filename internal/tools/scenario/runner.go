package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/content/packs"
	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

// Config controls scenario execution.
type Config struct {
	Assertions AssertionMode
	Verbose    bool
	Logger     *log.Logger
	// Locale selects the cutoff overlay language.
	Locale string
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{Assertions: AssertionStrict}
}

// Runner executes scenarios against the generator.
type Runner struct {
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	locale     string
}

// NewRunner prepares a scenario runner.
func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	return &Runner{
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		locale:     cfg.Locale,
	}
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) (Report, error) {
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return Report{}, err
	}
	return NewRunner(cfg).RunScenario(ctx, scenario)
}

// runState is the generator state a scenario threads through its steps.
type runState struct {
	dir       string
	packPaths []string
	store     *content.Store
	scene     scene.Context
	selection scene.Selection
	generator content.GeneratorType
	seed      int64
	rng       *random.TraceRNG
	state     state.State
	events    []engine.Event
}

// RunScenario executes the scenario steps in order and reports the
// distribution of every event generated.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) (Report, error) {
	if scenario == nil {
		return Report{}, errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	rs := &runState{
		dir: scenario.Dir,
		scene: scene.Context{
			SceneID:     scenario.Name,
			Phase:       scene.PhaseEngage,
			Constraints: scene.DefaultConstraints,
			PartyBand:   scene.PartyMid,
		},
		generator: content.GeneratorEvent,
		state:     state.Default(),
	}

	for index, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		r.logf("step %d/%d: %s", index+1, len(scenario.Steps), step.Kind)
		if err := r.runStep(rs, step); err != nil {
			return Report{}, fmt.Errorf("step %d (%s): %w", index+1, step.Kind, err)
		}
	}
	r.logf("scenario done: %s (%d events)", scenario.Name, len(rs.events))
	return buildReport(scenario.Name, rs.seed, rs.events), nil
}

func (r *Runner) runStep(rs *runState, step Step) error {
	switch step.Kind {
	case StepPack:
		rs.packPaths = append(rs.packPaths, stringArg(step.Args, "path"))
		rs.store = nil
		return nil
	case StepScene:
		sc, err := sceneFromArgs(rs.scene, step.Args)
		if err != nil {
			return err
		}
		rs.scene = sc
		return nil
	case StepSelection:
		sel, err := selectionFromArgs(step.Args)
		if err != nil {
			return err
		}
		rs.selection = sel
		return nil
	case StepGenerator:
		generator, err := content.ParseGeneratorType(stringArg(step.Args, "type"))
		if err != nil {
			return err
		}
		rs.generator = generator
		return nil
	case StepSeed:
		seed, _ := intArg(step.Args, "seed")
		rs.seed = int64(seed)
		rs.rng = random.New(rs.seed)
		return nil
	case StepTick:
		ticks, _ := intArg(step.Args, "ticks")
		rs.state = state.Tick(rs.state, ticks)
		return nil
	case StepGenerate:
		return r.generate(rs, step.Args)
	case StepExpectShare:
		fraction, _ := floatArg(step.Args, "fraction")
		return r.expectMaxShare(rs.events, fraction)
	case StepExpectNoAbove:
		limit, _ := intArg(step.Args, "cap")
		return r.expectNoCutoffAbove(rs.events, limit)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) generate(rs *runState, args map[string]any) error {
	if err := rs.ensureStore(); err != nil {
		return err
	}
	if rs.rng == nil {
		seed, err := random.NewSeed()
		if err != nil {
			return fmt.Errorf("generate seed: %w", err)
		}
		rs.seed = seed
		rs.rng = random.New(seed)
		r.logf("seed: %d", seed)
	}
	count, _ := intArg(args, "count")
	ticksBetween, _ := intArg(args, "ticks_between")

	result, err := engine.Batch(engine.Input{
		Scene:        rs.scene,
		State:        rs.state,
		Selection:    rs.selection,
		Entries:      rs.store.EntriesOfType(rs.generator, rs.selection.EnabledPacks...),
		Profile:      engine.ProfileFor(rs.generator),
		ForceEventID: stringArg(args, "force"),
		Locale:       r.locale,
	}, rs.rng, engine.BatchOptions{Count: count, TicksBetween: ticksBetween})
	rs.events = append(rs.events, result.Events...)
	rs.state = result.State
	if err != nil {
		return fmt.Errorf("generate after %d events: %w", len(result.Events), err)
	}
	// The next batch follows the previous event by the usual tick floor.
	rs.state = state.Tick(rs.state, engine.BatchOptions{TicksBetween: ticksBetween}.Ticks())
	return nil
}

// ensureStore loads the scenario's packs, or the shipped packs when it
// names none. A pack argument without a .json suffix names a shipped pack.
func (rs *runState) ensureStore() error {
	if rs.store != nil {
		return nil
	}
	if len(rs.packPaths) == 0 {
		store, err := packs.Store()
		if err != nil {
			return fmt.Errorf("load shipped packs: %w", err)
		}
		rs.store = store
		return nil
	}
	loaded := make([]content.Pack, 0, len(rs.packPaths))
	for _, path := range rs.packPaths {
		if !strings.HasSuffix(path, ".json") {
			pack, err := packs.Load(path)
			if err != nil {
				return err
			}
			loaded = append(loaded, pack)
			continue
		}
		if !filepath.IsAbs(path) && rs.dir != "" {
			path = filepath.Join(rs.dir, path)
		}
		pack, err := content.LoadFile(path)
		if err != nil {
			return err
		}
		loaded = append(loaded, pack)
	}
	rs.store = content.NewStore(loaded...)
	return nil
}

func (r *Runner) expectMaxShare(events []engine.Event, fraction float64) error {
	if len(events) == 0 {
		return r.assertions.Failf("expect_max_share: no events generated")
	}
	top := buildReport("", 0, events).Top()
	if top.Share > fraction {
		return r.assertions.Failf("event %s share %.3f exceeds %.3f (%d of %d)", top.EventID, top.Share, fraction, top.Count, len(events))
	}
	r.logf("max share %.3f (%s) <= %.3f", top.Share, top.EventID, fraction)
	return nil
}

func (r *Runner) expectNoCutoffAbove(events []engine.Event, limit int) error {
	for i, e := range events {
		if e.Severity > limit {
			return r.assertions.Failf("event %d (%s) severity %d exceeds %d", i+1, e.EventID, e.Severity, limit)
		}
	}
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
