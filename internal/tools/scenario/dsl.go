// Package scenario runs Lua scripts that drive the generator over many
// events and check the resulting distribution.
//
// A script builds a Scenario and returns it:
//
//	local s = Scenario.new("vault")
//	s:scene{preset = "confined", phase = "engage", party_band = "mid"}
//	s:seed(42)
//	s:generate(200)
//	s:expect_max_share(0.2)
//	return s
//
// Loading only records steps; the Runner executes them against the core.
package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "spar.scenario"

// Step kinds recorded by the DSL.
const (
	StepPack          = "pack"
	StepScene         = "scene"
	StepSelection     = "selection"
	StepGenerator     = "generator"
	StepSeed          = "seed"
	StepTick          = "tick"
	StepGenerate      = "generate"
	StepExpectShare   = "expect_max_share"
	StepExpectNoAbove = "expect_no_cutoff_above"
)

// Scenario is a named list of steps.
type Scenario struct {
	Name string
	// Dir resolves relative pack paths; it is the script's directory.
	Dir   string
	Steps []Step
}

// Step is one recorded DSL call.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile runs the script at path and returns the Scenario it
// builds. A script without a name takes the file's base name.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerLuaTypes(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	scenario.Dir = filepath.Dir(path)
	return scenario, nil
}

func registerLuaTypes(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)

	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "pack", Function: scenarioPack},
	{Name: "scene", Function: tableStep(StepScene)},
	{Name: "selection", Function: tableStep(StepSelection)},
	{Name: "generator", Function: scenarioGenerator},
	{Name: "seed", Function: scenarioSeed},
	{Name: "tick", Function: scenarioTick},
	{Name: "generate", Function: scenarioGenerate},
	{Name: "expect_max_share", Function: scenarioExpectMaxShare},
	{Name: "expect_no_cutoff_above", Function: scenarioExpectNoCutoffAbove},
}

func scenarioNew(state *lua.State) int {
	scenario := &Scenario{Name: lua.OptString(state, 1, "")}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

func scenarioPack(state *lua.State) int {
	scenario := checkScenario(state)
	path := lua.CheckString(state, 2)
	appendStep(scenario, StepPack, map[string]any{"path": path})
	return pushSelf(state)
}

func tableStep(kind string) lua.Function {
	return func(state *lua.State) int {
		scenario := checkScenario(state)
		lua.CheckType(state, 2, lua.TypeTable)
		appendStep(scenario, kind, tableToMap(state, 2))
		return pushSelf(state)
	}
}

func scenarioGenerator(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, StepGenerator, map[string]any{"type": lua.CheckString(state, 2)})
	return pushSelf(state)
}

func scenarioSeed(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, StepSeed, map[string]any{"seed": lua.CheckInteger(state, 2)})
	return pushSelf(state)
}

func scenarioTick(state *lua.State) int {
	scenario := checkScenario(state)
	ticks := lua.OptInteger(state, 2, 1)
	if ticks < 0 {
		lua.ArgumentError(state, 2, "ticks must be >= 0")
	}
	appendStep(scenario, StepTick, map[string]any{"ticks": ticks})
	return pushSelf(state)
}

func scenarioGenerate(state *lua.State) int {
	scenario := checkScenario(state)
	count := lua.OptInteger(state, 2, 1)
	if count < 1 {
		lua.ArgumentError(state, 2, "count must be >= 1")
	}
	data := optionalTable(state, 3)
	data["count"] = count
	appendStep(scenario, StepGenerate, data)
	return pushSelf(state)
}

func scenarioExpectMaxShare(state *lua.State) int {
	scenario := checkScenario(state)
	fraction := lua.CheckNumber(state, 2)
	if fraction <= 0 || fraction > 1 {
		lua.ArgumentError(state, 2, "fraction must be in (0, 1]")
	}
	appendStep(scenario, StepExpectShare, map[string]any{"fraction": fraction})
	return pushSelf(state)
}

func scenarioExpectNoCutoffAbove(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, StepExpectNoAbove, map[string]any{"cap": lua.CheckInteger(state, 2)})
	return pushSelf(state)
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

// pushSelf returns the receiver so calls chain.
func pushSelf(state *lua.State) int {
	state.PushValue(1)
	return 1
}

func appendStep(scenario *Scenario, kind string, data map[string]any) {
	if scenario == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}
	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

// tableToGo returns a []any for sequences and a map otherwise.
func tableToGo(state *lua.State, index int) any {
	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				maxIndex = max(maxIndex, idx)
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}
	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}
	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
