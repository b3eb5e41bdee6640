package engine

import (
	"slices"
	"sort"

	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/cutoff"
	"github.com/louisbranch/spar/internal/spar/narrative"
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/state"
)

// Named effect dimensions, in rolling order.
const (
	EffectThreat        = "threat"
	EffectCost          = "cost"
	EffectHeat          = "heat"
	EffectTimePressure  = "time_pressure"
	EffectPositionShift = "position_shift"
	EffectInformation   = "information"
	EffectOpportunity   = "opportunity"
)

// EffectDimensions lists the named dimensions in rolling order.
var EffectDimensions = []string{
	EffectThreat,
	EffectCost,
	EffectHeat,
	EffectTimePressure,
	EffectPositionShift,
	EffectInformation,
	EffectOpportunity,
}

// EffectVector is the rolled mechanical pressure of an event. Authored
// dimensions outside the named set land in Extra.
type EffectVector struct {
	Threat        int            `json:"threat"`
	Cost          int            `json:"cost"`
	Heat          int            `json:"heat"`
	TimePressure  int            `json:"time_pressure"`
	PositionShift int            `json:"position_shift"`
	Information   int            `json:"information"`
	Opportunity   int            `json:"opportunity"`
	Extra         map[string]int `json:"extra,omitempty"`
}

// Get returns a dimension by name.
func (v EffectVector) Get(dim string) int {
	switch dim {
	case EffectThreat:
		return v.Threat
	case EffectCost:
		return v.Cost
	case EffectHeat:
		return v.Heat
	case EffectTimePressure:
		return v.TimePressure
	case EffectPositionShift:
		return v.PositionShift
	case EffectInformation:
		return v.Information
	case EffectOpportunity:
		return v.Opportunity
	default:
		return v.Extra[dim]
	}
}

func (v *EffectVector) set(dim string, value int) {
	switch dim {
	case EffectThreat:
		v.Threat = value
	case EffectCost:
		v.Cost = value
	case EffectHeat:
		v.Heat = value
	case EffectTimePressure:
		v.TimePressure = value
	case EffectPositionShift:
		v.PositionShift = value
	case EffectInformation:
		v.Information = value
	case EffectOpportunity:
		v.Opportunity = value
	default:
		if v.Extra == nil {
			v.Extra = map[string]int{}
		}
		v.Extra[dim] = value
	}
}

// Event is one generated complication.
//
// Severity never exceeds Cap. OriginalSeverity is set exactly when
// CutoffApplied is true, and then holds the sampled value above Cap.
type Event struct {
	EventID          string                `json:"event_id"`
	Title            string                `json:"title"`
	Tags             []string              `json:"tags"`
	Severity         int                   `json:"severity"`
	Cap              int                   `json:"cap"`
	CutoffApplied    bool                  `json:"cutoff_applied"`
	CutoffResolution cutoff.Resolution     `json:"cutoff_resolution"`
	OriginalSeverity *int                  `json:"original_severity,omitempty"`
	EffectVector     EffectVector          `json:"effect_vector"`
	Fiction          content.Fiction       `json:"fiction"`
	StateDelta       state.Delta           `json:"state_delta"`
	Followups        []narrative.Followup  `json:"followups"`
	RNGTrace         []random.TraceRecord  `json:"rng_trace"`
	GeneratorType    content.GeneratorType `json:"generator_type"`
	Pack             string                `json:"pack,omitempty"`
	AdapterHints     *content.AdapterHints `json:"adapter_hints,omitempty"`
}

// rollEffects rolls the named dimensions in order, then any extra
// authored dimensions in sorted key order. Missing dimensions are zero and
// fixed ranges use their constant without drawing.
func rollEffects(rng *random.TraceRNG, template map[string]content.Range) (EffectVector, error) {
	var v EffectVector
	dims := slices.Clone(EffectDimensions)
	var extra []string
	for dim := range template {
		if !slices.Contains(EffectDimensions, dim) {
			extra = append(extra, dim)
		}
	}
	sort.Strings(extra)
	dims = append(dims, extra...)

	for _, dim := range dims {
		r := template[dim]
		value := r.Lo
		if r.Lo != r.Hi {
			rolled, err := rng.Int(r.Lo, r.Hi, "effect:"+dim)
			if err != nil {
				return EffectVector{}, err
			}
			value = rolled
		}
		v.set(dim, value)
	}
	return v, nil
}
