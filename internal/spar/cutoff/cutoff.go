// Package cutoff converts severities above the scene cap into narrative
// consequences instead of letting them manifest directly.
package cutoff

import "github.com/louisbranch/spar/internal/spar/scene"

// Resolution names how an over-cap severity was converted.
type Resolution string

const (
	ResolutionNone      Resolution = "none"
	ResolutionOmen      Resolution = "omen"
	ResolutionClockTick Resolution = "clock_tick"
	ResolutionDownshift Resolution = "downshift"
)

// Result is the outcome of applying the cap to one sampled severity.
// Original is set only when the cutoff fired.
type Result struct {
	Final      int
	Applied    bool
	Resolution Resolution
	Original   *int
}

// ResolutionForPhase returns the conversion used in phase: a warning
// before the action, pressure during it, and a narrow escape after it.
func ResolutionForPhase(phase scene.Phase) Resolution {
	switch phase {
	case scene.PhaseApproach:
		return ResolutionOmen
	case scene.PhaseEngage:
		return ResolutionClockTick
	default:
		return ResolutionDownshift
	}
}

// Apply caps sampled at limit.
func Apply(sampled, limit int, phase scene.Phase) Result {
	if sampled <= limit {
		return Result{Final: sampled, Resolution: ResolutionNone}
	}
	original := sampled
	return Result{
		Final:      limit,
		Applied:    true,
		Resolution: ResolutionForPhase(phase),
		Original:   &original,
	}
}
