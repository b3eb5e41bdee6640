package engine

import (
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/state"
)

// DefaultMinTicksBetween is the tick floor applied between batch events.
const DefaultMinTicksBetween = 1

// BatchOptions controls a multi-event run.
type BatchOptions struct {
	Count        int
	TicksBetween int
	// MinTicksBetween floors TicksBetween; zero means DefaultMinTicksBetween.
	// A negative value disables the floor.
	MinTicksBetween int
	Limits          *state.Limits
}

// Ticks returns the ticks applied between consecutive events.
func (o BatchOptions) Ticks() int {
	floor := o.MinTicksBetween
	if floor == 0 {
		floor = DefaultMinTicksBetween
	}
	return max(floor, o.TicksBetween, 0)
}

// BatchResult is the outcome of a run: every event in order and the state
// after the last one.
type BatchResult struct {
	Events []Event
	State  state.State
}

// Batch generates Count events on one RNG, applying each event's delta and
// ticking the state between events. Each event's trace holds only its own
// draws. A generation error stops the run and returns the events so far.
func Batch(in Input, rng *random.TraceRNG, opts BatchOptions) (BatchResult, error) {
	limits := state.DefaultLimits()
	if opts.Limits != nil {
		limits = *opts.Limits
	}
	ticks := opts.Ticks()
	current := in.State.Clone()
	events := make([]Event, 0, max(opts.Count, 0))

	for i := 0; i < opts.Count; i++ {
		if i > 0 {
			current = state.Tick(current, ticks)
		}
		rng.ResetTrace()
		call := in
		call.State = current
		event, err := Generate(call, rng)
		if err != nil {
			return BatchResult{Events: events, State: current}, err
		}
		current = state.ApplyDelta(current, event.StateDelta, limits)
		events = append(events, event)
	}
	return BatchResult{Events: events, State: current}, nil
}
