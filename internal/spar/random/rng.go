// Package random provides the seeded, auditable random source used by
// complication generation.
//
// # Determinism
//
// A TraceRNG built from a seed produces the same values for the same call
// sequence, and records every draw in its trace. Two generators with equal
// seeds that receive equal calls produce identical traces.
//
// # Ownership
//
// A TraceRNG is owned by a single caller. It is not safe for concurrent use.
package random

import (
	"fmt"
	"math/rand"
	"strconv"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
)

// Trace notes.
const (
	NoteDegenerateWeights = "degenerate_weights_uniform"
	NoteFellThroughLast   = "fell_through_last"
)

// Trace operations.
const (
	OpInt            = "randint"
	OpFloat          = "random"
	OpChoice         = "choice"
	OpWeightedChoice = "weighted_choice"
)

// TraceRecord is one recorded draw or note.
type TraceRecord struct {
	Label string `json:"label"`
	Op    string `json:"op"`
	Value any    `json:"value,omitempty"`
	Range string `json:"range,omitempty"`
	Index *int   `json:"index,omitempty"`
	Len   int    `json:"len,omitempty"`
	Total string `json:"total,omitempty"`
	Note  string `json:"note,omitempty"`
}

// TraceRNG is a seeded random source that records its draws.
type TraceRNG struct {
	seed     int64
	rng      *rand.Rand
	trace    []TraceRecord
	position int
}

// New returns a TraceRNG seeded with seed.
func New(seed int64) *TraceRNG {
	return &TraceRNG{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Seed returns the seed the generator was built with.
func (r *TraceRNG) Seed() int64 {
	return r.seed
}

// Position returns the number of underlying draws made so far.
func (r *TraceRNG) Position() int {
	return r.position
}

// Trace returns a copy of the recorded trace.
func (r *TraceRNG) Trace() []TraceRecord {
	out := make([]TraceRecord, len(r.trace))
	copy(out, r.trace)
	return out
}

// ResetTrace clears the trace without touching the generator state.
func (r *TraceRNG) ResetTrace() {
	r.trace = nil
}

// Int returns a uniform integer in [a, b].
func (r *TraceRNG) Int(a, b int, label string) (int, error) {
	if a > b {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidRandomInput, "integer range is empty", map[string]string{
			"label": label,
			"range": fmt.Sprintf("%d-%d", a, b),
		})
	}
	value := a + r.rng.Intn(b-a+1)
	r.position++
	r.trace = append(r.trace, TraceRecord{
		Label: label,
		Op:    OpInt,
		Value: value,
		Range: fmt.Sprintf("%d-%d", a, b),
	})
	return value, nil
}

// Float returns a uniform value in [0, 1).
func (r *TraceRNG) Float(label string) float64 {
	value := r.rng.Float64()
	r.position++
	r.trace = append(r.trace, TraceRecord{
		Label: label,
		Op:    OpFloat,
		Value: strconv.FormatFloat(value, 'f', 10, 64),
	})
	return value
}

// Choice returns a uniform index in [0, n).
func (r *TraceRNG) Choice(n int, label string) (int, error) {
	if n <= 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidRandomInput, "choice from empty sequence", map[string]string{
			"label": label,
		})
	}
	index := r.rng.Intn(n)
	r.position++
	r.trace = append(r.trace, TraceRecord{
		Label: label,
		Op:    OpChoice,
		Index: &index,
		Len:   n,
	})
	return index, nil
}

// WeightedChoice returns an index with probability proportional to its
// weight. Negative weights count as zero. When no weight is positive the
// choice falls back to uniform and the trace notes it.
func (r *TraceRNG) WeightedChoice(weights []float64, label string) (int, error) {
	if len(weights) == 0 {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidRandomInput, "weighted choice from empty sequence", map[string]string{
			"label": label,
		})
	}

	total := 0.0
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 {
		r.trace = append(r.trace, TraceRecord{
			Label: label,
			Op:    OpWeightedChoice,
			Note:  NoteDegenerateWeights,
		})
		return r.Choice(len(weights), label+":uniform")
	}

	target := r.rng.Float64() * total
	r.position++
	running := 0.0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		running += w
		if running >= target {
			r.recordWeighted(label, i, total, "")
			return i, nil
		}
	}

	last := len(weights) - 1
	r.recordWeighted(label, last, total, NoteFellThroughLast)
	return last, nil
}

func (r *TraceRNG) recordWeighted(label string, index int, total float64, note string) {
	r.trace = append(r.trace, TraceRecord{
		Label: label,
		Op:    OpWeightedChoice,
		Index: &index,
		Total: strconv.FormatFloat(total, 'f', 6, 64),
		Note:  note,
	})
}

// Pick returns one of items chosen by weight.
func Pick[T any](r *TraceRNG, items []T, weights []float64, label string) (T, error) {
	var zero T
	if len(items) != len(weights) {
		return zero, apperrors.WithMetadata(apperrors.CodeInvalidRandomInput, "items and weights differ in length", map[string]string{
			"label":   label,
			"items":   strconv.Itoa(len(items)),
			"weights": strconv.Itoa(len(weights)),
		})
	}
	index, err := r.WeightedChoice(weights, label)
	if err != nil {
		return zero, err
	}
	return items[index], nil
}
