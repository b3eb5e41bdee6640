// Package selection picks one content entry for a sampled severity,
// damping entries that were seen recently.
package selection

import (
	"strconv"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/random"
)

// BandPool returns the candidates whose severity band contains severity.
// When none do, every candidate is returned.
func BandPool(candidates []content.Entry, severity int) []content.Entry {
	pool := make([]content.Entry, 0, len(candidates))
	for _, e := range candidates {
		if e.SeverityBand.Contains(severity) {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		return candidates
	}
	return pool
}

// RecencyPenalty returns the weight divisor for an entry at recency index
// i (0 is the most recent). Ids not in the recency list have index -1 and
// no penalty.
func RecencyPenalty(i int) float64 {
	switch {
	case i < 0:
		return 1
	case i == 0:
		return 10
	case i == 1:
		return 6
	case i == 2:
		return 4
	case i <= 4:
		return 3
	case i <= 6:
		return 2
	default:
		return 1.5
	}
}

// AdaptiveWeights returns each entry's weight divided by its recency
// penalty. recent is ordered newest first.
func AdaptiveWeights(pool []content.Entry, recent []string) []float64 {
	index := make(map[string]int, len(recent))
	for i, id := range recent {
		if _, ok := index[id]; !ok {
			index[id] = i
		}
	}
	weights := make([]float64, len(pool))
	for i, e := range pool {
		pos, ok := index[e.ID]
		if !ok {
			pos = -1
		}
		weights[i] = e.Weight / RecencyPenalty(pos)
	}
	return weights
}

// Select picks one candidate for severity. The pool is narrowed by
// severity band, weighted by recency, and drawn with one weighted choice
// recorded under label.
func Select(rng *random.TraceRNG, candidates []content.Entry, severity int, recent []string, label string) (content.Entry, error) {
	if len(candidates) == 0 {
		return content.Entry{}, apperrors.WithMetadata(apperrors.CodeContentExhausted,
			"no content entries available after filtering", map[string]string{
				"candidates": "0",
				"severity":   strconv.Itoa(severity),
			})
	}
	pool := BandPool(candidates, severity)
	return random.Pick(rng, pool, AdaptiveWeights(pool, recent), label)
}
