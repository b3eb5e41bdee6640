package selection

import (
	"slices"
	"testing"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/random"
)

func entry(id string, lo, hi int, weight float64) content.Entry {
	return content.Entry{ID: id, SeverityBand: content.SeverityBand{Lo: lo, Hi: hi}, Weight: weight}
}

func poolIDs(entries []content.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestBandPool(t *testing.T) {
	candidates := []content.Entry{entry("low", 1, 5, 1), entry("mid", 3, 8, 1), entry("high", 6, 10, 1)}

	if got := poolIDs(BandPool(candidates, 4)); !slices.Equal(got, []string{"low", "mid"}) {
		t.Fatalf("BandPool(4) = %v", got)
	}
	narrow := []content.Entry{entry("only", 8, 10, 1)}
	if got := poolIDs(BandPool(narrow, 2)); !slices.Equal(got, []string{"only"}) {
		t.Fatalf("fallback pool = %v", got)
	}
}

func TestRecencyPenalty(t *testing.T) {
	want := map[int]float64{-1: 1, 0: 10, 1: 6, 2: 4, 3: 3, 4: 3, 5: 2, 6: 2, 7: 1.5, 11: 1.5}
	for i, p := range want {
		if got := RecencyPenalty(i); got != p {
			t.Fatalf("RecencyPenalty(%d) = %v, want %v", i, got, p)
		}
	}
}

func TestAdaptiveWeights(t *testing.T) {
	pool := []content.Entry{entry("a", 1, 10, 2), entry("b", 1, 10, 3), entry("c", 1, 10, 1)}
	got := AdaptiveWeights(pool, []string{"b", "a"})
	want := []float64{2.0 / 6, 3.0 / 10, 1}
	if !slices.Equal(got, want) {
		t.Fatalf("AdaptiveWeights = %v, want %v", got, want)
	}
}

func TestSelectEmptyCandidates(t *testing.T) {
	_, err := Select(random.New(1), nil, 5, nil, "content_entry")
	if !apperrors.HasCode(err, apperrors.CodeContentExhausted) {
		t.Fatalf("err = %v, want content exhausted", err)
	}
}

// TestSelectDampensRecent ensures the most recent entry is picked far less
// often than a fresh one of equal weight.
func TestSelectDampensRecent(t *testing.T) {
	pool := []content.Entry{entry("recent", 1, 10, 1), entry("fresh", 1, 10, 1)}
	rng := random.New(11)
	counts := map[string]int{}
	for i := 0; i < 2000; i++ {
		e, err := Select(rng, pool, 5, []string{"recent"}, "content_entry")
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		counts[e.ID]++
	}
	// Expected share of "recent" is 0.1/1.1, about 9%.
	if counts["recent"] > 400 || counts["fresh"] < 1600 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestSelectRecordsTrace(t *testing.T) {
	rng := random.New(3)
	if _, err := Select(rng, []content.Entry{entry("a", 1, 10, 1)}, 5, nil, "content_entry"); err != nil {
		t.Fatalf("Select: %v", err)
	}
	trace := rng.Trace()
	if len(trace) != 1 || trace[0].Label != "content_entry" || trace[0].Op != random.OpWeightedChoice {
		t.Fatalf("trace = %+v", trace)
	}
}
