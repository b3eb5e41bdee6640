package severity

import (
	"math"
	"testing"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
	"github.com/louisbranch/spar/internal/spar/random"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

var (
	confined = scene.Constraints{Confinement: 0.8, Connectivity: 0.2, Visibility: 0.7}
	derelict = scene.Constraints{Confinement: 0.7, Connectivity: 0.3, Visibility: 0.6}
	open     = scene.Constraints{Confinement: 0.3, Connectivity: 0.6, Visibility: 0.4}
)

func cutoffRate(t *testing.T, mode scene.RarityMode, c scene.Constraints) float64 {
	t.Helper()
	limit := ComputeSeverityCap(scene.PartyMid, scene.PhaseEngage, c, state.Default(), mode)
	mass, err := TailMass(ComputeAlpha(mode, c), Min, Max, limit)
	if err != nil {
		t.Fatalf("TailMass: %v", err)
	}
	return mass
}

// TestCutoffRateTargets ensures the default tuning lands in the intended
// cutoff bands for an engaged mid-band party.
func TestCutoffRateTargets(t *testing.T) {
	tests := []struct {
		name     string
		mode     scene.RarityMode
		c        scene.Constraints
		min, max float64
	}{
		{"spiky confined", scene.RaritySpiky, confined, 0.05, 0.10},
		{"spiky derelict", scene.RaritySpiky, derelict, 0.05, 0.10},
		{"spiky open", scene.RaritySpiky, open, 0.02, 0.05},
		{"normal confined", scene.RarityNormal, confined, 0, 0.03},
		{"normal open", scene.RarityNormal, open, 0, 0.03},
		{"calm confined", scene.RarityCalm, confined, 0, 0.01},
		{"calm open", scene.RarityCalm, open, 0, 0.01},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rate := cutoffRate(t, tc.mode, tc.c)
			if rate < tc.min || rate > tc.max {
				t.Fatalf("cutoff rate = %.4f, want [%.2f, %.2f]", rate, tc.min, tc.max)
			}
		})
	}
}

func TestCutoffRateOrdersByRarity(t *testing.T) {
	calm := cutoffRate(t, scene.RarityCalm, confined)
	normal := cutoffRate(t, scene.RarityNormal, confined)
	spiky := cutoffRate(t, scene.RaritySpiky, confined)
	if !(calm < normal && normal < spiky) {
		t.Fatalf("rates calm=%.4f normal=%.4f spiky=%.4f", calm, normal, spiky)
	}
}

func TestMeanOrdersByRarity(t *testing.T) {
	var means []float64
	for _, mode := range []scene.RarityMode{scene.RarityCalm, scene.RarityNormal, scene.RaritySpiky} {
		m, err := Mean(ComputeAlpha(mode, open), Min, Max)
		if err != nil {
			t.Fatalf("Mean: %v", err)
		}
		means = append(means, m)
	}
	if !(means[0] < means[1] && means[1] < means[2]) {
		t.Fatalf("means = %v", means)
	}
}

func TestComputeAlpha(t *testing.T) {
	got := ComputeAlpha(scene.RarityNormal, confined)
	want := 1.6 + 0.3*0.2 - 0.25*0.8 - 0.25*0.7
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("alpha = %v, want %v", got, want)
	}
	tuning := DefaultTuning()
	tuning.MinAlpha = 0.9
	tight := scene.Constraints{Confinement: 1, Visibility: 1}
	if got := tuning.Alpha(scene.RaritySpiky, tight); got != 0.9 {
		t.Fatalf("alpha floor = %v, want 0.9", got)
	}
	if ComputeAlpha(scene.RaritySpiky, open) >= ComputeAlpha(scene.RarityCalm, open) {
		t.Fatal("spiky should be heavier-tailed than calm")
	}
}

func TestComputeSeverityCap(t *testing.T) {
	tense := state.Default()
	tense.Clocks[state.ClockTension] = 8

	tests := []struct {
		name  string
		band  scene.PartyBand
		phase scene.Phase
		c     scene.Constraints
		s     state.State
		mode  scene.RarityMode
		want  int
	}{
		{"mid engage open normal", scene.PartyMid, scene.PhaseEngage, open, state.Default(), scene.RarityNormal, 10},
		{"mid engage confined normal", scene.PartyMid, scene.PhaseEngage, confined, state.Default(), scene.RarityNormal, 9},
		{"mid engage confined spiky", scene.PartyMid, scene.PhaseEngage, confined, state.Default(), scene.RaritySpiky, 8},
		{"low approach", scene.PartyLow, scene.PhaseApproach, open, state.Default(), scene.RarityNormal, 7},
		{"unknown aftermath", scene.PartyUnknown, scene.PhaseAftermath, open, state.Default(), scene.RarityNormal, 7},
		{"tension lowers cap", scene.PartyMid, scene.PhaseEngage, open, tense, scene.RarityNormal, 8},
		{"calm clamps at max", scene.PartyHigh, scene.PhaseEngage, open, state.Default(), scene.RarityCalm, 10},
		{"floor", scene.PartyLow, scene.PhaseAftermath, confined, func() state.State {
			s := state.Default()
			s.Clocks[state.ClockTension] = 12
			return s
		}(), scene.RaritySpiky, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ComputeSeverityCap(tc.band, tc.phase, tc.c, tc.s, tc.mode); got != tc.want {
				t.Fatalf("cap = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestDistribution(t *testing.T) {
	p, err := Distribution(1.5, 1, 10)
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	sum := 0.0
	for i, v := range p {
		sum += v
		if i > 0 && v >= p[i-1] {
			t.Fatalf("distribution not decreasing at %d: %v", i, p)
		}
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("sum = %v", sum)
	}

	single, err := Distribution(1.5, 4, 4)
	if err != nil || len(single) != 1 || single[0] != 1 {
		t.Fatalf("single-point distribution = %v, %v", single, err)
	}
}

func TestDistributionRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		alpha  float64
		lo, hi int
	}{
		{1, 0, 10},
		{1, 1, 11},
		{1, 6, 5},
		{math.NaN(), 1, 10},
		{math.Inf(1), 1, 10},
	}
	for _, c := range cases {
		if _, err := Distribution(c.alpha, c.lo, c.hi); !apperrors.HasCode(err, apperrors.CodeInvalidRandomInput) {
			t.Fatalf("Distribution(%v, %d, %d) err = %v", c.alpha, c.lo, c.hi, err)
		}
	}
}

func TestSampleSeverity(t *testing.T) {
	rng := random.New(42)
	for i := 0; i < 1000; i++ {
		sev, err := SampleSeverity(rng, 1.2, 3, 8)
		if err != nil {
			t.Fatalf("SampleSeverity: %v", err)
		}
		if sev < 3 || sev > 8 {
			t.Fatalf("severity %d out of range", sev)
		}
	}
	if rng.Position() != 1000 {
		t.Fatalf("expected one draw per sample, got %d", rng.Position())
	}

	a, b := random.New(7), random.New(7)
	for i := 0; i < 20; i++ {
		x, _ := SampleSeverity(a, 1.0, 1, 10)
		y, _ := SampleSeverity(b, 1.0, 1, 10)
		if x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}
