package spar

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/louisbranch/spar/internal/spar/engine"
	"github.com/louisbranch/spar/internal/spar/scene"
	"github.com/louisbranch/spar/internal/spar/state"
)

type writer interface {
	header(seed int64, sc scene.Context) error
	event(n int, e engine.Event) error
	footer(s state.State) error
}

func newWriter(format string, out io.Writer, trace bool) writer {
	if format == FormatJSONL {
		return &jsonlWriter{enc: json.NewEncoder(out), trace: trace}
	}
	return &prettyWriter{out: out, trace: trace}
}

// jsonlWriter writes one JSON object per line: a header, every event and
// the final state.
type jsonlWriter struct {
	enc   *json.Encoder
	trace bool
}

func (w *jsonlWriter) header(seed int64, sc scene.Context) error {
	return w.enc.Encode(map[string]any{"type": "run", "seed": seed, "scene": sc})
}

func (w *jsonlWriter) event(n int, e engine.Event) error {
	if !w.trace {
		e.RNGTrace = nil
	}
	return w.enc.Encode(struct {
		Type     string `json:"type"`
		Sequence int    `json:"sequence"`
		engine.Event
	}{Type: "event", Sequence: n, Event: e})
}

func (w *jsonlWriter) footer(s state.State) error {
	return w.enc.Encode(map[string]any{"type": "state", "state": s})
}

type prettyWriter struct {
	out   io.Writer
	trace bool
	err   error
}

func (w *prettyWriter) printf(format string, args ...any) {
	if w.err == nil {
		_, w.err = fmt.Fprintf(w.out, format, args...)
	}
}

func (w *prettyWriter) header(seed int64, sc scene.Context) error {
	w.printf("seed %d | %s %s | env %s | party %s\n", seed, sc.SceneID, sc.Phase,
		joinOr(sc.Environment, "-"), sc.Band())
	return w.err
}

func (w *prettyWriter) event(n int, e engine.Event) error {
	w.printf("\n#%d %s (%s) severity %d/%d", n, e.Title, e.EventID, e.Severity, e.Cap)
	if e.CutoffApplied && e.OriginalSeverity != nil {
		w.printf(" [cutoff %s from %d]", e.CutoffResolution, *e.OriginalSeverity)
	}
	w.printf("\n  %s\n", e.Fiction.Prompt)
	for _, s := range e.Fiction.Sensory {
		w.printf("  ~ %s\n", s)
	}
	for _, c := range e.Fiction.ImmediateChoice {
		w.printf("  > %s\n", c)
	}
	w.printf("  tags: %s\n", joinOr(e.Tags, "-"))
	w.printf("  effects:")
	for _, dim := range engine.EffectDimensions {
		if v := e.EffectVector.Get(dim); v != 0 {
			w.printf(" %s=%+d", dim, v)
		}
	}
	w.printf("\n")
	for _, f := range e.Followups {
		w.printf("  followup: %s in %s\n", f.Tag, f.In)
	}
	if w.trace {
		for _, r := range e.RNGTrace {
			w.printf("    rng %s %s %v\n", r.Label, r.Op, r.Value)
		}
	}
	return w.err
}

func (w *prettyWriter) footer(s state.State) error {
	w.printf("\nclocks:")
	for _, name := range []string{state.ClockTension, state.ClockHeat} {
		w.printf(" %s=%d", name, s.Clocks[name])
	}
	w.printf("\nrecent: %s\n", joinOr(s.RecentEventIDs, "-"))
	return w.err
}

func joinOr(values []string, empty string) string {
	if len(values) == 0 {
		return empty
	}
	return strings.Join(values, ", ")
}
