package scenario

import (
	"fmt"
	"io"
	"sort"

	"github.com/louisbranch/spar/internal/spar/engine"
)

// AssertionMode controls how failed expectations are handled.
type AssertionMode int

const (
	// AssertionStrict fails the scenario on the first unmet expectation.
	AssertionStrict AssertionMode = iota
	// AssertionLogOnly logs unmet expectations and keeps going.
	AssertionLogOnly
)

// Assertions reports unmet expectations according to Mode.
type Assertions struct {
	Mode   AssertionMode
	Logger interface{ Printf(string, ...any) }
}

// Failf returns an error in strict mode and logs otherwise.
func (a Assertions) Failf(format string, args ...any) error {
	if a.Mode == AssertionStrict {
		return fmt.Errorf(format, args...)
	}
	if a.Logger != nil {
		a.Logger.Printf("expectation failed: "+format, args...)
	}
	return nil
}

// Frequency is how often one event id came up.
type Frequency struct {
	EventID string  `json:"event_id"`
	Count   int     `json:"count"`
	Share   float64 `json:"share"`
}

// Report summarizes the events a scenario generated.
type Report struct {
	Name        string      `json:"name"`
	Seed        int64       `json:"seed"`
	Events      int         `json:"events"`
	Cutoffs     int         `json:"cutoffs"`
	MaxSeverity int         `json:"max_severity"`
	Severities  [11]int     `json:"severities"`
	Frequencies []Frequency `json:"frequencies"`
}

func buildReport(name string, seed int64, events []engine.Event) Report {
	report := Report{Name: name, Seed: seed, Events: len(events)}
	counts := map[string]int{}
	for _, e := range events {
		counts[e.EventID]++
		if e.CutoffApplied {
			report.Cutoffs++
		}
		if e.Severity >= 0 && e.Severity < len(report.Severities) {
			report.Severities[e.Severity]++
		}
		report.MaxSeverity = max(report.MaxSeverity, e.Severity)
	}
	for id, count := range counts {
		report.Frequencies = append(report.Frequencies, Frequency{
			EventID: id,
			Count:   count,
			Share:   float64(count) / float64(len(events)),
		})
	}
	sort.Slice(report.Frequencies, func(i, j int) bool {
		a, b := report.Frequencies[i], report.Frequencies[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.EventID < b.EventID
	})
	return report
}

// Top returns the most frequent event, or the zero Frequency.
func (r Report) Top() Frequency {
	if len(r.Frequencies) == 0 {
		return Frequency{}
	}
	return r.Frequencies[0]
}

// WriteText writes the report as an aligned table.
func (r Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "scenario %s: %d events, seed %d, %d cutoffs, max severity %d\n",
		r.Name, r.Events, r.Seed, r.Cutoffs, r.MaxSeverity); err != nil {
		return err
	}
	for _, f := range r.Frequencies {
		if _, err := fmt.Fprintf(w, "  %-28s %5d  %5.1f%%\n", f.EventID, f.Count, f.Share*100); err != nil {
			return err
		}
	}
	return nil
}
