// Package narrative reframes cut-off complications and names the hooks they
// leave for later scenes.
package narrative

import (
	"slices"

	"golang.org/x/text/message"

	"github.com/louisbranch/spar/internal/platform/i18n/catalog"
	"github.com/louisbranch/spar/internal/spar/content"
	"github.com/louisbranch/spar/internal/spar/cutoff"
)

// Followup is a hook a later scene should pick up.
type Followup struct {
	Tag string `json:"tag"`
	In  string `json:"in"`
}

// Narrator renders overlays in one locale.
type Narrator struct {
	printer *message.Printer
}

// NewNarrator returns a narrator for the supported locale closest to
// locale. Empty selects the base locale.
func NewNarrator(locale string) *Narrator {
	return &Narrator{printer: catalog.Default().Printer(locale)}
}

func (n *Narrator) text(key string) string {
	return n.printer.Sprintf(key)
}

// Overlay reframes fiction for a cutoff resolution. The prompt gains the
// resolution's framing prefix, and entries without their own prompt or
// choices get the framing's defaults. ResolutionNone returns the fiction
// unchanged.
func (n *Narrator) Overlay(f content.Fiction, res cutoff.Resolution, generator content.GeneratorType) content.Fiction {
	if res == cutoff.ResolutionNone || res == "" {
		return f
	}
	switch res {
	case cutoff.ResolutionOmen, cutoff.ResolutionClockTick, cutoff.ResolutionDownshift:
	default:
		return f
	}

	base := "narrative." + profileKey(generator) + "." + string(res)
	prompt := f.Prompt
	if prompt == "" {
		prompt = n.text(base + ".prompt")
	}
	choices := slices.Clone(f.ImmediateChoice)
	if len(choices) == 0 {
		choices = []string{n.text(base + ".choice1"), n.text(base + ".choice2")}
	}
	return content.Fiction{
		Prompt:          n.text(base+".prefix") + prompt,
		Sensory:         slices.Clone(f.Sensory),
		ImmediateChoice: choices,
	}
}

// Followups returns the hooks a cutoff leaves behind. Downshifts and
// uncut events leave none.
func Followups(res cutoff.Resolution, applied bool, generator content.GeneratorType) []Followup {
	if !applied {
		return []Followup{}
	}
	loot := generator == content.GeneratorLoot
	switch res {
	case cutoff.ResolutionOmen:
		if loot {
			return []Followup{{Tag: "wealth_omen", In: "aftermath"}}
		}
		return []Followup{{Tag: "omen_followup", In: "aftermath"}}
	case cutoff.ResolutionClockTick:
		if loot {
			return []Followup{{Tag: "contested_resource", In: "immediate"}}
		}
		return []Followup{{Tag: "pressure_aftershock", In: "1-2 turns"}}
	default:
		return []Followup{}
	}
}

func profileKey(generator content.GeneratorType) string {
	if generator == content.GeneratorLoot {
		return "loot"
	}
	return "event"
}
