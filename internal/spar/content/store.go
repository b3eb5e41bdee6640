package content

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	apperrors "github.com/louisbranch/spar/internal/platform/errors"
)

// maxSuggestions bounds how many ids Suggest returns.
const maxSuggestions = 3

// Store indexes loaded packs for lookup. A Store is read-only after
// construction and safe for concurrent readers.
type Store struct {
	packs   []Pack
	entries []Entry
	byID    map[string]Entry
}

// NewStore indexes packs in order. When an id appears in more than one
// pack, Lookup resolves to the last one loaded.
func NewStore(packs ...Pack) *Store {
	s := &Store{byID: make(map[string]Entry)}
	for _, p := range packs {
		s.packs = append(s.packs, p)
		for _, e := range p.Entries {
			s.entries = append(s.entries, e)
			s.byID[e.ID] = e
		}
	}
	return s
}

// OpenStore loads paths in order into a new Store.
func OpenStore(paths []string) (*Store, error) {
	packs, err := LoadPacks(paths)
	if err != nil {
		return nil, err
	}
	return NewStore(packs...), nil
}

// Packs returns pack metadata in load order.
func (s *Store) Packs() []Metadata {
	out := make([]Metadata, 0, len(s.packs))
	for _, p := range s.packs {
		out = append(out, p.Metadata)
	}
	return out
}

// Entries returns every entry from the enabled packs, in load order.
// No names means every pack is enabled.
func (s *Store) Entries(enabledPacks ...string) []Entry {
	if len(enabledPacks) == 0 {
		return slices.Clone(s.entries)
	}
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if slices.Contains(enabledPacks, e.Pack) {
			out = append(out, e)
		}
	}
	return out
}

// EntriesOfType returns entries from packs of the given generator type.
func (s *Store) EntriesOfType(generatorType GeneratorType, enabledPacks ...string) []Entry {
	all := s.Entries(enabledPacks...)
	out := all[:0]
	for _, e := range all {
		if e.GeneratorType == generatorType {
			out = append(out, e)
		}
	}
	return out
}

// Duplicates reports ids present in more than one loaded pack.
func (s *Store) Duplicates() map[string][]string {
	return Duplicates(s.entries)
}

// Lookup returns the entry for id. Unknown ids fail with UNKNOWN_EVENT_ID
// and carry the closest known ids as suggestions.
func (s *Store) Lookup(id string) (Entry, error) {
	if e, ok := s.byID[id]; ok {
		return e, nil
	}
	meta := map[string]string{"event_id": id}
	suggestions := s.Suggest(id)
	if len(suggestions) > 0 {
		meta["suggestions"] = strings.Join(suggestions, ",")
	}
	return Entry{}, apperrors.WithMetadata(apperrors.CodeUnknownEventID,
		fmt.Sprintf("unknown event_id %q", id), meta)
}

// Suggest returns up to three known ids close to id by edit distance,
// nearest first.
func (s *Store) Suggest(id string) []string {
	type candidate struct {
		id   string
		dist int
	}
	needle := strings.ToLower(id)
	limit := suggestionLimit(len(needle))

	var cands []candidate
	for known := range s.byID {
		k := strings.ToLower(known)
		dist := levenshtein.ComputeDistance(needle, k)
		if strings.Contains(k, needle) && needle != "" {
			dist = min(dist, 1)
		}
		if dist > limit {
			continue
		}
		cands = append(cands, candidate{id: known, dist: dist})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist == cands[j].dist {
			return cands[i].id < cands[j].id
		}
		return cands[i].dist < cands[j].dist
	})

	out := make([]string, 0, min(len(cands), maxSuggestions))
	for _, c := range cands {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, c.id)
	}
	return out
}

func suggestionLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	case length <= 16:
		return 3
	default:
		return length / 4
	}
}
