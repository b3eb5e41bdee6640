// Package packs embeds the content packs shipped with the engine.
package packs

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/louisbranch/spar/internal/spar/content"
)

// FS contains the shipped pack files.
//
//go:embed *.json
var FS embed.FS

// Names returns the shipped pack names in sorted order.
func Names() []string {
	files, _ := fs.Glob(FS, "*.json")
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, strings.TrimSuffix(f, path.Ext(f)))
	}
	sort.Strings(names)
	return names
}

// Load returns one shipped pack by name.
func Load(name string) (content.Pack, error) {
	data, err := FS.ReadFile(name + ".json")
	if err != nil {
		return content.Pack{}, fmt.Errorf("shipped pack %q: %w", name, err)
	}
	return content.Load(bytes.NewReader(data), name)
}

// LoadAll returns every shipped pack in name order.
func LoadAll() ([]content.Pack, error) {
	names := Names()
	out := make([]content.Pack, 0, len(names))
	for _, name := range names {
		p, err := Load(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Store returns a store over every shipped pack.
func Store() (*content.Store, error) {
	all, err := LoadAll()
	if err != nil {
		return nil, err
	}
	return content.NewStore(all...), nil
}

// StoreWith returns a store over the shipped packs followed by the pack
// files at paths, in order. Blank paths are skipped.
func StoreWith(paths ...string) (*content.Store, error) {
	shipped, err := LoadAll()
	if err != nil {
		return nil, err
	}
	var extra []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			extra = append(extra, p)
		}
	}
	loaded, err := content.LoadPacks(extra)
	if err != nil {
		return nil, fmt.Errorf("load packs: %w", err)
	}
	return content.NewStore(append(shipped, loaded...)...), nil
}
