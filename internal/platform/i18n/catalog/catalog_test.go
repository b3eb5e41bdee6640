package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	if !bundle.HasLocale(BaseLocale) {
		t.Fatalf("expected base locale %s", BaseLocale)
	}
	if !bundle.HasLocale("pt-BR") {
		t.Fatalf("expected locale pt-BR")
	}
	if v, ok := bundle.Message("en-US", "narrative.event.omen.prefix"); !ok || v != "Omen: " {
		t.Fatalf("omen prefix = %q, %v", v, ok)
	}
}

// TestEmbeddedLocalesShareKeys ensures every translation covers the base keys.
func TestEmbeddedLocalesShareKeys(t *testing.T) {
	bundle := Default()
	base := bundle.locales[BaseLocale]
	for _, locale := range bundle.Locales() {
		for key := range base {
			if _, ok := bundle.locales[locale][key]; !ok {
				t.Fatalf("locale %s missing key %s", locale, key)
			}
		}
	}
}

func TestMessageFallsBackToBase(t *testing.T) {
	v, ok := Default().Message("fr-FR", "narrative.loot.omen.prefix")
	if !ok || v != "Omen of Wealth: " {
		t.Fatalf("fallback = %q, %v", v, ok)
	}
}

func TestMatch(t *testing.T) {
	bundle := Default()
	tests := map[string]string{
		"":      "en-US",
		"pt-BR": "pt-BR",
		"pt":    "pt-BR",
		"fr-FR": "en-US",
		"!!":    "en-US",
	}
	for in, want := range tests {
		if got := bundle.Match(in).String(); got != want {
			t.Fatalf("Match(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPrinterTranslates(t *testing.T) {
	p := Default().Printer("pt-BR")
	if got := p.Sprintf("narrative.event.downshift.prefix"); got != "Por Pouco: " {
		t.Fatalf("pt-BR prefix = %q", got)
	}
}

func TestLoadFromFSRejectsKeyOutsideNamespace(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/narrative.yaml"), `locale: "en-US"
namespace: "narrative"
messages:
  "other.key": "nope"
`)

	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadFromFSRejectsMissingBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/pt-BR/narrative.yaml"), `locale: "pt-BR"
namespace: "narrative"
messages:
  "narrative.a": "a"
`)

	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestLoadFromFSRejectsLocaleMismatch(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/narrative.yaml"), `locale: "pt-BR"
namespace: "narrative"
messages:
  "narrative.a": "a"
`)

	if _, err := LoadFromFS(os.DirFS(tempDir)); err == nil {
		t.Fatal("expected locale mismatch error")
	}
}

func TestParseCatalogFileErrors(t *testing.T) {
	for _, input := range []string{
		`namespace: "x"` + "\nmessages:\n  \"x.a\": \"a\"\n",
		`locale: "en-US"` + "\nmessages:\n  \"x.a\": \"a\"\n",
		`locale: "en-US"` + "\nnamespace: \"x\"\nmessages:\n",
		`locale: "en-US"` + "\n\"x.a\": \"a\"\n",
		`locale: "en-US"` + "\nnamespace: \"x\"\nmessages:\n  \"x.a\" \"a\"\n",
	} {
		if _, err := parseCatalogFile([]byte(input)); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
