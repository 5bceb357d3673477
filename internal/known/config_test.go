package known

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const sampleConfig = `
keywords:
  known_movements:
    new_religious_movements:
      - canonical: hnuti-hare-krsna
        display: Hnutí Hare Kršna
      - canonical: deti-bozi
        display: Děti Boží
      - canonical: "Not A Slug"
        display: Broken
      - canonical: ""
        display: Missing canonical
  movement_aliases:
    hnuti-hare-krsna:
      - ISKCON
      - Hare Krišna
      - ISKCON
    deti-bozi: []
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movements_config.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatalf("write sample config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeSample(t))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Len() != 2 {
		t.Fatalf("expected 2 valid movements, got %d", cfg.Len())
	}
	if cfg.Dropped != 2 {
		t.Fatalf("expected 2 dropped entries, got %d", cfg.Dropped)
	}

	display, ok := cfg.DisplayFor("hnuti-hare-krsna")
	if !ok || display != "Hnutí Hare Kršna" {
		t.Fatalf("unexpected display for slug: %q ok=%t", display, ok)
	}

	slug, ok := cfg.SlugForDisplay("děti boží")
	if !ok || slug != "deti-bozi" {
		t.Fatalf("unexpected slug for display: %q ok=%t", slug, ok)
	}

	aliases := cfg.AliasesFor("hnuti-hare-krsna")
	if len(aliases) != 2 || aliases[0] != "ISKCON" {
		t.Fatalf("unexpected aliases (duplicates should collapse): %v", aliases)
	}
	if got := cfg.AliasesFor("deti-bozi"); len(got) != 0 {
		t.Fatalf("expected no aliases for empty list, got %v", got)
	}
}

func TestLoadOrEmpty_MissingFile(t *testing.T) {
	t.Parallel()

	cfg := LoadOrEmpty(filepath.Join(t.TempDir(), "missing.yaml"), zerolog.Nop())
	if cfg == nil {
		t.Fatalf("expected empty config, got nil")
	}
	if cfg.Len() != 0 {
		t.Fatalf("expected zero movements, got %d", cfg.Len())
	}
	if _, ok := cfg.DisplayFor("anything"); ok {
		t.Fatalf("empty config must not resolve slugs")
	}
}

func TestLoadOrEmpty_Malformed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte(":\n\t- not yaml"), 0o600); err != nil {
		t.Fatalf("write broken config: %v", err)
	}

	cfg := LoadOrEmpty(path, zerolog.Nop())
	if cfg.Len() != 0 {
		t.Fatalf("malformed config must degrade to empty, got %d movements", cfg.Len())
	}
}
