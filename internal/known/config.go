// Package known loads the versioned known-movement configuration: the
// (canonical slug, display name) ground truth plus per-slug alias lists that
// seed the catalog and widen matching recall.
package known

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"horse.fit/movements/internal/names"
)

// Movement is one configured (canonical, display) pair.
type Movement struct {
	Canonical string `yaml:"canonical"`
	Display   string `yaml:"display"`
}

// Config is the validated, read-only known-movement list.
type Config struct {
	Movements []Movement
	Aliases   map[string][]string

	// Dropped counts entries rejected during validation.
	Dropped int

	displayBySlug map[string]string
}

type rawDocument struct {
	Keywords struct {
		KnownMovements struct {
			NewReligiousMovements []Movement `yaml:"new_religious_movements"`
		} `yaml:"known_movements"`
		MovementAliases map[string][]string `yaml:"movement_aliases"`
	} `yaml:"keywords"`
}

// Load reads and validates the configuration document at path.
func Load(path string) (*Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read movements config %q: %w", path, err)
	}

	var doc rawDocument
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("parse movements config %q: %w", path, err)
	}

	return New(doc.Keywords.KnownMovements.NewReligiousMovements, doc.Keywords.MovementAliases), nil
}

// New validates movement and alias entries into a Config. Entries with blank
// fields, non-slug canonicals or duplicate slugs are dropped and counted.
func New(movements []Movement, aliases map[string][]string) *Config {
	cfg := &Config{
		Aliases:       map[string][]string{},
		displayBySlug: map[string]string{},
	}

	for _, entry := range movements {
		canonical := strings.TrimSpace(entry.Canonical)
		display := strings.TrimSpace(entry.Display)
		if canonical == "" || display == "" {
			cfg.Dropped++
			continue
		}
		if canonical != names.Slugify(canonical) {
			cfg.Dropped++
			continue
		}
		if _, exists := cfg.displayBySlug[canonical]; exists {
			cfg.Dropped++
			continue
		}
		cfg.Movements = append(cfg.Movements, Movement{Canonical: canonical, Display: display})
		cfg.displayBySlug[canonical] = display
	}

	for slug, list := range aliases {
		slug = strings.TrimSpace(slug)
		if slug == "" {
			cfg.Dropped++
			continue
		}
		cleaned := make([]string, 0, len(list))
		seen := map[string]struct{}{}
		for _, alias := range list {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			if _, dup := seen[alias]; dup {
				continue
			}
			seen[alias] = struct{}{}
			cleaned = append(cleaned, alias)
		}
		if len(cleaned) == 0 {
			continue
		}
		cfg.Aliases[slug] = cleaned
	}

	return cfg
}

// LoadOrEmpty degrades a missing or malformed configuration to an empty one.
// The failure is logged once; matching and migration then simply see no
// configured candidates.
func LoadOrEmpty(path string, logger zerolog.Logger) *Config {
	cfg, err := Load(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("movements config unavailable, continuing without it")
		return Empty()
	}
	if cfg.Dropped > 0 {
		logger.Warn().Int("dropped", cfg.Dropped).Str("path", path).Msg("movements config entries rejected during validation")
	}
	return cfg
}

// Empty returns a usable zero-candidate configuration.
func Empty() *Config {
	return &Config{
		Aliases:       map[string][]string{},
		displayBySlug: map[string]string{},
	}
}

// DisplayFor returns the configured display name for a canonical slug.
func (c *Config) DisplayFor(slug string) (string, bool) {
	if c == nil {
		return "", false
	}
	display, ok := c.displayBySlug[slug]
	return display, ok
}

// SlugForDisplay returns the slug whose display name equals value
// case-insensitively.
func (c *Config) SlugForDisplay(value string) (string, bool) {
	if c == nil {
		return "", false
	}
	needle := strings.ToLower(strings.TrimSpace(value))
	if needle == "" {
		return "", false
	}
	for _, entry := range c.Movements {
		if strings.ToLower(entry.Display) == needle {
			return entry.Canonical, true
		}
	}
	return "", false
}

// AliasesFor returns the configured alias strings for a slug.
func (c *Config) AliasesFor(slug string) []string {
	if c == nil {
		return nil
	}
	return c.Aliases[slug]
}

// AliasSlugs returns the slugs carrying configured aliases in stable order.
func (c *Config) AliasSlugs() []string {
	if c == nil {
		return nil
	}
	slugs := make([]string, 0, len(c.Aliases))
	for slug := range c.Aliases {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Len returns the number of configured movements.
func (c *Config) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Movements)
}
