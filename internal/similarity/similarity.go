// Package similarity wraps fuzzy string scoring behind a narrow interface so
// the matcher and the deduplicator can swap metrics without code changes.
package similarity

import (
	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Scorer quantifies string likeness on a 0-100 scale.
type Scorer interface {
	Score(a, b string) int
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(a, b string) int

func (f ScorerFunc) Score(a, b string) int { return f(a, b) }

// PartialRatio is substring-aware: the best alignment of the shorter string
// inside the longer one. Used for matching movement names inside free text.
func PartialRatio() Scorer {
	return ScorerFunc(fuzzy.PartialRatio)
}

// Ratio is the symmetric full-string similarity. Used for grouping
// near-duplicate movement names.
func Ratio() Scorer {
	return ScorerFunc(fuzzy.Ratio)
}

// TokenSetRatio is order-independent over word sets. Used when comparing NER
// candidates against canonical names. The upstream function is variadic, so
// it cannot convert to ScorerFunc directly.
func TokenSetRatio() Scorer {
	return ScorerFunc(func(a, b string) int { return fuzzy.TokenSetRatio(a, b) })
}
