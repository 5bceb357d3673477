package names

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripDiacritics removes combining marks (e.g. "Kršna" -> "Krsna").
func StripDiacritics(value string) string {
	result, _, err := transform.String(stripDiacritics, value)
	if err != nil {
		return value
	}
	return result
}

// Slugify converts a display name into its canonical slug: diacritics
// stripped, lowercase, word runs joined by single hyphens, everything
// outside [a-z0-9-] dropped. Idempotent; empty input yields "".
//
// "Hnutí Hare Kršna" -> "hnuti-hare-krsna"
func Slugify(value string) string {
	lowered := strings.ToLower(StripDiacritics(value))

	var b strings.Builder
	b.Grow(len(lowered))
	pendingHyphen := false
	for _, r := range lowered {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			pendingHyphen = true
		default:
			// punctuation and non-ASCII leftovers carry no slug information
		}
	}
	return b.String()
}

// NormalizeForMatching lowercases, strips diacritics and collapses
// whitespace while keeping word boundaries. Used as the comparison key for
// substring and fuzzy matching, never as an identifier.
//
// "Hnutí Hare Kršna" -> "hnuti hare krsna"
func NormalizeForMatching(value string) string {
	lowered := strings.ToLower(StripDiacritics(value))
	return strings.Join(strings.Fields(lowered), " ")
}

// IsSlugShaped reports whether a stored canonical name already looks like a
// slug: hyphenated, no spaces, all lowercase.
func IsSlugShaped(value string) bool {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return false
	}
	return strings.Contains(trimmed, "-") &&
		!strings.ContainsAny(trimmed, " \t") &&
		trimmed == strings.ToLower(trimmed)
}

// HasDiacritics reports whether the name carries any non-ASCII rune.
func HasDiacritics(value string) bool {
	for _, r := range value {
		if r > 127 {
			return true
		}
	}
	return false
}
