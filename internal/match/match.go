// Package match assigns movement mentions in free text to registry
// movements. Matching is layered: exact name containment first, then alias
// containment, then fuzzy scoring against names and aliases. A layer only
// answers when it has a single best candidate; ambiguous layers defer to the
// next one, and a text no layer can decide stays unmatched.
package match

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/names"
	"horse.fit/movements/internal/similarity"
)

// Method identifies which layer produced a match.
type Method string

const (
	MethodExactName  Method = "exact_name"
	MethodAlias      Method = "alias"
	MethodFuzzyName  Method = "fuzzy_name"
	MethodFuzzyAlias Method = "fuzzy_alias"
)

// DefaultMinScore is the fuzzy acceptance threshold on the 0-100 scale.
const DefaultMinScore = 80

// Match is one resolved mention.
type Match struct {
	MovementID   int64  `json:"movement_id"`
	MovementName string `json:"movement_name"`
	MatchedText  string `json:"matched_text"`
	Method       Method `json:"method"`
	Score        int    `json:"score"`
}

// Store supplies the candidate corpus.
type Store interface {
	AllMovementNames(ctx context.Context, batchSize int) ([]db.MovementName, error)
	AllAliasRows(ctx context.Context, batchSize int) ([]db.AliasRow, error)
}

type candidate struct {
	movementID int64
	name       string
	display    string
	normalized string
}

// Matcher holds a normalized candidate corpus and is safe for concurrent
// Match calls. Reload swaps the corpus atomically.
type Matcher struct {
	scorer similarity.Scorer

	mu        sync.RWMutex
	movements []candidate
	aliases   []candidate
	nameByID  map[int64]string
}

// NewMatcher builds an empty matcher. A nil scorer falls back to partial
// ratio, which tolerates names embedded in longer mention texts.
func NewMatcher(scorer similarity.Scorer) *Matcher {
	if scorer == nil {
		scorer = similarity.PartialRatio()
	}
	return &Matcher{
		scorer:   scorer,
		nameByID: map[int64]string{},
	}
}

// SetCandidates replaces the corpus. Candidates with empty normalized forms
// are dropped; aliases pointing at unknown movements are dropped too.
func (m *Matcher) SetCandidates(movements []db.MovementName, aliases []db.AliasRow) {
	movs := make([]candidate, 0, len(movements))
	nameByID := make(map[int64]string, len(movements))
	for _, mov := range movements {
		name := mov.Name()
		normalized := names.NormalizeForMatching(name)
		if normalized == "" {
			continue
		}
		movs = append(movs, candidate{
			movementID: mov.MovementID,
			name:       name,
			display:    name,
			normalized: normalized,
		})
		nameByID[mov.MovementID] = name
	}

	als := make([]candidate, 0, len(aliases))
	for _, al := range aliases {
		display, ok := nameByID[al.MovementID]
		if !ok {
			continue
		}
		normalized := names.NormalizeForMatching(al.AliasText)
		if normalized == "" {
			continue
		}
		als = append(als, candidate{
			movementID: al.MovementID,
			name:       al.AliasText,
			display:    display,
			normalized: normalized,
		})
	}

	m.mu.Lock()
	m.movements = movs
	m.aliases = als
	m.nameByID = nameByID
	m.mu.Unlock()
}

// NewFromStore builds a matcher over the stored catalog. A load failure is
// logged and leaves the corpus empty, so callers degrade to no-match instead
// of stalling; ingestion must keep accepting documents when the catalog is
// unreadable.
func NewFromStore(ctx context.Context, store Store, scorer similarity.Scorer, logger zerolog.Logger) *Matcher {
	m := NewMatcher(scorer)
	if err := m.LoadFromStore(ctx, store); err != nil {
		logger.Warn().Err(err).Msg("candidate load failed, matching disabled for this run")
	}
	return m
}

// LoadFromStore refreshes the corpus from the database.
func (m *Matcher) LoadFromStore(ctx context.Context, store Store) error {
	movements, err := store.AllMovementNames(ctx, 500)
	if err != nil {
		return fmt.Errorf("load movement candidates: %w", err)
	}
	aliases, err := store.AllAliasRows(ctx, 500)
	if err != nil {
		return fmt.Errorf("load alias candidates: %w", err)
	}
	m.SetCandidates(movements, aliases)
	return nil
}

// CandidateCount returns (movements, aliases) currently loaded.
func (m *Matcher) CandidateCount() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.movements), len(m.aliases)
}

// Match resolves a mention text. minScore <= 0 uses DefaultMinScore. The
// second return is false when no layer produced an unambiguous winner.
func (m *Matcher) Match(text string, minScore int) (Match, bool) {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}

	normalized := names.NormalizeForMatching(text)
	if normalized == "" {
		return Match{}, false
	}

	m.mu.RLock()
	movements := m.movements
	aliases := m.aliases
	m.mu.RUnlock()

	if match, ok := matchExact(normalized, movements, MethodExactName); ok {
		return match, true
	}
	if match, ok := matchExact(normalized, aliases, MethodAlias); ok {
		return match, true
	}
	if match, ok := m.matchFuzzy(normalized, movements, minScore, MethodFuzzyName); ok {
		return match, true
	}
	if match, ok := m.matchFuzzy(normalized, aliases, minScore, MethodFuzzyAlias); ok {
		return match, true
	}
	return Match{}, false
}

// matchExact looks for candidates contained in the normalized text. Longer
// candidates win over shorter ones so "children of god" beats "god". Two
// distinct movements at the same best length make the layer ambiguous.
func matchExact(normalized string, candidates []candidate, method Method) (Match, bool) {
	var best *candidate
	ambiguous := false
	for i := range candidates {
		c := &candidates[i]
		if !containsPhrase(normalized, c.normalized) {
			continue
		}
		switch {
		case best == nil || len(c.normalized) > len(best.normalized):
			best = c
			ambiguous = false
		case len(c.normalized) == len(best.normalized) && c.movementID != best.movementID:
			ambiguous = true
		}
	}
	if best == nil || ambiguous {
		return Match{}, false
	}
	return Match{
		MovementID:   best.movementID,
		MovementName: best.display,
		MatchedText:  best.name,
		Method:       method,
		Score:        100,
	}, true
}

func (m *Matcher) matchFuzzy(normalized string, candidates []candidate, minScore int, method Method) (Match, bool) {
	var best *candidate
	bestScore := 0
	ambiguous := false
	for i := range candidates {
		c := &candidates[i]
		score := m.scorer.Score(c.normalized, normalized)
		if score < minScore {
			continue
		}
		switch {
		case best == nil || score > bestScore:
			best = c
			bestScore = score
			ambiguous = false
		case score == bestScore && c.movementID != best.movementID:
			ambiguous = true
		}
	}
	if best == nil || ambiguous {
		return Match{}, false
	}
	return Match{
		MovementID:   best.movementID,
		MovementName: best.display,
		MatchedText:  best.name,
		Method:       method,
		Score:        bestScore,
	}, true
}

// containsPhrase reports whether needle occurs in haystack on word
// boundaries. Plain substring search would let "opus" match inside "opusem".
func containsPhrase(haystack, needle string) bool {
	if needle == "" || len(needle) > len(haystack) {
		return false
	}
	for start := 0; start+len(needle) <= len(haystack); start++ {
		if haystack[start:start+len(needle)] != needle {
			continue
		}
		if start > 0 && haystack[start-1] != ' ' {
			continue
		}
		end := start + len(needle)
		if end < len(haystack) && haystack[end] != ' ' {
			continue
		}
		return true
	}
	return false
}
