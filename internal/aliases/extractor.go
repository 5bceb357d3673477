// Package aliases mines stored source texts for new movement name variants.
// Named entities that score close to a known movement name but are not
// spelled identically become "extracted" aliases, widening matcher recall
// over time.
package aliases

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/names"
	"horse.fit/movements/internal/nlp"
	"horse.fit/movements/internal/similarity"
)

// DefaultMinScore is the token-set similarity an entity needs against a
// movement name to be recorded as its alias.
const DefaultMinScore = 80

// minEntityRunes drops fragments the entity recognizer tends to emit.
const minEntityRunes = 3

// Store is the persistence surface alias extraction needs.
type Store interface {
	ListSourceTexts(ctx context.Context, afterID int64, limit int) ([]db.SourceText, error)
	AllMovementNames(ctx context.Context, batchSize int) ([]db.MovementName, error)
	InsertAlias(ctx context.Context, movementID int64, aliasText, aliasType string, confidence *float64) (bool, error)
}

// Stats summarizes one extraction sweep.
type Stats struct {
	SourcesScanned  int `json:"sources_scanned"`
	SourcesSkipped  int `json:"sources_skipped"`
	EntitiesSeen    int `json:"entities_seen"`
	AliasesCreated  int `json:"aliases_created"`
	AliasesExisting int `json:"aliases_existing"`
	Errors          int `json:"errors"`
}

// Extractor links recognized entities to movements.
type Extractor struct {
	store    Store
	provider nlp.Provider
	scorer   similarity.Scorer
	logger   zerolog.Logger
}

// NewExtractor builds an extractor. A nil scorer falls back to the token-set
// ratio, which ignores word order and repetition when comparing names.
func NewExtractor(store Store, provider nlp.Provider, scorer similarity.Scorer, logger zerolog.Logger) *Extractor {
	if scorer == nil {
		scorer = similarity.TokenSetRatio()
	}
	return &Extractor{store: store, provider: provider, scorer: scorer, logger: logger}
}

type target struct {
	movementID int64
	normalized string
}

// Extract sweeps all sources in bounded batches. minScore <= 0 uses
// DefaultMinScore. One failing source is counted and skipped.
func (e *Extractor) Extract(ctx context.Context, minScore, batchSize int) (Stats, error) {
	if e.provider == nil {
		return Stats{}, fmt.Errorf("nlp provider is required")
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	movements, err := e.store.AllMovementNames(ctx, 500)
	if err != nil {
		return Stats{}, fmt.Errorf("load movement names: %w", err)
	}
	targets := make([]target, 0, len(movements))
	for _, mov := range movements {
		normalized := names.NormalizeForMatching(mov.Name())
		if normalized == "" {
			continue
		}
		targets = append(targets, target{movementID: mov.MovementID, normalized: normalized})
	}

	var stats Stats
	afterID := int64(0)
	for {
		batch, err := e.store.ListSourceTexts(ctx, afterID, batchSize)
		if err != nil {
			return stats, fmt.Errorf("list sources: %w", err)
		}
		if len(batch) == 0 {
			return stats, nil
		}

		for _, src := range batch {
			text := strings.TrimSpace(src.Text())
			if text == "" {
				stats.SourcesSkipped++
				continue
			}
			stats.SourcesScanned++

			analysis, err := e.provider.Analyze(ctx, text)
			if err != nil {
				stats.Errors++
				e.logger.Warn().Err(err).Int64("source_id", src.SourceID).Msg("entity extraction failed")
				continue
			}

			for _, entity := range analysis.Entities {
				stats.EntitiesSeen++
				e.considerEntity(ctx, entity, targets, minScore, &stats)
			}
		}

		afterID = batch[len(batch)-1].SourceID
	}
}

// considerEntity records the entity as an alias of the single movement it
// resembles. An entity spelled exactly like the movement name adds nothing;
// an entity close to two different movements is too ambiguous to record.
func (e *Extractor) considerEntity(ctx context.Context, entity nlp.Entity, targets []target, minScore int, stats *Stats) {
	entityText := strings.TrimSpace(entity.Text)
	if utf8.RuneCountInString(entityText) < minEntityRunes {
		return
	}
	normalized := names.NormalizeForMatching(entityText)
	if normalized == "" {
		return
	}

	var best *target
	bestScore := 0
	ambiguous := false
	for i := range targets {
		tgt := &targets[i]
		score := e.scorer.Score(normalized, tgt.normalized)
		if score < minScore {
			continue
		}
		switch {
		case best == nil || score > bestScore:
			best = tgt
			bestScore = score
			ambiguous = false
		case score == bestScore && tgt.movementID != best.movementID:
			ambiguous = true
		}
	}
	if best == nil || ambiguous {
		return
	}
	if normalized == best.normalized {
		return
	}

	confidence := float64(bestScore) / 100
	inserted, err := e.store.InsertAlias(ctx, best.movementID, entityText, "extracted", &confidence)
	if err != nil {
		stats.Errors++
		e.logger.Warn().Err(err).Str("alias", entityText).Msg("alias insert failed")
		return
	}
	if inserted {
		stats.AliasesCreated++
	} else {
		stats.AliasesExisting++
	}
}
