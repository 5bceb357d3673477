package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/match"
)

// RematchStore is the persistence surface a re-matching sweep needs.
type RematchStore interface {
	ListSourceTexts(ctx context.Context, afterID int64, limit int) ([]db.SourceText, error)
	UpdateSourceMovement(ctx context.Context, sourceID int64, movementID *int64) error
}

// RematchStats summarizes one sweep.
type RematchStats struct {
	Scanned    int `json:"scanned"`
	Assigned   int `json:"assigned"`
	Reassigned int `json:"reassigned"`
	Unchanged  int `json:"unchanged"`
	Unmatched  int `json:"unmatched"`
	Errors     int `json:"errors"`
}

// Rematch runs the matcher over every stored source and realigns
// assignments. Sources the matcher cannot place keep their current
// assignment; matching never unassigns. Used after seeding or merging grew
// the candidate corpus. A dry run fills the same counters without writing.
func Rematch(ctx context.Context, store RematchStore, matcher *match.Matcher, minScore, batchSize int, dryRun bool, logger zerolog.Logger) (RematchStats, error) {
	if matcher == nil {
		return RematchStats{}, fmt.Errorf("matcher is required")
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	var stats RematchStats
	afterID := int64(0)
	for {
		batch, err := store.ListSourceTexts(ctx, afterID, batchSize)
		if err != nil {
			return stats, fmt.Errorf("list sources: %w", err)
		}
		if len(batch) == 0 {
			return stats, nil
		}

		for _, src := range batch {
			stats.Scanned++

			text := strings.TrimSpace(src.Text())
			matched, ok := matcher.Match(text, minScore)
			if !ok {
				stats.Unmatched++
				continue
			}
			if src.MovementID != nil && *src.MovementID == matched.MovementID {
				stats.Unchanged++
				continue
			}

			if !dryRun {
				if err := store.UpdateSourceMovement(ctx, src.SourceID, &matched.MovementID); err != nil {
					stats.Errors++
					logger.Warn().Err(err).Int64("source_id", src.SourceID).Msg("rematch update failed")
					continue
				}
			}
			if src.MovementID == nil {
				stats.Assigned++
			} else {
				stats.Reassigned++
			}
		}

		afterID = batch[len(batch)-1].SourceID
	}
}
