package db

import (
	"context"
	"fmt"
)

// MergeGroupResult summarizes what one merged duplicate group changed.
type MergeGroupResult struct {
	AliasesCreated    int
	SourcesReassigned int64
	MovementsDeleted  int
}

// MergeDuplicate is one non-canonical member of a duplicate group.
type MergeDuplicate struct {
	MovementID int64
	AliasText  string
}

// MergeMovementGroup folds duplicates into the canonical movement inside one
// transaction: record each duplicate's name as an alias of the canonical,
// move the duplicate's sources over, then delete the duplicate row. Either
// the whole group lands or none of it does.
func (p *Pool) MergeMovementGroup(ctx context.Context, canonicalID int64, duplicates []MergeDuplicate, aliasConfidence float64) (MergeGroupResult, error) {
	var result MergeGroupResult
	if len(duplicates) == 0 {
		return result, nil
	}

	tx, err := p.BeginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("begin merge transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const insertAlias = `
INSERT INTO nrm.aliases (movement_id, alias_text, alias_type, confidence_score)
VALUES ($1, $2, 'variant', $3)
ON CONFLICT (movement_id, alias_text) DO NOTHING
`
	const moveSources = `
UPDATE nrm.sources
SET movement_id = $2, updated_at = now()
WHERE movement_id = $1
`
	const deleteMovement = `DELETE FROM nrm.movements WHERE movement_id = $1`

	for _, dup := range duplicates {
		if dup.MovementID == canonicalID {
			return MergeGroupResult{}, fmt.Errorf("canonical movement %d listed among its own duplicates", canonicalID)
		}

		if dup.AliasText != "" {
			tag, err := tx.Exec(ctx, insertAlias, canonicalID, dup.AliasText, aliasConfidence)
			if err != nil {
				return MergeGroupResult{}, fmt.Errorf("insert merge alias for movement %d: %w", dup.MovementID, err)
			}
			result.AliasesCreated += int(tag.RowsAffected())
		}

		tag, err := tx.Exec(ctx, moveSources, dup.MovementID, canonicalID)
		if err != nil {
			return MergeGroupResult{}, fmt.Errorf("reassign sources of movement %d: %w", dup.MovementID, err)
		}
		result.SourcesReassigned += tag.RowsAffected()

		tag, err = tx.Exec(ctx, deleteMovement, dup.MovementID)
		if err != nil {
			return MergeGroupResult{}, fmt.Errorf("delete movement %d: %w", dup.MovementID, err)
		}
		result.MovementsDeleted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return MergeGroupResult{}, fmt.Errorf("commit merge transaction: %w", err)
	}
	return result, nil
}
