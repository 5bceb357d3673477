package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AliasRow is the minimal alias projection used by the matcher.
type AliasRow struct {
	MovementID int64
	AliasText  string
}

// AliasDetail is used by the registry API.
type AliasDetail struct {
	AliasText       string    `json:"alias_text"`
	AliasType       string    `json:"alias_type"`
	ConfidenceScore *float64  `json:"confidence_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasAlias reports whether (movement_id, alias_text) is already present.
func (p *Pool) HasAlias(ctx context.Context, movementID int64, aliasText string) (bool, error) {
	const q = `SELECT 1 FROM nrm.aliases WHERE movement_id = $1 AND alias_text = $2`

	var one int
	err := p.QueryRow(ctx, q, movementID, aliasText).Scan(&one)
	if IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query alias existence: %w", err)
	}
	return true, nil
}

// InsertAlias inserts idempotently on (movement_id, alias_text) and reports
// whether a row was actually created.
func (p *Pool) InsertAlias(ctx context.Context, movementID int64, aliasText, aliasType string, confidence *float64) (bool, error) {
	text := strings.TrimSpace(aliasText)
	if text == "" {
		return false, fmt.Errorf("alias text is required")
	}
	if strings.TrimSpace(aliasType) == "" {
		aliasType = "predefined"
	}

	const q = `
INSERT INTO nrm.aliases (movement_id, alias_text, alias_type, confidence_score)
VALUES ($1, $2, $3, $4)
ON CONFLICT (movement_id, alias_text) DO NOTHING
`

	tag, err := p.Exec(ctx, q, movementID, text, aliasType, confidence)
	if err != nil {
		return false, fmt.Errorf("insert alias: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListAliasRows returns one bounded batch of aliases ordered by alias_id.
func (p *Pool) ListAliasRows(ctx context.Context, afterID int64, limit int) ([]AliasRow, int64, error) {
	if limit <= 0 {
		return nil, 0, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT a.alias_id, a.movement_id, a.alias_text
FROM nrm.aliases a
WHERE a.alias_id > $1
ORDER BY a.alias_id
LIMIT $2
`

	rows, err := p.Query(ctx, q, afterID, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("query alias rows: %w", err)
	}
	defer rows.Close()

	items := make([]AliasRow, 0, limit)
	lastID := afterID
	for rows.Next() {
		var row AliasRow
		if err := rows.Scan(&lastID, &row.MovementID, &row.AliasText); err != nil {
			return nil, 0, fmt.Errorf("scan alias row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate alias rows: %w", err)
	}

	return items, lastID, nil
}

// AllAliasRows accumulates every alias via bounded batches.
func (p *Pool) AllAliasRows(ctx context.Context, batchSize int) ([]AliasRow, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var all []AliasRow
	afterID := int64(0)
	for {
		batch, lastID, err := p.ListAliasRows(ctx, afterID, batchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
		afterID = lastID
	}
}

// ListAliasesByMovement returns the aliases of one movement for the API.
func (p *Pool) ListAliasesByMovement(ctx context.Context, movementID int64) ([]AliasDetail, error) {
	const q = `
SELECT a.alias_text, a.alias_type, a.confidence_score, a.created_at
FROM nrm.aliases a
WHERE a.movement_id = $1
ORDER BY a.alias_text
`

	rows, err := p.Query(ctx, q, movementID)
	if err != nil {
		return nil, fmt.Errorf("query movement aliases: %w", err)
	}
	defer rows.Close()

	items := make([]AliasDetail, 0, 8)
	for rows.Next() {
		var row AliasDetail
		if err := rows.Scan(&row.AliasText, &row.AliasType, &row.ConfidenceScore, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement alias row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement alias rows: %w", err)
	}

	return items, nil
}
