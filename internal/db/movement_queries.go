package db

import (
	"context"
	"fmt"
	"strings"
)

// MovementName is the minimal movement projection used by the matcher, the
// deduplicator and the migration.
type MovementName struct {
	MovementID    int64
	CanonicalSlug string
	DisplayName   *string
}

// Name returns the display name when present, the canonical slug otherwise.
func (m MovementName) Name() string {
	if m.DisplayName != nil && strings.TrimSpace(*m.DisplayName) != "" {
		return *m.DisplayName
	}
	return m.CanonicalSlug
}

// InsertMovementParams carries the writable movement attributes.
type InsertMovementParams struct {
	CanonicalSlug string
	DisplayName   *string
	Category      *string
	Description   *string
	ActiveStatus  *string
}

// ListMovementNames returns one bounded batch ordered by movement_id,
// starting after afterID. Callers page with keyset iteration so long scans
// never load the whole table at once.
func (p *Pool) ListMovementNames(ctx context.Context, afterID int64, limit int) ([]MovementName, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT m.movement_id, m.canonical_slug, m.display_name
FROM nrm.movements m
WHERE m.movement_id > $1
ORDER BY m.movement_id
LIMIT $2
`

	rows, err := p.Query(ctx, q, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query movement names: %w", err)
	}
	defer rows.Close()

	items := make([]MovementName, 0, limit)
	for rows.Next() {
		var row MovementName
		if err := rows.Scan(&row.MovementID, &row.CanonicalSlug, &row.DisplayName); err != nil {
			return nil, fmt.Errorf("scan movement name row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement name rows: %w", err)
	}

	return items, nil
}

// AllMovementNames accumulates every movement name via bounded batches.
func (p *Pool) AllMovementNames(ctx context.Context, batchSize int) ([]MovementName, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	var all []MovementName
	afterID := int64(0)
	for {
		batch, err := p.ListMovementNames(ctx, afterID, batchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			return all, nil
		}
		all = append(all, batch...)
		afterID = batch[len(batch)-1].MovementID
	}
}

// GetMovementBySlug looks a movement up by canonical slug.
func (p *Pool) GetMovementBySlug(ctx context.Context, slug string) (MovementName, bool, error) {
	const q = `
SELECT m.movement_id, m.canonical_slug, m.display_name
FROM nrm.movements m
WHERE m.canonical_slug = $1
`

	var row MovementName
	err := p.QueryRow(ctx, q, slug).Scan(&row.MovementID, &row.CanonicalSlug, &row.DisplayName)
	if IsNoRows(err) {
		return MovementName{}, false, nil
	}
	if err != nil {
		return MovementName{}, false, fmt.Errorf("query movement by slug: %w", err)
	}
	return row, true, nil
}

// MovementExists reports whether the movement row is still present.
func (p *Pool) MovementExists(ctx context.Context, movementID int64) (bool, error) {
	const q = `SELECT 1 FROM nrm.movements WHERE movement_id = $1`

	var one int
	err := p.QueryRow(ctx, q, movementID).Scan(&one)
	if IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query movement existence: %w", err)
	}
	return true, nil
}

// InsertMovement creates a movement and returns its id.
func (p *Pool) InsertMovement(ctx context.Context, params InsertMovementParams) (int64, error) {
	slug := strings.TrimSpace(params.CanonicalSlug)
	if slug == "" {
		return 0, fmt.Errorf("canonical slug is required")
	}

	const q = `
INSERT INTO nrm.movements (canonical_slug, display_name, category, description, active_status)
VALUES ($1, $2, $3, $4, $5)
RETURNING movement_id
`

	var movementID int64
	if err := p.QueryRow(ctx, q, slug, params.DisplayName, params.Category, params.Description, params.ActiveStatus).Scan(&movementID); err != nil {
		return 0, fmt.Errorf("insert movement: %w", err)
	}
	return movementID, nil
}

// UpdateMovementCanonical rewrites a movement's slug and display name.
func (p *Pool) UpdateMovementCanonical(ctx context.Context, movementID int64, slug, display string) error {
	const q = `
UPDATE nrm.movements
SET canonical_slug = $2, display_name = $3, updated_at = now()
WHERE movement_id = $1
`

	tag, err := p.Exec(ctx, q, movementID, slug, display)
	if err != nil {
		return fmt.Errorf("update movement canonical: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("movement %d not found", movementID)
	}
	return nil
}

// SetMovementDisplayName backfills only the display name.
func (p *Pool) SetMovementDisplayName(ctx context.Context, movementID int64, display string) error {
	const q = `
UPDATE nrm.movements
SET display_name = $2, updated_at = now()
WHERE movement_id = $1
`

	tag, err := p.Exec(ctx, q, movementID, display)
	if err != nil {
		return fmt.Errorf("set movement display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("movement %d not found", movementID)
	}
	return nil
}
