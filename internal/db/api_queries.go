package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// MovementSummary is the list item served by the registry API.
type MovementSummary struct {
	MovementID    int64   `json:"movement_id"`
	CanonicalSlug string  `json:"canonical_slug"`
	DisplayName   *string `json:"display_name,omitempty"`
	Category      *string `json:"category,omitempty"`
	SourceCount   int64   `json:"source_count"`
}

// MovementDetail is the single-movement payload served by the registry API.
type MovementDetail struct {
	MovementID    int64         `json:"movement_id"`
	MovementUUID  string        `json:"movement_uuid"`
	CanonicalSlug string        `json:"canonical_slug"`
	DisplayName   *string       `json:"display_name,omitempty"`
	Category      *string       `json:"category,omitempty"`
	Description   *string       `json:"description,omitempty"`
	ActiveStatus  *string       `json:"active_status,omitempty"`
	Website       *string       `json:"website,omitempty"`
	SourceCount   int64         `json:"source_count"`
	Aliases       []AliasDetail `json:"aliases"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// SourceSummary is the per-movement source list item served by the API.
type SourceSummary struct {
	SourceID            int64      `json:"source_id"`
	URL                 string     `json:"url"`
	SourceName          *string    `json:"source_name,omitempty"`
	Domain              *string    `json:"domain,omitempty"`
	Language            *string    `json:"language,omitempty"`
	PublicationDate     *time.Time `json:"publication_date,omitempty"`
	SentimentScore      *float64   `json:"sentiment_score,omitempty"`
	ClassificationLabel *string    `json:"classification_label,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// ListMovementSummaries pages movements alphabetically, optionally filtered
// by a case-insensitive substring over slug, display name and alias text.
func (p *Pool) ListMovementSummaries(ctx context.Context, query string, limit, offset int) ([]MovementSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
SELECT m.movement_id, m.canonical_slug, m.display_name, m.category,
	(SELECT count(*) FROM nrm.sources s WHERE s.movement_id = m.movement_id)
FROM nrm.movements m
WHERE $1 = ''
   OR m.canonical_slug ILIKE '%' || $1 || '%'
   OR m.display_name ILIKE '%' || $1 || '%'
   OR EXISTS (
	SELECT 1 FROM nrm.aliases a
	WHERE a.movement_id = m.movement_id AND a.alias_text ILIKE '%' || $1 || '%'
   )
ORDER BY m.canonical_slug
LIMIT $2 OFFSET $3
`

	rows, err := p.Query(ctx, q, strings.TrimSpace(query), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query movement summaries: %w", err)
	}
	defer rows.Close()

	items := make([]MovementSummary, 0, limit)
	for rows.Next() {
		var row MovementSummary
		if err := rows.Scan(&row.MovementID, &row.CanonicalSlug, &row.DisplayName, &row.Category, &row.SourceCount); err != nil {
			return nil, fmt.Errorf("scan movement summary row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement summary rows: %w", err)
	}

	return items, nil
}

// GetMovementDetail loads one movement with its aliases and source count.
func (p *Pool) GetMovementDetail(ctx context.Context, slug string) (MovementDetail, bool, error) {
	const q = `
SELECT m.movement_id, m.movement_uuid, m.canonical_slug, m.display_name,
	m.category, m.description, m.active_status, m.website,
	(SELECT count(*) FROM nrm.sources s WHERE s.movement_id = m.movement_id),
	m.created_at, m.updated_at
FROM nrm.movements m
WHERE m.canonical_slug = $1
`

	var detail MovementDetail
	err := p.QueryRow(ctx, q, slug).Scan(
		&detail.MovementID, &detail.MovementUUID, &detail.CanonicalSlug, &detail.DisplayName,
		&detail.Category, &detail.Description, &detail.ActiveStatus, &detail.Website,
		&detail.SourceCount, &detail.CreatedAt, &detail.UpdatedAt,
	)
	if IsNoRows(err) {
		return MovementDetail{}, false, nil
	}
	if err != nil {
		return MovementDetail{}, false, fmt.Errorf("query movement detail: %w", err)
	}

	aliases, err := p.ListAliasesByMovement(ctx, detail.MovementID)
	if err != nil {
		return MovementDetail{}, false, err
	}
	detail.Aliases = aliases
	if detail.Aliases == nil {
		detail.Aliases = []AliasDetail{}
	}

	return detail, true, nil
}

// ListSourcesByMovement pages one movement's sources newest first.
func (p *Pool) ListSourcesByMovement(ctx context.Context, movementID int64, limit, offset int) ([]SourceSummary, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	const q = `
SELECT s.source_id, s.url, s.source_name, s.domain, s.language,
	s.publication_date, s.sentiment_score, s.classification_label, s.created_at
FROM nrm.sources s
WHERE s.movement_id = $1
ORDER BY s.publication_date DESC NULLS LAST, s.source_id DESC
LIMIT $2 OFFSET $3
`

	rows, err := p.Query(ctx, q, movementID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query movement sources: %w", err)
	}
	defer rows.Close()

	items := make([]SourceSummary, 0, limit)
	for rows.Next() {
		var row SourceSummary
		if err := rows.Scan(&row.SourceID, &row.URL, &row.SourceName, &row.Domain, &row.Language,
			&row.PublicationDate, &row.SentimentScore, &row.ClassificationLabel, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement source row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement source rows: %w", err)
	}

	return items, nil
}
