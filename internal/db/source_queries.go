package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SourceRecord is the projection the deduplicator works with.
type SourceRecord struct {
	SourceID    int64
	MovementID  *int64
	URL         string
	ContentHash *string
}

// SourceText carries the text columns used by hash backfill, re-matching and
// alias extraction.
type SourceText struct {
	SourceID       int64
	MovementID     *int64
	URL            string
	ContentExcerpt *string
	ContentFull    *string
	ContentHash    *string
}

// Text returns the fullest available text: content_full first, excerpt as
// fallback, empty when neither is set.
func (s SourceText) Text() string {
	if s.ContentFull != nil && strings.TrimSpace(*s.ContentFull) != "" {
		return *s.ContentFull
	}
	if s.ContentExcerpt != nil {
		return *s.ContentExcerpt
	}
	return ""
}

// InsertSourceParams carries the writable source attributes.
type InsertSourceParams struct {
	MovementID          *int64
	SourceName          *string
	SourceType          *string
	Domain              *string
	Language            *string
	PublicationDate     *time.Time
	URL                 string
	ContentExcerpt      *string
	ContentFull         *string
	WordCount           *int
	ContentHash         *string
	ScrapedBy           *string
	KeywordsFound       []byte
	SentimentScore      *float64
	ClassificationLabel *string
}

// HashDuplicateGroup lists the source ids sharing one content hash, ordered
// by source_id ascending so the first element is the keeper.
type HashDuplicateGroup struct {
	ContentHash string
	SourceIDs   []int64
}

const sourceRecordColumns = `s.source_id, s.movement_id, s.url, s.content_hash`

func scanSourceRecord(row *Row) (SourceRecord, bool, error) {
	var rec SourceRecord
	err := row.Scan(&rec.SourceID, &rec.MovementID, &rec.URL, &rec.ContentHash)
	if IsNoRows(err) {
		return SourceRecord{}, false, nil
	}
	if err != nil {
		return SourceRecord{}, false, err
	}
	return rec, true, nil
}

// GetSourceByURL looks a source up by its unique URL.
func (p *Pool) GetSourceByURL(ctx context.Context, url string) (SourceRecord, bool, error) {
	q := `SELECT ` + sourceRecordColumns + ` FROM nrm.sources s WHERE s.url = $1`

	rec, found, err := scanSourceRecord(p.QueryRow(ctx, q, url))
	if err != nil {
		return SourceRecord{}, false, fmt.Errorf("query source by url: %w", err)
	}
	return rec, found, nil
}

// GetSourceByContentHash returns the oldest source carrying the hash.
func (p *Pool) GetSourceByContentHash(ctx context.Context, hash string) (SourceRecord, bool, error) {
	q := `
SELECT ` + sourceRecordColumns + `
FROM nrm.sources s
WHERE s.content_hash = $1
ORDER BY s.source_id
LIMIT 1
`

	rec, found, err := scanSourceRecord(p.QueryRow(ctx, q, hash))
	if err != nil {
		return SourceRecord{}, false, fmt.Errorf("query source by content hash: %w", err)
	}
	return rec, found, nil
}

// InsertSource creates a source row and returns its id. The unique URL
// constraint makes concurrent inserts of the same URL fail for all but one
// caller; callers recover by re-querying.
func (p *Pool) InsertSource(ctx context.Context, params InsertSourceParams) (int64, error) {
	url := strings.TrimSpace(params.URL)
	if url == "" {
		return 0, fmt.Errorf("source url is required")
	}

	const q = `
INSERT INTO nrm.sources (
	movement_id, source_name, source_type, domain, language,
	publication_date, url, content_excerpt, content_full, word_count,
	content_hash, scraped_by, keywords_found, sentiment_score, classification_label
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING source_id
`

	var keywords any
	if len(params.KeywordsFound) > 0 {
		keywords = params.KeywordsFound
	}

	var sourceID int64
	err := p.QueryRow(ctx, q,
		params.MovementID, params.SourceName, params.SourceType, params.Domain, params.Language,
		params.PublicationDate, url, params.ContentExcerpt, params.ContentFull, params.WordCount,
		params.ContentHash, params.ScrapedBy, keywords, params.SentimentScore, params.ClassificationLabel,
	).Scan(&sourceID)
	if err != nil {
		return 0, fmt.Errorf("insert source: %w", err)
	}
	return sourceID, nil
}

// ListSourcesMissingHash returns one bounded batch of sources whose
// content_hash is NULL, ordered by source_id.
func (p *Pool) ListSourcesMissingHash(ctx context.Context, afterID int64, limit int) ([]SourceText, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT s.source_id, s.movement_id, s.url, s.content_excerpt, s.content_full, s.content_hash
FROM nrm.sources s
WHERE s.content_hash IS NULL AND s.source_id > $1
ORDER BY s.source_id
LIMIT $2
`

	return p.querySourceTexts(ctx, q, afterID, limit)
}

// ListSourceTexts returns one bounded batch of all sources, for re-matching
// and alias extraction sweeps.
func (p *Pool) ListSourceTexts(ctx context.Context, afterID int64, limit int) ([]SourceText, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT s.source_id, s.movement_id, s.url, s.content_excerpt, s.content_full, s.content_hash
FROM nrm.sources s
WHERE s.source_id > $1
ORDER BY s.source_id
LIMIT $2
`

	return p.querySourceTexts(ctx, q, afterID, limit)
}

func (p *Pool) querySourceTexts(ctx context.Context, q string, args ...any) ([]SourceText, error) {
	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query source texts: %w", err)
	}
	defer rows.Close()

	var items []SourceText
	for rows.Next() {
		var row SourceText
		if err := rows.Scan(&row.SourceID, &row.MovementID, &row.URL, &row.ContentExcerpt, &row.ContentFull, &row.ContentHash); err != nil {
			return nil, fmt.Errorf("scan source text row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source text rows: %w", err)
	}

	return items, nil
}

// SetSourceContentHash backfills a computed hash.
func (p *Pool) SetSourceContentHash(ctx context.Context, sourceID int64, hash string) error {
	const q = `
UPDATE nrm.sources
SET content_hash = $2, updated_at = now()
WHERE source_id = $1
`

	tag, err := p.Exec(ctx, q, sourceID, hash)
	if err != nil {
		return fmt.Errorf("set source content hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %d not found", sourceID)
	}
	return nil
}

// UpdateSourceMovement reassigns a source to a movement. movementID nil
// clears the assignment.
func (p *Pool) UpdateSourceMovement(ctx context.Context, sourceID int64, movementID *int64) error {
	const q = `
UPDATE nrm.sources
SET movement_id = $2, updated_at = now()
WHERE source_id = $1
`

	tag, err := p.Exec(ctx, q, sourceID, movementID)
	if err != nil {
		return fmt.Errorf("update source movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %d not found", sourceID)
	}
	return nil
}

// ListHashDuplicateGroups returns every content hash shared by two or more
// sources, each group's ids ordered ascending.
func (p *Pool) ListHashDuplicateGroups(ctx context.Context) ([]HashDuplicateGroup, error) {
	const q = `
SELECT s.content_hash, s.source_id
FROM nrm.sources s
WHERE s.content_hash IS NOT NULL
  AND s.content_hash IN (
	SELECT d.content_hash
	FROM nrm.sources d
	WHERE d.content_hash IS NOT NULL
	GROUP BY d.content_hash
	HAVING count(*) > 1
  )
ORDER BY s.content_hash, s.source_id
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query hash duplicate groups: %w", err)
	}
	defer rows.Close()

	var groups []HashDuplicateGroup
	for rows.Next() {
		var hash string
		var sourceID int64
		if err := rows.Scan(&hash, &sourceID); err != nil {
			return nil, fmt.Errorf("scan hash duplicate row: %w", err)
		}
		if len(groups) == 0 || groups[len(groups)-1].ContentHash != hash {
			groups = append(groups, HashDuplicateGroup{ContentHash: hash})
		}
		last := &groups[len(groups)-1]
		last.SourceIDs = append(last.SourceIDs, sourceID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hash duplicate rows: %w", err)
	}

	return groups, nil
}

// DeleteSource removes one source row and reports whether it existed.
func (p *Pool) DeleteSource(ctx context.Context, sourceID int64) (bool, error) {
	const q = `DELETE FROM nrm.sources WHERE source_id = $1`

	tag, err := p.Exec(ctx, q, sourceID)
	if err != nil {
		return false, fmt.Errorf("delete source: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CountSourcesByMovement returns the number of sources assigned to one
// movement.
func (p *Pool) CountSourcesByMovement(ctx context.Context, movementID int64) (int64, error) {
	const q = `SELECT count(*) FROM nrm.sources WHERE movement_id = $1`

	var count int64
	if err := p.QueryRow(ctx, q, movementID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sources by movement: %w", err)
	}
	return count, nil
}
