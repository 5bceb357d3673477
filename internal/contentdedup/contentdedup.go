// Package contentdedup keeps the source table free of duplicate documents.
// Identity is two-layered: the unique URL catches re-submissions of the same
// page, the content hash catches the same text republished under different
// URLs.
package contentdedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
)

// Reason explains what InsertOrGet did with a document.
type Reason string

const (
	ReasonInserted      Reason = "inserted"
	ReasonDuplicateURL  Reason = "duplicate_url"
	ReasonDuplicateHash Reason = "duplicate_hash"
)

// Store is the persistence surface the deduplicator needs.
type Store interface {
	GetSourceByURL(ctx context.Context, url string) (db.SourceRecord, bool, error)
	GetSourceByContentHash(ctx context.Context, hash string) (db.SourceRecord, bool, error)
	InsertSource(ctx context.Context, params db.InsertSourceParams) (int64, error)
	ListSourcesMissingHash(ctx context.Context, afterID int64, limit int) ([]db.SourceText, error)
	SetSourceContentHash(ctx context.Context, sourceID int64, hash string) error
	ListHashDuplicateGroups(ctx context.Context) ([]db.HashDuplicateGroup, error)
	DeleteSource(ctx context.Context, sourceID int64) (bool, error)
}

// InsertResult reports where a submitted document ended up.
type InsertResult struct {
	SourceID int64  `json:"source_id"`
	Inserted bool   `json:"inserted"`
	Reason   Reason `json:"reason"`
}

// BatchStats summarizes one InsertBatch run.
type BatchStats struct {
	Submitted      int `json:"submitted"`
	Inserted       int `json:"inserted"`
	DuplicateURLs  int `json:"duplicate_urls"`
	DuplicateHash  int `json:"duplicate_hashes"`
	Failed         int `json:"failed"`
	SkippedInBatch int `json:"skipped_in_batch"`
}

// BackfillStats summarizes one UpdateContentHashes run.
type BackfillStats struct {
	Scanned      int `json:"scanned"`
	Updated      int `json:"updated"`
	SkippedBlank int `json:"skipped_blank"`
	Errors       int `json:"errors"`
}

// RemovalStats summarizes duplicate groups found and rows removed. A dry run
// fills the same counters without touching the table.
type RemovalStats struct {
	Groups  int `json:"groups"`
	Kept    int `json:"kept"`
	Removed int `json:"removed"`
	Errors  int `json:"errors"`
	DryRun  bool `json:"dry_run"`
}

// Deduplicator wraps a store with hash-based duplicate handling.
type Deduplicator struct {
	store  Store
	logger zerolog.Logger
}

func NewDeduplicator(store Store, logger zerolog.Logger) *Deduplicator {
	return &Deduplicator{store: store, logger: logger}
}

// CalculateContentHash normalizes text (lowercase, whitespace collapsed) and
// returns its SHA-256 hex digest. Blank text has no hash.
func CalculateContentHash(text string) (string, bool) {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if normalized == "" {
		return "", false
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]), true
}

// InsertOrGet stores a document unless the registry already has it. The URL
// check runs before the hash check so a re-submitted URL always resolves to
// its original row even when the text changed. A failed insert is retried as
// a lookup: under concurrent submission the row may have appeared between
// check and insert.
func (d *Deduplicator) InsertOrGet(ctx context.Context, params db.InsertSourceParams) (InsertResult, error) {
	url := strings.TrimSpace(params.URL)
	if url == "" {
		return InsertResult{}, fmt.Errorf("source url is required")
	}
	params.URL = url

	hash, hasHash := CalculateContentHash(sourceParamsText(params))
	if hasHash {
		params.ContentHash = &hash
	} else {
		params.ContentHash = nil
	}

	if existing, found, err := d.store.GetSourceByURL(ctx, url); err != nil {
		return InsertResult{}, err
	} else if found {
		return InsertResult{SourceID: existing.SourceID, Reason: ReasonDuplicateURL}, nil
	}

	if hasHash {
		if existing, found, err := d.store.GetSourceByContentHash(ctx, hash); err != nil {
			return InsertResult{}, err
		} else if found {
			return InsertResult{SourceID: existing.SourceID, Reason: ReasonDuplicateHash}, nil
		}
	}

	sourceID, err := d.store.InsertSource(ctx, params)
	if err == nil {
		return InsertResult{SourceID: sourceID, Inserted: true, Reason: ReasonInserted}, nil
	}

	if existing, found, lookupErr := d.store.GetSourceByURL(ctx, url); lookupErr == nil && found {
		d.logger.Debug().Str("url", url).Msg("insert lost race, resolved by url")
		return InsertResult{SourceID: existing.SourceID, Reason: ReasonDuplicateURL}, nil
	}
	if hasHash {
		if existing, found, lookupErr := d.store.GetSourceByContentHash(ctx, hash); lookupErr == nil && found {
			d.logger.Debug().Str("url", url).Msg("insert lost race, resolved by hash")
			return InsertResult{SourceID: existing.SourceID, Reason: ReasonDuplicateHash}, nil
		}
	}
	return InsertResult{}, err
}

// InsertBatch runs InsertOrGet over a slice, additionally skipping documents
// that duplicate an earlier entry of the same batch. One failing document
// does not stop the batch.
func (d *Deduplicator) InsertBatch(ctx context.Context, batch []db.InsertSourceParams) BatchStats {
	stats := BatchStats{Submitted: len(batch)}
	seenURLs := make(map[string]struct{}, len(batch))
	seenHashes := make(map[string]struct{}, len(batch))

	for _, params := range batch {
		url := strings.TrimSpace(params.URL)
		if url == "" {
			stats.Failed++
			continue
		}
		if _, dup := seenURLs[url]; dup {
			stats.SkippedInBatch++
			continue
		}
		hash, hasHash := CalculateContentHash(sourceParamsText(params))
		if hasHash {
			if _, dup := seenHashes[hash]; dup {
				stats.SkippedInBatch++
				continue
			}
		}

		result, err := d.InsertOrGet(ctx, params)
		if err != nil {
			stats.Failed++
			d.logger.Warn().Err(err).Str("url", url).Msg("batch insert failed")
			continue
		}

		seenURLs[url] = struct{}{}
		if hasHash {
			seenHashes[hash] = struct{}{}
		}

		switch result.Reason {
		case ReasonInserted:
			stats.Inserted++
		case ReasonDuplicateURL:
			stats.DuplicateURLs++
		case ReasonDuplicateHash:
			stats.DuplicateHash++
		}
	}

	return stats
}

// UpdateContentHashes backfills content_hash for rows where it is NULL,
// paging by source_id so reruns after a partial failure resume cheaply.
// Rows with blank text keep a NULL hash; a row whose write fails is counted
// and the sweep continues.
func (d *Deduplicator) UpdateContentHashes(ctx context.Context, batchSize int) (BackfillStats, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	var stats BackfillStats
	afterID := int64(0)
	for {
		batch, err := d.store.ListSourcesMissingHash(ctx, afterID, batchSize)
		if err != nil {
			return stats, fmt.Errorf("list sources missing hash: %w", err)
		}
		if len(batch) == 0 {
			return stats, nil
		}

		for _, src := range batch {
			stats.Scanned++
			hash, ok := CalculateContentHash(src.Text())
			if !ok {
				stats.SkippedBlank++
				continue
			}
			if err := d.store.SetSourceContentHash(ctx, src.SourceID, hash); err != nil {
				stats.Errors++
				d.logger.Warn().Err(err).Int64("source_id", src.SourceID).Msg("content hash write failed")
				continue
			}
			stats.Updated++
		}

		afterID = batch[len(batch)-1].SourceID
	}
}

// DuplicateStats counts hash collisions without changing anything.
func (d *Deduplicator) DuplicateStats(ctx context.Context) (RemovalStats, error) {
	return d.sweepDuplicates(ctx, true)
}

// RemoveDuplicates deletes all but the oldest source of every hash group.
// With dryRun the counters come out identical but nothing is deleted.
func (d *Deduplicator) RemoveDuplicates(ctx context.Context, dryRun bool) (RemovalStats, error) {
	return d.sweepDuplicates(ctx, dryRun)
}

func (d *Deduplicator) sweepDuplicates(ctx context.Context, dryRun bool) (RemovalStats, error) {
	groups, err := d.store.ListHashDuplicateGroups(ctx)
	if err != nil {
		return RemovalStats{}, fmt.Errorf("list hash duplicate groups: %w", err)
	}

	stats := RemovalStats{DryRun: dryRun}
	for _, group := range groups {
		if len(group.SourceIDs) < 2 {
			continue
		}
		stats.Groups++
		stats.Kept++

		for _, sourceID := range group.SourceIDs[1:] {
			if dryRun {
				stats.Removed++
				continue
			}
			deleted, err := d.store.DeleteSource(ctx, sourceID)
			if err != nil {
				stats.Errors++
				d.logger.Warn().Err(err).Int64("source_id", sourceID).Msg("duplicate delete failed")
				continue
			}
			if deleted {
				stats.Removed++
			}
		}
	}

	return stats, nil
}

func sourceParamsText(params db.InsertSourceParams) string {
	if params.ContentFull != nil && strings.TrimSpace(*params.ContentFull) != "" {
		return *params.ContentFull
	}
	if params.ContentExcerpt != nil {
		return *params.ContentExcerpt
	}
	return ""
}
