package db

import (
	"context"
	"fmt"
)

// RegistryStats is the aggregate snapshot served by the stats command and
// the API.
type RegistryStats struct {
	Movements          int64 `json:"movements"`
	Aliases            int64 `json:"aliases"`
	Sources            int64 `json:"sources"`
	SourcesUnassigned  int64 `json:"sources_unassigned"`
	SourcesMissingHash int64 `json:"sources_missing_hash"`
	DuplicateHashes    int64 `json:"duplicate_hashes"`
}

// GetRegistryStats collects table counts and data-quality counters in one
// round trip.
func (p *Pool) GetRegistryStats(ctx context.Context) (RegistryStats, error) {
	const q = `
SELECT
	(SELECT count(*) FROM nrm.movements),
	(SELECT count(*) FROM nrm.aliases),
	(SELECT count(*) FROM nrm.sources),
	(SELECT count(*) FROM nrm.sources WHERE movement_id IS NULL),
	(SELECT count(*) FROM nrm.sources WHERE content_hash IS NULL),
	(SELECT count(*) FROM (
		SELECT 1
		FROM nrm.sources
		WHERE content_hash IS NOT NULL
		GROUP BY content_hash
		HAVING count(*) > 1
	) d)
`

	var stats RegistryStats
	err := p.QueryRow(ctx, q).Scan(
		&stats.Movements,
		&stats.Aliases,
		&stats.Sources,
		&stats.SourcesUnassigned,
		&stats.SourcesMissingHash,
		&stats.DuplicateHashes,
	)
	if err != nil {
		return RegistryStats{}, fmt.Errorf("query registry stats: %w", err)
	}
	return stats, nil
}
