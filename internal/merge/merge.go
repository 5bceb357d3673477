// Package merge finds movements that are the same real-world group under
// different spellings and folds each duplicate cluster into one canonical
// row.
package merge

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/names"
	"horse.fit/movements/internal/similarity"
)

// DefaultThreshold is the full-ratio similarity above which two movement
// names count as the same group, on the 0-1 scale the CLI exposes.
const DefaultThreshold = 0.70

// containmentMinLen guards the containment rule: a name fully contained in
// another only links them when the shorter name is longer than this many
// runes, so "X" never swallows "Sekta X Y".
const containmentMinLen = 3

// mergeAliasConfidence is recorded on aliases created from merged-away
// movement names.
const mergeAliasConfidence = 0.95

// Movement is one grouping candidate.
type Movement struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Group is one duplicate cluster with its elected canonical member.
type Group struct {
	Canonical  Movement   `json:"canonical"`
	Duplicates []Movement `json:"duplicates"`
}

// Stats summarizes one merge run. Dry runs fill the same counters.
type Stats struct {
	Groups            int   `json:"groups"`
	GroupsMerged      int   `json:"groups_merged"`
	GroupsSkipped     int   `json:"groups_skipped"`
	GroupsFailed      int   `json:"groups_failed"`
	AliasesCreated    int   `json:"aliases_created"`
	SourcesReassigned int64 `json:"sources_reassigned"`
	MovementsDeleted  int   `json:"movements_deleted"`
	DryRun            bool  `json:"dry_run"`
}

// Store is the persistence surface the merger needs.
type Store interface {
	AllMovementNames(ctx context.Context, batchSize int) ([]db.MovementName, error)
	MovementExists(ctx context.Context, movementID int64) (bool, error)
	HasAlias(ctx context.Context, movementID int64, aliasText string) (bool, error)
	CountSourcesByMovement(ctx context.Context, movementID int64) (int64, error)
	MergeMovementGroup(ctx context.Context, canonicalID int64, duplicates []db.MergeDuplicate, aliasConfidence float64) (db.MergeGroupResult, error)
}

// Merger groups and merges duplicate movements.
type Merger struct {
	store  Store
	scorer similarity.Scorer
	logger zerolog.Logger
}

// NewMerger builds a merger. A nil scorer falls back to the full ratio,
// which compares whole names rather than fragments.
func NewMerger(store Store, scorer similarity.Scorer, logger zerolog.Logger) *Merger {
	if scorer == nil {
		scorer = similarity.Ratio()
	}
	return &Merger{store: store, scorer: scorer, logger: logger}
}

// FindDuplicateGroups clusters movements by pairwise name similarity using
// single-link greedy grouping: each ungrouped movement seeds a group and
// pulls in every later movement similar to the seed. threshold <= 0 uses
// DefaultThreshold.
func (m *Merger) FindDuplicateGroups(movements []Movement, threshold float64) []Group {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	ordered := make([]Movement, len(movements))
	copy(ordered, movements)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	grouped := make(map[int64]bool, len(ordered))
	var groups []Group
	for i, seed := range ordered {
		if grouped[seed.ID] {
			continue
		}
		members := []Movement{seed}
		for _, other := range ordered[i+1:] {
			if grouped[other.ID] {
				continue
			}
			if m.sameMovement(seed.Name, other.Name, threshold) {
				members = append(members, other)
				grouped[other.ID] = true
			}
		}
		if len(members) < 2 {
			continue
		}
		grouped[seed.ID] = true

		canonical := ChooseCanonical(members)
		duplicates := make([]Movement, 0, len(members)-1)
		for _, member := range members {
			if member.ID != canonical.ID {
				duplicates = append(duplicates, member)
			}
		}
		groups = append(groups, Group{Canonical: canonical, Duplicates: duplicates})
	}

	return groups
}

// sameMovement applies the two linking rules: normalized full-ratio
// similarity above the threshold, or full containment of one normalized
// name in the other when the shorter one is long enough to be distinctive.
func (m *Merger) sameMovement(a, b string, threshold float64) bool {
	na := names.NormalizeForMatching(a)
	nb := names.NormalizeForMatching(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	if float64(m.scorer.Score(na, nb))/100 > threshold {
		return true
	}

	shorter, longer := na, nb
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	return utf8.RuneCountInString(shorter) > containmentMinLen && strings.Contains(longer, shorter)
}

// ChooseCanonical elects the group member with the longest name, breaking
// length ties in favor of names carrying diacritics, then lowest id. The
// longest, most accented form is usually the official one.
func ChooseCanonical(members []Movement) Movement {
	best := members[0]
	for _, member := range members[1:] {
		bl, ml := utf8.RuneCountInString(best.Name), utf8.RuneCountInString(member.Name)
		switch {
		case ml > bl:
			best = member
		case ml == bl && names.HasDiacritics(member.Name) && !names.HasDiacritics(best.Name):
			best = member
		case ml == bl && names.HasDiacritics(member.Name) == names.HasDiacritics(best.Name) && member.ID < best.ID:
			best = member
		}
	}
	return best
}

// Merge loads all movements, groups them and folds each group into its
// canonical member. With dryRun the counters are computed from the same
// grouping but nothing is written. A group whose canonical vanished between
// grouping and merge is skipped and counted, not failed; a store error in
// one group is counted and the remaining groups still run, since each group
// commits or rolls back on its own.
func (m *Merger) Merge(ctx context.Context, threshold float64, dryRun bool) (Stats, []Group, error) {
	rows, err := m.store.AllMovementNames(ctx, 500)
	if err != nil {
		return Stats{}, nil, err
	}

	movements := make([]Movement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, Movement{ID: row.MovementID, Name: row.Name()})
	}

	groups := m.FindDuplicateGroups(movements, threshold)
	stats := Stats{Groups: len(groups), DryRun: dryRun}

	for _, group := range groups {
		if dryRun {
			counted, err := m.countGroup(ctx, group)
			if err != nil {
				stats.GroupsFailed++
				m.logger.Warn().Err(err).
					Int64("movement_id", group.Canonical.ID).
					Msg("dry-run count failed for group")
				continue
			}
			stats.GroupsMerged++
			stats.AliasesCreated += counted.AliasesCreated
			stats.SourcesReassigned += counted.SourcesReassigned
			stats.MovementsDeleted += counted.MovementsDeleted
			continue
		}

		exists, err := m.store.MovementExists(ctx, group.Canonical.ID)
		if err != nil {
			stats.GroupsFailed++
			m.logger.Warn().Err(err).
				Int64("movement_id", group.Canonical.ID).
				Msg("canonical existence check failed for group")
			continue
		}
		if !exists {
			stats.GroupsSkipped++
			m.logger.Warn().
				Int64("movement_id", group.Canonical.ID).
				Str("name", group.Canonical.Name).
				Msg("canonical movement vanished, skipping group")
			continue
		}

		duplicates := make([]db.MergeDuplicate, 0, len(group.Duplicates))
		for _, dup := range group.Duplicates {
			duplicates = append(duplicates, db.MergeDuplicate{MovementID: dup.ID, AliasText: dup.Name})
		}

		result, err := m.store.MergeMovementGroup(ctx, group.Canonical.ID, duplicates, mergeAliasConfidence)
		if err != nil {
			stats.GroupsFailed++
			m.logger.Warn().Err(err).
				Int64("movement_id", group.Canonical.ID).
				Msg("group merge failed")
			continue
		}
		stats.GroupsMerged++
		stats.AliasesCreated += result.AliasesCreated
		stats.SourcesReassigned += result.SourcesReassigned
		stats.MovementsDeleted += result.MovementsDeleted
	}

	return stats, groups, nil
}

// countGroup predicts what merging a group would change. Alias counting
// mirrors the live path's ON CONFLICT DO NOTHING: a name the canonical
// already carries, or one repeated inside the group, adds nothing.
func (m *Merger) countGroup(ctx context.Context, group Group) (db.MergeGroupResult, error) {
	var result db.MergeGroupResult
	seen := map[string]bool{}
	for _, dup := range group.Duplicates {
		sources, err := m.store.CountSourcesByMovement(ctx, dup.ID)
		if err != nil {
			return db.MergeGroupResult{}, err
		}
		result.SourcesReassigned += sources
		result.MovementsDeleted++

		if dup.Name == "" || seen[dup.Name] {
			continue
		}
		seen[dup.Name] = true
		exists, err := m.store.HasAlias(ctx, group.Canonical.ID, dup.Name)
		if err != nil {
			return db.MergeGroupResult{}, err
		}
		if !exists {
			result.AliasesCreated++
		}
	}
	return result, nil
}
