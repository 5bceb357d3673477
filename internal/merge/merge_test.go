package merge

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
)

type fakeMergeStore struct {
	movements map[int64]string
	sources   map[int64]int64
	aliases   map[int64]map[string]bool

	vanished     map[int64]bool
	failMergeFor map[int64]bool
}

func newFakeMergeStore() *fakeMergeStore {
	return &fakeMergeStore{
		movements:    map[int64]string{},
		sources:      map[int64]int64{},
		aliases:      map[int64]map[string]bool{},
		vanished:     map[int64]bool{},
		failMergeFor: map[int64]bool{},
	}
}

func (f *fakeMergeStore) addMovement(id int64, name string, sourceCount int64) {
	f.movements[id] = name
	f.sources[id] = sourceCount
}

func (f *fakeMergeStore) addAlias(movementID int64, aliasText string) {
	if f.aliases[movementID] == nil {
		f.aliases[movementID] = map[string]bool{}
	}
	f.aliases[movementID][aliasText] = true
}

func (f *fakeMergeStore) AllMovementNames(ctx context.Context, batchSize int) ([]db.MovementName, error) {
	ids := make([]int64, 0, len(f.movements))
	for id := range f.movements {
		ids = append(ids, id)
	}
	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if ids[j] < ids[i] {
				ids[i], ids[j] = ids[j], ids[i]
			}
		}
	}
	out := make([]db.MovementName, 0, len(ids))
	for _, id := range ids {
		name := f.movements[id]
		out = append(out, db.MovementName{MovementID: id, CanonicalSlug: name, DisplayName: &name})
	}
	return out, nil
}

func (f *fakeMergeStore) MovementExists(ctx context.Context, movementID int64) (bool, error) {
	if f.vanished[movementID] {
		return false, nil
	}
	_, ok := f.movements[movementID]
	return ok, nil
}

func (f *fakeMergeStore) HasAlias(ctx context.Context, movementID int64, aliasText string) (bool, error) {
	return f.aliases[movementID][aliasText], nil
}

func (f *fakeMergeStore) CountSourcesByMovement(ctx context.Context, movementID int64) (int64, error) {
	return f.sources[movementID], nil
}

func (f *fakeMergeStore) MergeMovementGroup(ctx context.Context, canonicalID int64, duplicates []db.MergeDuplicate, aliasConfidence float64) (db.MergeGroupResult, error) {
	if f.failMergeFor[canonicalID] {
		return db.MergeGroupResult{}, fmt.Errorf("synthetic merge failure")
	}

	var result db.MergeGroupResult
	for _, dup := range duplicates {
		if dup.AliasText != "" {
			if f.aliases[canonicalID] == nil {
				f.aliases[canonicalID] = map[string]bool{}
			}
			if !f.aliases[canonicalID][dup.AliasText] {
				f.aliases[canonicalID][dup.AliasText] = true
				result.AliasesCreated++
			}
		}
		result.SourcesReassigned += f.sources[dup.MovementID]
		f.sources[canonicalID] += f.sources[dup.MovementID]
		delete(f.sources, dup.MovementID)
		if _, ok := f.movements[dup.MovementID]; ok {
			delete(f.movements, dup.MovementID)
			result.MovementsDeleted++
		}
	}
	return result, nil
}

func testMerger(store Store) *Merger {
	return NewMerger(store, nil, zerolog.Nop())
}

func TestChooseCanonicalLongestWins(t *testing.T) {
	t.Parallel()

	got := ChooseCanonical([]Movement{
		{ID: 1, Name: "Sekta X"},
		{ID: 2, Name: "sekta x"},
		{ID: 3, Name: "Sekta X."},
	})
	if got.ID != 3 {
		t.Fatalf("canonical id = %d, want 3 (longest name)", got.ID)
	}
}

func TestChooseCanonicalDiacriticsBreakTies(t *testing.T) {
	t.Parallel()

	got := ChooseCanonical([]Movement{
		{ID: 1, Name: "Deti Bozi"},
		{ID: 2, Name: "Děti Boží"},
	})
	if got.ID != 2 {
		t.Fatalf("canonical id = %d, want the accented form", got.ID)
	}
}

func TestChooseCanonicalIDBreaksFullTies(t *testing.T) {
	t.Parallel()

	got := ChooseCanonical([]Movement{
		{ID: 5, Name: "Sekta X"},
		{ID: 2, Name: "Sekta Y"},
	})
	if got.ID != 2 {
		t.Fatalf("canonical id = %d, want lowest id 2", got.ID)
	}
}

func TestFindDuplicateGroups(t *testing.T) {
	t.Parallel()

	m := testMerger(newFakeMergeStore())

	groups := m.FindDuplicateGroups([]Movement{
		{ID: 1, Name: "Sekta X"},
		{ID: 2, Name: "sekta x"},
		{ID: 3, Name: "Sekta X."},
		{ID: 4, Name: "Scientologie"},
		{ID: 5, Name: "Svědkové Jehovovi"},
	}, 0)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	group := groups[0]
	if group.Canonical.ID != 3 {
		t.Fatalf("canonical id = %d, want 3", group.Canonical.ID)
	}
	if len(group.Duplicates) != 2 {
		t.Fatalf("duplicates = %d, want 2", len(group.Duplicates))
	}
}

func TestFindDuplicateGroupsContainment(t *testing.T) {
	t.Parallel()

	m := testMerger(newFakeMergeStore())

	groups := m.FindDuplicateGroups([]Movement{
		{ID: 1, Name: "Hnutí Grálu"},
		{ID: 2, Name: "Hnutí Grálu v České republice"},
	}, 0.99)

	if len(groups) != 1 {
		t.Fatalf("containment must link the pair even above the ratio threshold")
	}
}

func TestFindDuplicateGroupsShortContainmentIgnored(t *testing.T) {
	t.Parallel()

	m := testMerger(newFakeMergeStore())

	groups := m.FindDuplicateGroups([]Movement{
		{ID: 1, Name: "Osho"},
		{ID: 2, Name: "X"},
		{ID: 3, Name: "Sekta X Y"},
	}, 0.95)

	if len(groups) != 0 {
		t.Fatalf("single-letter containment must not link, got %d groups", len(groups))
	}
}

func TestMergeLive(t *testing.T) {
	t.Parallel()

	store := newFakeMergeStore()
	store.addMovement(1, "Sekta X", 3)
	store.addMovement(2, "sekta x", 2)
	store.addMovement(3, "Sekta X.", 1)
	store.addMovement(4, "Scientologie", 10)

	stats, _, err := testMerger(store).Merge(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if stats.GroupsMerged != 1 || stats.MovementsDeleted != 2 {
		t.Fatalf("stats = %+v, want one merged group deleting 2 movements", stats)
	}
	if stats.SourcesReassigned != 5 {
		t.Fatalf("sources reassigned = %d, want 5", stats.SourcesReassigned)
	}
	if stats.AliasesCreated != 2 {
		t.Fatalf("aliases created = %d, want 2", stats.AliasesCreated)
	}

	if _, ok := store.movements[1]; ok {
		t.Fatalf("duplicate movement 1 survived")
	}
	if _, ok := store.movements[3]; !ok {
		t.Fatalf("canonical movement 3 was deleted")
	}
	if store.sources[3] != 6 {
		t.Fatalf("canonical source count = %d, want 6", store.sources[3])
	}
	if !store.aliases[3]["Sekta X"] || !store.aliases[3]["sekta x"] {
		t.Fatalf("merged names must become aliases of the canonical")
	}
}

func TestMergeDryRunParity(t *testing.T) {
	t.Parallel()

	// Movement 3 wins the group and already carries one duplicate's name as
	// a seeded alias; the live ON CONFLICT inserts nothing for it, and the
	// dry run must predict the same.
	build := func() *fakeMergeStore {
		store := newFakeMergeStore()
		store.addMovement(1, "Sekta X", 3)
		store.addMovement(2, "sekta x", 2)
		store.addMovement(3, "Sekta X.", 1)
		store.addMovement(4, "Scientologie", 10)
		store.addAlias(3, "Sekta X")
		return store
	}

	dryStore := build()
	dry, _, err := testMerger(dryStore).Merge(context.Background(), 0, true)
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if len(dryStore.movements) != 4 {
		t.Fatalf("dry run changed the store")
	}

	live, _, err := testMerger(build()).Merge(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("live run: %v", err)
	}

	if live.AliasesCreated != 1 {
		t.Fatalf("live aliases created = %d, want only the unseeded name", live.AliasesCreated)
	}
	if dry.GroupsMerged != live.GroupsMerged ||
		dry.AliasesCreated != live.AliasesCreated ||
		dry.SourcesReassigned != live.SourcesReassigned ||
		dry.MovementsDeleted != live.MovementsDeleted {
		t.Fatalf("dry %+v and live %+v counters differ", dry, live)
	}
}

func TestMergeGroupFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	store := newFakeMergeStore()
	store.addMovement(1, "Sekta X", 3)
	store.addMovement(2, "sekta x", 2)
	store.addMovement(5, "Hnutí Grálu", 4)
	store.addMovement(6, "hnutí grálu", 1)
	store.failMergeFor[1] = true

	stats, _, err := testMerger(store).Merge(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.GroupsFailed != 1 {
		t.Fatalf("groups failed = %d, want 1", stats.GroupsFailed)
	}
	if stats.GroupsMerged != 1 {
		t.Fatalf("groups merged = %d, the second group must still run", stats.GroupsMerged)
	}
	if _, ok := store.movements[6]; ok {
		t.Fatalf("duplicate movement 6 survived the surviving group's merge")
	}
	if _, ok := store.movements[2]; !ok {
		t.Fatalf("failed group must leave its movements untouched")
	}
}

func TestMergeSkipsVanishedCanonical(t *testing.T) {
	t.Parallel()

	store := newFakeMergeStore()
	store.addMovement(1, "Sekta X", 3)
	store.addMovement(2, "sekta x", 2)
	store.addMovement(3, "Sekta X.", 1)
	store.vanished[3] = true

	stats, _, err := testMerger(store).Merge(context.Background(), 0, false)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if stats.GroupsSkipped != 1 || stats.GroupsMerged != 0 {
		t.Fatalf("stats = %+v, want one skipped group", stats)
	}
	if len(store.movements) != 3 {
		t.Fatalf("skipped group must leave movements untouched")
	}
}
