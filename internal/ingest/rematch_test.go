package ingest

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/db"
)

type fakeRematchStore struct {
	rows       []db.SourceText
	failUpdate map[int64]bool
}

func (f *fakeRematchStore) ListSourceTexts(ctx context.Context, afterID int64, limit int) ([]db.SourceText, error) {
	var out []db.SourceText
	for _, row := range f.rows {
		if row.SourceID <= afterID {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRematchStore) UpdateSourceMovement(ctx context.Context, sourceID int64, movementID *int64) error {
	if f.failUpdate[sourceID] {
		return fmt.Errorf("synthetic update failure")
	}
	for i := range f.rows {
		if f.rows[i].SourceID == sourceID {
			f.rows[i].MovementID = movementID
			return nil
		}
	}
	return fmt.Errorf("source %d not found", sourceID)
}

func mid(v int64) *int64 { return &v }

func TestRematch(t *testing.T) {
	t.Parallel()

	store := &fakeRematchStore{rows: []db.SourceText{
		{SourceID: 1, ContentFull: str("Hnutí Hare Kršna slaví výročí.")},
		{SourceID: 2, MovementID: mid(2), ContentFull: str("Článek o ISKCON a jeho členech.")},
		{SourceID: 3, MovementID: mid(1), ContentFull: str("Hnutí Hare Kršna opět v médiích.")},
		{SourceID: 4, MovementID: mid(1), ContentFull: str("Zpráva o počasí.")},
	}}

	stats, err := Rematch(context.Background(), store, testMatcher(), 0, 2, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Rematch: %v", err)
	}

	if stats.Scanned != 4 {
		t.Fatalf("scanned = %d, want 4", stats.Scanned)
	}
	if stats.Assigned != 1 {
		t.Fatalf("assigned = %d, want the unassigned row picked up", stats.Assigned)
	}
	if stats.Reassigned != 1 {
		t.Fatalf("reassigned = %d, want the misassigned row corrected", stats.Reassigned)
	}
	if stats.Unchanged != 1 {
		t.Fatalf("unchanged = %d, want 1", stats.Unchanged)
	}
	if stats.Unmatched != 1 {
		t.Fatalf("unmatched = %d, want 1", stats.Unmatched)
	}

	if store.rows[0].MovementID == nil || *store.rows[0].MovementID != 1 {
		t.Fatalf("row 1 movement = %v, want 1", store.rows[0].MovementID)
	}
	if store.rows[1].MovementID == nil || *store.rows[1].MovementID != 1 {
		t.Fatalf("row 2 movement = %v, want corrected to 1", store.rows[1].MovementID)
	}
	// An unmatched source keeps its assignment; matching never unassigns.
	if store.rows[3].MovementID == nil || *store.rows[3].MovementID != 1 {
		t.Fatalf("row 4 movement = %v, must keep its assignment", store.rows[3].MovementID)
	}
}

func TestRematchDryRunWritesNothing(t *testing.T) {
	t.Parallel()

	store := &fakeRematchStore{rows: []db.SourceText{
		{SourceID: 1, ContentFull: str("Hnutí Hare Kršna slaví výročí.")},
		{SourceID: 2, MovementID: mid(2), ContentFull: str("Hnutí Hare Kršna opět v médiích.")},
	}}

	stats, err := Rematch(context.Background(), store, testMatcher(), 0, 10, true, zerolog.Nop())
	if err != nil {
		t.Fatalf("Rematch: %v", err)
	}
	if stats.Assigned != 1 || stats.Reassigned != 1 {
		t.Fatalf("stats = %+v, want the same counters a live run would report", stats)
	}
	if store.rows[0].MovementID != nil {
		t.Fatalf("row 1 movement = %v, dry run must not write", store.rows[0].MovementID)
	}
	if store.rows[1].MovementID == nil || *store.rows[1].MovementID != 2 {
		t.Fatalf("row 2 movement = %v, dry run must not write", store.rows[1].MovementID)
	}
}

func TestRematchUpdateFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	store := &fakeRematchStore{
		rows: []db.SourceText{
			{SourceID: 1, ContentFull: str("Hnutí Hare Kršna slaví výročí.")},
			{SourceID: 2, ContentFull: str("Scientologie otevřela centrum.")},
		},
		failUpdate: map[int64]bool{1: true},
	}

	stats, err := Rematch(context.Background(), store, testMatcher(), 0, 10, false, zerolog.Nop())
	if err != nil {
		t.Fatalf("Rematch: %v", err)
	}
	if stats.Errors != 1 || stats.Assigned != 1 {
		t.Fatalf("stats = %+v, want one error and one assignment", stats)
	}
}
