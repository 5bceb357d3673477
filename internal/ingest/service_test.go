package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/contentdedup"
	"horse.fit/movements/internal/db"
	"horse.fit/movements/internal/match"
	"horse.fit/movements/internal/nlp"
	"horse.fit/movements/internal/similarity"
)

func str(s string) *string { return &s }

type fakeStore struct {
	nextID  int64
	sources map[int64]db.InsertSourceParams
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, sources: map[int64]db.InsertSourceParams{}}
}

func (f *fakeStore) orderedIDs() []int64 {
	ids := make([]int64, 0, len(f.sources))
	for id := range f.sources {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (f *fakeStore) GetSourceByURL(ctx context.Context, url string) (db.SourceRecord, bool, error) {
	for _, id := range f.orderedIDs() {
		if f.sources[id].URL == url {
			return db.SourceRecord{SourceID: id, URL: url, ContentHash: f.sources[id].ContentHash}, true, nil
		}
	}
	return db.SourceRecord{}, false, nil
}

func (f *fakeStore) GetSourceByContentHash(ctx context.Context, hash string) (db.SourceRecord, bool, error) {
	for _, id := range f.orderedIDs() {
		params := f.sources[id]
		if params.ContentHash != nil && *params.ContentHash == hash {
			return db.SourceRecord{SourceID: id, URL: params.URL, ContentHash: params.ContentHash}, true, nil
		}
	}
	return db.SourceRecord{}, false, nil
}

func (f *fakeStore) InsertSource(ctx context.Context, params db.InsertSourceParams) (int64, error) {
	id := f.nextID
	f.nextID++
	f.sources[id] = params
	return id, nil
}

func (f *fakeStore) ListSourcesMissingHash(ctx context.Context, afterID int64, limit int) ([]db.SourceText, error) {
	return nil, nil
}

func (f *fakeStore) SetSourceContentHash(ctx context.Context, sourceID int64, hash string) error {
	return fmt.Errorf("not supported")
}

func (f *fakeStore) ListHashDuplicateGroups(ctx context.Context) ([]db.HashDuplicateGroup, error) {
	return nil, nil
}

func (f *fakeStore) DeleteSource(ctx context.Context, sourceID int64) (bool, error) {
	return false, nil
}

type fakeProvider struct {
	analysis *nlp.Analysis
	err      error
	calls    int
}

func (f *fakeProvider) Analyze(ctx context.Context, text string) (*nlp.Analysis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if f.analysis == nil {
		return &nlp.Analysis{}, nil
	}
	return f.analysis, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func testMatcher() *match.Matcher {
	m := match.NewMatcher(similarity.PartialRatio())
	m.SetCandidates(
		[]db.MovementName{
			{MovementID: 1, CanonicalSlug: "hnuti-hare-krsna", DisplayName: str("Hnutí Hare Kršna")},
			{MovementID: 2, CanonicalSlug: "scientologie", DisplayName: str("Scientologie")},
		},
		[]db.AliasRow{{MovementID: 1, AliasText: "ISKCON"}},
	)
	return m
}

func testService(store *fakeStore, provider nlp.Provider, opts Options) *Service {
	dedup := contentdedup.NewDeduplicator(store, zerolog.Nop())
	svc := NewService(dedup, testMatcher(), provider, opts, zerolog.Nop())
	svc.detect = func(text string) string { return "cs" }
	return svc
}

func payloadJSON(t *testing.T, payload map[string]any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestIngestMatchesAndStores(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := testService(store, &fakeProvider{}, Options{})

	result, err := svc.Ingest(context.Background(), payloadJSON(t, map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://www.example.cz/clanek",
		"title":           "ISKCON chystá festival",
		"body_text":       "Hnutí Hare Kršna pořádá v Praze festival.",
		"published_at":    "2024-05-01T10:00:00Z",
	}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if !result.Inserted {
		t.Fatalf("result = %+v, want inserted", result)
	}
	if result.MovementID == nil || *result.MovementID != 1 {
		t.Fatalf("movement id = %v, want 1", result.MovementID)
	}
	if result.Language != "cs" {
		t.Fatalf("language = %q", result.Language)
	}

	stored := store.sources[result.SourceID]
	if stored.Domain == nil || *stored.Domain != "example.cz" {
		t.Fatalf("domain = %v, want example.cz derived from url", stored.Domain)
	}
	if stored.ContentHash == nil {
		t.Fatalf("content hash missing")
	}
	if stored.WordCount == nil || *stored.WordCount != 7 {
		t.Fatalf("word count = %v, want 7", stored.WordCount)
	}
	if stored.PublicationDate == nil {
		t.Fatalf("publication date missing")
	}
}

func TestIngestRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	svc := testService(newFakeStore(), &fakeProvider{}, Options{})

	if _, err := svc.Ingest(context.Background(), json.RawMessage(`{"payload_version":"v1"}`)); err == nil {
		t.Fatalf("payload without url/title must be rejected")
	}
}

func TestIngestDuplicateURL(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := testService(store, &fakeProvider{}, Options{})

	payload := map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://example.cz/a",
		"title":           "Zpráva",
		"body_text":       "Text zprávy o scientologii.",
	}

	first, err := svc.Ingest(context.Background(), payloadJSON(t, payload))
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := svc.Ingest(context.Background(), payloadJSON(t, payload))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if second.Inserted {
		t.Fatalf("duplicate must not insert")
	}
	if second.SourceID != first.SourceID {
		t.Fatalf("duplicate resolved to %d, want %d", second.SourceID, first.SourceID)
	}
	if second.Reason != contentdedup.ReasonDuplicateURL {
		t.Fatalf("reason = %q", second.Reason)
	}
}

func TestIngestFetchesMissingBody(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := FetcherFunc(func(ctx context.Context, url, title string) (string, error) {
		return "Stažený text o Hnutí Hare Kršna.", nil
	})
	svc := testService(store, &fakeProvider{}, Options{Fetcher: fetcher})

	result, err := svc.Ingest(context.Background(), payloadJSON(t, map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://example.cz/b",
		"title":           "Bez textu",
	}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stored := store.sources[result.SourceID]
	if stored.ContentFull == nil {
		t.Fatalf("fetched body missing")
	}
	if result.MovementID == nil || *result.MovementID != 1 {
		t.Fatalf("movement id = %v, want match from fetched text", result.MovementID)
	}
}

func TestIngestFetchFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	fetcher := FetcherFunc(func(ctx context.Context, url, title string) (string, error) {
		return "", fmt.Errorf("timeout")
	})
	svc := testService(store, &fakeProvider{}, Options{Fetcher: fetcher})

	result, err := svc.Ingest(context.Background(), payloadJSON(t, map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://example.cz/c",
		"title":           "Scientologie v médiích",
	}))
	if err != nil {
		t.Fatalf("Ingest must survive a fetch failure: %v", err)
	}
	if !result.Inserted {
		t.Fatalf("document must still be stored")
	}
	stored := store.sources[result.SourceID]
	if stored.ContentFull != nil {
		t.Fatalf("body must stay empty after failed fetch")
	}
	if stored.ContentHash != nil {
		t.Fatalf("textless row must not get a hash")
	}
	if result.MovementID == nil || *result.MovementID != 2 {
		t.Fatalf("movement id = %v, want title-based match", result.MovementID)
	}
}

func TestIngestMovementHintWins(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := testService(store, &fakeProvider{}, Options{})

	result, err := svc.Ingest(context.Background(), payloadJSON(t, map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://example.cz/d",
		"title":           "Obecný titulek",
		"body_text":       "Text bez jmen.",
		"movement_hint":   "ISKCON",
	}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.MovementID == nil || *result.MovementID != 1 {
		t.Fatalf("movement id = %v, want hint-resolved 1", result.MovementID)
	}
}

func TestIngestSentimentEnrichment(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	provider := &fakeProvider{analysis: &nlp.Analysis{
		Sentiment: &nlp.Sentiment{Label: "negative", Score: 0.88},
	}}
	svc := testService(store, provider, Options{})

	result, err := svc.Ingest(context.Background(), payloadJSON(t, map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://example.cz/e",
		"title":           "Zpráva",
		"body_text":       "Kritický článek o scientologii.",
	}))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	stored := store.sources[result.SourceID]
	if stored.SentimentScore == nil || *stored.SentimentScore != 0.88 {
		t.Fatalf("sentiment score = %v", stored.SentimentScore)
	}
	if stored.ClassificationLabel == nil || *stored.ClassificationLabel != "negative" {
		t.Fatalf("classification label = %v", stored.ClassificationLabel)
	}
}

func TestIngestNLPFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	provider := &fakeProvider{err: fmt.Errorf("model down")}
	svc := testService(store, provider, Options{})

	result, err := svc.Ingest(context.Background(), payloadJSON(t, map[string]any{
		"payload_version": "v1",
		"source":          "monitor",
		"url":             "https://example.cz/f",
		"title":           "Zpráva",
		"body_text":       "Nějaký text.",
	}))
	if err != nil {
		t.Fatalf("Ingest must survive an nlp failure: %v", err)
	}
	if !result.Inserted {
		t.Fatalf("document must still be stored")
	}
}
