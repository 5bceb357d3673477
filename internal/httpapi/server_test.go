package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"horse.fit/movements/internal/auth"
	"horse.fit/movements/internal/contentdedup"
	"horse.fit/movements/internal/db"
)

func str(s string) *string { return &s }

type fakeCatalog struct {
	summaries []db.MovementSummary
	details   map[string]db.MovementDetail
	sources   map[int64][]db.SourceSummary
	stats     db.RegistryStats

	lastQuery string
}

func (f *fakeCatalog) ListMovementSummaries(ctx context.Context, query string, limit, offset int) ([]db.MovementSummary, error) {
	f.lastQuery = query
	return f.summaries, nil
}

func (f *fakeCatalog) GetMovementDetail(ctx context.Context, slug string) (db.MovementDetail, bool, error) {
	detail, ok := f.details[slug]
	return detail, ok, nil
}

func (f *fakeCatalog) ListSourcesByMovement(ctx context.Context, movementID int64, limit, offset int) ([]db.SourceSummary, error) {
	return f.sources[movementID], nil
}

func (f *fakeCatalog) GetRegistryStats(ctx context.Context) (db.RegistryStats, error) {
	return f.stats, nil
}

type fakeBackfiller struct {
	stats contentdedup.BackfillStats
	calls int
}

func (f *fakeBackfiller) UpdateContentHashes(ctx context.Context, batchSize int) (contentdedup.BackfillStats, error) {
	f.calls++
	return f.stats, nil
}

func testServer(t *testing.T, catalog *fakeCatalog, backfiller Backfiller) *httptest.Server {
	t.Helper()

	hash, err := auth.HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	server := NewServer(catalog, backfiller, zerolog.Nop(), Options{
		AdminUser:         "admin",
		AdminPasswordHash: hash,
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeEnvelope(t *testing.T, resp *http.Response) apiEnvelope {
	t.Helper()
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := testServer(t, &fakeCatalog{}, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		t.Fatalf("status = %d, envelope = %+v", resp.StatusCode, envelope)
	}
}

func TestListMovements(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{
		summaries: []db.MovementSummary{
			{MovementID: 1, CanonicalSlug: "scientologie", DisplayName: str("Scientologie"), SourceCount: 4},
		},
	}
	ts := testServer(t, catalog, nil)

	resp, err := http.Get(ts.URL + "/api/v1/movements?q=scient")
	if err != nil {
		t.Fatalf("get movements: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Success {
		t.Fatalf("envelope = %+v", envelope)
	}
	if catalog.lastQuery != "scient" {
		t.Fatalf("query = %q, want passed through", catalog.lastQuery)
	}
}

func TestListMovementsBadPaging(t *testing.T) {
	t.Parallel()

	ts := testServer(t, &fakeCatalog{}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/movements?limit=zero")
	if err != nil {
		t.Fatalf("get movements: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusBadRequest || envelope.Success {
		t.Fatalf("status = %d, envelope = %+v", resp.StatusCode, envelope)
	}
}

func TestMovementDetailNotFound(t *testing.T) {
	t.Parallel()

	ts := testServer(t, &fakeCatalog{details: map[string]db.MovementDetail{}}, nil)

	resp, err := http.Get(ts.URL + "/api/v1/movements/neexistuje")
	if err != nil {
		t.Fatalf("get movement: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if resp.StatusCode != http.StatusNotFound || envelope.Success {
		t.Fatalf("status = %d, envelope = %+v", resp.StatusCode, envelope)
	}
}

func TestMovementSources(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{
		details: map[string]db.MovementDetail{
			"scientologie": {MovementID: 2, CanonicalSlug: "scientologie"},
		},
		sources: map[int64][]db.SourceSummary{
			2: {{SourceID: 10, URL: "https://example.cz/a"}},
		},
	}
	ts := testServer(t, catalog, nil)

	resp, err := http.Get(ts.URL + "/api/v1/movements/scientologie/sources")
	if err != nil {
		t.Fatalf("get sources: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Success {
		t.Fatalf("envelope = %+v", envelope)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T", envelope.Data)
	}
	sources, ok := data["sources"].([]any)
	if !ok || len(sources) != 1 {
		t.Fatalf("sources = %v", data["sources"])
	}
}

func TestAdminBackfillRequiresAuth(t *testing.T) {
	t.Parallel()

	backfiller := &fakeBackfiller{stats: contentdedup.BackfillStats{Scanned: 3, Updated: 2, SkippedBlank: 1}}
	ts := testServer(t, &fakeCatalog{}, backfiller)

	resp, err := http.Post(ts.URL+"/api/v1/admin/hashes/backfill", "application/json", nil)
	if err != nil {
		t.Fatalf("post backfill: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without credentials = %d, want 401", resp.StatusCode)
	}
	if backfiller.calls != 0 {
		t.Fatalf("backfill ran without credentials")
	}

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/admin/hashes/backfill?batch_size=50", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.SetBasicAuth("admin", "secret123")
	authResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post backfill with auth: %v", err)
	}
	envelope := decodeEnvelope(t, authResp)
	if authResp.StatusCode != http.StatusOK || !envelope.Success {
		t.Fatalf("status = %d, envelope = %+v", authResp.StatusCode, envelope)
	}
	if backfiller.calls != 1 {
		t.Fatalf("backfill calls = %d, want 1", backfiller.calls)
	}
}

func TestAdminBackfillRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	backfiller := &fakeBackfiller{}
	ts := testServer(t, &fakeCatalog{}, backfiller)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/admin/hashes/backfill", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.SetBasicAuth("admin", "wrong")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post backfill: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if backfiller.calls != 0 {
		t.Fatalf("backfill ran with wrong password: %d", backfiller.calls)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	catalog := &fakeCatalog{stats: db.RegistryStats{Movements: 5, Sources: 100}}
	ts := testServer(t, catalog, nil)

	resp, err := http.Get(ts.URL + "/api/v1/stats")
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	envelope := decodeEnvelope(t, resp)
	if !envelope.Success {
		t.Fatalf("envelope = %+v", envelope)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T", envelope.Data)
	}
	if fmt.Sprintf("%v", data["movements"]) != "5" {
		t.Fatalf("movements = %v", data["movements"])
	}
}
