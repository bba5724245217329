package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/format"
	"github.com/FranksOps/atra/internal/storage"
	"github.com/FranksOps/atra/internal/warcstore"
)

func sampleResult(url string, createdAt time.Time) *crawlresult.Result {
	ptr := warcstore.SkipPointer{
		Path:             "worker_0/atra_job_0_1_1.warc",
		Position:         128,
		WarcHeaderOffset: 64,
		BodyOctetCount:   1024,
	}
	return &crawlresult.Result{
		CreatedAt:  createdAt,
		URL:        url,
		StatusCode: 200,
		FileInfo:   format.Info{MIME: "text/html"},
		Encoding:   "utf-8",
		Headers: []crawlresult.Header{
			{Name: "Content-Type", Value: "text/html; charset=utf-8"},
		},
		ExtractedLinks: []string{"https://example.com/next"},
		StoredData:     crawlresult.Warc(warcstore.NewSingle(ptr, 64, warcstore.Normal)),
	}
}

func TestSQLiteBackend(t *testing.T) {
	// Use an in-memory database for testing
	dsn := "file::memory:?cache=shared"
	b, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	res := sampleResult("https://example.com/", now)
	if err := b.Save(ctx, res); err != nil {
		t.Fatalf("Failed to save result: %v", err)
	}

	// Test Get
	got, err := b.Get(ctx, "https://example.com/")
	if err != nil {
		t.Fatalf("Failed to get result: %v", err)
	}
	if got == nil {
		t.Fatal("Expected a stored result, got nil")
	}
	if got.URL != res.URL {
		t.Errorf("Expected URL %s, got %s", res.URL, got.URL)
	}
	if got.StatusCode != res.StatusCode {
		t.Errorf("Expected StatusCode %d, got %d", res.StatusCode, got.StatusCode)
	}
	if got.FileInfo.MIME != "text/html" {
		t.Errorf("Expected MIME text/html, got %s", got.FileInfo.MIME)
	}
	if got.StoredData.Kind != crawlresult.HintWarc {
		t.Errorf("Expected a WARC hint, got kind %d", got.StoredData.Kind)
	}
	if len(got.StoredData.WarcSkip.Pointers) != 1 {
		t.Fatalf("Expected 1 skip pointer, got %d", len(got.StoredData.WarcSkip.Pointers))
	}
	if got.StoredData.WarcSkip.Pointers[0].BodyOctetCount != 1024 {
		t.Errorf("Skip pointer body count mangled: %d", got.StoredData.WarcSkip.Pointers[0].BodyOctetCount)
	}

	// Get on an unknown URL returns nil, no error
	missing, err := b.Get(ctx, "https://example.com/missing")
	if err != nil {
		t.Fatalf("Get on missing URL errored: %v", err)
	}
	if missing != nil {
		t.Fatal("Expected nil for missing URL")
	}

	// Save on the same URL upserts rather than duplicating
	res2 := sampleResult("https://example.com/", now.Add(time.Minute))
	res2.StatusCode = 304
	if err := b.Save(ctx, res2); err != nil {
		t.Fatalf("Failed to upsert result: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{URL: "https://example.com/"})
	if err != nil {
		t.Fatalf("Failed to query results: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result after upsert, got %d", len(results))
	}
	if results[0].StatusCode != 304 {
		t.Errorf("Expected upserted StatusCode 304, got %d", results[0].StatusCode)
	}

	// Test Since filter
	past := now.Add(-1 * time.Hour)
	resultsSince, err := b.Query(ctx, storage.Filter{Since: &past})
	if err != nil {
		t.Fatalf("Failed to query results with Since: %v", err)
	}
	if len(resultsSince) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(resultsSince))
	}

	// Test StatusCode filter
	status := 200
	resultsByStatus, err := b.Query(ctx, storage.Filter{StatusCode: &status})
	if err != nil {
		t.Fatalf("Failed to query results with StatusCode: %v", err)
	}
	if len(resultsByStatus) != 0 {
		t.Fatalf("Expected 0 results for status 200 after upsert to 304, got %d", len(resultsByStatus))
	}

	// Test MIME filter
	resultsByMIME, err := b.Query(ctx, storage.Filter{MIME: "text/html"})
	if err != nil {
		t.Fatalf("Failed to query results with MIME: %v", err)
	}
	if len(resultsByMIME) != 1 {
		t.Fatalf("Expected 1 result for text/html, got %d", len(resultsByMIME))
	}
}
