package linkstate

import (
	"context"
	"testing"
	"time"

	"github.com/FranksOps/atra/internal/atraurl"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertFirstWriteIsAccepted(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	at := time.Unix(1000, 0).UTC()
	got, err := s.Upsert(ctx, "https://example.com/a", New(Discovered, at, atraurl.SeedDepth, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != Discovered {
		t.Fatalf("got kind %v want Discovered", got.Kind)
	}

	stored, ok, err := s.Get(ctx, "https://example.com/a")
	if err != nil || !ok {
		t.Fatalf("expected stored record, ok=%v err=%v", ok, err)
	}
	if stored.Kind != Discovered {
		t.Fatalf("got %v want Discovered", stored.Kind)
	}
}

func TestUpsertOlderWriteLoses(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	url := "https://example.com/a"

	newer := time.Unix(2000, 0).UTC()
	older := time.Unix(1000, 0).UTC()

	if _, err := s.Upsert(ctx, url, New(Crawled, newer, atraurl.SeedDepth, nil)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Upsert(ctx, url, New(ReservedForCrawl, older, atraurl.SeedDepth, nil))
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != Crawled {
		t.Fatalf("expected older write to lose, got kind %v", got.Kind)
	}
}

func TestUpsertCarriesForwardLastSignificantKind(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	url := "https://example.com/a"

	t0 := time.Unix(1000, 0).UTC()
	t1 := time.Unix(2000, 0).UTC()

	if _, err := s.Upsert(ctx, url, New(ProcessedAndStored, t0, atraurl.SeedDepth, nil)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Upsert(ctx, url, New(InternalError, t1, atraurl.SeedDepth, nil))
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != InternalError {
		t.Fatalf("got kind %v want InternalError", got.Kind)
	}
	if got.LastSignificantKind != ProcessedAndStored {
		t.Fatalf("got last significant %v want ProcessedAndStored", got.LastSignificantKind)
	}
}

func TestUpsertPreservesLastSignificantWhenExistingNotSignificant(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	url := "https://example.com/a"

	t0 := time.Unix(1000, 0).UTC()
	t1 := time.Unix(2000, 0).UTC()
	t2 := time.Unix(3000, 0).UTC()

	if _, err := s.Upsert(ctx, url, New(Crawled, t0, atraurl.SeedDepth, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(ctx, url, New(InternalError, t1, atraurl.SeedDepth, nil)); err != nil {
		t.Fatal(err)
	}
	got, err := s.Upsert(ctx, url, New(InternalError, t2, atraurl.SeedDepth, nil))
	if err != nil {
		t.Fatal(err)
	}
	if got.LastSignificantKind != Crawled {
		t.Fatalf("got last significant %v want Crawled", got.LastSignificantKind)
	}
}

func TestGetMissingReturnsNotOk(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "https://missing.example/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing record")
	}
}

func TestCountByKind(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Unix(1000, 0).UTC()

	urls := []struct {
		url  string
		kind Kind
	}{
		{"https://example.com/a", Discovered},
		{"https://example.com/b", Discovered},
		{"https://example.com/c", Crawled},
	}
	for _, u := range urls {
		if _, err := s.Upsert(ctx, u.url, New(u.kind, at, atraurl.SeedDepth, nil)); err != nil {
			t.Fatal(err)
		}
	}

	counts, err := s.CountByKind(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[Discovered] != 2 {
		t.Fatalf("got %d discovered want 2", counts[Discovered])
	}
	if counts[Crawled] != 1 {
		t.Fatalf("got %d crawled want 1", counts[Crawled])
	}
}

func TestHasCrawlableLinks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Unix(1000, 0).UTC()

	has, err := s.HasCrawlableLinks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Fatalf("expected no crawlable links in empty store")
	}

	if _, err := s.Upsert(ctx, "https://example.com/a", New(Discovered, at, atraurl.SeedDepth, nil)); err != nil {
		t.Fatal(err)
	}
	has, err = s.HasCrawlableLinks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Fatalf("expected a crawlable link after inserting a Discovered record")
	}
}

func TestCrawlableReturnsDiscoveredWithDepth(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Unix(1000, 0).UTC()

	depth := atraurl.Depth{DepthOnWebsite: 2, DistanceToSeed: 1, TotalDistanceToSeed: 3}
	if _, err := s.Upsert(ctx, "https://example.com/a", New(Discovered, at, depth, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(ctx, "https://example.com/b", New(ProcessedAndStored, at, atraurl.SeedDepth, nil)); err != nil {
		t.Fatal(err)
	}

	links, err := s.Crawlable(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 1 {
		t.Fatalf("got %d crawlable links, want 1", len(links))
	}
	if links[0].URL != "https://example.com/a" {
		t.Fatalf("got url %q", links[0].URL)
	}
	if links[0].Depth != depth {
		t.Fatalf("got depth %+v want %+v", links[0].Depth, depth)
	}
}

func TestCrawlableHonorsLimit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	at := time.Unix(1000, 0).UTC()

	for _, url := range []string{"https://a.example/", "https://b.example/", "https://c.example/"} {
		if _, err := s.Upsert(ctx, url, New(Discovered, at, atraurl.SeedDepth, nil)); err != nil {
			t.Fatal(err)
		}
	}

	links, err := s.Crawlable(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
}
