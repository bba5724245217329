package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/FranksOps/atra/internal/budget"
	"github.com/FranksOps/atra/internal/crawlresult"
	"github.com/FranksOps/atra/internal/linkstate"
	"github.com/FranksOps/atra/internal/queue"
	"github.com/FranksOps/atra/internal/runlayout"
	"github.com/FranksOps/atra/internal/storage"
)

// countingBackend wraps memBackend and counts saves per URL, so the tests
// can assert no URL is processed twice.
type countingBackend struct {
	mu sync.Mutex
	*memBackend
	saves map[string]int
}

func newCountingBackend() *countingBackend {
	return &countingBackend{memBackend: newMemBackend(), saves: make(map[string]int)}
}

func (c *countingBackend) Save(ctx context.Context, r *crawlresult.Result) error {
	c.mu.Lock()
	c.saves[r.URL]++
	c.mu.Unlock()
	return c.memBackend.Save(ctx, r)
}

func (c *countingBackend) Get(ctx context.Context, url string) (*crawlresult.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memBackend.Get(ctx, url)
}

func (c *countingBackend) Query(ctx context.Context, f storage.Filter) ([]*crawlresult.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memBackend.Query(ctx, f)
}

// pageBody builds a deterministic ~1KB HTML page for path.
func pageBody(path string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body><h1>%s</h1>", path, path)
	for b.Len() < 1024 {
		b.WriteString("<p>The quick brown fox jumps over the lazy dog again and again.</p>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

// newCrawlSite serves a root page linking to count leaf pages plus a
// robots-disallowed /private page.
func newCrawlSite(t *testing.T, count int, extraLinks ...string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		var b strings.Builder
		b.WriteString("<html><body><h1>index</h1>")
		for i := 1; i <= count; i++ {
			fmt.Fprintf(&b, `<a href="/p/%d">page %d</a>`, i, i)
		}
		b.WriteString(`<a href="/private">secret</a>`)
		for _, l := range extraLinks {
			fmt.Fprintf(&b, `<a href="%s">ext</a>`, l)
		}
		b.WriteString("</body></html>")
		fmt.Fprint(w, b.String())
	})
	mux.HandleFunc("/p/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, pageBody(r.URL.Path))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>should never be fetched</body></html>")
	})

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func newIntegrationRuntime(t *testing.T, cfg Config, backend storage.Backend) (*Runtime, *linkstate.Store) {
	t.Helper()
	dir := t.TempDir()

	run, err := runlayout.New(dir, "single")
	if err != nil {
		t.Fatal(err)
	}
	q, err := queue.Open(run.QueueFilePath())
	if err != nil {
		t.Fatal(err)
	}
	states, err := linkstate.Open(run.LinkStateDBPath())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { states.Close() })

	r, err := New(cfg, Deps{
		Run:     run,
		Queue:   q,
		States:  states,
		Backend: backend,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r, states
}

func TestCrawlStoresAllPagesAndRollsWarcFiles(t *testing.T) {
	other := newCrawlSite(t, 0)
	ts := newCrawlSite(t, 10, other.URL+"/p/1")

	backend := newCountingBackend()
	cfg := Config{
		Workers:         2,
		Agent:           "atra/1.0",
		Budget:          budget.NewCrawl(budget.DefaultSetting()),
		RespectRobots:   true,
		WarcMaxFileSize: 4096,
		SessionName:     "test",
		JobID:           "job1",
	}
	r, states := newIntegrationRuntime(t, cfg, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := r.Run(ctx, []string{ts.URL}); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	// Every leaf page got stored exactly once.
	for i := 1; i <= 10; i++ {
		url := fmt.Sprintf("%s/p/%d", ts.URL, i)
		res, err := backend.Get(ctx, url)
		if err != nil {
			t.Fatal(err)
		}
		if res == nil {
			t.Fatalf("page %s was never stored", url)
		}
		if got := backend.saves[url]; got != 1 {
			t.Errorf("page %s saved %d times, want 1", url, got)
		}

		st, ok, err := states.Get(ctx, url)
		if err != nil || !ok {
			t.Fatalf("state for %s: ok=%v err=%v", url, ok, err)
		}
		if st.Kind != linkstate.ProcessedAndStored {
			t.Errorf("page %s in state %v, want ProcessedAndStored", url, st.Kind)
		}
	}

	// The cross-origin link was followed: both origins crawled.
	if res, err := backend.Get(ctx, other.URL+"/p/1"); err != nil || res == nil {
		t.Errorf("cross-origin page not stored (res=%v err=%v)", res, err)
	}

	// Robots keeps /private at Discovered, never stored.
	privateURL := ts.URL + "/private"
	if res, _ := backend.Get(ctx, privateURL); res != nil {
		t.Errorf("robots-disallowed page was stored")
	}
	if st, ok, err := states.Get(ctx, privateURL); err != nil || !ok {
		t.Errorf("missing state for %s (ok=%v err=%v)", privateURL, ok, err)
	} else if st.Kind != linkstate.Discovered {
		t.Errorf("robots-disallowed page advanced to %v", st.Kind)
	}

	// 11+ pages of ~1KB into 4KB files must have rolled at least twice.
	warcs, err := filepath.Glob(filepath.Join(r.run.Dir, "worker_*", "*.warc"))
	if err != nil {
		t.Fatal(err)
	}
	if len(warcs) < 3 {
		t.Errorf("got %d warc files, want >= 3", len(warcs))
	}

	// Every stored page's skip pointer locates its exact body bytes.
	for i := 1; i <= 10; i++ {
		url := fmt.Sprintf("%s/p/%d", ts.URL, i)
		res, _ := backend.Get(ctx, url)
		if res.StoredData.Kind != crawlresult.HintWarc {
			t.Fatalf("page %s stored with hint %d, want WARC", url, res.StoredData.Kind)
		}
		want := pageBody("/p/" + fmt.Sprint(i))
		var got []byte
		for _, ptr := range res.StoredData.WarcSkip.Pointers {
			data, err := os.ReadFile(ptr.Path)
			if err != nil {
				t.Fatalf("reading warc %s: %v", ptr.Path, err)
			}
			start, end := ptr.BodyRange()
			if end > int64(len(data)) {
				t.Fatalf("pointer %s out of range (file %d bytes)", ptr, len(data))
			}
			got = append(got, data[start:end]...)
		}
		if string(got) != want {
			t.Errorf("skip pointer for %s reproduced %d bytes, want %d matching bytes", url, len(got), len(want))
		}
	}
}

func TestCrawlResumeSkipsStoredPages(t *testing.T) {
	ts := newCrawlSite(t, 3)

	backend := newCountingBackend()
	cfg := Config{
		Workers:     1,
		Agent:       "atra/1.0",
		Budget:      budget.NewCrawl(budget.DefaultSetting()),
		SessionName: "test",
		JobID:       "job2",
	}
	r, states := newIntegrationRuntime(t, cfg, backend)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := r.Run(ctx, []string{ts.URL}); err != nil {
		t.Fatalf("first crawl failed: %v", err)
	}
	firstSaves := make(map[string]int, len(backend.saves))
	for k, v := range backend.saves {
		firstSaves[k] = v
	}

	// A second run over the same stores and seeds finds everything
	// ProcessedAndStored with no recrawl interval: nothing is refetched.
	r2, err := New(cfg, Deps{
		Run:     r.run,
		Queue:   r.queue,
		States:  r.states,
		Backend: backend,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := r2.Run(ctx, []string{ts.URL}); err != nil {
		t.Fatalf("resumed crawl failed: %v", err)
	}

	for url, count := range backend.saves {
		if count != firstSaves[url] {
			t.Errorf("url %s was refetched on resume (%d -> %d saves)", url, firstSaves[url], count)
		}
	}

	counts, err := states.CountByKind(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[linkstate.ProcessedAndStored] < 4 {
		t.Errorf("got %d stored pages, want >= 4", counts[linkstate.ProcessedAndStored])
	}
}
