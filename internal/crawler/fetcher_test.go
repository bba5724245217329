package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/atra/internal/fingerprint"
)

func TestFetcherFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/old":
			http.Redirect(w, r, "/page", http.StatusMovedPermanently)
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body>hello</body></html>")
		case "/blocked":
			w.Header().Set("Server", "cloudflare")
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, "Attention Required! | Cloudflare")
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	f, err := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo, MaxRedirects: 5})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := f.Fetch(context.Background(), ts.URL+"/page", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}
	if string(resp.Body) != "<html><body>hello</body></html>" {
		t.Fatalf("unexpected body %q", resp.Body)
	}
	if resp.FinalRedirect != "" {
		t.Fatalf("unexpected final redirect %q", resp.FinalRedirect)
	}
	if resp.BotDetected {
		t.Fatal("plain page flagged as bot challenge")
	}

	// Redirects are followed and the final URL reported.
	resp, err = f.Fetch(context.Background(), ts.URL+"/old", 0)
	if err != nil {
		t.Fatal(err)
	}
	if resp.FinalRedirect != ts.URL+"/page" {
		t.Fatalf("got final redirect %q want %q", resp.FinalRedirect, ts.URL+"/page")
	}

	// Challenge pages are detected, not treated as content.
	resp, err = f.Fetch(context.Background(), ts.URL+"/blocked", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.BotDetected || resp.BotSrc != "Cloudflare" {
		t.Fatalf("expected Cloudflare detection, got %v %q", resp.BotDetected, resp.BotSrc)
	}
}

func TestFetcherTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer ts.Close()

	f, err := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if _, err := f.Fetch(context.Background(), ts.URL, 50*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Fatal("per-request timeout was not applied")
	}
}

func TestFetcherFetchFuncAdaptsForRobots(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			fmt.Fprint(w, "User-agent: *\nDisallow: /x\n")
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	f, err := NewFetcher(FetchConfig{Fingerprint: fingerprint.ProfileGo})
	if err != nil {
		t.Fatal(err)
	}

	body, status, err := f.FetchFunc()(context.Background(), ts.URL+"/robots.txt")
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	if len(body) == 0 {
		t.Fatal("empty robots body")
	}
}
