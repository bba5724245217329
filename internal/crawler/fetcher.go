package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/atra/internal/bypass"
	"github.com/FranksOps/atra/internal/fingerprint"
	"github.com/FranksOps/atra/internal/metrics"
	"github.com/FranksOps/atra/pkg/httpclient"
	"github.com/FranksOps/atra/pkg/proxy"
	"github.com/FranksOps/atra/pkg/ratelimit"
	"github.com/FranksOps/atra/pkg/useragent"

	"github.com/FranksOps/atra/internal/robots"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// FetchConfig configures the shared page fetcher.
type FetchConfig struct {
	// Timeout is the default per-request timeout and also the client-wide
	// limit on every request: a budget's RequestTimeout can shorten a
	// fetch below it but cannot extend a fetch beyond it.
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	Fingerprint  fingerprint.Profile
	Limiter      *ratelimit.Limiter
}

// Response is what a fetch hands to the crawl loop: status, headers and
// body, plus the redirect target actually served and any bot-protection
// challenge the detectors recognized.
type Response struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	FinalRedirect string
	Duration      time.Duration
	BotDetected   bool
	BotSrc        string
}

// Fetcher performs page fetches for the crawl loop. A single client is
// held across requests so the cookie jar (if configured) persists for the
// lifetime of the Fetcher; per-request proxy rotation is injected through
// the request context.
type Fetcher struct {
	config FetchConfig
	client *httpclient.Client
}

// NewFetcher initializes a new Fetcher with the given configuration.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.Fixed("")
	}
	if string(cfg.Fingerprint) == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	// Create the transport just once per fetcher to allow connection
	// pooling. The proxy function reads from the request context so each
	// request can carry its own proxy without touching shared state.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if val := req.Context().Value(proxyKey); val != nil {
			if u, ok := val.(*url.URL); ok {
				return u, nil
			}
		}
		if req.URL.Host == "example.com" || req.URL.Hostname() == "127.0.0.1" {
			// Keep local test targets off any environment proxy.
			return nil, nil
		}
		return http.ProxyFromEnvironment(req)
	}

	transport, err := fingerprint.Transport(cfg.Fingerprint, proxyFunc)
	if err != nil {
		return nil, fmt.Errorf("context: setting up transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
	})
	if err != nil {
		return nil, fmt.Errorf("context: creating client: %w", err)
	}

	return &Fetcher{
		config: cfg,
		client: client,
	}, nil
}

// Fetch executes a GET of targetURL. A positive timeout bounds this fetch
// through its context; the client-wide FetchConfig.Timeout still applies,
// so the shorter of the two wins. Transport-level failures return an error; any
// HTTP response, including challenge pages and server errors, returns a
// Response.
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, timeout time.Duration) (*Response, error) {
	if f.config.Limiter != nil {
		if err := f.config.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("context: rate limiter: %w", err)
		}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	origin := ""
	if u, err := url.Parse(targetURL); err == nil {
		origin = u.Scheme + "://" + u.Host
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Next()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("context: creating request: %w", err)
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	req.Header.Set("User-Agent", f.config.UAPool.GetSequential())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		if activeProxy != nil {
			_ = f.config.ProxyPool.MarkFailure(activeProxy)
			metrics.ProxyFailures.WithLabelValues(activeProxy.String()).Inc()
		}
		metrics.RecordFetch(metrics.Fetch{Origin: origin, Failed: true, Duration: time.Since(start)})
		return nil, fmt.Errorf("context: request failed: %w", err)
	}
	defer resp.Body.Close()

	if activeProxy != nil {
		_ = f.config.ProxyPool.MarkSuccess(activeProxy)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RecordFetch(metrics.Fetch{Origin: origin, Failed: true, Duration: time.Since(start)})
		return nil, fmt.Errorf("context: reading body: %w", err)
	}

	out := &Response{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          body,
		FinalRedirect: httpclient.FinalURL(targetURL, resp),
		Duration:      time.Since(start),
	}

	out.BotDetected, out.BotSrc = bypass.Analyze(bypass.Page{
		StatusCode: out.StatusCode,
		Headers:    out.Headers,
		Body:       out.Body,
	}, bypass.DefaultDetectors())

	metrics.RecordFetch(metrics.Fetch{
		Origin:       origin,
		StatusCode:   out.StatusCode,
		DetectedBot:  out.BotDetected,
		DetectionSrc: out.BotSrc,
		Duration:     out.Duration,
		Bytes:        len(out.Body),
	})

	return out, nil
}

// FetchFunc adapts the Fetcher to the callback shape the robots auditor
// and sitemap fetcher consume.
func (f *Fetcher) FetchFunc() robots.Fetch {
	return func(ctx context.Context, url string) ([]byte, int, error) {
		resp, err := f.Fetch(ctx, url, 0)
		if err != nil {
			return nil, 0, err
		}
		return resp.Body, resp.StatusCode, nil
	}
}
