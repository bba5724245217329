package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// exampleDoc mirrors Config with yaml tags so the generated example file
// round-trips through Load unchanged.
type exampleDoc struct {
	Session map[string]any `yaml:"session"`
	Crawl   map[string]any `yaml:"crawl"`
	Fetch   map[string]any `yaml:"fetch"`
	Warc    map[string]any `yaml:"warc"`
	Storage map[string]any `yaml:"storage"`
	Log     map[string]any `yaml:"log"`
	Metrics map[string]any `yaml:"metrics"`
}

// WriteExample emits a commented-by-values example configuration with every
// field at its default, for --generate-example-config.
func WriteExample(w io.Writer) error {
	d := Default()
	doc := exampleDoc{
		Session: map[string]any{
			"name": d.Session.Name,
			"root": d.Session.Root,
		},
		Crawl: map[string]any{
			"workers":              d.Crawl.Workers,
			"agent":                d.Crawl.Agent,
			"depth_on_website":     d.Crawl.DepthOnWebsite,
			"depth":                d.Crawl.Depth,
			"absolute":             d.Crawl.Absolute,
			"recrawl_interval":     d.Crawl.RecrawlInterval.String(),
			"request_timeout":      d.Crawl.RequestTimeout.String(),
			"max_queue_age":        d.Crawl.MaxQueueAge,
			"origin_policy":        d.Crawl.OriginPolicy,
			"respect_robots":       d.Crawl.RespectRobots,
			"use_sitemaps":         d.Crawl.UseSitemaps,
			"blacklist":            []string{},
			"max_extraction_depth": d.Crawl.MaxExtractionDepth,
		},
		Fetch: map[string]any{
			"max_redirects":       d.Fetch.MaxRedirects,
			"use_cookie_jar":      d.Fetch.UseCookieJar,
			"proxies":             []string{},
			"fingerprint":         d.Fetch.Fingerprint,
			"requests_per_second": d.Fetch.RequestsPerSecond,
			"jitter":              d.Fetch.Jitter,
		},
		Warc: map[string]any{
			"max_file_size": d.Warc.MaxFileSize,
		},
		Storage: map[string]any{
			"backend": d.Storage.Backend,
			"dsn":     d.Storage.DSN,
		},
		Log: map[string]any{
			"level":   d.Log.Level,
			"to_file": d.Log.ToFile,
		},
		Metrics: map[string]any{
			"enabled": d.Metrics.Enabled,
			"port":    d.Metrics.Port,
		},
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("context: encoding example config: %w", err)
	}
	return enc.Close()
}
