// Package config loads the crawl configuration from a YAML file, with
// every field overridable through ATRA.SECTION.KEY environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix is the leading component of override variables, e.g.
// ATRA.CRAWL.WORKERS=8 overrides crawl.workers.
const envPrefix = "ATRA."

// Config is the full crawl configuration tree.
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Crawl   CrawlConfig   `mapstructure:"crawl"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Warc    WarcConfig    `mapstructure:"warc"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SessionConfig names the run and places it on disk.
type SessionConfig struct {
	Name string `mapstructure:"name"`
	// Root is the directory session directories are created under.
	Root string `mapstructure:"root"`
}

// CrawlConfig governs the scheduler and budgets.
type CrawlConfig struct {
	// Workers is the crawl pool size. 0 means one worker per CPU core.
	Workers int    `mapstructure:"workers"`
	Agent   string `mapstructure:"agent"`
	// DepthOnWebsite and Depth feed the default budget; 0 means unbounded.
	DepthOnWebsite uint64 `mapstructure:"depth_on_website"`
	Depth          uint64 `mapstructure:"depth"`
	// Absolute switches the default budget to the Absolute shape, bounding
	// only total hops from the seed.
	Absolute bool `mapstructure:"absolute"`
	// RecrawlInterval of 0 means crawl each URL once only.
	RecrawlInterval time.Duration `mapstructure:"recrawl_interval"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	// MaxQueueAge drops an entry once it has been requeued this many
	// times. 0 disables aging.
	MaxQueueAge uint32 `mapstructure:"max_queue_age"`
	// OriginPolicy is "authority" (scheme+host+port) or "domain"
	// (registrable domain).
	OriginPolicy  string `mapstructure:"origin_policy"`
	RespectRobots bool   `mapstructure:"respect_robots"`
	// UseSitemaps seeds the queue from robots.txt-declared sitemaps before
	// crawling begins.
	UseSitemaps bool `mapstructure:"use_sitemaps"`
	// Blacklist is a list of regex patterns; matching URLs are never
	// crawled.
	Blacklist []string `mapstructure:"blacklist"`
	// MaxExtractionDepth bounds recursive extraction inside archives.
	MaxExtractionDepth int `mapstructure:"max_extraction_depth"`
}

// FetchConfig governs HTTP transport behavior.
type FetchConfig struct {
	MaxRedirects      int      `mapstructure:"max_redirects"`
	UseCookieJar      bool     `mapstructure:"use_cookie_jar"`
	Proxies           []string `mapstructure:"proxies"`
	Fingerprint       string   `mapstructure:"fingerprint"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"`
	Jitter            float64  `mapstructure:"jitter"`
}

// WarcConfig governs archive writing.
type WarcConfig struct {
	// MaxFileSize triggers rollover to a fresh WARC file once reached.
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

// StorageConfig selects the slim-result index backend.
type StorageConfig struct {
	// Backend is one of "sqlite", "postgres", "json", "csv".
	Backend string `mapstructure:"backend"`
	// DSN applies to the postgres backend; sqlite/json/csv derive their
	// paths from the session directory when this is empty.
	DSN string `mapstructure:"dsn"`
}

// LogConfig governs logging output.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	ToFile bool   `mapstructure:"to_file"`
}

// MetricsConfig governs the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Default returns the configuration used when no file and no overrides are
// given.
func Default() Config {
	return Config{
		Session: SessionConfig{Name: "atra", Root: "."},
		Crawl: CrawlConfig{
			Agent:              "atra/1.0",
			DepthOnWebsite:     20,
			Depth:              3,
			RequestTimeout:     15 * time.Second,
			MaxQueueAge:        20,
			OriginPolicy:       "authority",
			RespectRobots:      true,
			UseSitemaps:        false,
			MaxExtractionDepth: 5,
		},
		Fetch: FetchConfig{
			MaxRedirects: 10,
			UseCookieJar: true,
			Fingerprint:  "chrome",
		},
		Warc:    WarcConfig{MaxFileSize: 1 << 30},
		Storage: StorageConfig{Backend: "sqlite"},
		Log:     LogConfig{Level: "info"},
		Metrics: MetricsConfig{Port: 9090},
	}
}

// Load reads path (optional; "" means defaults only), applies ATRA.*
// environment overrides, and unmarshals the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("context: reading config file %q: %w", path, err)
		}
	}

	applyEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("context: unmarshalling config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("session.name", d.Session.Name)
	v.SetDefault("session.root", d.Session.Root)
	v.SetDefault("crawl.workers", d.Crawl.Workers)
	v.SetDefault("crawl.agent", d.Crawl.Agent)
	v.SetDefault("crawl.depth_on_website", d.Crawl.DepthOnWebsite)
	v.SetDefault("crawl.depth", d.Crawl.Depth)
	v.SetDefault("crawl.absolute", d.Crawl.Absolute)
	v.SetDefault("crawl.recrawl_interval", d.Crawl.RecrawlInterval)
	v.SetDefault("crawl.request_timeout", d.Crawl.RequestTimeout)
	v.SetDefault("crawl.max_queue_age", d.Crawl.MaxQueueAge)
	v.SetDefault("crawl.origin_policy", d.Crawl.OriginPolicy)
	v.SetDefault("crawl.respect_robots", d.Crawl.RespectRobots)
	v.SetDefault("crawl.use_sitemaps", d.Crawl.UseSitemaps)
	v.SetDefault("crawl.blacklist", d.Crawl.Blacklist)
	v.SetDefault("crawl.max_extraction_depth", d.Crawl.MaxExtractionDepth)
	v.SetDefault("fetch.max_redirects", d.Fetch.MaxRedirects)
	v.SetDefault("fetch.use_cookie_jar", d.Fetch.UseCookieJar)
	v.SetDefault("fetch.proxies", d.Fetch.Proxies)
	v.SetDefault("fetch.fingerprint", d.Fetch.Fingerprint)
	v.SetDefault("fetch.requests_per_second", d.Fetch.RequestsPerSecond)
	v.SetDefault("fetch.jitter", d.Fetch.Jitter)
	v.SetDefault("warc.max_file_size", d.Warc.MaxFileSize)
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.to_file", d.Log.ToFile)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.port", d.Metrics.Port)
}

// applyEnvOverrides scans the environment for ATRA.SECTION.KEY=value pairs
// and applies each as the corresponding nested key. Done by hand rather
// than viper.AutomaticEnv: viper joins nested keys with underscores, and
// the override contract here uses dots throughout.
func applyEnvOverrides(v *viper.Viper) {
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, envPrefix) {
			continue
		}
		eq := strings.Index(kv, "=")
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimPrefix(kv[:eq], envPrefix))
		v.Set(key, kv[eq+1:])
	}
}
