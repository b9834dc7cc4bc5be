package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Sites.Path != "council_mappings.csv" {
		t.Fatalf("unexpected sites.path %q", cfg.Sites.Path)
	}
	if cfg.Crawler.UserAgent != "JobSight/1.0" {
		t.Fatalf("unexpected user agent %q", cfg.Crawler.UserAgent)
	}
	if got := cfg.PolitenessInterval(); got != 2*time.Second {
		t.Fatalf("expected 2s politeness interval, got %v", got)
	}
	if got := cfg.RequestTimeout(); got != 15*time.Second {
		t.Fatalf("expected 15s timeout, got %v", got)
	}
	if cfg.HTTP.MaxRetries != 0 {
		t.Fatalf("expected single-attempt fetches by default, got %d retries", cfg.HTTP.MaxRetries)
	}
	if cfg.Feed.Backend != BackendLocal || cfg.Feed.Path != "jobs.xml" || cfg.Feed.Language != "en-au" {
		t.Fatalf("unexpected feed defaults: %+v", cfg.Feed)
	}
	if cfg.Archive.Table != "council_jobs" {
		t.Fatalf("unexpected archive table %q", cfg.Archive.Table)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
sites:
  path: /etc/jobfeed/councils.csv
crawler:
  concurrency: 8
  user_agent: test-agent
  delay_ms: 500
http:
  timeout_seconds: 30
  max_retries: 2
  backoff_initial_ms: 100
  backoff_max_ms: 800
feed:
  backend: gcs
  path: feeds/jobs.xml
  gcs_bucket: council-feeds
  title: Council Jobs
archive:
  dsn: postgres://jobs@localhost/jobs
  max_conns: 4
  max_conn_lifetime_seconds: 300
notify:
  project_id: jobsight
  topic: council-jobs
logging:
  development: true
  file: /var/log/jobfeed.log
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Sites.Path != "/etc/jobfeed/councils.csv" {
		t.Fatalf("unexpected sites.path %q", cfg.Sites.Path)
	}
	if cfg.Crawler.Concurrency != 8 || cfg.Crawler.UserAgent != "test-agent" {
		t.Fatalf("expected crawler overrides to apply: %+v", cfg.Crawler)
	}
	if got := cfg.PolitenessInterval(); got != 500*time.Millisecond {
		t.Fatalf("expected 500ms politeness interval, got %v", got)
	}
	if cfg.BackoffInitial() != 100*time.Millisecond || cfg.BackoffMax() != 800*time.Millisecond {
		t.Fatalf("unexpected backoff: %v..%v", cfg.BackoffInitial(), cfg.BackoffMax())
	}
	if cfg.Feed.Backend != BackendGCS || cfg.Feed.GCSBucket != "council-feeds" || cfg.Feed.Title != "Council Jobs" {
		t.Fatalf("unexpected feed config: %+v", cfg.Feed)
	}
	if cfg.Feed.Language != "en-au" {
		t.Fatalf("expected default language to survive partial override, got %q", cfg.Feed.Language)
	}
	if cfg.Archive.MaxConns != 4 || cfg.ArchiveConnLifetime() != 5*time.Minute {
		t.Fatalf("unexpected archive pool settings: %+v", cfg.Archive)
	}
	if cfg.Archive.DSN == "" || cfg.Notify.Topic != "council-jobs" {
		t.Fatalf("expected archive and notify settings: %+v %+v", cfg.Archive, cfg.Notify)
	}
	if !cfg.Logging.Development || cfg.Logging.MaxSizeMB != 50 {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("JOBFEED_CRAWLER_DELAY_MS", "250")
	t.Setenv("JOBFEED_FEED_PATH", "/srv/www/jobs.xml")
	t.Setenv("JOBFEED_ARCHIVE_DSN", "postgres://env@db/jobs")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PolitenessInterval() != 250*time.Millisecond {
		t.Fatalf("expected env delay of 250ms, got %v", cfg.PolitenessInterval())
	}
	if cfg.Feed.Path != "/srv/www/jobs.xml" {
		t.Fatalf("unexpected feed path %q", cfg.Feed.Path)
	}
	if cfg.Archive.DSN != "postgres://env@db/jobs" {
		t.Fatalf("unexpected archive dsn %q", cfg.Archive.DSN)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Sites:   SitesConfig{Path: "council_mappings.csv"},
		Crawler: CrawlerConfig{Concurrency: 1, DelayMs: 1000},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Feed:    FeedConfig{Backend: BackendLocal, Path: "jobs.xml"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing sites path", func(c *Config) { c.Sites.Path = " " }, "sites.path"},
		{"invalid concurrency", func(c *Config) { c.Crawler.Concurrency = 0 }, "crawler.concurrency"},
		{"negative delay", func(c *Config) { c.Crawler.DelayMs = -1 }, "crawler.delay_ms"},
		{"zero delay", func(c *Config) { c.Crawler.DelayMs = 0 }, "crawler.delay_ms"},
		{"negative archive pool", func(c *Config) { c.Archive.MaxConns = -1 }, "archive.max_conns"},
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"negative retries", func(c *Config) { c.HTTP.MaxRetries = -1 }, "http.max_retries"},
		{"missing feed path", func(c *Config) { c.Feed.Path = "" }, "feed.path"},
		{"unknown backend", func(c *Config) { c.Feed.Backend = "s3" }, "feed.backend"},
		{"gcs without bucket", func(c *Config) { c.Feed.Backend = BackendGCS }, "feed.gcs_bucket"},
		{"topic without project", func(c *Config) { c.Notify.Topic = "jobs" }, "notify.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
