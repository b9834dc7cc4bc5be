// Package config loads and validates run configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Feed backends.
const (
	BackendLocal = "local"
	BackendGCS   = "gcs"
)

// Config captures all run configuration knobs loaded via Viper.
type Config struct {
	Sites   SitesConfig   `mapstructure:"sites"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Feed    FeedConfig    `mapstructure:"feed"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SitesConfig locates the site table.
type SitesConfig struct {
	Path string `mapstructure:"path"`
}

// CrawlerConfig governs site fan-out and politeness.
type CrawlerConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	UserAgent   string `mapstructure:"user_agent"`
	DelayMs     int    `mapstructure:"delay_ms"`
}

// HTTPConfig configures the HTTP client timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// FeedConfig says where the feed lives and how it describes itself.
type FeedConfig struct {
	Backend     string `mapstructure:"backend"`
	Path        string `mapstructure:"path"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Link        string `mapstructure:"link"`
	Language    string `mapstructure:"language"`
}

// ArchiveConfig enables the Postgres job archive when DSN is set. Zero pool
// settings keep pgx's defaults.
type ArchiveConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Table                  string `mapstructure:"table"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
}

// NotifyConfig enables Pub/Sub announcements when both fields are set.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig enables the Prometheus textfile when Textfile is set.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig toggles zap development features and file output.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
}

// Load builds a Config from an optional file and JOBFEED_* environment
// variables.
func Load(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// New returns a Viper instance with defaults and environment binding, ready
// for flag overrides.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("JOBFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// FromViper decodes and validates v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Every key needs a default, even an empty one, so AutomaticEnv can override
// it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("sites.path", "council_mappings.csv")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.user_agent", "JobSight/1.0")
	v.SetDefault("crawler.delay_ms", 2000)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 0)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("feed.backend", BackendLocal)
	v.SetDefault("feed.path", "jobs.xml")
	v.SetDefault("feed.gcs_bucket", "")
	v.SetDefault("feed.title", "Victorian Council Jobs")
	v.SetDefault("feed.description", "New vacancies advertised by Victorian local councils")
	v.SetDefault("feed.link", "https://www.vic.gov.au/local-government")
	v.SetDefault("feed.language", "en-au")
	v.SetDefault("archive.dsn", "")
	v.SetDefault("archive.table", "council_jobs")
	v.SetDefault("archive.max_conns", 0)
	v.SetDefault("archive.max_conn_lifetime_seconds", 0)
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Sites.Path) == "" {
		return fmt.Errorf("sites.path is required")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.DelayMs <= 0 {
		return fmt.Errorf("crawler.delay_ms must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if strings.TrimSpace(c.Feed.Path) == "" {
		return fmt.Errorf("feed.path is required")
	}
	switch c.Feed.Backend {
	case BackendLocal:
	case BackendGCS:
		if c.Feed.GCSBucket == "" {
			return fmt.Errorf("feed.gcs_bucket is required when feed.backend is %q", BackendGCS)
		}
	default:
		return fmt.Errorf("feed.backend must be %q or %q, got %q", BackendLocal, BackendGCS, c.Feed.Backend)
	}
	if c.Archive.MaxConns < 0 || c.Archive.MaxConnLifetimeSeconds < 0 {
		return fmt.Errorf("archive.max_conns and archive.max_conn_lifetime_seconds must be >= 0")
	}
		if (c.Notify.ProjectID == "") != (c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic must be set together")
	}
	return nil
}

// PolitenessInterval is the delay before each request to a host.
func (c Config) PolitenessInterval() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// RequestTimeout bounds each HTTP request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial is the first retry delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax caps retry delays.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// ArchiveConnLifetime caps how long a pooled archive connection is reused.
func (c Config) ArchiveConnLifetime() time.Duration {
	return time.Duration(c.Archive.MaxConnLifetimeSeconds) * time.Second
}
