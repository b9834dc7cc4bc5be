// Package metrics exposes Prometheus collectors for a scrape run.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal            *prometheus.CounterVec
	fetchBytesTotal         *prometheus.CounterVec
	jobsDiscoveredTotal     *prometheus.CounterVec
	siteFailuresTotal       *prometheus.CounterVec
	feedEntriesAddedTotal   prometheus.Counter
	feedEntries             prometheus.Gauge
	activeSites             prometheus.Gauge
	rateLimitDelaysSeconds  *prometheus.HistogramVec
	lastRunTimestampSeconds prometheus.Gauge
	lastRunDurationSeconds  prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfeed_fetches_total",
				Help: "Total number of page fetches, labeled by host and status.",
			},
			[]string{"host", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfeed_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by host.",
			},
			[]string{"host"},
		)

		jobsDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfeed_jobs_discovered_total",
				Help: "Job records emitted by the site scraper, labeled by site.",
			},
			[]string{"site"},
		)

		siteFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobfeed_site_failures_total",
				Help: "Sites whose scrape failed entirely, labeled by site.",
			},
			[]string{"site"},
		)

		feedEntriesAddedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "jobfeed_feed_entries_added_total",
				Help: "Entries merged into the persisted feed.",
			},
		)

		feedEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobfeed_feed_entries",
				Help: "Entries in the feed after the last merge.",
			},
		)

		activeSites = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobfeed_active_sites",
				Help: "Number of site scrapers currently running.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobfeed_politeness_delay_seconds",
				Help:    "Histogram of politeness wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		lastRunTimestampSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobfeed_last_run_timestamp_seconds",
				Help: "Unix time the last run finished.",
			},
		)

		lastRunDurationSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobfeed_last_run_duration_seconds",
				Help: "Wall-clock duration of the last run.",
			},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetch counts one fetch attempt and the bytes it returned.
func ObserveFetch(rawURL string, status string, bytesFetched int) {
	if fetchesTotal == nil {
		return
	}
	host := SanitizeHost(rawURL)
	fetchesTotal.WithLabelValues(host, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(host).Add(float64(bytesFetched))
	}
}

// ObserveJobs adds n discovered jobs for site.
func ObserveJobs(site string, n int) {
	if jobsDiscoveredTotal == nil || n <= 0 {
		return
	}
	jobsDiscoveredTotal.WithLabelValues(site).Add(float64(n))
}

// ObserveSiteFailure counts a site that failed entirely.
func ObserveSiteFailure(site string) {
	if siteFailuresTotal == nil {
		return
	}
	siteFailuresTotal.WithLabelValues(site).Inc()
}

// ObserveMerge records the outcome of a feed merge.
func ObserveMerge(added, total int) {
	if feedEntriesAddedTotal == nil {
		return
	}
	feedEntriesAddedTotal.Add(float64(added))
	feedEntries.Set(float64(total))
}

// IncActiveSites increments the active sites gauge.
func IncActiveSites() {
	if activeSites != nil {
		activeSites.Inc()
	}
}

// DecActiveSites decrements the active sites gauge.
func DecActiveSites() {
	if activeSites != nil {
		activeSites.Dec()
	}
}

// ObserveRateLimitDelay records the duration of a politeness wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	if rateLimitDelaysSeconds == nil {
		return
	}
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveRun records when the run finished and how long it took.
func ObserveRun(finished time.Time, duration time.Duration) {
	if lastRunTimestampSeconds == nil {
		return
	}
	lastRunTimestampSeconds.Set(float64(finished.Unix()))
	lastRunDurationSeconds.Set(duration.Seconds())
}

// WriteTextfile writes every registered metric to path in the text exposition
// format, for collection by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
