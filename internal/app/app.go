// Package app wires the run's services together and executes one scrape run:
// load sites, load the feed, scrape every site, merge, persist, then fan the
// new jobs out to the archive and Pub/Sub.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/council-jobs-feed/internal/clock/system"
	"github.com/JakeFAU/council-jobs-feed/internal/config"
	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
	"github.com/JakeFAU/council-jobs-feed/internal/dispatcher"
	"github.com/JakeFAU/council-jobs-feed/internal/feed"
	collyfetcher "github.com/JakeFAU/council-jobs-feed/internal/fetcher/colly"
	"github.com/JakeFAU/council-jobs-feed/internal/id/uuid"
	"github.com/JakeFAU/council-jobs-feed/internal/metrics"
	"github.com/JakeFAU/council-jobs-feed/internal/parser"
	"github.com/JakeFAU/council-jobs-feed/internal/policy/ratelimit"
	"github.com/JakeFAU/council-jobs-feed/internal/publisher/pubsub"
	"github.com/JakeFAU/council-jobs-feed/internal/scraper"
	"github.com/JakeFAU/council-jobs-feed/internal/sites"
	"github.com/JakeFAU/council-jobs-feed/internal/storage/gcs"
	"github.com/JakeFAU/council-jobs-feed/internal/storage/local"
	"github.com/JakeFAU/council-jobs-feed/internal/storage/postgres"
)

// PublishedEvent names the message sent for each newly added job.
const PublishedEvent = "job.published"

// Deps are the collaborators a run needs. Archive and Publisher are optional.
type Deps struct {
	Fetcher   crawler.Fetcher
	Blobs     crawler.BlobStore
	FeedPath  string
	Archive   crawler.Archive
	Publisher crawler.Publisher
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID       string
	Sites       []crawler.SiteReport
	Considered  int
	Added       int
	FeedEntries int
	Duration    time.Duration
}

// App holds the long-lived services for one process.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	deps    Deps
	closers []func()
}

// New builds the production services described by cfg.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	a := &App{cfg: cfg, logger: logger}

	limiter := ratelimit.New(ratelimit.Config{Interval: cfg.PolitenessInterval()})
	a.deps.Fetcher = collyfetcher.New(collyfetcher.Config{
		UserAgent:      cfg.Crawler.UserAgent,
		Timeout:        cfg.RequestTimeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
	}, limiter, logger)
	a.deps.Clock = system.New()
	a.deps.IDs = uuid.New()

	if err := a.openFeedStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Archive.DSN != "" {
		archive, err := postgres.NewJobArchive(ctx, postgres.ArchiveConfig{
			DSN:             cfg.Archive.DSN,
			Table:           cfg.Archive.Table,
			MaxConns:        cfg.Archive.MaxConns,
			MaxConnLifetime: cfg.ArchiveConnLifetime(),
		})
		if err != nil {
			logger.Warn("job archive unavailable", zap.Error(err))
		} else {
			a.deps.Archive = archive
			a.closers = append(a.closers, archive.Close)
		}
	}

	if cfg.Notify.ProjectID != "" {
		pub, err := pubsub.New(ctx, cfg.Notify.ProjectID, cfg.Notify.Topic)
		if err != nil {
			logger.Warn("pubsub publisher unavailable", zap.Error(err))
		} else {
			a.deps.Publisher = pub
			a.closers = append(a.closers, func() {
				if err := pub.Close(); err != nil {
					logger.Warn("close pubsub publisher", zap.Error(err))
				}
			})
		}
	}
	return a, nil
}

func (a *App) openFeedStore(ctx context.Context) error {
	switch a.cfg.Feed.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create storage client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		blobs, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Feed.GCSBucket})
		if err != nil {
			return fmt.Errorf("gcs feed store: %w", err)
		}
		a.deps.Blobs = blobs
		a.deps.FeedPath = a.cfg.Feed.Path
	default:
		blobs, err := local.New(local.Config{BaseDir: filepath.Dir(a.cfg.Feed.Path)})
		if err != nil {
			return fmt.Errorf("local feed store: %w", err)
		}
		a.deps.Blobs = blobs
		a.deps.FeedPath = filepath.Base(a.cfg.Feed.Path)
	}
	return nil
}

// NewWithDeps builds an App around caller-supplied collaborators.
func NewWithDeps(cfg config.Config, logger *zap.Logger, deps Deps) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	return &App{cfg: cfg, logger: logger, deps: deps}
}

// Close releases clients opened by New.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// Run executes one scrape run. Only a missing site table or a failed feed
// write is returned as an error; everything else is logged and absorbed.
func (a *App) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	runID, err := a.deps.IDs.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("run id: %w", err)
	}
	logger := a.logger.With(zap.String("run_id", runID))
	summary := Summary{RunID: runID}

	siteList, err := sites.Load(a.cfg.Sites.Path)
	if err != nil {
		return summary, err
	}
	logger.Info("site table loaded", zap.String("path", a.cfg.Sites.Path), zap.Int("sites", len(siteList)))

	store := feed.NewStore(a.deps.Blobs, a.deps.FeedPath, feed.Metadata{
		Title:       a.cfg.Feed.Title,
		Description: a.cfg.Feed.Description,
		Link:        a.cfg.Feed.Link,
		Language:    a.cfg.Feed.Language,
	}, a.deps.Clock, logger)
	current, known := store.Load(ctx)

	s := scraper.New(a.deps.Fetcher, parser.New(), a.deps.Clock, logger)
	result := dispatcher.New(s, a.cfg.Crawler.Concurrency, logger).Run(ctx, siteList)
	summary.Sites = result.Sites
	summary.Considered = len(result.Jobs)

	// Persisting must not be cut short by a canceled scrape.
	persistCtx := context.WithoutCancel(ctx)
	added, err := store.MergeAndPersist(persistCtx, current, known, result.Jobs)
	if err != nil {
		return summary, err
	}
	summary.Added = len(added)
	summary.FeedEntries = len(current.Entries)

	a.archive(persistCtx, logger, added)
	a.announce(persistCtx, logger, added)

	summary.Duration = time.Since(start)
	metrics.ObserveRun(a.deps.Clock.Now(), summary.Duration)
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			logger.Warn("metrics textfile not written", zap.Error(err))
		}
	}

	logger.Info("run complete",
		zap.Int("sites", len(summary.Sites)),
		zap.Int("considered", summary.Considered),
		zap.Int("added", summary.Added),
		zap.Int("feed_entries", summary.FeedEntries),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (a *App) archive(ctx context.Context, logger *zap.Logger, added []crawler.Job) {
	if a.deps.Archive == nil || len(added) == 0 {
		return
	}
	n, err := a.deps.Archive.StoreJobs(ctx, added)
	if err != nil {
		logger.Warn("job archive failed", zap.Int("stored", n), zap.Error(err))
		return
	}
	logger.Debug("jobs archived", zap.Int("stored", n))
}

func (a *App) announce(ctx context.Context, logger *zap.Logger, added []crawler.Job) {
	if a.deps.Publisher == nil {
		return
	}
	for _, job := range added {
		if _, err := a.deps.Publisher.Publish(ctx, PublishedEvent, job); err != nil {
			logger.Warn("job announcement failed", zap.String("job", job.ID), zap.Error(err))
		}
	}
}
