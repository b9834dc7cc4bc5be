// Package dispatcher fans site scrapes out over a bounded worker pool and
// gathers their results in configuration order.
package dispatcher

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
	"github.com/JakeFAU/council-jobs-feed/internal/metrics"
)

// SiteScraper scrapes a single site.
type SiteScraper interface {
	Scrape(ctx context.Context, site crawler.Site) (crawler.ScrapeResult, error)
}

// Dispatcher runs a SiteScraper over many sites.
type Dispatcher struct {
	scraper     SiteScraper
	concurrency int
	logger      *zap.Logger
}

// New creates a Dispatcher. Concurrency below one runs sites one at a time.
func New(scraper SiteScraper, concurrency int, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		scraper:     scraper,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run scrapes every site and returns their jobs concatenated in site order.
// A site that fails or panics is reported in its SiteReport and contributes
// no jobs. Sites not yet started when ctx is canceled are skipped.
func (d *Dispatcher) Run(ctx context.Context, sites []crawler.Site) crawler.RunResult {
	reports := make([]crawler.SiteReport, len(sites))

	var g errgroup.Group
	g.SetLimit(d.concurrency)
	for i, site := range sites {
		if ctx.Err() != nil {
			reports[i] = crawler.SiteReport{
				ScrapeResult: crawler.ScrapeResult{Site: site.Name},
				Err:          fmt.Errorf("skipped: %w", ctx.Err()),
			}
			continue
		}
		g.Go(func() error {
			reports[i] = d.runSite(ctx, site)
			return nil
		})
	}
	_ = g.Wait()

	var result crawler.RunResult
	result.Sites = reports
	for _, r := range reports {
		result.Jobs = append(result.Jobs, r.Jobs...)
	}
	return result
}

func (d *Dispatcher) runSite(ctx context.Context, site crawler.Site) (report crawler.SiteReport) {
	report.Site = site.Name
	if ctx.Err() != nil {
		report.Err = fmt.Errorf("skipped: %w", ctx.Err())
		return report
	}

	metrics.IncActiveSites()
	defer metrics.DecActiveSites()
	defer func() {
		if r := recover(); r != nil {
			report = crawler.SiteReport{
				ScrapeResult: crawler.ScrapeResult{Site: site.Name},
				Err:          fmt.Errorf("site scraper panicked: %v", r),
			}
			metrics.ObserveSiteFailure(site.Name)
			d.logger.Error("site scraper panicked", zap.String("site", site.Name), zap.Any("panic", r))
		}
	}()

	res, err := d.scraper.Scrape(ctx, site)
	if err != nil {
		metrics.ObserveSiteFailure(site.Name)
		d.logger.Warn("site failed", zap.String("site", site.Name), zap.Error(err))
		return crawler.SiteReport{
			ScrapeResult: crawler.ScrapeResult{Site: site.Name},
			Err:          err,
		}
	}
	return crawler.SiteReport{ScrapeResult: res}
}
