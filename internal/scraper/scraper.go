// Package scraper interprets one site configuration: it walks the list pages,
// resolves each card to a detail URL, fetches the detail page and emits jobs.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
	"github.com/JakeFAU/council-jobs-feed/internal/metrics"
	"github.com/JakeFAU/council-jobs-feed/internal/parser"
)

// ShortPageThreshold is the number of matched list items below which a list
// page is taken to be the last one. Malformed cards count toward it.
const ShortPageThreshold = 5

// Scraper produces a deduplicated batch of jobs for one site. A single
// Scraper may serve many sites concurrently; per-site state lives on the
// stack of Scrape.
type Scraper struct {
	fetcher crawler.Fetcher
	parser  *parser.Parser
	clock   crawler.Clock
	logger  *zap.Logger
}

// New wires a Scraper.
func New(fetcher crawler.Fetcher, p *parser.Parser, clock crawler.Clock, logger *zap.Logger) *Scraper {
	if p == nil {
		p = parser.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scraper{
		fetcher: fetcher,
		parser:  p,
		clock:   clock,
		logger:  logger,
	}
}

// Scrape walks site's list pages. Only an invalid site configuration is
// returned as an error; page and item failures are counted and logged, and
// cancellation ends the walk with whatever was found so far.
func (s *Scraper) Scrape(ctx context.Context, site crawler.Site) (crawler.ScrapeResult, error) {
	result := crawler.ScrapeResult{Site: site.Name}
	if err := site.Validate(); err != nil {
		return result, err
	}
	rule, err := site.Rule()
	if err != nil {
		return result, err
	}

	logger := s.logger.With(zap.String("site", site.Name))
	seen := make(map[string]struct{})

	for page := 1; page <= site.PageLimit(); page++ {
		if ctx.Err() != nil {
			logger.Debug("scrape canceled", zap.Int("page", page))
			break
		}
		pageURL, err := crawler.PageURL(site.ListURL, page)
		if err != nil {
			return result, fmt.Errorf("%w: %s: %v", crawler.ErrInvalidSite, site.Name, err)
		}

		body, err := s.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			result.FetchFailures++
			logger.Warn("list page unavailable, stopping pagination",
				zap.Int("page", page),
				zap.String("url", pageURL),
				zap.Error(err),
			)
			break
		}
		result.PagesVisited++

		listing, err := s.parser.ExtractList(body, site.List)
		if err != nil {
			logger.Warn("list page unparseable", zap.Int("page", page), zap.Error(err))
			break
		}
		if listing.Matched == 0 {
			logger.Debug("no list items, stopping pagination", zap.Int("page", page))
			break
		}

		for _, c := range listing.Candidates {
			if ctx.Err() != nil {
				break
			}
			job, ok := s.scrapeCandidate(ctx, logger, site, rule, pageURL, c, seen, &result)
			if ok {
				result.Jobs = append(result.Jobs, job)
			}
		}

		if listing.Matched < ShortPageThreshold {
			logger.Debug("short page, treating as last",
				zap.Int("page", page),
				zap.Int("matched", listing.Matched),
				zap.Int("candidates", len(listing.Candidates)),
			)
			break
		}
	}

	metrics.ObserveJobs(site.Name, len(result.Jobs))
	logger.Info("site scraped",
		zap.Int("jobs", len(result.Jobs)),
		zap.Int("pages", result.PagesVisited),
		zap.Int("fetch_failures", result.FetchFailures),
	)
	return result, nil
}

func (s *Scraper) scrapeCandidate(
	ctx context.Context,
	logger *zap.Logger,
	site crawler.Site,
	rule crawler.URLRule,
	pageURL string,
	c crawler.Candidate,
	seen map[string]struct{},
	result *crawler.ScrapeResult,
) (crawler.Job, bool) {
	id, err := rule.Resolve(pageURL, c.Href)
	if err != nil {
		logger.Debug("skipping card without resolvable detail url",
			zap.String("href", c.Href),
			zap.Error(err),
		)
		return crawler.Job{}, false
	}
	if _, dup := seen[id]; dup {
		return crawler.Job{}, false
	}
	seen[id] = struct{}{}

	body, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		result.FetchFailures++
		if !errors.Is(err, context.Canceled) {
			logger.Warn("detail page unavailable, skipping job", zap.String("url", id), zap.Error(err))
		}
		return crawler.Job{}, false
	}

	detail, err := s.parser.ExtractDetail(body, site.Detail)
	if err != nil {
		logger.Warn("detail page unparseable, using list fields", zap.String("url", id), zap.Error(err))
		detail = crawler.Detail{}
	}
	return s.buildJob(site, id, c, detail), true
}

// buildJob merges detail and list fields. Detail values win; list values fill
// gaps; location finally defaults to the region label.
func (s *Scraper) buildJob(site crawler.Site, id string, c crawler.Candidate, d crawler.Detail) crawler.Job {
	salary := firstNonEmpty(d.Salary, c.Salary)
	return crawler.Job{
		ID:           id,
		Title:        c.Title,
		Site:         site.Name,
		Location:     firstNonEmpty(d.Location, c.Location, crawler.DefaultLocation),
		Salary:       salary,
		PayBand:      parser.PayBand(salary, site.PayBandDefault()),
		Closing:      firstNonEmpty(d.Closing, c.Closing),
		Description:  d.Description,
		DiscoveredAt: s.clock.Now(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
