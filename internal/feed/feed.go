// Package feed loads, merges and persists the published job feed.
//
// The persisted document is RSS 2.0. Each entry's GUID is the job identity
// (its canonical detail URL), which is what cross-run deduplication keys on.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
	"github.com/JakeFAU/council-jobs-feed/internal/metrics"
)

const contentType = "application/rss+xml; charset=utf-8"

// Metadata describes the feed as a whole.
type Metadata struct {
	Title       string
	Description string
	Link        string
	Language    string
}

// Entry is one published item. ID is unique within a Feed.
type Entry struct {
	ID          string
	Title       string
	Link        string
	Description string
	Published   time.Time
}

// Feed is the ordered entry list plus metadata, newest first.
type Feed struct {
	Metadata
	Entries []Entry
}

// Known is the set of identities already present in a feed.
type Known map[string]struct{}

// Store reads and writes the feed document through a BlobStore.
type Store struct {
	blobs    crawler.BlobStore
	path     string
	defaults Metadata
	clock    crawler.Clock
	logger   *zap.Logger
}

// NewStore creates a Store for the object at path. defaults fill any metadata
// the persisted document leaves blank.
func NewStore(blobs crawler.BlobStore, path string, defaults Metadata, clock crawler.Clock, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		blobs:    blobs,
		path:     path,
		defaults: defaults,
		clock:    clock,
		logger:   logger,
	}
}

// Load returns the persisted feed and its identity set. It never fails: a
// missing document yields an empty feed, and an unreadable one is logged and
// also yields an empty feed.
func (s *Store) Load(ctx context.Context) (*Feed, Known) {
	empty := &Feed{Metadata: s.defaults}
	data, err := s.blobs.GetObject(ctx, s.path)
	if errors.Is(err, crawler.ErrNotFound) {
		s.logger.Info("no existing feed, starting empty", zap.String("path", s.path))
		return empty, Known{}
	}
	if err != nil {
		s.logger.Warn("feed unreadable, starting empty",
			zap.String("path", s.path),
			zap.Error(fmt.Errorf("%w: %w", crawler.ErrFeedLoad, err)),
		)
		return empty, Known{}
	}

	f, err := decode(data)
	if err != nil {
		s.logger.Warn("feed corrupt, starting empty",
			zap.String("path", s.path),
			zap.Error(fmt.Errorf("%w: %w", crawler.ErrFeedLoad, err)),
		)
		return empty, Known{}
	}
	f.Metadata = fillMetadata(f.Metadata, s.defaults)

	known := make(Known, len(f.Entries))
	for _, e := range f.Entries {
		known[e.ID] = struct{}{}
	}
	s.logger.Info("feed loaded", zap.String("path", s.path), zap.Int("entries", len(f.Entries)))
	return f, known
}

// MergeAndPersist adds the jobs whose identity is not in known, newest first
// ahead of the existing entries, and writes the whole feed. known is updated
// with the added identities. It returns the jobs that were added; the feed is
// written even when nothing is new.
func (s *Store) MergeAndPersist(ctx context.Context, f *Feed, known Known, jobs []crawler.Job) ([]crawler.Job, error) {
	added := Merge(f, known, jobs)

	data, err := encode(f, s.clock.Now())
	if err != nil {
		return added, fmt.Errorf("encode feed: %w", err)
	}
	uri, err := s.blobs.PutObject(ctx, s.path, contentType, bytes.NewReader(data))
	if err != nil {
		return added, fmt.Errorf("persist feed: %w", err)
	}

	metrics.ObserveMerge(len(added), len(f.Entries))
	s.logger.Info("feed persisted",
		zap.String("uri", uri),
		zap.Int("added", len(added)),
		zap.Int("entries", len(f.Entries)),
	)
	return added, nil
}

// Merge prepends the unseen jobs to f in place and returns them in the order
// they were added.
func Merge(f *Feed, known Known, jobs []crawler.Job) []crawler.Job {
	var fresh []crawler.Job
	for _, job := range jobs {
		if _, ok := known[job.ID]; ok {
			continue
		}
		known[job.ID] = struct{}{}
		fresh = append(fresh, job)
	}
	if len(fresh) == 0 {
		return nil
	}
	sort.SliceStable(fresh, func(i, j int) bool {
		return fresh[i].DiscoveredAt.After(fresh[j].DiscoveredAt)
	})

	entries := make([]Entry, 0, len(fresh)+len(f.Entries))
	for _, job := range fresh {
		entries = append(entries, EntryFor(job))
	}
	f.Entries = append(entries, f.Entries...)
	return fresh
}

func decode(data []byte) (*Feed, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	f := &Feed{
		Metadata: Metadata{
			Title:       parsed.Title,
			Description: parsed.Description,
			Link:        parsed.Link,
			Language:    parsed.Language,
		},
		Entries: make([]Entry, 0, len(parsed.Items)),
	}
	seen := make(map[string]struct{}, len(parsed.Items))
	for _, item := range parsed.Items {
		id := item.GUID
		if id == "" {
			id = item.Link
		}
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		f.Entries = append(f.Entries, Entry{
			ID:          id,
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Published:   published(item),
		})
	}
	return f, nil
}

func published(item *gofeed.Item) time.Time {
	switch {
	case item.PublishedParsed != nil:
		return item.PublishedParsed.UTC()
	case item.UpdatedParsed != nil:
		return item.UpdatedParsed.UTC()
	default:
		return time.Time{}
	}
}

func fillMetadata(m, defaults Metadata) Metadata {
	if m.Title == "" {
		m.Title = defaults.Title
	}
	if m.Description == "" {
		m.Description = defaults.Description
	}
	if m.Link == "" {
		m.Link = defaults.Link
	}
	if m.Language == "" {
		m.Language = defaults.Language
	}
	return m
}
