package dispatcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
)

func TestDispatcherRunPreservesSiteOrder(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{
		delay: map[string]time.Duration{"alpha": 40 * time.Millisecond},
	}
	d := New(scraper, 3, nil)

	res := d.Run(context.Background(), sites("alpha", "bravo", "charlie"))

	require.Len(t, res.Sites, 3)
	assert.Equal(t, []string{"alpha-1", "alpha-2", "bravo-1", "bravo-2", "charlie-1", "charlie-2"}, ids(res.Jobs))
	for i, name := range []string{"alpha", "bravo", "charlie"} {
		assert.Equal(t, name, res.Sites[i].Site)
		assert.NoError(t, res.Sites[i].Err)
	}
}

func TestDispatcherIsolatesFailures(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{
		fail:   map[string]error{"bravo": crawler.ErrInvalidSite},
		panics: map[string]bool{"charlie": true},
	}
	d := New(scraper, 2, nil)

	res := d.Run(context.Background(), sites("alpha", "bravo", "charlie", "delta"))

	assert.Equal(t, []string{"alpha-1", "alpha-2", "delta-1", "delta-2"}, ids(res.Jobs))
	require.Len(t, res.Sites, 4)
	assert.ErrorIs(t, res.Sites[1].Err, crawler.ErrInvalidSite)
	assert.ErrorContains(t, res.Sites[2].Err, "panicked")
	assert.Empty(t, res.Sites[2].Jobs)
	assert.NoError(t, res.Sites[3].Err)
}

func TestDispatcherRespectsConcurrencyLimit(t *testing.T) {
	t.Parallel()

	scraper := &stubScraper{delay: map[string]time.Duration{}}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		scraper.delay[name] = 20 * time.Millisecond
	}
	d := New(scraper, 2, nil)

	res := d.Run(context.Background(), sites("a", "b", "c", "d", "e", "f"))
	assert.Len(t, res.Jobs, 12)
	assert.LessOrEqual(t, scraper.peak.Load(), int32(2))
}

func TestDispatcherCanceledContextSkipsSites(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scraper := &stubScraper{}
	res := New(scraper, 1, nil).Run(ctx, sites("alpha", "bravo"))

	assert.Empty(t, res.Jobs)
	require.Len(t, res.Sites, 2)
	for _, r := range res.Sites {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Zero(t, scraper.calls.Load())
}

func TestDispatcherEmptySites(t *testing.T) {
	t.Parallel()

	res := New(&stubScraper{}, 0, nil).Run(context.Background(), nil)
	assert.Empty(t, res.Jobs)
	assert.Empty(t, res.Sites)
}

func sites(names ...string) []crawler.Site {
	out := make([]crawler.Site, 0, len(names))
	for _, n := range names {
		out = append(out, crawler.Site{Name: n, ListURL: "https://" + n + ".vic.gov.au/careers"})
	}
	return out
}

func ids(jobs []crawler.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

type stubScraper struct {
	mu     sync.Mutex
	delay  map[string]time.Duration
	fail   map[string]error
	panics map[string]bool
	calls  atomic.Int32
	active atomic.Int32
	peak   atomic.Int32
}

func (s *stubScraper) Scrape(_ context.Context, site crawler.Site) (crawler.ScrapeResult, error) {
	s.calls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	s.mu.Lock()
	if n > s.peak.Load() {
		s.peak.Store(n)
	}
	delay := s.delay[site.Name]
	err := s.fail[site.Name]
	shouldPanic := s.panics[site.Name]
	s.mu.Unlock()

	time.Sleep(delay)
	if shouldPanic {
		panic("selector exploded")
	}
	if err != nil {
		return crawler.ScrapeResult{}, err
	}
	return crawler.ScrapeResult{
		Site: site.Name,
		Jobs: []crawler.Job{
			{ID: site.Name + "-1", Site: site.Name},
			{ID: site.Name + "-2", Site: site.Name},
		},
		PagesVisited: 1,
	}, nil
}
