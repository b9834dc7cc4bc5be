package parser

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/council-jobs-feed/internal/crawler"
)

const listPage = `<html><body>
<div class="job">
  <a class="title" href="/jobs/1">  Senior <b>Planner</b>
  </a>
  <span class="salary">Band 6 $95,000</span>
  <span class="loc">Ballarat</span>
  <span class="close">30 June 2026</span>
</div>
<div class="job">
  <h3 class="title"><a href="/jobs/2">Librarian &amp; Archivist</a></h3>
</div>
<div class="job">
  <a class="title">No link here</a>
</div>
<div class="job">
  <span>No title element</span>
</div>
<div class="job">
  <a class="title" href="/jobs/5">   </a>
</div>
</body></html>`

func TestExtractList(t *testing.T) {
	t.Parallel()

	p := New()
	got, err := p.ExtractList(listPage, crawler.ListSelectors{
		Item:     "div.job",
		Title:    ".title",
		Salary:   ".salary",
		Location: ".loc",
		Closing:  ".close",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, got.Matched, "malformed cards still count as matched")
	require.Len(t, got.Candidates, 2)

	assert.Equal(t, crawler.Candidate{
		Title:    "Senior Planner",
		Href:     "/jobs/1",
		Location: "Ballarat",
		Salary:   "Band 6 $95,000",
		Closing:  "30 June 2026",
	}, got.Candidates[0])
	assert.Equal(t, "Librarian & Archivist", got.Candidates[1].Title)
	assert.Equal(t, "/jobs/2", got.Candidates[1].Href)
	assert.Empty(t, got.Candidates[1].Salary)
}

func TestExtractListEmptySelector(t *testing.T) {
	t.Parallel()

	got, err := New().ExtractList(listPage, crawler.ListSelectors{Title: ".title"})
	require.NoError(t, err)
	assert.Zero(t, got.Matched)
	assert.Empty(t, got.Candidates)
}

func TestExtractListNoMatches(t *testing.T) {
	t.Parallel()

	got, err := New().ExtractList("<html><body><p>No vacancies</p></body></html>", crawler.ListSelectors{
		Item:  "div.job",
		Title: "a",
	})
	require.NoError(t, err)
	assert.Zero(t, got.Matched)
	assert.Empty(t, got.Candidates)
}

func TestExtractListTitleSelectorOptional(t *testing.T) {
	t.Parallel()

	got, err := New().ExtractList(`<ul><li><a class="card" href="/j/9">Ranger</a></li></ul>`, crawler.ListSelectors{
		Item: "a.card",
	})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "Ranger", got.Candidates[0].Title)
	assert.Equal(t, "/j/9", got.Candidates[0].Href)
}

func TestExtractDetail(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<dl><dt>Location</dt><dd class="location">  Civic Centre,
   Geelong </dd></dl>
<div class="salary">$80k - $90k <em>Band 5</em></div>
<div class="description"><p>First paragraph.</p><p>Second&nbsp;paragraph.</p><script>alert(1)</script></div>
</body></html>`

	got, err := New().ExtractDetail(page, crawler.DetailSelectors{
		Location:    ".location",
		Salary:      ".salary",
		Closing:     ".closing",
		Description: ".description",
	})
	require.NoError(t, err)
	assert.Equal(t, "Civic Centre, Geelong", got.Location)
	assert.Equal(t, "$80k - $90k Band 5", got.Salary)
	assert.Empty(t, got.Closing)
	assert.Equal(t, "First paragraph. Second paragraph.", got.Description)
}

func TestExtractDetailTruncatesDescription(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("é", MaxDescriptionLength+250)
	got, err := New().ExtractDetail(`<div id="d">`+long+`</div>`, crawler.DetailSelectors{Description: "#d"})
	require.NoError(t, err)
	assert.Equal(t, MaxDescriptionLength, utf8.RuneCountInString(got.Description))
}

func TestExtractDetailEmptySelectors(t *testing.T) {
	t.Parallel()

	got, err := New().ExtractDetail(`<html><body><p>hello</p></body></html>`, crawler.DetailSelectors{})
	require.NoError(t, err)
	assert.Equal(t, crawler.Detail{}, got)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("abc", 0))
}
